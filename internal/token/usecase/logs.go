package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/storage"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

const (
	logExportPageSize int32 = 1_000

	defaultExportURLExpiry = 15 * time.Minute
)

type (
	// ListLogsInput bounds are inclusive and whole-second.
	ListLogsInput struct {
		Username string // value already trimmed
		Message  string // value already trimmed
		From     time.Time
		To       time.Time
		Page     int32
		Size     int32
	}

	ListLogsOutput struct {
		Page  int32
		Size  int32
		Total int64
		Logs  []entity.LogEntry
	}

	ExportLogsInput struct {
		Username string
		Message  string
		From     time.Time
		To       time.Time
	}

	ExportLogsOutput struct {
		URL       string
		Key       string
		Rows      int64
		ExpiresAt time.Time
	}
)

func logFilter(username, message string, from, to time.Time) (entity.LogFilter, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return entity.LogFilter{}, goerror.NewInvalidInput(nil, "to", "to must not be before from")
	}

	filter := entity.LogFilter{Username: username, Message: message}
	if !from.IsZero() {
		filter.After = from.Add(-time.Second)
	}
	if !to.IsZero() {
		filter.Before = to.Add(time.Second)
	}

	return filter, nil
}

func (s *Usecase) ListLogs(ctx context.Context, in ListLogsInput) (*ListLogsOutput, error) {
	ctx, span := s.startSpan(ctx, "ListLogs")
	defer span.End()

	if _, err := s.authorizeAdmin(ctx); err != nil {
		return nil, err
	}

	filter, err := logFilter(in.Username, in.Message, in.From, in.To)
	if err != nil {
		return nil, err
	}

	in.Size = normalizeSize(in.Size)
	filter.Limit = in.Size
	filter.Offset = pageOffset(in.Page, in.Size)

	logs, total, err := s.repoDB.ListLogs(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list logs", "error", err)
		return nil, goerror.NewServer(err)
	}

	return &ListLogsOutput{
		Page:  max(in.Page, 1),
		Size:  in.Size,
		Total: total,
		Logs:  logs,
	}, nil
}

// ExportLogs writes every matching log entry as CSV to object storage and
// returns a time-limited download link.
func (s *Usecase) ExportLogs(ctx context.Context, in ExportLogsInput) (*ExportLogsOutput, error) {
	ctx, span := s.startSpan(ctx, "ExportLogs")
	defer span.End()

	clm, err := s.authorizeAdmin(ctx)
	if err != nil {
		return nil, err
	}

	if s.storage == nil {
		slog.WarnContext(ctx, "log export requested without storage configured", "username", clm.Username)
		return nil, goerror.NewBusiness("log export is not available", goerror.CodeForbidden)
	}

	filter, err := logFilter(in.Username, in.Message, in.From, in.To)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "username", "passphrase", "message", "logged_at"}); err != nil {
		return nil, goerror.NewServer(err)
	}

	var (
		page int32 = 1
		rows int64
	)
	filter.Limit = logExportPageSize

	for {
		filter.Offset = (page - 1) * logExportPageSize

		logs, total, err := s.repoDB.ListLogs(ctx, filter)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo export logs", "page", page, "error", err)
			return nil, goerror.NewServer(err)
		}

		for _, l := range logs {
			if err := w.Write([]string{
				strconv.FormatInt(l.ID, 10),
				l.Username,
				l.Passphrase,
				l.Message,
				l.LoggedAt.UTC().Format(time.RFC3339),
			}); err != nil {
				return nil, goerror.NewServer(err)
			}
		}
		rows += int64(len(logs))

		if len(logs) < int(logExportPageSize) || rows >= total {
			break
		}
		page++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		slog.ErrorContext(ctx, "failed to flush csv", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	bucket := s.cfg.GetString("modules.token.export.bucket")
	scope := in.Username
	if scope == "" {
		scope = "all"
	}
	key := fmt.Sprintf("logs/%s/%s-%d.csv", scope, now.UTC().Format("20060102T150405Z"), s.uid.Generate())

	if _, err := s.storage.PutObject(ctx, bucket, key, &buf, storage.PutOptions{
		Size:        int64(buf.Len()),
		ContentType: "text/csv",
		Metadata:    map[string]string{"exported-by": clm.Username},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to upload log export", "bucket", bucket, "key", key, "error", err)
		return nil, goerror.NewServer(err)
	}

	expiry := s.cfg.GetMinute("modules.token.export.url_expiry")
	if expiry <= 0 {
		expiry = defaultExportURLExpiry
	}

	url, err := s.storage.PresignGet(ctx, bucket, key, expiry)
	if errors.Is(err, storage.ErrMissingSigner) {
		slog.WarnContext(ctx, "storage cannot sign urls", "bucket", bucket, "key", key)
		return nil, goerror.NewBusiness("log export is not available", goerror.CodeForbidden)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to presign log export", "bucket", bucket, "key", key, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "logs exported", "key", key, "rows", rows, "by", clm.Username)

	return &ExportLogsOutput{URL: url, Key: key, Rows: rows, ExpiresAt: now.Add(expiry)}, nil
}
