package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

var errCredentialNotFound = goerror.NewBusiness("credential not found", goerror.CodeNotFound)

type (
	SaveCredentialInput struct {
		Username string `validate:"required,username"`
		Secret   string `validate:"required,token_secret"`
		Pin      string
	}

	ChangePinInput struct {
		Pin string
	}

	ChangeSecretInput struct {
		Secret string `validate:"required,token_secret"`
	}

	DeleteCredentialInput struct {
		Username string `validate:"required,username"`
	}

	CredentialDetailInput struct {
		Username string `validate:"omitempty,username"` // empty means the caller
	}

	ListCredentialsInput struct {
		Search string // value already trimmed
		Page   int32
		Size   int32
	}

	ListCredentialsOutput struct {
		Page        int32
		Size        int32
		Total       int64
		Credentials []entity.CredentialSummary
	}
)

// SaveCredential enrolls or replaces a user's token. Every PIN problem is
// reported at once and nothing is stored when there is any.
func (s *Usecase) SaveCredential(ctx context.Context, in SaveCredentialInput) error {
	ctx, span := s.startSpan(ctx, "SaveCredential")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	clm, err := s.authorizeAdmin(ctx)
	if err != nil {
		return err
	}

	cred, err := s.getOrNewCredential(ctx, in.Username)
	if err != nil {
		return err
	}

	cred.SetSecret(in.Secret)
	if problems := cred.SetPin(in.Pin); len(problems) > 0 {
		return goerror.NewInvalidInputDetails(problems)
	}

	if err := s.repoDB.SaveCredential(ctx, *cred); err != nil {
		slog.ErrorContext(ctx, "failed to save credential", "username", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential saved", "username", in.Username, "by", clm.Username)
	return nil
}

func (s *Usecase) ChangePin(ctx context.Context, in ChangePinInput) error {
	ctx, span := s.startSpan(ctx, "ChangePin")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return err
	}

	cred, err := s.repoDB.GetCredential(ctx, clm.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "username", clm.Username)
		return errCredentialNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get credential", "username", clm.Username, "error", err)
		return goerror.NewServer(err)
	}

	if problems := cred.SetPin(in.Pin); len(problems) > 0 {
		return goerror.NewInvalidInputDetails(problems)
	}

	if err := s.repoDB.SaveCredential(ctx, *cred); err != nil {
		slog.ErrorContext(ctx, "failed to save credential", "username", clm.Username, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

func (s *Usecase) ChangeSecret(ctx context.Context, in ChangeSecretInput) error {
	ctx, span := s.startSpan(ctx, "ChangeSecret")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return err
	}

	cred, err := s.getOrNewCredential(ctx, clm.Username)
	if err != nil {
		return err
	}

	cred.SetSecret(in.Secret)
	if err := s.repoDB.SaveCredential(ctx, *cred); err != nil {
		slog.ErrorContext(ctx, "failed to save credential", "username", clm.Username, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

func (s *Usecase) DeleteCredential(ctx context.Context, in DeleteCredentialInput) error {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	clm, err := s.authorizeAdmin(ctx)
	if err != nil {
		return err
	}

	err = s.repoDB.DeleteCredential(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "username", in.Username)
		return errCredentialNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete credential", "username", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential deleted", "username", in.Username, "by", clm.Username)
	return nil
}

// CredentialDetail never exposes the secret or the PIN. Reading another
// user's credential requires admin rights.
func (s *Usecase) CredentialDetail(ctx context.Context, in CredentialDetailInput) (*entity.CredentialSummary, error) {
	ctx, span := s.startSpan(ctx, "CredentialDetail")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	username := clm.Username
	if in.Username != "" && in.Username != clm.Username {
		if _, err := s.authorizeAdmin(ctx); err != nil {
			return nil, err
		}
		username = in.Username
	}

	sum, err := s.repoDB.GetCredentialSummary(ctx, username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "username", username)
		return nil, errCredentialNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get credential summary", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}

	return sum, nil
}

func (s *Usecase) ListCredentials(ctx context.Context, in ListCredentialsInput) (*ListCredentialsOutput, error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer span.End()

	if _, err := s.authorizeAdmin(ctx); err != nil {
		return nil, err
	}

	in.Size = normalizeSize(in.Size)
	creds, total, err := s.repoDB.ListCredentials(ctx, entity.CredentialFilter{
		Search: in.Search,
		Offset: pageOffset(in.Page, in.Size),
		Limit:  in.Size,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list credentials", "error", err)
		return nil, goerror.NewServer(err)
	}

	return &ListCredentialsOutput{
		Page:        max(in.Page, 1),
		Size:        in.Size,
		Total:       total,
		Credentials: creds,
	}, nil
}

func (s *Usecase) getOrNewCredential(ctx context.Context, username string) (*entity.Credential, error) {
	cred, err := s.repoDB.GetCredential(ctx, username)
	if errors.Is(err, goerror.ErrNotFound) {
		return &entity.Credential{Username: username}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get credential", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}

	return cred, nil
}
