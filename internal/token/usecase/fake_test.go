package usecase

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/clock"
	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gomotp/internal/pkg/storage"
	"github.com/shandysiswandi/gomotp/internal/pkg/validator"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

const testConfig = `
modules:
  token:
    lockout_threshold: 3
    admin_group: motp-admins
    export:
      bucket: exports
      url_expiry: 15
`

type fakeDB struct {
	mu    sync.Mutex
	creds map[string]*entity.Credential
	logs  []entity.LogEntry

	getErr    error
	countErr  error
	commitErr error
	appendErr error
}

func newFakeDB(creds ...entity.Credential) *fakeDB {
	db := &fakeDB{creds: map[string]*entity.Credential{}}
	for _, c := range creds {
		db.creds[c.Username] = &c
	}
	return db
}

func (f *fakeDB) GetCredential(_ context.Context, username string) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.creds[username]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeDB) GetCredentialSummary(_ context.Context, username string) (*entity.CredentialSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.creds[username]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &entity.CredentialSummary{Username: c.Username, HasToken: c.HasToken(), HasPin: c.HasPin(), InvalidLogins: c.InvalidLogins}, nil
}

func (f *fakeDB) ListCredentials(_ context.Context, filter entity.CredentialFilter) ([]entity.CredentialSummary, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for name := range f.creds {
		if strings.Contains(name, filter.Search) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var out []entity.CredentialSummary
	for i, name := range names {
		if int32(i) < filter.Offset || int32(len(out)) >= filter.Limit {
			continue
		}
		c := f.creds[name]
		out = append(out, entity.CredentialSummary{Username: c.Username, HasToken: c.HasToken(), HasPin: c.HasPin(), InvalidLogins: c.InvalidLogins})
	}
	return out, int64(len(names)), nil
}

func matchLog(f entity.LogFilter, l entity.LogEntry) bool {
	switch {
	case f.Username != "" && l.Username != f.Username:
		return false
	case f.Passphrase != "" && l.Passphrase != f.Passphrase:
		return false
	case f.Message != "" && l.Message != f.Message:
		return false
	case !f.After.IsZero() && !l.LoggedAt.After(f.After):
		return false
	case !f.Before.IsZero() && !l.LoggedAt.Before(f.Before):
		return false
	}
	return true
}

func (f *fakeDB) CountLogs(_ context.Context, filter entity.LogFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, l := range f.logs {
		if matchLog(filter, l) {
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) ListLogs(_ context.Context, filter entity.LogFilter) ([]entity.LogEntry, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []entity.LogEntry
	for _, l := range f.logs {
		if matchLog(filter, l) {
			matched = append(matched, l)
		}
	}

	total := int64(len(matched))
	start := min(int(filter.Offset), len(matched))
	end := min(start+int(filter.Limit), len(matched))
	return matched[start:end], total, nil
}

func (f *fakeDB) SaveCredential(_ context.Context, cred entity.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if old, ok := f.creds[cred.Username]; ok {
		cred.InvalidLogins = old.InvalidLogins
	}
	f.creds[cred.Username] = &cred
	return nil
}

func (f *fakeDB) DeleteCredential(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.creds[username]; !ok {
		return goerror.ErrNotFound
	}
	delete(f.creds, username)
	return nil
}

func (f *fakeDB) CommitAttempt(_ context.Context, in entity.AttemptCommit) (entity.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.commitErr != nil {
		return entity.CommitResult{}, f.commitErr
	}

	c, ok := f.creds[in.Entry.Username]
	if !ok {
		return entity.CommitResult{}, goerror.ErrNotFound
	}

	var res entity.CommitResult
	switch in.Counter {
	case entity.CounterReset:
		c.InvalidLogins = 0
	case entity.CounterIncrement:
		c.InvalidLogins++
		res.LockedNow = in.LockThreshold > 0 && c.InvalidLogins == in.LockThreshold
	}
	res.InvalidLogins = c.InvalidLogins

	f.logs = append(f.logs, in.Entry)
	if res.LockedNow {
		f.logs = append(f.logs, in.LockEntry)
	}
	return res, nil
}

func (f *fakeDB) AppendLog(_ context.Context, entry entity.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return f.appendErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeDB) Unlock(_ context.Context, username string, entry entity.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.creds[username]
	if !ok {
		return goerror.ErrNotFound
	}
	c.InvalidLogins = 0
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeDB) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Message)
	}
	return out
}

func (f *fakeDB) counter(username string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.creds[username].InvalidLogins
}

type fakeMQ struct {
	mu       sync.Mutex
	events   []string
	locked   []LockedEvent
	replayed []ReplayDetectedEvent
}

func (f *fakeMQ) PublishAuthenticated(_ context.Context, _ AuthenticatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "authenticated")
	return nil
}

func (f *fakeMQ) PublishReplayDetected(_ context.Context, ev ReplayDetectedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "replay_detected")
	f.replayed = append(f.replayed, ev)
	return nil
}

func (f *fakeMQ) PublishLocked(_ context.Context, ev LockedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "locked")
	f.locked = append(f.locked, ev)
	return nil
}

type fakeMembership map[string][]string

func (f fakeMembership) IsMember(_ context.Context, group, username string) (bool, error) {
	if group == "broken" {
		return false, errors.New("directory unavailable")
	}
	return slices.Contains(f[group], username), nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	done map[string]bool
}

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done[key] {
		return idempotency.ErrAlreadyCompleted
	}
	if err := fn(ctx); err != nil {
		return err
	}
	f.done[key] = true
	return nil
}

type fakeStorage struct {
	bucket string
	key    string
	body   string
	meta   map[string]string
}

func (f *fakeStorage) Close() error { return nil }

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.bucket, f.key, f.body, f.meta = bucket, key, string(b), opts.Metadata
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStorage) PresignGet(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://files.example/" + bucket + "/" + key, nil
}

type seqID struct {
	mu sync.Mutex
	n  int64
}

func (s *seqID) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

type fixedUUID string

func (u fixedUUID) Generate() string { return string(u) }

type fakeJWT struct{ exp time.Time }

func (f fakeJWT) Generate(username string) (string, time.Time, error) {
	return "token-" + username, f.exp, nil
}

func (f fakeJWT) Verify(string) (jwt.Claims, error) { return jwt.Claims{}, jwt.ErrInvalidToken }

type testEnv struct {
	uc      *Usecase
	db      *fakeDB
	mq      *fakeMQ
	storage *fakeStorage
	mgr     *goroutine.Manager
	now     time.Time
}

func newTestEnv(t *testing.T, now time.Time, creds ...entity.Credential) *testEnv {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	env := &testEnv{
		db:      newFakeDB(creds...),
		mq:      &fakeMQ{},
		storage: &fakeStorage{},
		mgr:     goroutine.NewManager(10),
		now:     now,
	}
	env.uc = New(Dependency{
		RepoDB:        env.db,
		RepoMessaging: env.mq,
		Idempotency:   &fakeIdempotency{done: map[string]bool{}},
		Validator:     v,
		Config:        cfg,
		Storage:       env.storage,
		Membership:    fakeMembership{"motp-admins": {"root"}},
		UID:           &seqID{},
		UUID:          fixedUUID("event-1"),
		Clock:         clock.Fixed(now),
		JWT:           fakeJWT{exp: now.Add(time.Hour)},
		Instrument:    instrument.NewNoop(),
		Goroutine:     env.mgr,
	})

	return env
}

// events waits for background publishes and returns what was sent.
func (e *testEnv) events(t *testing.T) []string {
	t.Helper()
	if err := e.mgr.Wait(); err != nil {
		t.Fatalf("goroutine manager: %v", err)
	}
	e.mq.mu.Lock()
	defer e.mq.mu.Unlock()
	return slices.Clone(e.mq.events)
}

func asUser(username string) context.Context {
	clm := jwt.Claims{Username: username}
	clm.Subject = username
	return jwt.SetAuth(context.Background(), clm)
}

func statusOf(err error) int {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		return 0
	}
	return gerr.StatusCode()
}
