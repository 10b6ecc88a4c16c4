package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/shandysiswandi/gomotp/internal/pkg/motp"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

func TestUsecase_Authenticate(t *testing.T) {

	t.Run("AcceptedThenReplay", func(t *testing.T) {

		// Arrange
		cred := testCred
		cred.InvalidLogins = 2
		env := newTestEnv(t, testNow, cred)
		in := AuthenticateInput{Username: "alice", Passphrase: testOTP, ClientIP: "10.0.0.7"}

		// Act
		first, err1 := env.uc.Authenticate(context.Background(), in)
		second, err2 := env.uc.Authenticate(context.Background(), in)

		// Assert
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if first.Outcome.Kind != OutcomeAccepted || first.Outcome.Slot != 100 {
			t.Fatalf("expected accepted at slot 100, got %+v", first.Outcome)
		}
		if second.Outcome.Kind != OutcomeRejectedReplay {
			t.Fatalf("expected replay, got %+v", second.Outcome)
		}
		if err := second.Outcome.Kind.Err(); statusOf(err) != http.StatusUnauthorized || err.Error() == errInvalidPassphrase.Error() {
			t.Fatalf("replay must map to its own 401, got %v", err)
		}
		if got := env.db.counter("alice"); got != 0 {
			t.Fatalf("expected counter reset to 0, got %d", got)
		}
		if got := env.db.messages(); !slices.Equal(got, []string{entity.LogSuccess, entity.LogReplayDetected}) {
			t.Fatalf("unexpected log messages %v", got)
		}
		for _, l := range env.db.logs {
			if l.Passphrase != testOTP || !l.LoggedAt.Equal(testNow) {
				t.Fatalf("unexpected log entry %+v", l)
			}
		}
		events := env.events(t)
		slices.Sort(events)
		if !slices.Equal(events, []string{"authenticated", "replay_detected"}) {
			t.Fatalf("unexpected events %v", events)
		}
		if env.mq.replayed[0].ClientIP != "10.0.0.7" {
			t.Fatalf("replay event lost the client ip")
		}
	})

	t.Run("NoMatchIncrements", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)

		// Act
		out, err := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "alice", Passphrase: "000000"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Outcome.Kind != OutcomeRejectedNoMatch || out.InvalidLogins != 1 {
			t.Fatalf("unexpected output %+v", out)
		}
		if statusOf(out.Outcome.Kind.Err()) != http.StatusUnauthorized {
			t.Fatalf("expected 401 mapping")
		}
		if len(env.db.logs) != 1 || env.db.logs[0].Message != entity.LogInvalidPass || env.db.logs[0].Passphrase != "" {
			t.Fatalf("unexpected logs %+v", env.db.logs)
		}
		if events := env.events(t); len(events) != 0 {
			t.Fatalf("no event expected below the threshold, got %v", events)
		}
	})

	t.Run("LockoutAtThreshold", func(t *testing.T) {

		// Arrange
		cred := testCred
		cred.InvalidLogins = 2
		env := newTestEnv(t, testNow, cred)

		// Act
		failed, err1 := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "alice", Passphrase: "000000"})
		locked, err2 := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "alice", Passphrase: testOTP})

		// Assert
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if failed.InvalidLogins != 3 {
			t.Fatalf("expected 3 invalid logins, got %d", failed.InvalidLogins)
		}
		if locked.Outcome.Kind != OutcomeRejectedLocked || statusOf(locked.Outcome.Kind.Err()) != http.StatusForbidden {
			t.Fatalf("expected locked, got %+v", locked.Outcome)
		}
		if got := env.db.messages(); !slices.Equal(got, []string{entity.LogInvalidPass, entity.LogAccountLocked}) {
			t.Fatalf("a locked attempt must not be logged, got %v", got)
		}
		if events := env.events(t); !slices.Equal(events, []string{"locked"}) {
			t.Fatalf("unexpected events %v", events)
		}
		if ev := env.mq.locked[0]; ev.InvalidLogins != 3 || ev.Threshold != 3 {
			t.Fatalf("unexpected locked event %+v", ev)
		}
	})

	t.Run("UnlockRestoresAccess", func(t *testing.T) {

		// Arrange
		cred := testCred
		cred.InvalidLogins = 3
		env := newTestEnv(t, testNow, cred)

		// Act
		errUnlock := env.uc.Unlock(asUser("root"), UnlockInput{Username: "alice"})
		out, err := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "alice", Passphrase: testOTP})

		// Assert
		if errUnlock != nil || err != nil {
			t.Fatalf("unexpected errors: %v, %v", errUnlock, err)
		}
		if out.Outcome.Kind != OutcomeAccepted {
			t.Fatalf("expected accepted after unlock, got %+v", out.Outcome)
		}
	})

	t.Run("UnknownUserWritesNothing", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)

		// Act
		_, err := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "mallory", Passphrase: testOTP})

		// Assert
		if statusOf(err) != http.StatusUnauthorized || err.Error() != errInvalidPassphrase.Error() {
			t.Fatalf("expected generic 401, got %v", err)
		}
		if len(env.db.logs) != 0 {
			t.Fatalf("unknown user must not be logged")
		}
	})

	t.Run("NoTokenEnrolled", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, entity.Credential{Username: "bob", Pin: "1234"})

		// Act
		_, err := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "bob", Passphrase: testOTP})

		// Assert
		if statusOf(err) != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %v", err)
		}
	})

	t.Run("StoreUnavailable", func(t *testing.T) {
		for name, mutate := range map[string]func(*fakeDB){
			"Get":    func(db *fakeDB) { db.getErr = errors.New("db down") },
			"Count":  func(db *fakeDB) { db.countErr = errors.New("db down") },
			"Commit": func(db *fakeDB) { db.commitErr = errors.New("db down") },
		} {
			t.Run(name, func(t *testing.T) {

				// Arrange
				env := newTestEnv(t, testNow, testCred)
				mutate(env.db)

				// Act
				out, err := env.uc.Authenticate(context.Background(), AuthenticateInput{Username: "alice", Passphrase: testOTP})

				// Assert
				if statusOf(err) != http.StatusInternalServerError || out != nil {
					t.Fatalf("expected 500 and no output, got %v %+v", err, out)
				}
				if env.db.counter("alice") != 0 || len(env.db.logs) != 0 {
					t.Fatalf("nothing must be written on store failure")
				}
			})
		}
	})

	t.Run("ReplayAppendFails", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)
		in := AuthenticateInput{Username: "alice", Passphrase: testOTP}
		if _, err := env.uc.Authenticate(context.Background(), in); err != nil {
			t.Fatalf("first attempt: %v", err)
		}
		env.db.appendErr = errors.New("db down")

		// Act
		out, err := env.uc.Authenticate(context.Background(), in)

		// Assert
		if statusOf(err) != http.StatusInternalServerError || out != nil {
			t.Fatalf("expected 500 and no output, got %v %+v", err, out)
		}
		if got := env.db.messages(); !slices.Equal(got, []string{entity.LogSuccess}) {
			t.Fatalf("unexpected log messages %v", got)
		}
	})

	t.Run("MSCHAPv2", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)
		peer := []byte("0123456789abcdef")
		auth := []byte("fedcba9876543210")
		resp, err := motp.NTResponse(auth, peer, "alice", testOTP)
		if err != nil {
			t.Fatalf("NTResponse: %v", err)
		}

		// Act
		out, err := env.uc.Authenticate(context.Background(), AuthenticateInput{
			Username:      "alice",
			PeerChallenge: hex.EncodeToString(peer),
			AuthChallenge: hex.EncodeToString(auth),
			Response:      hex.EncodeToString(resp),
		})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Mode != "mschapv2" || out.Outcome.Kind != OutcomeAccepted || out.AuthenticatorResponse == "" {
			t.Fatalf("unexpected output %+v", out)
		}
		if env.db.logs[0].Passphrase != testOTP {
			t.Fatalf("success entry must hold the matched code")
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		tests := []struct {
			name string
			in   AuthenticateInput
		}{
			{name: "MissingUsername", in: AuthenticateInput{Passphrase: testOTP}},
			{name: "MissingPassphrase", in: AuthenticateInput{Username: "alice"}},
			{name: "ShortResponse", in: AuthenticateInput{Username: "alice", PeerChallenge: "00", AuthChallenge: "00", Response: "abcd"}},
			{name: "ResponseWithoutChallenges", in: AuthenticateInput{Username: "alice", Response: hex.EncodeToString(make([]byte, 24))}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {

				// Arrange
				env := newTestEnv(t, testNow, testCred)

				// Act
				_, err := env.uc.Authenticate(context.Background(), tt.in)

				// Assert
				if statusOf(err) != http.StatusUnprocessableEntity {
					t.Fatalf("expected 422, got %v", err)
				}
			})
		}
	})
}

func TestUsecase_AcceptedEffectIsIdempotent(t *testing.T) {

	// Arrange
	cred := testCred
	cred.InvalidLogins = 2
	env := newTestEnv(t, testNow, cred)
	out := Outcome{Kind: OutcomeAccepted, OTP: testOTP, Slot: 100}

	// Act
	for range 2 {
		commit := env.uc.attemptCommit("alice", out.Effects(), 3, testNow)
		if _, err := env.db.CommitAttempt(context.Background(), commit); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	// Assert
	if got := env.db.counter("alice"); got != 0 {
		t.Fatalf("expected counter 0, got %d", got)
	}
	if got := env.db.messages(); !slices.Equal(got, []string{entity.LogSuccess, entity.LogSuccess}) {
		t.Fatalf("expected two success entries, got %v", got)
	}
	if env.db.logs[0].ID == env.db.logs[1].ID {
		t.Fatalf("each entry needs its own id")
	}
}

func TestUsecase_Login(t *testing.T) {

	t.Run("IssuesToken", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)

		// Act
		out, err := env.uc.Login(context.Background(), LoginInput{Username: "alice", Passphrase: testOTP})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.AccessToken != "token-alice" || !out.ExpiresAt.After(testNow) {
			t.Fatalf("unexpected output %+v", out)
		}
	})

	t.Run("WrongCode", func(t *testing.T) {

		// Arrange
		env := newTestEnv(t, testNow, testCred)

		// Act
		out, err := env.uc.Login(context.Background(), LoginInput{Username: "alice", Passphrase: "000000"})

		// Assert
		if out != nil || statusOf(err) != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %v %+v", err, out)
		}
		if env.db.counter("alice") != 1 {
			t.Fatalf("failed login must count")
		}
	})
}
