package seal

import (
	"bytes"
	"errors"
	"testing"
)

func newTestSealer(t *testing.T) *AESGCM {
	t.Helper()
	s, err := NewAESGCM(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	return s
}

func TestAESGCM(t *testing.T) {

	alice := Scope{Username: "alice", Purpose: PurposeTokenSecret}

	t.Run("RoundTrip", func(t *testing.T) {

		// Arrange
		s := newTestSealer(t)

		// Act
		ct, err := s.Seal([]byte("ABCDEF"), alice)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		pt, err := s.Open(ct, alice)

		// Assert
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if string(pt) != "ABCDEF" {
			t.Fatalf("unexpected plaintext %q", pt)
		}
		if bytes.Contains(ct, []byte("ABCDEF")) {
			t.Fatalf("ciphertext leaks plaintext")
		}
	})

	t.Run("ScopeMismatchFails", func(t *testing.T) {

		// Arrange
		s := newTestSealer(t)
		ct, err := s.Seal([]byte("ABCDEF"), alice)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}

		tests := []Scope{
			{Username: "bob", Purpose: PurposeTokenSecret},
			{Username: "alice", Purpose: PurposeTokenPin},
		}

		for _, scope := range tests {
			// Act
			_, err := s.Open(ct, scope)

			// Assert
			if !errors.Is(err, ErrOpenFailed) {
				t.Fatalf("scope %+v: expected ErrOpenFailed, got %v", scope, err)
			}
		}
	})

	t.Run("EmptyStaysEmpty", func(t *testing.T) {

		// Arrange
		s := newTestSealer(t)

		// Act
		ct, err := s.Seal(nil, alice)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		pt, err := s.Open(ct, alice)

		// Assert
		if err != nil || ct != nil || pt != nil {
			t.Fatalf("expected nil round trip, got ct=%v pt=%v err=%v", ct, pt, err)
		}
	})

	t.Run("BadKeyLength", func(t *testing.T) {

		// Act
		_, err := NewAESGCM([]byte("short"))

		// Assert
		if !errors.Is(err, ErrInvalidKeyLength) {
			t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
		}
	})
}
