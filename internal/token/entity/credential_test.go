package entity

import (
	"slices"
	"testing"
)

func TestCredential_SetPin(t *testing.T) {
	tests := []struct {
		name     string
		pin      string
		problems []string
		wantPin  string
	}{
		{name: "TooShort", pin: "123", problems: []string{ProblemPinTooShort}, wantPin: "9999"},
		{name: "NonNumeric", pin: "12a4", problems: []string{ProblemPinNotDigit}, wantPin: "9999"},
		{name: "BothProblems", pin: "a1", problems: []string{ProblemPinTooShort, ProblemPinNotDigit}, wantPin: "9999"},
		{name: "Empty", pin: "", problems: []string{ProblemPinTooShort}, wantPin: "9999"},
		{name: "NonASCIIDigits", pin: "١٢٣٤", problems: []string{ProblemPinNotDigit}, wantPin: "9999"},
		{name: "Valid", pin: "1234", wantPin: "1234"},
		{name: "LongValid", pin: "00012345", wantPin: "00012345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			// Arrange
			cred := Credential{Username: "alice", Pin: "9999"}

			// Act
			problems := cred.SetPin(tt.pin)

			// Assert
			if !slices.Equal(problems, tt.problems) {
				t.Fatalf("expected problems %v, got %v", tt.problems, problems)
			}
			if cred.Pin != tt.wantPin {
				t.Fatalf("expected pin %q, got %q", tt.wantPin, cred.Pin)
			}
		})
	}
}

func TestCredential_Predicates(t *testing.T) {

	t.Run("Empty", func(t *testing.T) {

		// Arrange
		cred := Credential{Username: "bob"}

		// Act & Assert
		if cred.HasToken() || cred.HasPin() {
			t.Fatalf("empty credential must report no token and no pin")
		}
	})

	t.Run("Enrolled", func(t *testing.T) {

		// Arrange
		cred := Credential{Username: "bob"}
		cred.SetSecret("ABCDEF")
		_ = cred.SetPin("1234")

		// Act & Assert
		if !cred.HasToken() || !cred.HasPin() {
			t.Fatalf("expected token and pin")
		}
	})

	t.Run("Locked", func(t *testing.T) {

		// Arrange
		cred := Credential{InvalidLogins: 5}

		// Act & Assert
		if cred.Locked(0) {
			t.Fatalf("threshold 0 disables lockout")
		}
		if !cred.Locked(5) || cred.Locked(6) {
			t.Fatalf("unexpected lock state")
		}
	})
}
