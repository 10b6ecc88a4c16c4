package validator

import (
	"errors"
	"testing"
)

type attemptRequest struct {
	Username   string `validate:"required,username"`
	Passphrase string `validate:"required,max=64"`
	NewSecret  string `validate:"omitempty,token_secret"`
}

func TestV10Validator(t *testing.T) {

	v, err := NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator: %v", err)
	}

	t.Run("Valid", func(t *testing.T) {

		// Act
		err := v.Validate(attemptRequest{Username: "alice.smith", Passphrase: "0a1b2c", NewSecret: "ABCDEF0123"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ReportsSnakeCaseFields", func(t *testing.T) {

		// Act
		err := v.Validate(attemptRequest{Username: "-bad name", NewSecret: "has space"})

		// Assert
		var verr V10ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected V10ValidationError, got %T", err)
		}
		for _, field := range []string{"username", "passphrase", "new_secret"} {
			if verr.Values()[field] == "" {
				t.Fatalf("expected message for %s, got %v", field, verr.Values())
			}
		}
	})
}
