package goerror

import (
	"errors"
	"net/http"
	"testing"
)

func TestError(t *testing.T) {

	t.Run("ServerWrapsUnderlying", func(t *testing.T) {

		// Arrange
		cause := errors.New("connection refused")

		// Act
		err := NewServer(cause)

		// Assert
		var ge *Error
		if !errors.As(err, &ge) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected cause to be unwrapped")
		}
		if ge.StatusCode() != http.StatusInternalServerError || ge.Type() != TypeServer {
			t.Fatalf("unexpected classification: %s", ge.String())
		}
	})

	t.Run("BusinessCodeMapsStatus", func(t *testing.T) {

		// Act
		err := NewBusiness("invalid username or passphrase", CodeUnauthorized)

		// Assert
		var ge *Error
		if !errors.As(err, &ge) || ge.StatusCode() != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %v", err)
		}
		if ge.Msg() != "invalid username or passphrase" {
			t.Fatalf("unexpected message %q", ge.Msg())
		}
	})

	t.Run("InvalidInputKeyValues", func(t *testing.T) {

		// Act
		err := NewInvalidInput(nil, "pin", "must be numeric")

		// Assert
		var ge *Error
		if !errors.As(err, &ge) || ge.Fields()["pin"] != "must be numeric" {
			t.Fatalf("unexpected fields: %v", err)
		}
	})

	t.Run("InvalidInputDetailsAccumulates", func(t *testing.T) {

		// Arrange
		problems := []string{"first", "second"}

		// Act
		err := NewInvalidInputDetails(problems)
		problems[0] = "mutated"

		// Assert
		var ge *Error
		if !errors.As(err, &ge) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if ge.StatusCode() != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", ge.StatusCode())
		}
		if len(ge.Details()) != 2 || ge.Details()[0] != "first" {
			t.Fatalf("unexpected details %v", ge.Details())
		}
	})

	t.Run("InvalidInputDetailsEmpty", func(t *testing.T) {

		// Act
		err := NewInvalidInputDetails(nil)

		// Assert
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})
}
