package entity

import (
	"time"
	"unicode"
)

// MinPinLength is the shortest accepted PIN.
const MinPinLength = 4

const (
	ProblemPinTooShort = "PIN must contain at least four digits"
	ProblemPinNotDigit = "PIN must contain only digits"
)

// Credential is the mOTP token material of one user.
// Secret and Pin are plaintext here; the store seals them at rest.
type Credential struct {
	Username      string
	Secret        string
	Pin           string
	InvalidLogins int32
}

// HasToken reports whether a token secret is enrolled.
func (c *Credential) HasToken() bool {
	return c.Secret != ""
}

// HasPin reports whether a PIN is set.
func (c *Credential) HasPin() bool {
	return c.Pin != ""
}

// Locked reports whether the failed-login count has reached threshold.
// A non-positive threshold disables lockout.
func (c *Credential) Locked(threshold int32) bool {
	return threshold > 0 && c.InvalidLogins >= threshold
}

// SetPin replaces the PIN when pin is valid. Otherwise it returns every
// problem found and keeps the current PIN.
func (c *Credential) SetPin(pin string) []string {
	problems := PinProblems(pin)
	if len(problems) == 0 {
		c.Pin = pin
	}
	return problems
}

// SetSecret replaces the token secret.
func (c *Credential) SetSecret(secret string) {
	c.Secret = secret
}

// PinProblems lists why pin is not acceptable.
func PinProblems(pin string) []string {
	var problems []string
	if len(pin) < MinPinLength {
		problems = append(problems, ProblemPinTooShort)
	}
	for _, r := range pin {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			problems = append(problems, ProblemPinNotDigit)
			break
		}
	}
	return problems
}

// CredentialSummary is the non-secret view of a credential.
type CredentialSummary struct {
	Username      string
	HasToken      bool
	HasPin        bool
	InvalidLogins int32
	UpdatedAt     time.Time
}

// CredentialFilter pages through credentials ordered by username.
type CredentialFilter struct {
	Search string
	Offset int32
	Limit  int32
}
