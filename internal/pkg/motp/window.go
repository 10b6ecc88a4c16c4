package motp

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrInvalidInput is the root of every input contract violation in this package.
	ErrInvalidInput = errors.New("motp: invalid input")

	// ErrEmptySecret is returned when candidates are requested for a credential without a secret.
	ErrEmptySecret = fmt.Errorf("%w: empty secret", ErrInvalidInput)

	// ErrInvalidWindow is returned when drift or period cannot produce a slot range.
	ErrInvalidWindow = fmt.Errorf("%w: invalid window", ErrInvalidInput)
)

const (
	// DefaultDrift is the tolerated clock skew in either direction.
	DefaultDrift = 180 * time.Second
	// DefaultPeriod is the lifetime of a single time slot.
	DefaultPeriod = 10 * time.Second
	// ValueLength is the number of hex characters in a code.
	ValueLength = 6
)

// DefaultWindow accepts codes from 18 slots before to 18 slots after now.
var DefaultWindow = Window{Drift: DefaultDrift, Period: DefaultPeriod}

// Candidate is one code that is valid for a given slot.
type Candidate struct {
	Slot  int64
	Value string
}

// Window describes the slot range accepted around a moment in time.
type Window struct {
	Drift  time.Duration
	Period time.Duration
}

func (w Window) validate() error {
	if w.Period < time.Second || w.Period%time.Second != 0 {
		return ErrInvalidWindow
	}
	if w.Drift < 0 || w.Drift%w.Period != 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Size returns the number of candidates Generate produces.
func (w Window) Size() int {
	if w.validate() != nil {
		return 0
	}
	return int(2*(w.Drift/w.Period)) + 1
}

// Slot returns the slot index containing t.
func (w Window) Slot(t time.Time) int64 {
	return floorDiv(t.Unix(), int64(w.Period/time.Second))
}

// Generate returns the candidates for every slot within the window around now,
// ordered by ascending slot.
func (w Window) Generate(secret, pin string, now time.Time) ([]Candidate, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	center := w.Slot(now)
	steps := int64(w.Drift / w.Period)

	cands := make([]Candidate, 0, w.Size())
	for slot := center - steps; slot <= center+steps; slot++ {
		cands = append(cands, Candidate{Slot: slot, Value: Value(slot, secret, pin)})
	}

	return cands, nil
}

// Value computes the code for a single slot.
func Value(slot int64, secret, pin string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(slot, 10) + secret + pin))
	return hex.EncodeToString(sum[:])[:ValueLength]
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
