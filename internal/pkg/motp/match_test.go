package motp

import (
	"testing"
	"time"
)

func TestMatchPlain(t *testing.T) {

	cands, err := DefaultWindow.Generate("ABCDEF", "1234", time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Run("MatchesFirstCandidate", func(t *testing.T) {

		// Act
		got, ok := MatchPlain(cands, cands[0].Value)

		// Assert
		if !ok {
			t.Fatalf("expected a match at index 0")
		}
		if got.Slot != 82 {
			t.Fatalf("expected slot 82, got %d", got.Slot)
		}
	})

	t.Run("MatchesLastCandidate", func(t *testing.T) {

		// Act
		got, ok := MatchPlain(cands, cands[36].Value)

		// Assert
		if !ok || got.Slot != 118 {
			t.Fatalf("expected slot 118, got %+v ok=%v", got, ok)
		}
	})

	t.Run("NoMatch", func(t *testing.T) {

		tests := []string{"", "zzzzzz", "ABCDEF"}

		for _, presented := range tests {
			// Act
			_, ok := MatchPlain(cands, presented)

			// Assert
			if ok {
				t.Fatalf("unexpected match for %q", presented)
			}
		}
	})

	t.Run("ComparisonIsCaseSensitive", func(t *testing.T) {

		// Arrange
		upper := []byte(cands[5].Value)
		for i, b := range upper {
			if b >= 'a' && b <= 'f' {
				upper[i] = b - 32
			}
		}

		// Act
		_, ok := MatchPlain(cands, string(upper))

		// Assert
		if ok && string(upper) != cands[5].Value {
			t.Fatalf("expected no match for upper-cased value %q", upper)
		}
	})

	t.Run("DuplicateValuesReturnEarliestSlot", func(t *testing.T) {

		// Arrange
		dup := []Candidate{{Slot: 7, Value: "abc123"}, {Slot: 8, Value: "abc123"}}

		// Act
		got, ok := MatchPlain(dup, "abc123")

		// Assert
		if !ok || got.Slot != 7 {
			t.Fatalf("expected slot 7, got %+v ok=%v", got, ok)
		}
	})
}
