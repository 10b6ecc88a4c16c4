package motp

// MatchPlain returns the earliest candidate whose value equals presented.
// The comparison is exact; no case folding or trimming is applied.
func MatchPlain(cands []Candidate, presented string) (Candidate, bool) {
	if presented == "" {
		return Candidate{}, false
	}

	for _, c := range cands {
		if c.Value == presented {
			return c, true
		}
	}

	return Candidate{}, false
}
