package motp

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"
)

// Test vectors from RFC 2759 section 9.2.
var (
	rfcUsername      = "User"
	rfcPassword      = "clientPass"
	rfcAuthChallenge = mustHex("5B5D7C7D7B3F2F3E3C2C602132262628")
	rfcPeerChallenge = mustHex("21402324255E262A28295F2B3A337C7E")
	rfcChallenge     = "D02E4386BCE91226"
	rfcPasswordHash  = "44EBBA8D5312B8D611474411F56989AE"
	rfcNTResponse    = "82309ECD8D708B5EA08FAA3981CD83544233114A3D85D6DF"
	rfcAuthResponse  = "S=407A5589115FD0D6209F510FE9C04566932CDA56"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func upperHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func TestMSCHAPv2Vectors(t *testing.T) {

	t.Run("ChallengeHash", func(t *testing.T) {

		// Act
		got, err := ChallengeHash(rfcPeerChallenge, rfcAuthChallenge, rfcUsername)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upperHex(got) != rfcChallenge {
			t.Fatalf("expected %s, got %s", rfcChallenge, upperHex(got))
		}
	})

	t.Run("NTPasswordHash", func(t *testing.T) {

		// Act
		got, err := NTPasswordHash(rfcPassword)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upperHex(got) != rfcPasswordHash {
			t.Fatalf("expected %s, got %s", rfcPasswordHash, upperHex(got))
		}
	})

	t.Run("NTResponse", func(t *testing.T) {

		// Act
		got, err := NTResponse(rfcAuthChallenge, rfcPeerChallenge, rfcUsername, rfcPassword)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upperHex(got) != rfcNTResponse {
			t.Fatalf("expected %s, got %s", rfcNTResponse, upperHex(got))
		}
	})

	t.Run("AuthenticatorResponse", func(t *testing.T) {

		// Act
		got, err := AuthenticatorResponse(rfcPassword, mustHex(rfcNTResponse), rfcPeerChallenge, rfcAuthChallenge, rfcUsername)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != rfcAuthResponse {
			t.Fatalf("expected %s, got %s", rfcAuthResponse, got)
		}
	})
}

func TestMatchMSCHAPv2(t *testing.T) {

	cands, err := DefaultWindow.Generate("ABCDEF", "1234", time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Run("MatchesCandidateUsedAsPassword", func(t *testing.T) {

		for _, idx := range []int{0, 18, 36} {
			// Arrange
			resp, err := NTResponse(rfcAuthChallenge, rfcPeerChallenge, "alice", cands[idx].Value)
			if err != nil {
				t.Fatalf("NTResponse: %v", err)
			}

			// Act
			got, ok, err := MatchMSCHAPv2(cands, rfcPeerChallenge, rfcAuthChallenge, "alice", resp)

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok || got != cands[idx] {
				t.Fatalf("index %d: expected %+v, got %+v ok=%v", idx, cands[idx], got, ok)
			}
		}
	})

	t.Run("WrongUsernameDoesNotMatch", func(t *testing.T) {

		// Arrange
		resp, err := NTResponse(rfcAuthChallenge, rfcPeerChallenge, "alice", cands[3].Value)
		if err != nil {
			t.Fatalf("NTResponse: %v", err)
		}

		// Act
		_, ok, err := MatchMSCHAPv2(cands, rfcPeerChallenge, rfcAuthChallenge, "bob", resp)

		// Assert
		if err != nil || ok {
			t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("RejectsMalformedLengths", func(t *testing.T) {

		tests := []struct {
			name    string
			peer    []byte
			auth    []byte
			resp    []byte
			wantErr error
		}{
			{name: "ShortResponse", peer: rfcPeerChallenge, auth: rfcAuthChallenge, resp: make([]byte, 23), wantErr: ErrInvalidResponse},
			{name: "ShortPeer", peer: make([]byte, 8), auth: rfcAuthChallenge, resp: make([]byte, 24), wantErr: ErrInvalidChallenge},
			{name: "LongAuth", peer: rfcPeerChallenge, auth: make([]byte, 17), resp: make([]byte, 24), wantErr: ErrInvalidChallenge},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {

				// Act
				_, ok, err := MatchMSCHAPv2(cands, tt.peer, tt.auth, "alice", tt.resp)

				// Assert
				if ok || !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected %v, got ok=%v err=%v", tt.wantErr, ok, err)
				}
			})
		}
	})
}
