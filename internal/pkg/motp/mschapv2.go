package motp

import (
	"crypto/des"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"golang.org/x/crypto/md4"
	"golang.org/x/text/encoding/unicode"
)

const (
	// ChallengeLength is the size of both the peer and authenticator challenge.
	ChallengeLength = 16
	// ResponseLength is the size of an NT-Response.
	ResponseLength = 24
)

var (
	// ErrInvalidChallenge is returned when a challenge is not ChallengeLength bytes.
	ErrInvalidChallenge = fmt.Errorf("%w: challenge must be %d bytes", ErrInvalidInput, ChallengeLength)

	// ErrInvalidResponse is returned when a response is not ResponseLength bytes.
	ErrInvalidResponse = fmt.Errorf("%w: response must be %d bytes", ErrInvalidInput, ResponseLength)
)

var (
	magicServerSigning = []byte("Magic server to client signing constant")
	magicPad           = []byte("Pad to make it do more than one iteration")
)

// ChallengeHash returns the 8 byte hash of both challenges and the user name (RFC 2759 section 8.2).
func ChallengeHash(peerChallenge, authChallenge []byte, username string) ([]byte, error) {
	if len(peerChallenge) != ChallengeLength || len(authChallenge) != ChallengeLength {
		return nil, ErrInvalidChallenge
	}

	h := sha1.New()
	h.Write(peerChallenge)
	h.Write(authChallenge)
	h.Write([]byte(username))

	return h.Sum(nil)[:8], nil
}

// NTPasswordHash returns MD4 over the UTF-16LE encoding of password (RFC 2759 section 8.3).
func NTPasswordHash(password string) ([]byte, error) {
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: password is not valid utf-8: %v", ErrInvalidInput, err)
	}

	h := md4.New()
	h.Write(enc)

	return h.Sum(nil), nil
}

// NTResponse computes the 24 byte response a peer sends for password (RFC 2759 section 8.1).
func NTResponse(authChallenge, peerChallenge []byte, username, password string) ([]byte, error) {
	challenge, err := ChallengeHash(peerChallenge, authChallenge, username)
	if err != nil {
		return nil, err
	}

	pwHash, err := NTPasswordHash(password)
	if err != nil {
		return nil, err
	}

	return challengeResponse(challenge, pwHash)
}

// AuthenticatorResponse computes the "S=" string the authenticator returns to
// prove it also knows password (RFC 2759 section 8.7).
func AuthenticatorResponse(password string, ntResponse, peerChallenge, authChallenge []byte, username string) (string, error) {
	if len(ntResponse) != ResponseLength {
		return "", ErrInvalidResponse
	}

	challenge, err := ChallengeHash(peerChallenge, authChallenge, username)
	if err != nil {
		return "", err
	}

	pwHash, err := NTPasswordHash(password)
	if err != nil {
		return "", err
	}

	hh := md4.New()
	hh.Write(pwHash)
	pwHashHash := hh.Sum(nil)

	d := sha1.New()
	d.Write(pwHashHash)
	d.Write(ntResponse)
	d.Write(magicServerSigning)
	digest := d.Sum(nil)

	d.Reset()
	d.Write(digest)
	d.Write(challenge)
	d.Write(magicPad)

	return "S=" + strings.ToUpper(hex.EncodeToString(d.Sum(nil))), nil
}

// MatchMSCHAPv2 returns the earliest candidate whose value, used as the
// password, yields response for the given challenges and user name.
func MatchMSCHAPv2(cands []Candidate, peerChallenge, authChallenge []byte, username string, response []byte) (Candidate, bool, error) {
	if len(response) != ResponseLength {
		return Candidate{}, false, ErrInvalidResponse
	}

	challenge, err := ChallengeHash(peerChallenge, authChallenge, username)
	if err != nil {
		return Candidate{}, false, err
	}

	for _, c := range cands {
		pwHash, err := NTPasswordHash(c.Value)
		if err != nil {
			return Candidate{}, false, err
		}

		expected, err := challengeResponse(challenge, pwHash)
		if err != nil {
			return Candidate{}, false, err
		}

		if subtle.ConstantTimeCompare(expected, response) == 1 {
			return c, true, nil
		}
	}

	return Candidate{}, false, nil
}

// challengeResponse encrypts challenge under three DES keys cut from the
// zero padded password hash (RFC 2759 section 8.5).
func challengeResponse(challenge, passwordHash []byte) ([]byte, error) {
	var padded [21]byte
	copy(padded[:], passwordHash)

	out := make([]byte, 0, ResponseLength)
	for i := 0; i < 3; i++ {
		block, err := des.NewCipher(desKey(padded[i*7 : i*7+7]))
		if err != nil {
			return nil, err
		}

		var dst [8]byte
		block.Encrypt(dst[:], challenge)
		out = append(out, dst[:]...)
	}

	return out, nil
}

// desKey spreads 56 key bits over 8 bytes and sets odd parity on each.
func desKey(k []byte) []byte {
	key := []byte{
		k[0] >> 1,
		(k[0]&0x01)<<6 | k[1]>>2,
		(k[1]&0x03)<<5 | k[2]>>3,
		(k[2]&0x07)<<4 | k[3]>>4,
		(k[3]&0x0F)<<3 | k[4]>>5,
		(k[4]&0x1F)<<2 | k[5]>>6,
		(k[5]&0x3F)<<1 | k[6]>>7,
		k[6] & 0x7F,
	}

	for i, b := range key {
		b <<= 1
		if bits.OnesCount8(b)%2 == 0 {
			b |= 1
		}
		key[i] = b
	}

	return key
}
