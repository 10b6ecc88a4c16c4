// Package seal encrypts token material at rest.
//
// Each value is bound to the user and purpose it belongs to, so a sealed
// secret copied onto another user's row, or into the PIN column, fails to open.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purpose names what a sealed value is used for.
type Purpose string

const (
	PurposeTokenSecret Purpose = "token_secret"
	PurposeTokenPin    Purpose = "token_pin"
)

// Scope binds a ciphertext to its owner and purpose.
type Scope struct {
	Username string
	Purpose  Purpose
}

// Sealer encrypts and decrypts values for a scope.
type Sealer interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

// Ciphertext layout: uint16 version | 12 byte nonce | GCM output.
const (
	version   uint16 = 1
	nonceSize        = 12
	keySize          = 32
)

var (
	ErrInvalidKeyLength   = errors.New("seal: master key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("seal: ciphertext too short")
	ErrUnsupportedVersion = errors.New("seal: unsupported ciphertext version")
	ErrOpenFailed         = errors.New("seal: open failed")
)

// AESGCM seals with AES-256-GCM under a per-purpose key derived by HKDF-SHA256
// from a single master key.
type AESGCM struct {
	keys map[Purpose]cipher.AEAD
}

// NewAESGCM derives the per-purpose keys from master.
func NewAESGCM(master []byte) (*AESGCM, error) {
	if len(master) != keySize {
		return nil, ErrInvalidKeyLength
	}

	s := &AESGCM{keys: make(map[Purpose]cipher.AEAD, 2)}
	for _, p := range []Purpose{PurposeTokenSecret, PurposeTokenPin} {
		key := make([]byte, keySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("gomotp/"+p)), key); err != nil {
			return nil, fmt.Errorf("seal: derive %s key: %w", p, err)
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		s.keys[p] = aead
	}

	return s, nil
}

func (s *AESGCM) aead(p Purpose) (cipher.AEAD, error) {
	aead, ok := s.keys[p]
	if !ok {
		return nil, fmt.Errorf("seal: unknown purpose %q", p)
	}
	return aead, nil
}

// Seal encrypts plaintext. An empty plaintext seals to nil so absent values stay absent.
func (s *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}

	aead, err := s.aead(scope.Purpose)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2+nonceSize, 2+nonceSize+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint16(out, version)
	if _, err := io.ReadFull(rand.Reader, out[2:]); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}

	return aead.Seal(out, out[2:], plaintext, aad(scope)), nil
}

// Open decrypts ciphertext produced by Seal for the same scope. Nil opens to nil.
func (s *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext) < 2+nonceSize+1 {
		return nil, ErrCiphertextTooShort
	}
	if v := binary.BigEndian.Uint16(ciphertext); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	aead, err := s.aead(scope.Purpose)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, ciphertext[2:2+nonceSize], ciphertext[2+nonceSize:], aad(scope))
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plain, nil
}

func aad(scope Scope) []byte {
	sum := sha256.Sum256([]byte(string(scope.Purpose) + "\x00" + scope.Username))
	return sum[:]
}
