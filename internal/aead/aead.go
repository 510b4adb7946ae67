// Package aead provides the two distinct AEAD constructions spec.md
// section 4.A requires: a nonce-misuse resistant cipher for ratchet
// messages, and a random-nonce cipher for the encrypted local blob. A
// single HKDF-derive-then-seal shape backs both, parameterized by
// which AEAD spec.md names for each use: AES-256-GCM-SIV for messages
// (where nonce-misuse resistance matters), AES-256-GCM for local
// storage (where the nonce is always freshly random).
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ElMoorish/comlock/internal/aead/gcmsiv"
)

const KeySize = 32

var (
	ErrInvalidCiphertext = errors.New("aead: ciphertext is not valid")
)

// Derive2 implements spec.md's derive2(key, info, ikm): HKDF-Extract
// (salt=key, IKM=ikm) then HKDF-Expand with info into 64 bytes, split
// into two 32-byte keys.
func Derive2(key, info, ikm []byte) (k1, k2 []byte, err error) {
	r := hkdf.New(sha256.New, ikm, key, info)
	out := make([]byte, 2*KeySize)
	if _, err = io.ReadFull(r, out); err != nil {
		return nil, nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out[:KeySize], out[KeySize:], nil
}

// Derive is a single-key HKDF expansion, kept for call sites (Sphinx's
// per-hop routing/payload keys, the local-blob key schedule) that only
// need one output key rather than derive2's paired split.
func Derive(secret, salt, info []byte, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MessageCipher wraps AES-256-GCM-SIV for per-message ratchet AEAD, per
// spec.md section 4.A ("AES-256-GCM-SIV; nonce-misuse resistant").
type MessageCipher struct {
	aead cipher.AEAD
}

func NewMessageCipher(messageKey []byte) (*MessageCipher, error) {
	a, err := gcmsiv.New(messageKey)
	if err != nil {
		return nil, fmt.Errorf("gcmsiv: %w", err)
	}
	return &MessageCipher{aead: a}, nil
}

// Seal encrypts plaintext under a freshly drawn random 12-byte nonce and
// returns the nonce and ciphertext||tag as two separate slices; written
// one after the other they form the ciphertext blob's tail in the wire
// layout spec.md sections 4.E/6 describe.
func (m *MessageCipher) Seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, gcmsiv.NonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("reading nonce: %w", err)
	}
	ciphertext = m.aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

func (m *MessageCipher) Open(nonce, ciphertext []byte) ([]byte, error) {
	pt, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return pt, nil
}

// StorageCipher wraps AES-256-GCM for the encrypted local blob, per
// spec.md section 4.A ("Local-storage encryption uses AES-256-GCM with a
// fresh random 12-byte nonce per write").
type StorageCipher struct {
	aead cipher.AEAD
}

func NewStorageCipher(key []byte) (*StorageCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &StorageCipher{aead: gcm}, nil
}

// Seal returns nonce(12)||ciphertext_with_tag, the on-disk layout spec.md
// section 6 specifies for security.enc/identity.enc/contacts.enc.
func (s *StorageCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

func (s *StorageCipher) Open(blob []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(blob) < n {
		return nil, ErrInvalidCiphertext
	}
	nonce, ct := blob[:n], blob[n:]
	pt, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return pt, nil
}

// Text returns l cryptographically random base32-ish characters, for
// generating exchange ids and other short random tokens outside of
// key material.
func Text(l int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	src := make([]byte, l)
	_, _ = rand.Read(src)
	for i := range src {
		src[i] = alphabet[src[i]%32]
	}
	return string(src)
}
