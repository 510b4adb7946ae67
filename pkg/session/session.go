// Package session composes the ratchet, header codec, and AEAD primitives
// into the high-level encrypt/decrypt operations spec.md section 4.E
// describes, keeping the ratchet and AEAD as separate per-concern
// packages so the hybrid KEM Braid construction can sit between them.
package session

import (
	"encoding/binary"
	"fmt"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/internal/classify"
	"github.com/ElMoorish/comlock/pkg/header"
	"github.com/ElMoorish/comlock/pkg/kem"
	"github.com/ElMoorish/comlock/pkg/ratchet"
)

// MinBlobSize is 2 (header_len) + 41 (minimal header) + 12 (nonce) + 16
// (AEAD tag), per spec.md section 4.E.
const MinBlobSize = 2 + 41 + 12 + 16

// ErrDecryptionFailed is non-recoverable for the packet it names, per
// spec.md section 7: AEAD authentication failure is indistinguishable
// from a wrong key or tampering, and the caller must not retry it.
var (
	ErrDecryptionFailed = classify.New("session: decryption failed", false)
	ErrBlobTooShort     = fmt.Errorf("%w: blob shorter than minimum size", ErrDecryptionFailed)
)

// Session binds a ratchet to a single conversation and exposes the
// composed encrypt/decrypt operations.
type Session struct {
	ID      string
	ratchet *ratchet.Ratchet
}

func New(id string, r *ratchet.Ratchet) *Session {
	return &Session{ID: id, ratchet: r}
}

// Encrypt runs the ratchet's send step, serializes the resulting header,
// and seals plaintext under the derived message key with AES-256-GCM-SIV,
// producing header_len(u16 LE) || header_bytes || nonce(12B) || ciphertext.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	messageKey, h, err := s.ratchet.Send()
	if err != nil {
		return nil, fmt.Errorf("ratchet send step: %w", err)
	}

	cipher, err := aead.NewMessageCipher(messageKey)
	if err != nil {
		return nil, fmt.Errorf("constructing message cipher: %w", err)
	}
	nonce, ciphertext, err := cipher.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealing message: %w", err)
	}

	headerBytes := h.Encode()
	if len(headerBytes) > 1<<16-1 {
		return nil, fmt.Errorf("session: header too large to length-prefix")
	}

	blob := make([]byte, 0, 2+len(headerBytes)+len(nonce)+len(ciphertext))
	blob = binary.LittleEndian.AppendUint16(blob, uint16(len(headerBytes)))
	blob = append(blob, headerBytes...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decrypt validates a blob's minimum length, parses the length-prefixed
// header, runs the ratchet's receive step, and authenticates/decrypts the
// trailing AEAD ciphertext. Any failure -- malformed framing, a ratchet
// error, or AEAD authentication failure -- is reported as
// ErrDecryptionFailed, matching spec.md section 4.E and the error design
// in section 7 (decryption failure is a single opaque outcome to callers).
func (s *Session) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < MinBlobSize {
		return nil, ErrBlobTooShort
	}

	headerLen := int(binary.LittleEndian.Uint16(blob))
	rest := blob[2:]
	if len(rest) < headerLen {
		return nil, fmt.Errorf("%w: declared header length exceeds blob", ErrDecryptionFailed)
	}
	headerBytes, rest := rest[:headerLen], rest[headerLen:]

	h, _, err := header.Decode(headerBytes, kem.CiphertextSize, kem.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	const nonceSize = 12
	if len(rest) < nonceSize {
		return nil, fmt.Errorf("%w: missing nonce", ErrDecryptionFailed)
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	messageKey, err := s.ratchet.Receive(h)
	if err != nil {
		return nil, fmt.Errorf("%w: ratchet receive step: %v", ErrDecryptionFailed, err)
	}

	cipher, err := aead.NewMessageCipher(messageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: constructing message cipher: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := cipher.Open(nonce, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Close releases the underlying ratchet's secret material.
func (s *Session) Close() {
	s.ratchet.Close()
}
