// Package header implements the wire codec for ComLock's message header,
// per spec.md section 4.B, and the fragmenter that splits an oversized
// header across multiple packets, per section 4.C. Fields are framed by
// hand with encoding/binary's little-endian helpers rather than a generic
// serialization library: the header is a fixed, versionless byte layout
// with no forward-compatibility surface to negotiate.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// ClassicalPubKeySize is the size of the classical (X25519) ephemeral
	// public key carried in every header.
	ClassicalPubKeySize = 32

	flagHasKEMCiphertext = 1 << 0
	flagHasKEMPublicKey  = 1 << 1

	fixedPrefixSize = ClassicalPubKeySize + 1 + 4 + 4 // pub || flags || msg_num || prev_chain_len
)

var ErrShort = errors.New("header: buffer shorter than fields its flags claim")

// Header is the decoded form of spec.md section 4.B's message header.
type Header struct {
	ClassicalPub        [ClassicalPubKeySize]byte
	KEMCiphertext       []byte // nil when absent
	KEMPublicKey        []byte // nil when absent
	MessageNumber       uint32
	PreviousChainLength uint32
}

func (h *Header) HasKEMCiphertext() bool { return h.KEMCiphertext != nil }
func (h *Header) HasKEMPublicKey() bool  { return h.KEMPublicKey != nil }

// Encode serializes h per spec.md section 4.B's little-endian layout.
func (h *Header) Encode() []byte {
	var flags byte
	if h.KEMCiphertext != nil {
		flags |= flagHasKEMCiphertext
	}
	if h.KEMPublicKey != nil {
		flags |= flagHasKEMPublicKey
	}

	out := make([]byte, 0, fixedPrefixSize+len(h.KEMCiphertext)+len(h.KEMPublicKey))
	out = append(out, h.ClassicalPub[:]...)
	out = append(out, flags)
	out = binary.LittleEndian.AppendUint32(out, h.MessageNumber)
	out = binary.LittleEndian.AppendUint32(out, h.PreviousChainLength)
	out = append(out, h.KEMCiphertext...)
	out = append(out, h.KEMPublicKey...)
	return out
}

// Decode parses a header serialized by Encode. kemCiphertextSize and
// kemPublicKeySize are the chosen KEM's fixed field sizes (for
// ML-KEM-1024: 1568 and 1568), used to know how much to consume when the
// corresponding flag bit is set.
func Decode(buf []byte, kemCiphertextSize, kemPublicKeySize int) (*Header, int, error) {
	if len(buf) < fixedPrefixSize {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShort, fixedPrefixSize, len(buf))
	}

	h := &Header{}
	copy(h.ClassicalPub[:], buf[:ClassicalPubKeySize])
	flags := buf[ClassicalPubKeySize]
	off := ClassicalPubKeySize + 1
	h.MessageNumber = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.PreviousChainLength = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	if flags&flagHasKEMCiphertext != 0 {
		if len(buf) < off+kemCiphertextSize {
			return nil, 0, fmt.Errorf("%w: kem ciphertext truncated", ErrShort)
		}
		h.KEMCiphertext = append([]byte(nil), buf[off:off+kemCiphertextSize]...)
		off += kemCiphertextSize
	}
	if flags&flagHasKEMPublicKey != 0 {
		if len(buf) < off+kemPublicKeySize {
			return nil, 0, fmt.Errorf("%w: kem public key truncated", ErrShort)
		}
		h.KEMPublicKey = append([]byte(nil), buf[off:off+kemPublicKeySize]...)
		off += kemPublicKeySize
	}

	return h, off, nil
}
