// Package kem wraps CRYSTALS-ML-KEM-1024 (FIPS 203) from
// github.com/cloudflare/circl for the ratchet's post-quantum leg, per
// spec.md section 2 and the KEM Braid in section 4.D. It follows the
// same generate/marshal/scheme shape pkg/attest uses for mldsa65, the
// sibling post-quantum primitive from the same circl module.
package kem

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
)

// Fixed sizes mlkem1024 produces; these are also the K_ct and K_pk field
// sizes spec.md section 4.B names for "the chosen KEM".
const (
	PublicKeySize  = mlkem1024.PublicKeySize
	CiphertextSize = mlkem1024.CiphertextSize
	SharedKeySize  = mlkem1024.SharedKeySize
)

var scheme = mlkem1024.Scheme()

// KeyPair is a generated ML-KEM-1024 keypair.
type KeyPair struct {
	Public  kem.PublicKey
	Private kem.PrivateKey
}

// Generate draws a fresh ML-KEM-1024 keypair.
func Generate() (*KeyPair, error) {
	pub, priv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating mlkem1024 keypair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// PublicKeyBytes returns the fixed PublicKeySize-byte encoding of the
// keypair's public half, suitable for embedding in a header per
// spec.md section 4.B.
func (kp *KeyPair) PublicKeyBytes() ([]byte, error) {
	b, err := kp.Public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshalling mlkem1024 public key: %w", err)
	}
	return b, nil
}

// Decapsulate recovers the shared secret from a ciphertext encapsulated
// to this keypair's public key.
func (kp *KeyPair) Decapsulate(ciphertext []byte) ([]byte, error) {
	ss, err := scheme.Decapsulate(kp.Private, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decapsulating: %w", err)
	}
	return ss, nil
}

// ParsePublicKey decodes a public key previously produced by
// PublicKeyBytes, as received in a peer's header.
func ParsePublicKey(b []byte) (kem.PublicKey, error) {
	pub, err := scheme.UnmarshalBinaryPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("parsing mlkem1024 public key: %w", err)
	}
	return pub, nil
}

// Encapsulate draws a fresh shared secret and its ciphertext under the
// peer's public key.
func Encapsulate(pub kem.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	ciphertext, sharedSecret, err = scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("encapsulating: %w", err)
	}
	return ciphertext, sharedSecret, nil
}
