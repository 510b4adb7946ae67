package exchange

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

type ECDH struct {
	PublicKey  *ecdh.PublicKey
	privateKey *ecdh.PrivateKey
}

func (e *ECDH) MarshalPublicKey() []byte {
	b, err := x509.MarshalPKIXPublicKey(e.PublicKey)
	if err != nil {
		panic(fmt.Errorf("marshalling public key: %w", err))
	}
	return b
}

func (e *ECDH) MarshalPrivateKey() []byte {
	return e.privateKey.Bytes()
}

func (e *ECDH) Exchange(remote []byte) ([]byte, error) {
	key, err := x509.ParsePKIXPublicKey(remote)
	if err != nil {
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	pub, ok := key.(*ecdh.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	secret, err := e.privateKey.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("performing ecdh exchange: %w", err)
	}

	return secret, nil
}

// PublicKeyRaw returns the raw 32-byte X25519 public key, the fixed-size
// encoding spec.md section 4.B's header wire format requires (as opposed
// to MarshalPublicKey's variable-length PKIX encoding used for at-rest
// state persistence).
func (e *ECDH) PublicKeyRaw() []byte {
	return e.PublicKey.Bytes()
}

// ExchangeRaw performs the DH exchange against a peer's raw 32-byte
// X25519 public key, the counterpart to PublicKeyRaw.
func (e *ECDH) ExchangeRaw(remoteRaw []byte) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(remoteRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing raw key: %w", err)
	}
	secret, err := e.privateKey.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("performing ecdh exchange: %w", err)
	}
	return secret, nil
}

// NewECDHFromSeed deterministically derives an X25519 keypair from a
// 32-byte seed. pkg/sphinx uses it to derive each mix hop's ephemeral
// keypair from the previous hop's shared secret, so that a relay can
// independently reproduce the next hop's public key without it being
// transmitted explicitly in the constant-size Sphinx header.
func NewECDHFromSeed(seed []byte) (*ECDH, error) {
	priv, err := ecdh.X25519().NewPrivateKey(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving private key from seed: %w", err)
	}
	return &ECDH{privateKey: priv, PublicKey: priv.PublicKey()}, nil
}

func NewECDH() (*ECDH, error) {
	key, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &ECDH{privateKey: key, PublicKey: key.PublicKey()}, nil
}

// RestoreECDH reconstructs an ECDH keypair from serialized private and public key bytes.
func RestoreECDH(privBytes, pubBytes []byte) (*ECDH, error) {
	// Restore the private key
	privKey, err := ecdh.X25519().NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("restoring private key: %w", err)
	}

	// Parse the public key
	pubKeyInterface, err := x509.ParsePKIXPublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	pubKey, ok := pubKeyInterface.(*ecdh.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}

	return &ECDH{
		privateKey: privKey,
		PublicKey:  pubKey,
	}, nil
}
