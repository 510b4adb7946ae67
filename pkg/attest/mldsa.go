package attest

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

type mlDSA struct {
	publicKey  *mldsa65.PublicKey
	privateKey *mldsa65.PrivateKey
}

func newMLDSA() (*mlDSA, error) {
	public, private, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &mlDSA{publicKey: public, privateKey: private}, nil
}

func (m *mlDSA) PublicKey() PublicKey {
	return &mldsaPublicKey{m.publicKey}
}

// Sign ignores ctx when empty, matching mldsa65's own optional-context
// convention; a non-empty ctx is passed through as the signature's
// domain-separation context.
func (m *mlDSA) Sign(msg, ctx []byte) ([]byte, error) {
	sig := make([]byte, mldsa65.SignatureSize)
	err := mldsa65.SignTo(m.privateKey, msg, ctx, true, sig)
	return sig, err
}

func (m *mlDSA) Save(path string) error {
	private, err := m.privateKey.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshalling private key: %w", err)
	}
	public, err := m.publicKey.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshalling public key: %w", err)
	}
	return save(private, public, path)
}

// loadMLDSARaw reconstructs an mlDSA keypair from a raw marshaled
// private key, as produced by mldsa65's MarshalBinary (not PEM/PKCS8 --
// circl's ML-DSA keys don't have an x509 encoding).
func loadMLDSARaw(data []byte) (*mlDSA, error) {
	priv, err := mldsa65.Scheme().UnmarshalBinaryPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal private key: %w", err)
	}
	return &mlDSA{
		privateKey: priv.(*mldsa65.PrivateKey),
		publicKey:  priv.Public().(*mldsa65.PublicKey),
	}, nil
}

type mldsaPublicKey struct {
	key *mldsa65.PublicKey
}

func (m *mldsaPublicKey) Marshal() []byte {
	b, err := m.key.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("marshalling mlDSA public key: %v", err))
	}
	return b
}

func (m *mldsaPublicKey) Base64Encoding() string {
	return base64.RawStdEncoding.EncodeToString(m.Marshal())
}

func (m *mldsaPublicKey) Equal(other PublicKey) bool {
	o, ok := other.(*mldsaPublicKey)
	if !ok {
		return false
	}
	return m.key.Equal(o.key)
}
