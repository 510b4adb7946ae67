package attest

import (
	"fmt"
	"strings"
)

// Algorithm names a pluggable signature scheme, per spec.md section
// 4.I's invite-blob signing and the KEM Braid handshake's static
// identity keys. AlgorithmEd25519 selects Ed25519; AlgorithmMLDSA
// selects the post-quantum ML-DSA-65 track. The zero value is not a
// valid algorithm.
type Algorithm int

const (
	invalidAlgorithm Algorithm = iota
	AlgorithmEd25519
	AlgorithmMLDSA
)

// New generates a fresh keypair under this algorithm.
func (a Algorithm) New() (Attest, error) {
	switch a {
	case AlgorithmEd25519:
		return NewEd25519()
	case AlgorithmMLDSA:
		return newMLDSA()
	default:
		return nil, fmt.Errorf("attest: unknown algorithm: %d", a)
	}
}

// Load reconstructs a keypair from the private-key bytes carried inside
// the PEM block Attest.Save writes (PKCS8 DER for Ed25519, raw
// MarshalBinary output for ML-DSA). It does not decode PEM itself.
func (a Algorithm) Load(data []byte) (Attest, error) {
	switch a {
	case AlgorithmEd25519:
		return loadEd25519(data)
	case AlgorithmMLDSA:
		return loadMLDSARaw(data)
	default:
		return nil, fmt.Errorf("attest: unknown algorithm: %d", a)
	}
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmEd25519:
		return "ed25519"
	case AlgorithmMLDSA:
		return "mldsa"
	default:
		return "invalid"
	}
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAlgorithm maps a config/CLI string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "ed25519":
		return AlgorithmEd25519, nil
	case "mldsa":
		return AlgorithmMLDSA, nil
	default:
		return invalidAlgorithm, fmt.Errorf("attest: unknown algorithm: %s", s)
	}
}
