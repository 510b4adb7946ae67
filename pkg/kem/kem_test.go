package kem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/kem"
)

func TestEncapsulateDecapsulateRoundTrip(t *testing.T) {
	a := require.New(t)

	kp, err := kem.Generate()
	a.NoError(err)

	pubBytes, err := kp.PublicKeyBytes()
	a.NoError(err)
	a.Len(pubBytes, kem.PublicKeySize)

	pub, err := kem.ParsePublicKey(pubBytes)
	a.NoError(err)

	ct, ss, err := kem.Encapsulate(pub)
	a.NoError(err)
	a.Len(ct, kem.CiphertextSize)
	a.Len(ss, kem.SharedKeySize)

	ss2, err := kp.Decapsulate(ct)
	a.NoError(err)
	a.Equal(ss, ss2)
}

func TestDifferentKeyPairsProduceDifferentSecrets(t *testing.T) {
	a := require.New(t)

	kp1, err := kem.Generate()
	a.NoError(err)
	kp2, err := kem.Generate()
	a.NoError(err)

	pub1, err := kp1.PublicKeyBytes()
	a.NoError(err)
	pub2, err := kp2.PublicKeyBytes()
	a.NoError(err)
	a.NotEqual(pub1, pub2)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	a := require.New(t)
	_, err := kem.ParsePublicKey([]byte("too short"))
	a.Error(err)
}
