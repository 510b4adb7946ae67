package attest

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlgorithmNewSignVerify(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmEd25519, AlgorithmMLDSA} {
		t.Run(alg.String(), func(t *testing.T) {
			a := require.New(t)
			msg := []byte(rand.Text())

			signer, err := alg.New()
			a.NoError(err)
			sig, err := signer.Sign(msg, nil)
			a.NoError(err)
			a.True(Verify(signer.PublicKey(), msg, sig))
		})
	}
}

func TestParseAlgorithmRejectsUnknown(t *testing.T) {
	_, err := ParseAlgorithm("rot13")
	require.Error(t, err)
}

func TestParseAlgorithmRoundTripsString(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmEd25519, AlgorithmMLDSA} {
		parsed, err := ParseAlgorithm(alg.String())
		require.NoError(t, err)
		require.Equal(t, alg, parsed)
	}
}
