package gcmsiv

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randElement(t *testing.T) element {
	t.Helper()
	b := make([]byte, 16)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return bytesToElement(b)
}

func TestMulIdentityAndZero(t *testing.T) {
	a := require.New(t)
	x := randElement(t)
	zero := element{}

	a.Equal(zero, mul(x, zero))
	a.Equal(zero, mul(zero, x))
}

func TestMulCommutative(t *testing.T) {
	a := require.New(t)
	for i := 0; i < 20; i++ {
		x, y := randElement(t), randElement(t)
		a.Equal(mul(x, y), mul(y, x))
	}
}

func TestElementRoundTripsThroughBytes(t *testing.T) {
	a := require.New(t)
	b := make([]byte, 16)
	_, err := rand.Read(b)
	a.NoError(err)

	e := bytesToElement(b)
	out := e.bytes()
	a.Equal(b, out[:])
}

func TestPolyvalHornerMatchesManualFold(t *testing.T) {
	a := require.New(t)
	h := randElement(t)
	b1 := make([]byte, 16)
	b2 := make([]byte, 16)
	_, _ = rand.Read(b1)
	_, _ = rand.Read(b2)

	got := polyval(h, [][]byte{b1, b2})

	// POLYVAL(H, X1, X2) = X1*H^2 + X2*H, computed directly rather than
	// via the Horner-form implementation under test.
	x1, x2 := bytesToElement(b1), bytesToElement(b2)
	h2 := mul(h, h)
	want := mul(x1, h2).xor(mul(x2, h)).bytes()

	a.Equal(want, got)
}
