package session_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/kem"
	"github.com/ElMoorish/comlock/pkg/ratchet"
	"github.com/ElMoorish/comlock/pkg/session"
)

func newSessionPair(t *testing.T) (alice, bob *session.Session) {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	ra, err := ratchet.New(secret, true)
	require.NoError(t, err)
	rb, err := ratchet.New(secret, false)
	require.NoError(t, err)

	return session.New("conversation-1", ra), session.New("conversation-1", rb)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	blob, err := alice.Encrypt([]byte("hello bob"))
	a.NoError(err)
	a.GreaterOrEqual(len(blob), session.MinBlobSize)

	pt, err := bob.Decrypt(blob)
	a.NoError(err)
	a.Equal([]byte("hello bob"), pt)
}

func TestEncryptDecryptEmptyPlaintext(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	blob, err := alice.Encrypt(nil)
	a.NoError(err)
	// The initiator's first header also carries its KEM public key.
	a.Equal(session.MinBlobSize+kem.PublicKeySize, len(blob))

	pt, err := bob.Decrypt(blob)
	a.NoError(err)
	a.Empty(pt)
}

func TestMultiMessageConversationBothDirections(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	for i := 0; i < 5; i++ {
		blob, err := alice.Encrypt([]byte("ping"))
		a.NoError(err)
		pt, err := bob.Decrypt(blob)
		a.NoError(err)
		a.Equal([]byte("ping"), pt)

		blob, err = bob.Encrypt([]byte("pong"))
		a.NoError(err)
		pt, err = alice.Decrypt(blob)
		a.NoError(err)
		a.Equal([]byte("pong"), pt)
	}
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	a := require.New(t)
	_, bob := newSessionPair(t)

	_, err := bob.Decrypt(make([]byte, 10))
	a.ErrorIs(err, session.ErrDecryptionFailed)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	blob, err := alice.Encrypt([]byte("hello"))
	a.NoError(err)
	blob[len(blob)-1] ^= 1

	_, err = bob.Decrypt(blob)
	a.ErrorIs(err, session.ErrDecryptionFailed)
}

func TestDecryptRejectsOutOfOrderDelivery(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	blob1, err := alice.Encrypt([]byte("first"))
	a.NoError(err)
	blob2, err := alice.Encrypt([]byte("second"))
	a.NoError(err)

	// Per spec.md section 4.D/5, out-of-order receive is not supported:
	// consuming blob2 before blob1 must fail rather than silently desync.
	_, err = bob.Decrypt(blob2)
	a.Error(err)
	_ = blob1
}
