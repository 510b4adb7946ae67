package localstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/localstore"
)

func TestSealAndOpenBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := localstore.Open(dir)

	plaintext := []byte(`{"pin_hash":"deadbeef","security_enabled":true}`)
	require.NoError(t, s.SealBlob(localstore.SecurityFile, []byte("1234"), plaintext))

	got, err := s.OpenBlob(localstore.SecurityFile, []byte("1234"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenBlobWithWrongPinFails(t *testing.T) {
	dir := t.TempDir()
	s := localstore.Open(dir)
	require.NoError(t, s.SealBlob(localstore.IdentityFile, []byte("1234"), []byte("secret identity bytes")))

	_, err := s.OpenBlob(localstore.IdentityFile, []byte("0000"))
	assert.ErrorIs(t, err, localstore.ErrWrongPinOrCorrupted)
}

func TestOpenBlobWithCorruptedFileFailsSameAsWrongPin(t *testing.T) {
	dir := t.TempDir()
	s := localstore.Open(dir)
	require.NoError(t, s.SealBlob(localstore.ContactsFile, []byte("1234"), []byte("contact list bytes")))

	path := filepath.Join(dir, localstore.ContactsFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = s.OpenBlob(localstore.ContactsFile, []byte("1234"))
	assert.ErrorIs(t, err, localstore.ErrWrongPinOrCorrupted)
}

func TestSecureWipeRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.enc")
	require.NoError(t, os.WriteFile(path, []byte("sensitive content here"), 0600))

	require.NoError(t, localstore.SecureWipe(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSecureWipeAllSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	s := localstore.Open(dir)
	require.NoError(t, s.SealBlob(localstore.SecurityFile, []byte("1234"), []byte("config")))
	// identity.enc and contacts.enc are never written.

	require.NoError(t, s.SecureWipeAll())

	_, err := os.Stat(filepath.Join(dir, localstore.SecurityFile))
	assert.True(t, os.IsNotExist(err))
}
