// Package localstore implements spec.md section 4.K's encrypted local
// blob format: independent AES-256-GCM-sealed files for the security
// config, identity, and contact list, keyed by an Argon2id-stretched
// PIN. Disk file I/O mechanics beyond this wire format and the secure
// wipe spec.md section 6 names are out of scope — this package does
// not implement a general-purpose database.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/internal/classify"
)

// Filenames for the three logical blobs spec.md section 6 names.
const (
	SecurityFile = "security.enc"
	IdentityFile = "identity.enc"
	ContactsFile = "contacts.enc"
)

var blobFiles = []string{SecurityFile, IdentityFile, ContactsFile}

var (
	// ErrWrongPinOrCorrupted is spec.md section 7's deliberately
	// ambiguous error: "both must be surfaced as 'wrong PIN or
	// corrupted store' to avoid oracle." Open never distinguishes a
	// bad PIN from a corrupted file beyond this. Recoverable: the caller
	// can prompt for the PIN again.
	ErrWrongPinOrCorrupted = classify.New("localstore: wrong pin or corrupted store", true)
)

// Store seals and opens the three blobs under dir, keyed by a PIN
// stretched with Argon2id over spec.md section 4.A's fixed protocol
// salt.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir. It does not itself read or
// create any files; callers call Seal/OpenBlob per logical blob.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// SealBlob encrypts plaintext under the PIN-derived key and writes it
// to name, overwriting any existing file.
func (s *Store) SealBlob(name string, pin []byte, plaintext []byte) error {
	cipher, err := aead.NewStorageCipher(aead.DeriveStorageKey(pin))
	if err != nil {
		return fmt.Errorf("localstore: building storage cipher: %w", err)
	}
	blob, err := cipher.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("localstore: sealing %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), blob, 0600); err != nil {
		return fmt.Errorf("localstore: writing %s: %w", name, err)
	}
	return nil
}

// OpenBlob reads and decrypts name under the PIN-derived key. A wrong
// PIN and a corrupted file are indistinguishable: both return
// ErrWrongPinOrCorrupted, per spec.md section 7.
func (s *Store) OpenBlob(name string, pin []byte) ([]byte, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("localstore: reading %s: %w", name, err)
	}
	cipher, err := aead.NewStorageCipher(aead.DeriveStorageKey(pin))
	if err != nil {
		return nil, fmt.Errorf("localstore: building storage cipher: %w", err)
	}
	plaintext, err := cipher.Open(raw)
	if err != nil {
		return nil, ErrWrongPinOrCorrupted
	}
	return plaintext, nil
}

// SecureWipeAll implements panicguard.Wiper: it shreds every blob file
// that exists under dir. Missing files are skipped, not an error — a
// freshly provisioned device may never have written identity.enc or
// contacts.enc.
func (s *Store) SecureWipeAll() error {
	var firstErr error
	for _, name := range blobFiles {
		path := s.path(name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := SecureWipe(path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("localstore: wiping %s: %w", name, err)
		}
	}
	return firstErr
}
