// Package store implements spec.md section 3's "encrypted persistence
// is optional" clause: a bbolt-backed, passphrase-encrypted store for
// contacts and local identity key material, sitting entirely outside
// the default in-memory path pkg/contact provides. Nothing else in
// this module requires it — it exists for embedders who want contacts
// to survive a restart.
package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/pkg/contact"
)

var (
	contactsBucket = []byte("contacts")
	identityBucket = []byte("identity")
	authBucket     = []byte("auth")

	wrappedKey = []byte("wrapped-key")
	saltKey    = []byte("salt")
)

var (
	ErrMissingBucket    = errors.New("store: bucket not found")
	ErrNotFound         = errors.New("store: item not found")
	ErrFailedDecryption = errors.New("store: decryption failed")
)

// Store wraps a bbolt database under a single passphrase-derived
// AES-256-GCM cipher. The data key is generated once at creation and
// wrapped under the passphrase, so changing the passphrase later only
// means re-wrapping one 32-byte secret, not re-encrypting every
// record.
type Store struct {
	db     *bolt.DB
	cipher *aead.StorageCipher
}

func randomKey() []byte {
	k := make([]byte, 32)
	_, _ = rand.Read(k)
	return k
}

func unwrapDataKey(passphrase []byte, db *bolt.DB) ([]byte, error) {
	var wrapped, salt []byte
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		wrapped = b.Get(wrappedKey)
		salt = b.Get(saltKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading wrapped key: %w", err)
	}
	if wrapped == nil || salt == nil {
		return nil, ErrNotFound
	}
	wrapCipher, err := aead.NewStorageCipher(aead.DeriveStorageKeyWithSalt(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("building wrap cipher: %w", err)
	}
	dataKey, err := wrapCipher.Open(wrapped)
	if err != nil {
		return nil, ErrFailedDecryption
	}
	return dataKey, nil
}

func wrapNewDataKey(passphrase []byte, db *bolt.DB) ([]byte, error) {
	dataKey := randomKey()
	salt := randomKey()
	wrapCipher, err := aead.NewStorageCipher(aead.DeriveStorageKeyWithSalt(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("building wrap cipher: %w", err)
	}
	wrapped, err := wrapCipher.Seal(dataKey)
	if err != nil {
		return nil, fmt.Errorf("wrapping data key: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Put(wrappedKey, wrapped); err != nil {
			return err
		}
		return b.Put(saltKey, salt)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting wrapped key: %w", err)
	}
	return dataKey, nil
}

// Open opens or creates a bbolt database at path, unlocking it with
// passphrase. A fresh file bootstraps a new random data key wrapped
// under the passphrase; an existing one unwraps its stored key, and a
// wrong passphrase surfaces as ErrFailedDecryption.
func Open(path string, passphrase []byte) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{contactsBucket, identityBucket, authBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	dataKey, err := unwrapDataKey(passphrase, db)
	if errors.Is(err, ErrNotFound) {
		dataKey, err = wrapNewDataKey(passphrase, db)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	cipher, err := aead.NewStorageCipher(dataKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building data cipher: %w", err)
	}
	return &Store{db: db, cipher: cipher}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveContact upserts c, encrypted whole, keyed by its ID.
func (s *Store) SaveContact(c *contact.Contact) error {
	plaintext, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling contact: %w", err)
	}
	sealed, err := s.cipher.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("sealing contact: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(contactsBucket)
		if b == nil {
			return ErrMissingBucket
		}
		return b.Put([]byte(c.ID), sealed)
	})
}

// DeleteContact removes the contact with the given ID, if present.
func (s *Store) DeleteContact(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(contactsBucket)
		if b == nil {
			return ErrMissingBucket
		}
		return b.Delete([]byte(id))
	})
}

// LoadContacts decrypts and returns every persisted contact. Embedders
// typically call this once at startup to seed a pkg/contact.Store.
func (s *Store) LoadContacts() ([]*contact.Contact, error) {
	var out []*contact.Contact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(contactsBucket)
		if b == nil {
			return ErrMissingBucket
		}
		return b.ForEach(func(_, sealed []byte) error {
			plaintext, err := s.cipher.Open(sealed)
			if err != nil {
				return ErrFailedDecryption
			}
			var c contact.Contact
			if err := json.Unmarshal(plaintext, &c); err != nil {
				return fmt.Errorf("unmarshaling contact: %w", err)
			}
			out = append(out, &c)
			return nil
		})
	})
	return out, err
}

// SaveIdentity persists raw identity key material under the given
// pkg/attest algorithm name ("ed25519" or "mldsa"), encrypted.
func (s *Store) SaveIdentity(algorithm string, keyBytes []byte) error {
	sealed, err := s.cipher.Seal(keyBytes)
	if err != nil {
		return fmt.Errorf("sealing identity: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(identityBucket)
		if b == nil {
			return ErrMissingBucket
		}
		return b.Put([]byte(algorithm), sealed)
	})
}

// LoadIdentity returns the identity key material saved under
// algorithm, or ErrNotFound if none was ever saved.
func (s *Store) LoadIdentity(algorithm string) ([]byte, error) {
	var plaintext []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(identityBucket)
		if b == nil {
			return ErrMissingBucket
		}
		sealed := b.Get([]byte(algorithm))
		if sealed == nil {
			return ErrNotFound
		}
		var err error
		plaintext, err = s.cipher.Open(sealed)
		if err != nil {
			return ErrFailedDecryption
		}
		return nil
	})
	return plaintext, err
}
