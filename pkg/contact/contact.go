// Package contact implements spec.md section 3's Contact model and the
// in-memory contact store spec.md section 4.I's exchange flows feed
// into. Persistence is optional and lives outside this package:
// pkg/store saves and loads Contact values, and pkg/localstore seals
// opaque blobs such as contacts.enc; by default contacts live only in memory, per
// spec.md's "Contacts live in memory only by default".
package contact

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ElMoorish/comlock/internal/zeroize"
	"github.com/ElMoorish/comlock/pkg/fingerprint"
)

var ErrNotFound = errors.New("contact: no contact with that id")

// Contact is one entry in the contact store.
type Contact struct {
	ID             string
	Alias          string
	PeerPublicKey  []byte // raw 32-byte X25519 public key
	PeerKEMPublic  []byte // raw ML-KEM-1024 public key, optional
	SessionID      string
	AddedAt        time.Time
	Verified       bool
	PendingInvite  bool   // true for an imported invite-blob contact awaiting acknowledgment
	Notes          string // free-text, user-supplied; never required, never exempt from wipe
}

// SuggestAlias returns a random two-word placeholder alias for a UI to
// pre-fill while a contact is pending the user's own naming choice
// (e.g. right after scanning a QR code or importing an invite blob,
// before Alias is set to something meaningful).
func SuggestAlias() string {
	return fingerprint.Pseudonym()
}

func newID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating contact id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Store is a mutex-protected in-memory contact registry. It sits below
// pkg/localstore in the per-object mutex ordering spec.md section 5
// specifies (identity -> sessions -> contacts -> security_config ->
// wipe_state).
type Store struct {
	mu       sync.Mutex
	contacts map[string]*Contact
}

func NewStore() *Store {
	return &Store{contacts: make(map[string]*Contact)}
}

// AddVerified records a contact produced by a completed QR/SAS
// exchange: verified=true, session_id bound to the exchange's shared
// secret, per spec.md section 4.I step 4.
func (s *Store) AddVerified(alias string, peerPub, peerKEMPub []byte, sessionID string, now time.Time) (*Contact, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	c := &Contact{
		ID:            id,
		Alias:         alias,
		PeerPublicKey: append([]byte(nil), peerPub...),
		SessionID:     sessionID,
		AddedAt:       now,
		Verified:      true,
	}
	if peerKEMPub != nil {
		c.PeerKEMPublic = append([]byte(nil), peerKEMPub...)
	}
	s.mu.Lock()
	s.contacts[id] = c
	s.mu.Unlock()
	return c, nil
}

// AddFromInvite records a contact imported from an invite blob:
// verified=false, pending acknowledgment, per spec.md section 4.I's
// invite blob flow.
func (s *Store) AddFromInvite(alias string, peerPub, peerKEMPub []byte, now time.Time) (*Contact, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	c := &Contact{
		ID:            id,
		Alias:         alias,
		PeerPublicKey: append([]byte(nil), peerPub...),
		AddedAt:       now,
		Verified:      false,
		PendingInvite: true,
	}
	if peerKEMPub != nil {
		c.PeerKEMPublic = append([]byte(nil), peerKEMPub...)
	}
	s.mu.Lock()
	s.contacts[id] = c
	s.mu.Unlock()
	return c, nil
}

// Acknowledge marks a pending-invite contact verified once the
// recipient's acknowledgment arrives through the mix client, binding
// it to the resulting session id.
func (s *Store) Acknowledge(id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.Verified = true
	c.PendingInvite = false
	c.SessionID = sessionID
	return nil
}

func (s *Store) Get(id string) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Store) List() []*Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out
}

// Delete removes the contact and scrubs its key material, per
// spec.md section 4.I's "Delete removes the contact from the store and
// scrubs its key material."
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.contacts, id)
	zeroize.Many(c.PeerPublicKey, c.PeerKEMPublic)
	return nil
}

// SetNotes updates the free-text notes field on an existing contact.
func (s *Store) SetNotes(id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.Notes = notes
	return nil
}

// Fingerprint renders the contact's long-term public key as both an
// 8-emoji sequence and a colon-separated hex string, for out-of-band
// comparison distinct from a single exchange's short-lived SAS.
func (c *Contact) Fingerprint() (emoji []string, hex string) {
	return fingerprint.Emoji(c.PeerPublicKey), fingerprint.Hex(c.PeerPublicKey)
}

// Len reports the number of contacts currently stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}
