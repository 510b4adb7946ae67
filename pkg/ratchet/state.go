// Package ratchet implements the KEM Braid: a hybrid double ratchet that
// rotates a classical X25519 ephemeral keypair on every send and mixes
// the latest opportunistic ML-KEM-1024 shared secret into every
// per-message chain step, per spec.md section 4.D. The X25519 public key
// travels in each header; no X25519 shared secret enters the key
// derivation. ratchet.go and state.go stay split by concern (chain-step
// math vs. persisted state), deriving keys via internal/aead's HKDF
// helper as the rest of this module does.
package ratchet

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/internal/classify"
	"github.com/ElMoorish/comlock/internal/zeroize"
	"github.com/ElMoorish/comlock/pkg/exchange"
	"github.com/ElMoorish/comlock/pkg/kem"
)

// ErrMissingKemKeypair is recoverable, per spec.md section 7: abort the
// current step and preserve the prior ratchet state so the next valid
// message can still succeed.
var ErrMissingKemKeypair = classify.New("ratchet: kem ciphertext present but no local kem keypair", true)

const (
	chainsInfo = "init_chains"
	msgInfo    = "msg_send"
)

// Ratchet is the per-conversation, long-lived state spec.md section 3
// describes. A single mutex guards every field, matching section 5's
// "each stateful object behind a mutable API ... is protected by a
// single mutex" and "no operation holds more than one mutex across an
// await point" (the ratchet never suspends).
type Ratchet struct {
	mu sync.Mutex

	sendChain []byte
	recvChain []byte

	ourEphemeral       *exchange.ECDH
	remoteEphemeralPub []byte

	ourKEM              *kem.KeyPair
	pendingRemoteKEMPub []byte // raw mlkem1024 public key bytes, or nil

	lastKEMSecret []byte // 32 B placeholder, never exposed outside the state

	sendCounter uint32
	recvCounter uint32

	shouldSendKEMPub bool
	lastKEMMsgNumber uint32

	isInitiator bool
}

// New constructs a ratchet from a 32-byte shared root secret, per spec.md
// section 4.D's "Construction". The responder's KEM keypair is created
// lazily on first receipt of a KEM event, as specified; last_kem_secret
// starts as 32 zero bytes, the data model's "placeholder for chain-mix
// input when no new KEM event happens this step" applied before any KEM
// event has ever occurred.
func New(rootKey []byte, isInitiator bool) (*Ratchet, error) {
	a, b, err := aead.Derive2(rootKey, []byte(chainsInfo), nil)
	if err != nil {
		return nil, fmt.Errorf("deriving initial chains: %w", err)
	}

	ourEphemeral, err := exchange.NewECDH()
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral keypair: %w", err)
	}

	r := &Ratchet{
		ourEphemeral:     ourEphemeral,
		lastKEMSecret:    make([]byte, aead.KeySize),
		shouldSendKEMPub: isInitiator,
		isInitiator:      isInitiator,
	}
	if isInitiator {
		r.sendChain, r.recvChain = a, b
		kp, err := kem.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating initiator kem keypair: %w", err)
		}
		r.ourKEM = kp
	} else {
		r.sendChain, r.recvChain = b, a
	}
	return r, nil
}

// SendCounter and RecvCounter expose the monotonic per-direction counters
// for callers that need to track ratchet progress (e.g. the KEM
// advancement policy hook).
func (r *Ratchet) SendCounter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendCounter
}

func (r *Ratchet) RecvCounter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recvCounter
}

// ShouldAdvanceKEM implements the policy hook from spec.md section 4.D:
// true once N messages have been sent since the last KEM event.
func (r *Ratchet) ShouldAdvanceKEM(n uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendCounter-r.lastKEMMsgNumber >= n
}

// TriggerKEMAdvancement regenerates the local KEM keypair and arms
// should_send_kem_pub, for callers implementing a manual advancement
// policy rather than waiting for a peer-initiated KEM event.
func (r *Ratchet) TriggerKEMAdvancement() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kp, err := kem.Generate()
	if err != nil {
		return fmt.Errorf("regenerating kem keypair: %w", err)
	}
	r.ourKEM = kp
	r.shouldSendKEMPub = true
	return nil
}

// Close zeroes every secret buffer the ratchet owns, per spec.md section
// 3's ownership rules ("must be overwritten with zeros on drop") and
// section 5's resource cleanup guarantee.
func (r *Ratchet) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	zeroize.Many(r.sendChain, r.recvChain, r.lastKEMSecret, r.pendingRemoteKEMPub, r.remoteEphemeralPub)
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
