// Package exchange holds the classical DH primitive (ecdh.go) and,
// built on top of it, the in-person QR contact-exchange flow spec.md
// section 4.I describes: an ephemeral keypair and a JSON payload
// renderable as a QR code, verified out-of-band via a Short
// Authentication String (sas.go).
package exchange

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ElMoorish/comlock/internal/classify"
	"github.com/ElMoorish/comlock/internal/zeroize"
	"github.com/ElMoorish/comlock/pkg/fingerprint"
)

// All recoverable per spec.md section 7: a single exchange attempt can be
// retried or restarted without tearing down anything longer-lived.
var (
	ErrExchangeExpired     = classify.New("exchange: qr payload has expired", true)
	ErrExchangeNotFound    = classify.New("exchange: no pending exchange with that id", true)
	ErrInvalidKey          = classify.New("exchange: invalid key", true)
	ErrInvalidQRPayload    = classify.New("exchange: malformed qr payload", true)
	exchangePendingTimeout = 10 * time.Minute
)

// QRPayload is the JSON body a QR code renders, per spec.md's
// {v, pk, kpk?, exp} shape.
type QRPayload struct {
	Version   int    `json:"v"`
	PublicKey string `json:"pk"`
	KEMPublic string `json:"kpk,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// Encode serializes the payload to the JSON bytes a QR code renders.
func (p QRPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeQRPayload parses a scanned QR payload.
func DecodeQRPayload(b []byte) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return QRPayload{}, fmt.Errorf("%w: %w", ErrInvalidQRPayload, err)
	}
	if p.PublicKey == "" {
		return QRPayload{}, ErrInvalidQRPayload
	}
	return p, nil
}

// RenderTerminal renders the payload's encoded JSON as a
// terminal-printable QR code bitmap, for CLI embedders that show the
// code directly rather than handing it to a GUI.
func (p QRPayload) RenderTerminal() ([]byte, error) {
	encoded, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return fingerprint.QrCode(encoded)
}

// Expired reports whether now is past the payload's expiry.
func (p QRPayload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpiresAt
}

// pendingExchange is what the initiator side remembers between
// generating a QR payload and the scanner confirming the SAS.
type pendingExchange struct {
	keypair   *ECDH
	kem       []byte // optional raw KEM public key, paired with a held private decapsulation key elsewhere
	createdAt time.Time
}

// Initiator tracks in-memory pending QR exchanges, keyed by a
// caller-chosen exchange id (e.g. a random string shown alongside the
// QR code so the initiator can look the session back up once the
// scanner confirms).
type Initiator struct {
	mu      sync.Mutex
	pending map[string]*pendingExchange
}

func NewInitiator() *Initiator {
	return &Initiator{pending: make(map[string]*pendingExchange)}
}

// Start generates an ephemeral keypair, builds the QR JSON payload, and
// remembers the pending exchange under exchangeID until Confirm is
// called or it expires.
func (in *Initiator) Start(exchangeID string, kemPublicKey []byte, ttl time.Duration, now time.Time) (QRPayload, error) {
	keypair, err := NewECDH()
	if err != nil {
		return QRPayload{}, fmt.Errorf("generating ephemeral keypair: %w", err)
	}

	in.mu.Lock()
	if in.pending == nil {
		in.pending = make(map[string]*pendingExchange)
	}
	in.pending[exchangeID] = &pendingExchange{
		keypair:   keypair,
		kem:       kemPublicKey,
		createdAt: now,
	}
	in.mu.Unlock()

	payload := QRPayload{
		Version:   1,
		PublicKey: base64.StdEncoding.EncodeToString(keypair.PublicKeyRaw()),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	if kemPublicKey != nil {
		payload.KEMPublic = base64.StdEncoding.EncodeToString(kemPublicKey)
	}
	return payload, nil
}

// Confirm completes the initiator side once the scanner has displayed
// a matching SAS: it performs the DH exchange against the scanner's
// public key and returns the shared secret, the SAS string, and the
// derived session id.
func (in *Initiator) Confirm(exchangeID string, scannerPublicKey []byte, now time.Time) (shared []byte, sas, sessionID string, err error) {
	in.mu.Lock()
	pe, ok := in.pending[exchangeID]
	if ok {
		delete(in.pending, exchangeID)
	}
	in.mu.Unlock()
	if !ok {
		return nil, "", "", ErrExchangeNotFound
	}
	defer zeroize.Many(pe.kem)

	shared, err = pe.keypair.ExchangeRaw(scannerPublicKey)
	if err != nil {
		return nil, "", "", fmt.Errorf("computing shared secret: %w", err)
	}
	return shared, SAS(shared), SessionID(shared), nil
}

// Scavenge drops pending exchanges older than the 10-minute window
// spec.md section 4.I calls for, called opportunistically by callers
// rather than on a background timer.
func (in *Initiator) Scavenge(now time.Time) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	removed := 0
	for id, pe := range in.pending {
		if now.Sub(pe.createdAt) > exchangePendingTimeout {
			delete(in.pending, id)
			removed++
		}
	}
	return removed
}

// Scan is the scanner side of the flow: it parses and validates the
// QR payload, performs the DH exchange, and returns the shared secret
// plus the SAS both sides compare out-of-band.
func Scan(payload QRPayload, ourSecret *ECDH, now time.Time) (shared []byte, sas, sessionID string, err error) {
	if payload.Expired(now) {
		return nil, "", "", ErrExchangeExpired
	}
	peerPub, err := base64.StdEncoding.DecodeString(payload.PublicKey)
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %w", ErrInvalidQRPayload, err)
	}
	shared, err = ourSecret.ExchangeRaw(peerPub)
	if err != nil {
		return nil, "", "", fmt.Errorf("computing shared secret: %w", err)
	}
	return shared, SAS(shared), SessionID(shared), nil
}
