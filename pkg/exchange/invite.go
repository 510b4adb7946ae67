package exchange

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ElMoorish/comlock/internal/classify"
	"github.com/ElMoorish/comlock/pkg/attest"
)

// All recoverable per spec.md section 7: a single invite blob can be
// rejected and a fresh one requested without affecting any other state.
var (
	ErrInviteExpired        = classify.New("exchange: invite blob has expired", true)
	ErrInviteMalformed      = classify.New("exchange: malformed invite blob", true)
	ErrInviteBadSignature   = classify.New("exchange: invite blob signature does not verify", true)
	ErrInviteMissingPubkeys = classify.New("exchange: invite blob missing required public keys", true)
)

// InviteBlob is the one-time remote contact-exchange payload spec.md
// section 4.I describes: a signed, base64-encoded JSON document a
// sender hands to a recipient out of band (a link, a file, a copied
// string) rather than scanning a QR code in person.
type InviteBlob struct {
	Version       int    `json:"version"`
	SenderPubkey  string `json:"sender_pubkey"`
	SenderKEMPub  string `json:"sender_kem_pub,omitempty"`
	MailboxID     string `json:"mailbox_id"`
	ExpiresAt     int64  `json:"expiry"`
	Signature     string `json:"signature"`
	signableCache []byte
}

// signable returns the canonical bytes the signature covers: the JSON
// document with the signature field cleared.
func (b InviteBlob) signable() ([]byte, error) {
	cp := b
	cp.Signature = ""
	cp.signableCache = nil
	return json.Marshal(cp)
}

// NewInviteBlob builds and signs an invite blob valid until expiresAt.
// mailboxID is random 32 bytes the recipient's mix client will deliver
// the acknowledgment to. sender_pubkey carries signer's own identity
// public key (the same key that produced the signature), resolving
// spec.md section 9's note that a reference implementation left this
// signature zeroed; the classical DH key actually used to seed the
// ratchet is negotiated afterward, over the mix network, once the
// recipient's acknowledgment arrives, rather than carried in the blob.
func NewInviteBlob(signer attest.Attest, senderKEMPub []byte, expiresAt time.Time) (InviteBlob, error) {
	var mailboxID [32]byte
	if _, err := rand.Read(mailboxID[:]); err != nil {
		return InviteBlob{}, fmt.Errorf("generating mailbox id: %w", err)
	}

	blob := InviteBlob{
		Version:      1,
		SenderPubkey: base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal()),
		MailboxID:    base64.StdEncoding.EncodeToString(mailboxID[:]),
		ExpiresAt:    expiresAt.Unix(),
	}
	if senderKEMPub != nil {
		blob.SenderKEMPub = base64.StdEncoding.EncodeToString(senderKEMPub)
	}

	toSign, err := blob.signable()
	if err != nil {
		return InviteBlob{}, err
	}
	sig, err := signer.Sign(toSign, nil)
	if err != nil {
		return InviteBlob{}, fmt.Errorf("signing invite blob: %w", err)
	}
	blob.Signature = base64.StdEncoding.EncodeToString(sig)
	return blob, nil
}

// Encode serializes the blob as base64(JSON), the form it is handed
// around out-of-band in.
func (b InviteBlob) Encode() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeInviteBlob parses and signature-verifies a base64(JSON) invite
// blob, rejecting it if expired.
func DecodeInviteBlob(encoded string, now time.Time) (InviteBlob, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return InviteBlob{}, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	var blob InviteBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return InviteBlob{}, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	if blob.SenderPubkey == "" || blob.MailboxID == "" || blob.Signature == "" {
		return InviteBlob{}, ErrInviteMissingPubkeys
	}
	if now.Unix() > blob.ExpiresAt {
		return InviteBlob{}, ErrInviteExpired
	}

	senderPub, err := base64.StdEncoding.DecodeString(blob.SenderPubkey)
	if err != nil {
		return InviteBlob{}, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	signerPub, err := attest.ParsePublicKey(senderPub)
	if err != nil {
		return InviteBlob{}, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	sig, err := base64.StdEncoding.DecodeString(blob.Signature)
	if err != nil {
		return InviteBlob{}, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	toSign, err := blob.signable()
	if err != nil {
		return InviteBlob{}, err
	}
	if !attest.Verify(signerPub, toSign, sig) {
		return InviteBlob{}, ErrInviteBadSignature
	}
	return blob, nil
}

// MailboxIDBytes decodes the blob's base64 mailbox id back to raw bytes.
func (b InviteBlob) MailboxIDBytes() ([32]byte, error) {
	var id [32]byte
	raw, err := base64.StdEncoding.DecodeString(b.MailboxID)
	if err != nil {
		return id, fmt.Errorf("%w: %w", ErrInviteMalformed, err)
	}
	if len(raw) != 32 {
		return id, ErrInviteMalformed
	}
	copy(id[:], raw)
	return id, nil
}
