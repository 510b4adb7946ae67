package mixclient

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoOwnMailbox  = errors.New("mixclient: no own mailbox registered to build a surb")
	ErrMalformedSurb = errors.New("mixclient: malformed surb trailer")
)

// SurbHandle is spec.md section 4.G's single-use reply block: enough
// for a correspondent to send an anonymous reply without knowing who
// they're replying to beyond a mailbox id, end-to-end encrypted under
// reply_key so the mailbox's own provider cannot read the reply
// content. A full Sphinx header capable of being replayed hop-by-hop
// without a fresh route cannot also carry a fresh payload without
// conveying the entire per-hop payload keystream alongside it (see
// DESIGN.md); this handle instead names the return mailbox directly
// and leaves the reply's own route selection to a normal SendMessage,
// trading some of that route-level anonymity for a scheme the
// replier can use without additional machinery.
type SurbHandle struct {
	Mailbox  Mailbox
	ReplyKey [32]byte
	IssuedAt time.Time
}

// encode serializes the handle to the bytes a request payload carries
// alongside its own content: mailbox_id(32) || reply_key(32) ||
// provider || provider_len(u16 LE). The length field trails the
// variable-length provider string so a decoder can find the trailer's
// start by reading backwards from the end of the buffer without
// knowing its total length up front.
func (h *SurbHandle) encode() []byte {
	out := make([]byte, 0, 32+32+len(h.Mailbox.Provider)+2)
	out = append(out, h.Mailbox.ID[:]...)
	out = append(out, h.ReplyKey[:]...)
	out = append(out, []byte(h.Mailbox.Provider)...)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(h.Mailbox.Provider)))
	out = append(out, lenBuf[:]...)
	return out
}

// DecodeSurbTrailer parses a SURB trailer a SendWithSURB caller
// appended to their payload, returning it and the payload bytes that
// precede it.
func DecodeSurbTrailer(buf []byte) (appPayload []byte, mailbox Mailbox, replyKey [32]byte, err error) {
	const fixed = 32 + 32 + 2
	if len(buf) < fixed {
		return nil, Mailbox{}, replyKey, ErrMalformedSurb
	}
	providerLen := int(binary.LittleEndian.Uint16(buf[len(buf)-2:]))
	trailerLen := fixed + providerLen
	if len(buf) < trailerLen {
		return nil, Mailbox{}, replyKey, ErrMalformedSurb
	}
	trailer := buf[len(buf)-trailerLen:]
	copy(mailbox.ID[:], trailer[:32])
	copy(replyKey[:], trailer[32:64])
	mailbox.Provider = string(trailer[64 : 64+providerLen])
	return buf[:len(buf)-trailerLen], mailbox, replyKey, nil
}

// SendWithSURB appends a single-use reply block to payload, sends the
// combined message to recipient, and returns the handle so the caller
// can later recognize and decrypt the reply.
func (c *Client) SendWithSURB(payload []byte, recipient Mailbox, now time.Time) (*SurbHandle, error) {
	own, ok := c.OwnMailbox()
	if !ok {
		return nil, ErrNoOwnMailbox
	}
	var replyKey [32]byte
	if _, err := rand.Read(replyKey[:]); err != nil {
		return nil, fmt.Errorf("generating surb reply key: %w", err)
	}
	handle := &SurbHandle{Mailbox: own, ReplyKey: replyKey, IssuedAt: now}

	combined := make([]byte, 0, len(payload)+96+len(own.Provider))
	combined = append(combined, payload...)
	combined = append(combined, handle.encode()...)

	if err := c.SendMessage(combined, recipient); err != nil {
		return nil, err
	}
	return handle, nil
}

// SendWithSURBTracked behaves like SendWithSURB but additionally
// remembers the issued handle under id, so a later SurbRoundTrip(id)
// call can report how long the reply took once it arrives.
func (c *Client) SendWithSURBTracked(id string, payload []byte, recipient Mailbox, now time.Time) (*SurbHandle, error) {
	handle, err := c.SendWithSURB(payload, recipient, now)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pendingSurbs[id] = handle
	c.mu.Unlock()
	return handle, nil
}

// SurbRoundTrip reports the elapsed time since the SURB tracked under
// id was issued and stops tracking it, per
// original_source/comlock-transport/src/mixnet.rs's per-SURB round-trip
// estimate: purely additive UX metadata, never required for OpenReply
// to work. ok is false if no tracked SURB exists under id (never
// issued via SendWithSURBTracked, or already consumed).
func (c *Client) SurbRoundTrip(id string, now time.Time) (elapsed time.Duration, ok bool) {
	c.mu.Lock()
	handle, found := c.pendingSurbs[id]
	if found {
		delete(c.pendingSurbs, id)
	}
	c.mu.Unlock()
	if !found {
		return 0, false
	}
	return now.Sub(handle.IssuedAt), true
}

// SealReply is what a SURB holder's correspondent calls to encrypt
// their reply payload under reply_key before sending it (via a normal
// SendMessage to the SURB's mailbox) so the mailbox's own provider
// cannot read it.
func SealReply(replyKey [32]byte, payload []byte) ([]byte, error) {
	return replyStreamXOR(replyKey, payload)
}

// OpenReply is what the original SURB issuer calls on a polled reply
// to recover the plaintext.
func (h *SurbHandle) OpenReply(sealed []byte) ([]byte, error) {
	return replyStreamXOR(h.ReplyKey, sealed)
}

func replyStreamXOR(key [32]byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	var iv [aes.BlockSize]byte
	stream := cipher.NewCTR(block, iv[:])
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}
