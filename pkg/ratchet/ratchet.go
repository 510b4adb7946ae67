package ratchet

import (
	"fmt"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/pkg/exchange"
	"github.com/ElMoorish/comlock/pkg/header"
	"github.com/ElMoorish/comlock/pkg/kem"
)

// Send runs the KEM Braid's send step, per spec.md section 4.D, and
// returns the per-message key plus the header to transmit alongside the
// ciphertext.
func (r *Ratchet) Send() (messageKey []byte, h *header.Header, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ct, ss []byte
	if r.pendingRemoteKEMPub != nil {
		pub, perr := kem.ParsePublicKey(r.pendingRemoteKEMPub)
		if perr != nil {
			return nil, nil, fmt.Errorf("parsing pending remote kem public key: %w", perr)
		}
		ct, ss, err = kem.Encapsulate(pub)
		if err != nil {
			return nil, nil, fmt.Errorf("encapsulating to pending remote kem public key: %w", err)
		}
		r.shouldSendKEMPub = true
		newKEM, kerr := kem.Generate()
		if kerr != nil {
			return nil, nil, fmt.Errorf("generating fresh kem keypair: %w", kerr)
		}
		r.ourKEM = newKEM
		r.pendingRemoteKEMPub = nil
	}

	if ss != nil {
		r.lastKEMSecret = ss
		r.lastKEMMsgNumber = r.sendCounter
	}

	ikm := append(le32(r.sendCounter), r.lastKEMSecret...)
	messageKey, newSendChain, err := aead.Derive2(r.sendChain, []byte(msgInfo), ikm)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving send message key: %w", err)
	}
	r.sendChain = newSendChain

	newEphemeral, err := exchange.NewECDH()
	if err != nil {
		return nil, nil, fmt.Errorf("rotating ephemeral keypair: %w", err)
	}
	r.ourEphemeral = newEphemeral

	h = &header.Header{
		MessageNumber:       r.sendCounter,
		PreviousChainLength: r.recvCounter,
	}
	copy(h.ClassicalPub[:], r.ourEphemeral.PublicKeyRaw())
	if ct != nil {
		h.KEMCiphertext = ct
	}
	if r.shouldSendKEMPub {
		pubBytes, perr := r.ourKEM.PublicKeyBytes()
		if perr != nil {
			return nil, nil, fmt.Errorf("marshalling our kem public key: %w", perr)
		}
		h.KEMPublicKey = pubBytes
		r.shouldSendKEMPub = false
	}

	r.sendCounter++
	return messageKey, h, nil
}

// Receive runs the KEM Braid's receive step, per spec.md section 4.D, and
// returns the per-message key to use for AEAD decryption.
func (r *Ratchet) Receive(h *header.Header) (messageKey []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remoteEphemeralPub = append([]byte(nil), h.ClassicalPub[:]...)

	var ss []byte
	if h.HasKEMCiphertext() {
		if r.ourKEM == nil {
			return nil, ErrMissingKemKeypair
		}
		ss, err = r.ourKEM.Decapsulate(h.KEMCiphertext)
		if err != nil {
			return nil, fmt.Errorf("decapsulating kem ciphertext: %w", err)
		}
		newKEM, kerr := kem.Generate()
		if kerr != nil {
			return nil, fmt.Errorf("generating fresh kem keypair: %w", kerr)
		}
		r.ourKEM = newKEM
		r.shouldSendKEMPub = true
	}

	if h.HasKEMPublicKey() {
		r.pendingRemoteKEMPub = append([]byte(nil), h.KEMPublicKey...)
		if r.ourKEM == nil {
			newKEM, kerr := kem.Generate()
			if kerr != nil {
				return nil, fmt.Errorf("generating responder kem keypair: %w", kerr)
			}
			r.ourKEM = newKEM
			r.shouldSendKEMPub = true
		}
	}

	if ss != nil {
		r.lastKEMSecret = ss
	}

	ikm := append(le32(h.MessageNumber), r.lastKEMSecret...)
	messageKey, newRecvChain, err := aead.Derive2(r.recvChain, []byte(msgInfo), ikm)
	if err != nil {
		return nil, fmt.Errorf("deriving recv message key: %w", err)
	}
	r.recvChain = newRecvChain
	r.recvCounter = h.MessageNumber + 1

	return messageKey, nil
}
