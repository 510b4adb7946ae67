package sphinx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/ElMoorish/comlock/internal/aead"
)

type hopKeys struct {
	routingKey []byte
	payloadKey []byte
}

func deriveHopKeys(sharedSecret []byte) (hopKeys, error) {
	routingKey, err := aead.Derive(sharedSecret, nil, []byte("sphinx_routing"), 32)
	if err != nil {
		return hopKeys{}, fmt.Errorf("deriving routing key: %w", err)
	}
	payloadKey, err := aead.Derive(sharedSecret, nil, []byte("sphinx_payload"), 32)
	if err != nil {
		return hopKeys{}, fmt.Errorf("deriving payload key: %w", err)
	}
	return hopKeys{routingKey: routingKey, payloadKey: payloadKey}, nil
}

func deriveBlindSeed(sharedSecret []byte) ([]byte, error) {
	return aead.Derive(sharedSecret, nil, []byte("sphinx_blind"), 32)
}

// streamXOR applies the AES-CTR keystream for key over data in place,
// using an all-zero IV: each hop's key is freshly derived and used
// exactly once, so keystream reuse across distinct keys is not a
// concern the way it would be for a single fixed key.
func streamXOR(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	var iv [aes.BlockSize]byte
	stream := cipher.NewCTR(block, iv[:])
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// truncatedMAC authenticates only the own-slot (first SlotSize bytes) of
// an encrypted routing info buffer, not the full RoutingInfoSize span.
// On a relay, Unwrap drops its own slot, shifts the next 14 slots
// forward, and appends a freshly random pad slot plus the next hop's
// mac, so the first RoutingInfoSize-SlotSize-MACSize bytes Build wrote
// for the next hop reach it unchanged; only its last slot and its
// mac-carry field are rewritten. The own slot lies inside that
// unchanged span; the rest of the span is not covered by this MAC. See
// DESIGN.md.
func truncatedMAC(sharedSecret, routingInfo []byte) [MACSize]byte {
	covered := routingInfo[:SlotSize]
	h := sha256.Sum256(append(append([]byte(nil), sharedSecret...), covered...))
	var mac [MACSize]byte
	copy(mac[:], h[:MACSize])
	return mac
}

func macEqual(a, b [MACSize]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
