package sphinx

import (
	"fmt"

	"github.com/ElMoorish/comlock/pkg/exchange"
)

// Build constructs a Sphinx packet for route (hops n0..n_{k-1}, 3<=k<=5),
// per spec.md section 4.F. hopDelaysMs carries one forwarding delay per
// relay hop (length k-1); the final hop in route is always the exit and
// receives a Deliver slot addressed to mailboxID.
func Build(route []*Node, mailboxID [32]byte, payload []byte, hopDelaysMs []uint32) (*Packet, error) {
	k := len(route)
	if k < MinHops || k > MaxHops {
		return nil, ErrInvalidRoute
	}
	if len(hopDelaysMs) != k-1 {
		return nil, fmt.Errorf("sphinx: need %d hop delays, got %d", k-1, len(hopDelaysMs))
	}

	// Step 1: sample ephemeral keypairs and per-hop shared secrets.
	// e_sec_0 is freshly random; e_sec_{i+1} is deterministically
	// derived from s_i so a relay can independently reproduce it
	// without an explicit per-hop public key in the constant-size
	// header (see DESIGN.md for why this replaces literal elliptic
	// curve scalar blinding).
	ephemerals := make([]*exchange.ECDH, k)
	sharedSecrets := make([][]byte, k)

	e0, err := exchange.NewECDH()
	if err != nil {
		return nil, fmt.Errorf("generating hop 0 ephemeral keypair: %w", err)
	}
	ephemerals[0] = e0

	for i := 0; i < k; i++ {
		s, err := ephemerals[i].ExchangeRaw(route[i].PublicKey)
		if err != nil {
			return nil, fmt.Errorf("computing shared secret for hop %d: %w", i, err)
		}
		sharedSecrets[i] = s

		if i+1 < k {
			seed, err := deriveBlindSeed(s)
			if err != nil {
				return nil, fmt.Errorf("deriving blind seed for hop %d: %w", i, err)
			}
			next, err := exchange.NewECDHFromSeed(seed)
			if err != nil {
				return nil, fmt.Errorf("deriving hop %d ephemeral keypair: %w", i+1, err)
			}
			ephemerals[i+1] = next
		}
	}

	// Build from the exit hop backward to the gateway.
	paddedPayload, err := padPayload(payload)
	if err != nil {
		return nil, err
	}

	exitKeys, err := deriveHopKeys(sharedSecrets[k-1])
	if err != nil {
		return nil, err
	}
	deliverSlot := encodeDeliverSlot(mailboxID)
	routingPlain := make([]byte, 0, RoutingInfoSize)
	routingPlain = append(routingPlain, deliverSlot[:]...)
	for i := 1; i < slotsPerHeader; i++ {
		pad := randomSlot()
		routingPlain = append(routingPlain, pad[:]...)
	}
	routingPlain = append(routingPlain, randomBytes(MACSize)...) // unused trailing mac: exit never forwards

	encRouting, err := streamXOR(exitKeys.routingKey, routingPlain)
	if err != nil {
		return nil, err
	}
	encPayload, err := streamXOR(exitKeys.payloadKey, paddedPayload[:])
	if err != nil {
		return nil, err
	}
	mac := truncatedMAC(sharedSecrets[k-1], encRouting)

	for i := k - 2; i >= 0; i-- {
		keys, err := deriveHopKeys(sharedSecrets[i])
		if err != nil {
			return nil, err
		}

		relaySlot, err := encodeRelaySlot(route[i+1].Address, hopDelaysMs[i])
		if err != nil {
			return nil, err
		}

		newRoutingPlain := make([]byte, 0, RoutingInfoSize)
		newRoutingPlain = append(newRoutingPlain, relaySlot[:]...)
		newRoutingPlain = append(newRoutingPlain, encRouting[:RoutingInfoSize-SlotSize-MACSize]...) // keep 14 of the previous 15 slots
		newRoutingPlain = append(newRoutingPlain, mac[:]...)

		newEncRouting, err := streamXOR(keys.routingKey, newRoutingPlain)
		if err != nil {
			return nil, err
		}
		newEncPayload, err := streamXOR(keys.payloadKey, encPayload)
		if err != nil {
			return nil, err
		}
		newMAC := truncatedMAC(sharedSecrets[i], newEncRouting)

		encRouting, encPayload, mac = newEncRouting, newEncPayload, newMAC
	}

	p := &Packet{MAC: mac}
	copy(p.EphemeralPub[:], ephemerals[0].PublicKeyRaw())
	copy(p.RoutingInfo[:], encRouting)
	copy(p.Payload[:], encPayload)
	return p, nil
}
