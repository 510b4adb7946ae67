package sphinx

import (
	"fmt"

	"github.com/ElMoorish/comlock/pkg/exchange"
)

// Command distinguishes a peeled packet's own instruction.
type Command int

const (
	CommandRelay Command = iota
	CommandDeliver
)

// UnwrapResult is what a mix node learns after peeling one layer.
type UnwrapResult struct {
	Command Command

	// Valid when Command == CommandRelay.
	NextAddress string
	DelayMs     uint32
	Forward     *Packet

	// Valid when Command == CommandDeliver.
	MailboxID       [32]byte
	ApplicationData []byte
}

// Unwrap peels one Sphinx layer at a mix node holding ourSecret, the
// X25519 private key matching the Node.PublicKey the packet was built
// against, per spec.md section 4.F's "Unwrap".
func Unwrap(p *Packet, ourSecret *exchange.ECDH) (*UnwrapResult, error) {
	sharedSecret, err := ourSecret.ExchangeRaw(p.EphemeralPub[:])
	if err != nil {
		return nil, fmt.Errorf("computing shared secret: %w", err)
	}

	wantMAC := truncatedMAC(sharedSecret, p.RoutingInfo[:])
	if !macEqual(wantMAC, p.MAC) {
		return nil, ErrMACMismatch
	}

	keys, err := deriveHopKeys(sharedSecret)
	if err != nil {
		return nil, err
	}

	routingPlain, err := streamXOR(keys.routingKey, p.RoutingInfo[:])
	if err != nil {
		return nil, err
	}
	payloadPlain, err := streamXOR(keys.payloadKey, p.Payload[:])
	if err != nil {
		return nil, err
	}

	var ownSlot [SlotSize]byte
	copy(ownSlot[:], routingPlain[:SlotSize])
	decoded, err := decodeSlot(ownSlot)
	if err != nil {
		return nil, err
	}

	switch decoded.command {
	case cmdDeliver:
		appData, err := unpadPayload(payloadPlain)
		if err != nil {
			return nil, fmt.Errorf("stripping delivered payload padding: %w", err)
		}
		return &UnwrapResult{
			Command:         CommandDeliver,
			MailboxID:       decoded.mailboxID,
			ApplicationData: appData,
		}, nil

	case cmdRelay:
		tailSlots := routingPlain[SlotSize : RoutingInfoSize-MACSize] // 14 remaining slots, 896B
		nextMAC := routingPlain[RoutingInfoSize-MACSize:]

		blindSeed, err := deriveBlindSeed(sharedSecret)
		if err != nil {
			return nil, fmt.Errorf("deriving next hop ephemeral key: %w", err)
		}
		nextEphemeral, err := exchange.NewECDHFromSeed(blindSeed)
		if err != nil {
			return nil, fmt.Errorf("deriving next hop ephemeral key: %w", err)
		}

		newRoutingInfo := make([]byte, 0, RoutingInfoSize)
		newRoutingInfo = append(newRoutingInfo, tailSlots...)
		pad := randomSlot()
		newRoutingInfo = append(newRoutingInfo, pad[:]...)
		newRoutingInfo = append(newRoutingInfo, nextMAC...)

		forward := &Packet{}
		copy(forward.EphemeralPub[:], nextEphemeral.PublicKeyRaw())
		copy(forward.MAC[:], nextMAC)
		copy(forward.RoutingInfo[:], newRoutingInfo)
		copy(forward.Payload[:], payloadPlain)

		return &UnwrapResult{
			Command:     CommandRelay,
			NextAddress: decoded.address,
			DelayMs:     decoded.delayMs,
			Forward:     forward,
		}, nil

	default:
		return nil, ErrUnknownCommand
	}
}
