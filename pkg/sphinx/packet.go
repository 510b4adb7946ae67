// Package sphinx implements the fixed-size onion packet format spec.md
// section 4.F describes: a 1 KiB layered header plus a 31 KiB payload,
// always exactly 32 KiB on the wire regardless of route length or
// application payload size. It uses pkg/exchange's ECDH for the
// classical DH leg and internal/aead's HKDF helper for per-hop key
// derivation.
package sphinx

import (
	"encoding/binary"
	"fmt"

	"github.com/ElMoorish/comlock/internal/classify"
)

const (
	EphemeralPubSize = 32
	MACSize          = 16
	RoutingInfoSize  = 976
	PayloadSize      = 31 * 1024
	HeaderSize       = EphemeralPubSize + MACSize + RoutingInfoSize
	PacketSize       = HeaderSize + PayloadSize

	SlotSize       = 64
	slotsPerHeader = RoutingInfoSize / SlotSize // 15 slots of 64B = 960B, + 16B trailing MAC = 976B

	MinHops = 3
	MaxHops = 5
)

const (
	cmdRelay   byte = 0x01
	cmdDeliver byte = 0x02
)

// These are all recoverable per spec.md section 7: transport-side framing
// and routing faults on a single packet, never a reason to tear down the
// session or client they arrived on.
var (
	ErrInvalidRoute    = classify.New("sphinx: route length must be between 3 and 5 hops", true)
	ErrPayloadTooLarge = classify.New("sphinx: payload exceeds usable capacity", true)
	ErrShortPacket     = classify.New("sphinx: buffer shorter than a full packet", true)
	ErrMACMismatch     = classify.New("sphinx: mac verification failed", true)
	ErrUnknownCommand  = classify.New("sphinx: unrecognized routing slot command", true)
)

// Packet is the on-wire representation: ephemeral_pub(32) || mac(16) ||
// routing_info(976, padded) || payload(31744, padded). Every Packet is
// byte-identical in length to every other, per spec.md section 4.F.
type Packet struct {
	EphemeralPub [EphemeralPubSize]byte
	MAC          [MACSize]byte
	RoutingInfo  [RoutingInfoSize]byte
	Payload      [PayloadSize]byte
}

// Encode serializes the packet to exactly PacketSize bytes.
func (p *Packet) Encode() []byte {
	out := make([]byte, 0, PacketSize)
	out = append(out, p.EphemeralPub[:]...)
	out = append(out, p.MAC[:]...)
	out = append(out, p.RoutingInfo[:]...)
	out = append(out, p.Payload[:]...)
	return out
}

// Decode parses a packet previously produced by Encode.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) != PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortPacket, len(buf), PacketSize)
	}
	p := &Packet{}
	off := 0
	copy(p.EphemeralPub[:], buf[off:off+EphemeralPubSize])
	off += EphemeralPubSize
	copy(p.MAC[:], buf[off:off+MACSize])
	off += MACSize
	copy(p.RoutingInfo[:], buf[off:off+RoutingInfoSize])
	off += RoutingInfoSize
	copy(p.Payload[:], buf[off:off+PayloadSize])
	return p, nil
}

// payloadLengthPrefixSize is the u32 LE length prefix embedded ahead of
// the application payload so the exit hop can strip fixed-size padding.
const payloadLengthPrefixSize = 4

func padPayload(data []byte) ([PayloadSize]byte, error) {
	var out [PayloadSize]byte
	if len(data) > PayloadSize-payloadLengthPrefixSize {
		return out, ErrPayloadTooLarge
	}
	binary.LittleEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:], data)
	return out, nil
}

func unpadPayload(buf []byte) ([]byte, error) {
	if len(buf) < payloadLengthPrefixSize {
		return nil, fmt.Errorf("sphinx: payload too short to contain length prefix")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	if int(n) > len(buf)-payloadLengthPrefixSize {
		return nil, fmt.Errorf("sphinx: declared payload length exceeds buffer")
	}
	return buf[4 : 4+n], nil
}
