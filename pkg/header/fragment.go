package header

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxPacketHeaderSize is the single-packet ceiling past which a serialized
// header must be fragmented, per spec.md section 4.C.
const MaxPacketHeaderSize = 2048

const (
	fragmentIDSize    = 8
	fragmentPrefixLen = fragmentIDSize + 1 + 1 + 2 // id || index || total || length
)

var (
	ErrTooManyFragments = errors.New("header: fragment count exceeds 255")
	ErrDuplicateIndex   = errors.New("header: duplicate fragment index")
	ErrIncompleteGroup  = errors.New("header: fragment group is missing indices")
	ErrMismatchedGroup  = errors.New("header: fragment id or total mismatch within group")
	ErrFragmentTooShort = errors.New("header: fragment buffer shorter than its declared length")
)

// Fragment is a single piece of a header split across multiple packets.
type Fragment struct {
	ID    [fragmentIDSize]byte
	Index uint8
	Total uint8
	Data  []byte
}

// Encode serializes a Fragment as id || index || total || length(u16 LE) || data.
func (f *Fragment) Encode() []byte {
	out := make([]byte, 0, fragmentPrefixLen+len(f.Data))
	out = append(out, f.ID[:]...)
	out = append(out, f.Index, f.Total)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Data)))
	out = append(out, f.Data...)
	return out
}

// DecodeFragment parses a single fragment previously produced by Encode.
func DecodeFragment(buf []byte) (*Fragment, error) {
	if len(buf) < fragmentPrefixLen {
		return nil, fmt.Errorf("%w: fragment header", ErrShort)
	}
	f := &Fragment{}
	copy(f.ID[:], buf[:fragmentIDSize])
	off := fragmentIDSize
	f.Index = buf[off]
	f.Total = buf[off+1]
	length := binary.LittleEndian.Uint16(buf[off+2:])
	off += 4
	if len(buf)-off < int(length) {
		return nil, ErrFragmentTooShort
	}
	f.Data = append([]byte(nil), buf[off:off+int(length)]...)
	return f, nil
}

// FragmentBytes splits a serialized header into a group of fragments sharing a
// freshly drawn random fragment id, per spec.md section 4.C. chunkSize
// bounds each fragment's data payload.
func FragmentBytes(data []byte, chunkSize int) ([]*Fragment, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("header: chunk size must be positive")
	}
	total := (len(data) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > 255 {
		return nil, ErrTooManyFragments
	}

	var id [fragmentIDSize]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("drawing fragment id: %w", err)
	}

	fragments := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		fragments = append(fragments, &Fragment{
			ID:    id,
			Index: uint8(i),
			Total: uint8(total),
			Data:  append([]byte(nil), data[start:end]...),
		})
	}
	return fragments, nil
}

// Reassembler accumulates fragments belonging to possibly multiple
// concurrent groups (keyed by fragment id) and reconstructs the original
// header bytes once every index 0..total is present exactly once.
// Callers are responsible for clearing stale groups on timeout, per
// spec.md section 4.C ("the buffer is bounded and callers must clear
// stale groups").
type Reassembler struct {
	groups map[[fragmentIDSize]byte]*group
}

type group struct {
	total uint8
	seen  map[uint8][]byte
}

func NewReassembler() *Reassembler {
	return &Reassembler{groups: make(map[[fragmentIDSize]byte]*group)}
}

// Add ingests a fragment. It returns the reassembled bytes and true once
// every fragment in the group has arrived; otherwise it returns (nil, false).
func (r *Reassembler) Add(f *Fragment) ([]byte, bool, error) {
	g, ok := r.groups[f.ID]
	if !ok {
		g = &group{total: f.Total, seen: make(map[uint8][]byte)}
		r.groups[f.ID] = g
	}
	if g.total != f.Total {
		return nil, false, ErrMismatchedGroup
	}
	if _, dup := g.seen[f.Index]; dup {
		return nil, false, nil // duplicate index: ignored per spec.md section 4.C
	}
	g.seen[f.Index] = f.Data

	if uint8(len(g.seen)) < g.total {
		return nil, false, nil
	}

	out := make([]byte, 0)
	for i := uint8(0); i < g.total; i++ {
		part, ok := g.seen[i]
		if !ok {
			return nil, false, ErrIncompleteGroup
		}
		out = append(out, part...)
	}
	delete(r.groups, f.ID)
	return out, true, nil
}

// Clear drops a pending group, for callers implementing a timeout policy.
func (r *Reassembler) Clear(id [fragmentIDSize]byte) {
	delete(r.groups, id)
}

// Pending reports how many fragment groups are currently buffered.
func (r *Reassembler) Pending() int {
	return len(r.groups)
}
