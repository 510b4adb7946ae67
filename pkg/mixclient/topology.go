package mixclient

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ElMoorish/comlock/pkg/sphinx"
)

var ErrInvalidRoute = errors.New("mixclient: topology cannot satisfy a valid route")

// Topology is the per-layer node index spec.md section 4.G's
// update_topology replaces wholesale on every call.
type Topology struct {
	mu      sync.Mutex
	byLayer map[sphinx.Layer][]*sphinx.Node
	byAddr  map[string]*sphinx.Node
}

func NewTopology() *Topology {
	return &Topology{
		byLayer: make(map[sphinx.Layer][]*sphinx.Node),
		byAddr:  make(map[string]*sphinx.Node),
	}
}

// Update replaces the topology index wholesale.
func (t *Topology) Update(nodes []*sphinx.Node) {
	byLayer := make(map[sphinx.Layer][]*sphinx.Node)
	byAddr := make(map[string]*sphinx.Node)
	for _, n := range nodes {
		byLayer[n.Layer] = append(byLayer[n.Layer], n)
		byAddr[n.Address] = n
	}
	t.mu.Lock()
	t.byLayer = byLayer
	t.byAddr = byAddr
	t.mu.Unlock()
}

// randomFromLayer picks a uniform-random node from the given layer.
func (t *Topology) randomFromLayer(layer sphinx.Layer) (*sphinx.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	nodes := t.byLayer[layer]
	if len(nodes) == 0 {
		return nil, ErrInvalidRoute
	}
	return nodes[randIndex(len(nodes))], nil
}

// findExit locates the layer-3 node at the given address.
func (t *Topology) findExit(address string) (*sphinx.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.byAddr[address]
	if !ok || n.Layer != sphinx.LayerExit {
		return nil, ErrInvalidRoute
	}
	return n, nil
}

func randIndex(n int) int {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int(binary.LittleEndian.Uint64(b[:]) % uint64(n))
}
