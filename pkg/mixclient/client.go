// Package mixclient implements spec.md section 4.G's Mix Client: route
// selection over a cached stratified topology, mailbox registration,
// and Sphinx packet construction for outbound messages, grounded on
// the layering pkg/sphinx provides.
package mixclient

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ElMoorish/comlock/pkg/exchange"
	"github.com/ElMoorish/comlock/pkg/sphinx"
)

const defaultRelayDelayMs = 50

// Mailbox is a registered delivery endpoint: a random 32-byte id paired
// with the address of the exit node ("provider") that owns it.
type Mailbox struct {
	ID       [32]byte
	Provider string
}

func (m Mailbox) key() string { return hex.EncodeToString(m.ID[:]) }

// Client holds the state spec.md section 4.G lists: our long-term
// classical secret (stored as given; no Client method reads it, and
// SURB replies are opened with the handle's ReplyKey instead),
// the cached topology, our registered mailboxes, and the channels
// standing in for an abstract outbound sink / inbound source.
type Client struct {
	mu         sync.Mutex
	ourSecret  *exchange.ECDH
	topology   *Topology
	mailboxes  map[string]Mailbox
	ourMailbox *Mailbox

	Outbound chan []byte
	Inbound  chan []byte

	pendingSurbs map[string]*SurbHandle
}

// New builds a Client backed by a bounded outbound sink of the given
// capacity, per spec.md section 5's "bounded buffered channel between
// producers ... and the gateway writer."
func New(ourSecret *exchange.ECDH, outboundCapacity, inboundCapacity int) *Client {
	return &Client{
		ourSecret:    ourSecret,
		topology:     NewTopology(),
		mailboxes:    make(map[string]Mailbox),
		Outbound:     make(chan []byte, outboundCapacity),
		Inbound:      make(chan []byte, inboundCapacity),
		pendingSurbs: make(map[string]*SurbHandle),
	}
}

// RegisterMailbox draws a random 32-byte mailbox id, records the
// (id, provider) pair, and returns the mailbox. The first mailbox
// registered becomes the client's own default return address for
// SendWithSURB.
func (c *Client) RegisterMailbox(provider string) (Mailbox, error) {
	var id [32]byte
	if _, err := rand.Read(id[:]); err != nil {
		return Mailbox{}, fmt.Errorf("generating mailbox id: %w", err)
	}
	m := Mailbox{ID: id, Provider: provider}

	c.mu.Lock()
	c.mailboxes[m.key()] = m
	if c.ourMailbox == nil {
		c.ourMailbox = &m
	}
	c.mu.Unlock()
	return m, nil
}

// OwnMailbox reports the client's default return mailbox, if any.
func (c *Client) OwnMailbox() (Mailbox, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ourMailbox == nil {
		return Mailbox{}, false
	}
	return *c.ourMailbox, true
}

// UpdateTopology replaces the per-layer node index.
func (c *Client) UpdateTopology(nodes []*sphinx.Node) {
	c.topology.Update(nodes)
}

// buildRoute selects one node from layer 1 and layer 2, and resolves
// exit to the layer-3 node reachable at exitAddress, per spec.md
// section 4.G: "selects one node from each of layers 1, 2, and sets
// exit = recipient_mailbox.provider".
func (c *Client) buildRoute(exitAddress string) ([]*sphinx.Node, []uint32, error) {
	gateway, err := c.topology.randomFromLayer(sphinx.LayerGateway)
	if err != nil {
		return nil, nil, err
	}
	mix, err := c.topology.randomFromLayer(sphinx.LayerMix)
	if err != nil {
		return nil, nil, err
	}
	exit, err := c.topology.findExit(exitAddress)
	if err != nil {
		return nil, nil, err
	}
	return []*sphinx.Node{gateway, mix, exit}, []uint32{defaultRelayDelayMs, defaultRelayDelayMs}, nil
}

// LoopRoute selects a gateway, any layer-2 mix, and that same gateway
// again, per spec.md section 4.H's cover-traffic loop packet route
// "gateway -> any layer-2 mix -> gateway".
func (c *Client) LoopRoute() ([]*sphinx.Node, []uint32, error) {
	gateway, err := c.topology.randomFromLayer(sphinx.LayerGateway)
	if err != nil {
		return nil, nil, err
	}
	mix, err := c.topology.randomFromLayer(sphinx.LayerMix)
	if err != nil {
		return nil, nil, err
	}
	return []*sphinx.Node{gateway, mix, gateway}, []uint32{defaultRelayDelayMs, defaultRelayDelayMs}, nil
}

// SendMessage builds a 3-hop Sphinx packet to recipient and queues it
// to the outbound sink.
func (c *Client) SendMessage(payload []byte, recipient Mailbox) error {
	route, delays, err := c.buildRoute(recipient.Provider)
	if err != nil {
		return err
	}
	pkt, err := sphinx.Build(route, recipient.ID, payload, delays)
	if err != nil {
		return fmt.Errorf("building sphinx packet: %w", err)
	}
	c.Outbound <- pkt.Encode()
	return nil
}

// PollMailbox performs a non-blocking dequeue from the inbound source.
func (c *Client) PollMailbox() ([]byte, bool) {
	select {
	case msg := <-c.Inbound:
		return msg, true
	default:
		return nil, false
	}
}
