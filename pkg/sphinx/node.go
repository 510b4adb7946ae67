package sphinx

// Layer identifies a mix node's position in the stratified topology,
// per spec.md section 3's Mix node data model.
type Layer int

const (
	LayerGateway Layer = 1
	LayerMix     Layer = 2
	LayerExit    Layer = 3
)

// Node describes a single mix node: its identity, its classical public
// key for the per-hop DH, its reachable network address, and its layer.
type Node struct {
	ID        [32]byte
	PublicKey []byte // raw 32-byte X25519 public key
	Address   string
	Layer     Layer
}
