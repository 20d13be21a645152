package ring

import (
	"fmt"
	"math/big"
	"net"

	"github.com/zde37/torus/pkg/hashid"
)

// Peer identifies another node on the ring by its identifier and address.
type Peer struct {
	ID   *big.Int
	Host string
	Port int
}

// NewPeer builds a Peer, computing its ID from host:port.
func NewPeer(host string, port int) *Peer {
	return &Peer{ID: hashid.HashAddress(host, port), Host: host, Port: port}
}

// NewPeerWithID builds a Peer from an already-known ID, copying it so the
// caller's big.Int can't be mutated out from under the ring.
func NewPeerWithID(id *big.Int, host string, port int) *Peer {
	return &Peer{ID: new(big.Int).Set(id), Host: host, Port: port}
}

// PeerFromAddress parses a "host:port" dial string into a Peer, computing
// its ID the same way NewPeer does. Returns (nil, nil) for an empty string,
// matching the wire encoding of "no predecessor yet".
func PeerFromAddress(addr string) (*Peer, error) {
	if addr == "" {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ring: invalid address %q: %w", addr, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, fmt.Errorf("ring: invalid port in %q: %w", addr, err)
	}
	return NewPeer(host, port), nil
}

// Address returns the "host:port" dial string for this peer.
func (p *Peer) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

func (p *Peer) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", p.Address(), p.ID.Text(16))
}

// Equals compares peers by identifier and address.
func (p *Peer) Equals(other *Peer) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID.Cmp(other.ID) == 0 && p.Host == other.Host && p.Port == other.Port
}

// Copy returns a defensive copy of p.
func (p *Peer) Copy() *Peer {
	if p == nil {
		return nil
	}
	return &Peer{ID: new(big.Int).Set(p.ID), Host: p.Host, Port: p.Port}
}

// FingerEntry is one row of a node's finger table.
type FingerEntry struct {
	Start *big.Int
	Node  *Peer
}

func (f *FingerEntry) Copy() *FingerEntry {
	if f == nil {
		return nil
	}
	return &FingerEntry{Start: new(big.Int).Set(f.Start), Node: f.Node.Copy()}
}
