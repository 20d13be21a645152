// Package peer implements the ring's outbound RPC client: short-lived TCP
// connections framed with the internal/wire codec, with a small pooled
// exception for the failure detector's frequent PING probes.
package peer

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/zde37/torus/internal/ring"
	"github.com/zde37/torus/internal/wire"
	"github.com/zde37/torus/pkg/logging"
	"github.com/zde37/torus/pkg/store"
)

// Client dials other ring nodes' dispatchers over TCP.
type Client struct {
	logger         *logging.Logger
	connectTimeout time.Duration
	opTimeout      time.Duration

	pingMu    sync.RWMutex
	pingConns map[string]net.Conn
}

// NewClient builds a peer RPC client.
func NewClient(logger *logging.Logger, connectTimeout, opTimeout time.Duration) *Client {
	return &Client{
		logger:         logger.WithFields(logging.Fields{"component": "peer-client"}),
		connectTimeout: connectTimeout,
		opTimeout:      opTimeout,
		pingConns:      make(map[string]net.Conn),
	}
}

func (c *Client) call(ctx context.Context, addr string, req *wire.Request) (*wire.Response, error) {
	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("peer: dial %s: %w", addr, err)
	}
	defer conn.Close()

	dc := wire.NewDeadlineConn(conn, 4096, c.opTimeout)
	if err := wire.EncodeRequest(dc, req); err != nil {
		return nil, fmt.Errorf("peer: encode request to %s: %w", addr, err)
	}
	if err := dc.Flush(); err != nil {
		return nil, fmt.Errorf("peer: flush request to %s: %w", addr, err)
	}

	resp, err := wire.DecodeResponse(dc)
	if err != nil {
		return nil, fmt.Errorf("peer: decode response from %s: %w", addr, err)
	}
	if resp.Status == wire.StatusError {
		return nil, fmt.Errorf("peer: %s returned error: %s", addr, string(resp.Value))
	}
	return resp, nil
}

func peerFromAddr(addr string) (*ring.Peer, error) {
	return ring.PeerFromAddress(addr)
}

// FindSuccessor asks addr to resolve id.
func (c *Client) FindSuccessor(ctx context.Context, addr string, id *big.Int) (*ring.Peer, error) {
	resp, err := c.call(ctx, addr, &wire.Request{Op: wire.OpFindSuccessor, Key: id.Bytes()})
	if err != nil {
		return nil, err
	}
	return peerFromAddr(string(resp.Value))
}

// GetPredecessor asks addr for its current predecessor, which may be nil.
func (c *Client) GetPredecessor(ctx context.Context, addr string) (*ring.Peer, error) {
	resp, err := c.call(ctx, addr, &wire.Request{Op: wire.OpGetPredecessor})
	if err != nil {
		return nil, err
	}
	return peerFromAddr(string(resp.Value))
}

// Notify tells addr that self believes it may be its predecessor.
func (c *Client) Notify(ctx context.Context, addr string, self *ring.Peer) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpNotify, Value: []byte(self.Address())})
	return err
}

// GetSuccessorList fetches addr's successor list.
func (c *Client) GetSuccessorList(ctx context.Context, addr string) ([]*ring.Peer, error) {
	resp, err := c.call(ctx, addr, &wire.Request{Op: wire.OpGetSuccessor})
	if err != nil {
		return nil, err
	}
	addrs := wire.DecodeAddrList(resp.Value)
	out := make([]*ring.Peer, 0, len(addrs))
	for _, a := range addrs {
		p, err := peerFromAddr(a)
		if err != nil || p == nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Ping probes addr's liveness over a small pooled connection, reusing it
// across calls since the failure detector calls this far more often than
// any other RPC.
func (c *Client) Ping(ctx context.Context, addr string) error {
	conn, fresh, err := c.getPingConn(ctx, addr)
	if err != nil {
		return err
	}

	dc := wire.NewDeadlineConn(conn, 512, c.opTimeout)
	if err := wire.EncodeRequest(dc, &wire.Request{Op: wire.OpPing}); err == nil {
		if err := dc.Flush(); err == nil {
			if _, err := wire.DecodeResponse(dc); err == nil {
				return nil
			}
		}
	}

	// the pooled connection is now suspect; drop it and, unless we just
	// dialed it fresh, retry once with a brand new connection.
	c.dropPingConn(addr)
	if fresh {
		return fmt.Errorf("peer: ping %s failed", addr)
	}
	return c.Ping(ctx, addr)
}

func (c *Client) getPingConn(ctx context.Context, addr string) (net.Conn, bool, error) {
	c.pingMu.RLock()
	conn, ok := c.pingConns[addr]
	c.pingMu.RUnlock()
	if ok {
		return conn, false, nil
	}

	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	if conn, ok := c.pingConns[addr]; ok {
		return conn, false, nil
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, true, fmt.Errorf("peer: dial %s: %w", addr, err)
	}
	c.pingConns[addr] = conn
	return conn, true, nil
}

func (c *Client) dropPingConn(addr string) {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	if conn, ok := c.pingConns[addr]; ok {
		conn.Close()
		delete(c.pingConns, addr)
	}
}

// NodeInfo confirms addr's own reachable address.
func (c *Client) NodeInfo(ctx context.Context, addr string) (*ring.Peer, error) {
	resp, err := c.call(ctx, addr, &wire.Request{Op: wire.OpNodeInfo})
	if err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return peerFromAddr(addr)
	}
	return peerFromAddr(string(resp.Value))
}

// TransferKeys pushes a batch of keys to addr.
func (c *Client) TransferKeys(ctx context.Context, addr string, keys map[string][]byte) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpTransferKey, Value: wire.EncodeBulk(keys)})
	return err
}

// SetReplica writes key/value into addr's replica set.
func (c *Client) SetReplica(ctx context.Context, addr string, key, value []byte) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpReplicateSet, Key: key, Value: value})
	return err
}

// DeleteReplica deletes key from addr's replica set.
func (c *Client) DeleteReplica(ctx context.Context, addr string, key []byte) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpReplicateDel, Key: key})
	return err
}

// Get fetches key's value from addr.
func (c *Client) Get(ctx context.Context, addr string, key []byte) ([]byte, error) {
	resp, err := c.call(ctx, addr, &wire.Request{Op: wire.OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	if resp.Status == wire.StatusKeyNotFound {
		return nil, store.ErrKeyNotFound
	}
	return resp.Value, nil
}

// Set stores key/value on addr.
func (c *Client) Set(ctx context.Context, addr string, key, value []byte) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpPut, Key: key, Value: value})
	return err
}

// Delete removes key from addr.
func (c *Client) Delete(ctx context.Context, addr string, key []byte) error {
	_, err := c.call(ctx, addr, &wire.Request{Op: wire.OpDel, Key: key})
	return err
}

// Close releases all pooled ping connections.
func (c *Client) Close() error {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	for addr, conn := range c.pingConns {
		conn.Close()
		delete(c.pingConns, addr)
	}
	return nil
}
