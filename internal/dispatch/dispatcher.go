// Package dispatch implements the request dispatcher: a TCP accept loop and
// worker pool that decode wire.Request frames and route them to a ring.Node,
// mirroring the teacher's one-method-per-RPC gRPC server layout over the
// raw wire codec instead of protobuf.
package dispatch

import (
	"context"
	"errors"
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

// Dispatcher accepts client and peer connections and routes each request
// frame to the ring node.
type Dispatcher struct {
	node   *ring.Node
	logger *logging.Logger

	workers     int
	ioTimeout   time.Duration
	leaveTimeout time.Duration

	listener net.Listener
	connCh   chan net.Conn
	wg       sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a dispatcher for node. workers sizes the fixed goroutine pool
// draining accepted connections; ioTimeout bounds every read/write on a
// connection.
func New(node *ring.Node, logger *logging.Logger, workers int, ioTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		node:         node,
		logger:       logger.WithFields(logging.Fields{"component": "dispatch"}),
		workers:      workers,
		ioTimeout:    ioTimeout,
		leaveTimeout: 10 * time.Second,
		connCh:       make(chan net.Conn, workers*4),
		done:         make(chan struct{}),
	}
}

// Start listens on addr and begins serving. It returns once the listener is
// bound; accepting and dispatch happen in background goroutines.
func (d *Dispatcher) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	d.listener = ln

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.wg.Add(1)
	go d.acceptLoop()

	d.logger.Info().Str("address", addr).Int("workers", d.workers).Msg("dispatcher listening")
	return nil
}

// Addr returns the bound listen address, useful when Start was given a
// ":0" wildcard port.
func (d *Dispatcher) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

func (d *Dispatcher) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.done:
				return
			default:
				d.logger.Warn().Err(err).Msg("accept failed")
				return
			}
		}
		select {
		case d.connCh <- conn:
		case <-d.done:
			conn.Close()
			return
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case conn := <-d.connCh:
			d.handleConn(conn)
		case <-d.done:
			return
		}
	}
}

// handleConn serves exactly one request/response exchange per connection,
// matching the peer client's one-frame-per-dial contract.
func (d *Dispatcher) handleConn(conn net.Conn) {
	defer conn.Close()
	dc := wire.NewDeadlineConn(conn, 4096, d.ioTimeout)

	req, err := wire.DecodeRequest(dc)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.ioTimeout)
	resp, shutdown := d.handleRequest(ctx, req)
	cancel()

	if err := wire.EncodeResponse(dc, resp); err != nil {
		return
	}
	dc.Flush()

	if shutdown {
		go d.shutdownRing()
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, req *wire.Request) (*wire.Response, bool) {
	switch req.Op {
	case wire.OpGet:
		return d.handleGet(ctx, req), false
	case wire.OpPut:
		return d.handlePut(ctx, req), false
	case wire.OpDel:
		return d.handleDelete(ctx, req), false

	case wire.OpFindSuccessor:
		return d.handleFindSuccessor(ctx, req), false
	case wire.OpGetPredecessor:
		return d.handleGetPredecessor(), false
	case wire.OpGetSuccessor:
		return d.handleGetSuccessorList(), false
	case wire.OpNotify:
		return d.handleNotify(req), false
	case wire.OpPing:
		return &wire.Response{Status: wire.StatusOK}, false
	case wire.OpNodeInfo:
		return &wire.Response{Status: wire.StatusOK, Value: []byte(d.node.Address())}, false
	case wire.OpTransferKey:
		return d.handleTransferKeys(req), false

	case wire.OpReplicateSet:
		d.node.ReceiveReplica(req.Key, req.Value)
		return &wire.Response{Status: wire.StatusOK}, false
	case wire.OpReplicateDel:
		d.node.RemoveReplica(req.Key)
		return &wire.Response{Status: wire.StatusOK}, false

	case wire.OpAdminShutdown:
		return &wire.Response{Status: wire.StatusOK}, true

	default:
		return &wire.Response{Status: wire.StatusError, Value: []byte("dispatch: unknown opcode")}, false
	}
}

func (d *Dispatcher) handleGet(ctx context.Context, req *wire.Request) *wire.Response {
	v, err := d.node.Get(ctx, req.Key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return &wire.Response{Status: wire.StatusKeyNotFound}
	}
	if err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	return &wire.Response{Status: wire.StatusOK, Value: v}
}

func (d *Dispatcher) handlePut(ctx context.Context, req *wire.Request) *wire.Response {
	if err := d.node.Set(ctx, req.Key, req.Value); err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	return &wire.Response{Status: wire.StatusOK}
}

func (d *Dispatcher) handleDelete(ctx context.Context, req *wire.Request) *wire.Response {
	if err := d.node.Delete(ctx, req.Key); err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	return &wire.Response{Status: wire.StatusOK}
}

func (d *Dispatcher) handleFindSuccessor(ctx context.Context, req *wire.Request) *wire.Response {
	id := new(big.Int).SetBytes(req.Key)
	succ, err := d.node.FindSuccessor(ctx, id)
	if err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	return &wire.Response{Status: wire.StatusOK, Value: []byte(succ.Address())}
}

func (d *Dispatcher) handleGetPredecessor() *wire.Response {
	pred := d.node.Predecessor()
	if pred == nil {
		return &wire.Response{Status: wire.StatusOK}
	}
	return &wire.Response{Status: wire.StatusOK, Value: []byte(pred.Address())}
}

func (d *Dispatcher) handleGetSuccessorList() *wire.Response {
	list := d.node.SuccessorList()
	addrs := make([]string, len(list))
	for i, p := range list {
		addrs[i] = p.Address()
	}
	return &wire.Response{Status: wire.StatusOK, Value: wire.EncodeAddrList(addrs)}
}

func (d *Dispatcher) handleNotify(req *wire.Request) *wire.Response {
	candidate, err := ring.PeerFromAddress(string(req.Value))
	if err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	d.node.Notify(candidate)
	return &wire.Response{Status: wire.StatusOK}
}

func (d *Dispatcher) handleTransferKeys(req *wire.Request) *wire.Response {
	items, err := wire.DecodeBulk(req.Value)
	if err != nil {
		return &wire.Response{Status: wire.StatusError, Value: []byte(err.Error())}
	}
	d.node.ReceiveTransferredKeys(items)
	return &wire.Response{Status: wire.StatusOK}
}

// shutdownRing performs the teacher's cleanup ordering (node before
// listener) after an ADMIN_SHUTDOWN response has already been flushed to
// the caller.
func (d *Dispatcher) shutdownRing() {
	ctx, cancel := context.WithTimeout(context.Background(), d.leaveTimeout)
	defer cancel()
	if err := d.node.Leave(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("admin shutdown: leave failed")
	}
	d.Stop()
}

// Done returns a channel that's closed once the dispatcher stops, whether
// from an explicit Stop() or a handled ADMIN_SHUTDOWN request. Lets the
// process's main loop notice an admin-triggered shutdown it didn't itself
// initiate.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Stop closes the listener and waits for in-flight requests to finish.
func (d *Dispatcher) Stop() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		if d.listener != nil {
			err = d.listener.Close()
		}
		d.wg.Wait()
	})
	return err
}
