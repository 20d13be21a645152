// Package replication implements key replication to a primary's R-1
// successors, in either synchronous (wait for all writes) or asynchronous
// (fire-and-forget with a retrying background worker) modes.
package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zde37/torus/pkg/logging"
)

// Op identifies a replication operation.
type Op int

const (
	OpSet Op = iota
	OpDelete
)

// ErrShortfall is returned by synchronous replication when at least one
// targeted replica could not be written.
var ErrShortfall = errors.New("replication: could not write to all replicas")

// DialFunc performs one replication RPC against addr.
type DialFunc func(ctx context.Context, addr string, op Op, key, value []byte) error

// ReadFunc performs one read RPC against addr, used for the read fallback
// when a key's primary is unreachable.
type ReadFunc func(ctx context.Context, addr string, key []byte) ([]byte, error)

// Peer is the minimal peer shape replication needs: an address to dial.
type Peer interface {
	Address() string
}

// Config tunes the replication engine.
type Config struct {
	ReplicationFactor int
	Timeout           time.Duration
	MaxRetries        int
	Async             bool
}

type task struct {
	op      Op
	addr    string
	key     []byte
	value   []byte
	retries int
}

// Engine fans out writes to replicas synchronously or asynchronously.
type Engine struct {
	cfg    Config
	dial   DialFunc
	read   ReadFunc
	logger *logging.Logger

	queue chan task
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewEngine builds a replication engine. dial performs SetReplica/
// DeleteReplica RPCs; the Get RPC used by ReadFromReplicas is wired
// separately through SetReadFunc.
func NewEngine(cfg Config, dial DialFunc, logger *logging.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		dial:   dial,
		logger: logger.WithFields(logging.Fields{"component": "replication"}),
		queue:  make(chan task, 1024),
		done:   make(chan struct{}),
	}
	if cfg.Async {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// SetReadFunc wires the read RPC used by ReadFromReplicas. Separate from
// the constructor because the ring node's remote client isn't assembled
// until after the replication engine exists.
func (e *Engine) SetReadFunc(read ReadFunc) { e.read = read }

// ReplicatePut pushes key/value to the first min(R-1, len(replicas)) of the
// given replicas.
func (e *Engine) ReplicatePut(ctx context.Context, key, value []byte, replicas []Peer) error {
	return e.replicate(ctx, OpSet, key, value, replicas)
}

// ReplicateDelete propagates a delete to the first min(R-1, len(replicas))
// of the given replicas.
func (e *Engine) ReplicateDelete(ctx context.Context, key []byte, replicas []Peer) error {
	return e.replicate(ctx, OpDelete, key, nil, replicas)
}

func (e *Engine) replicate(ctx context.Context, op Op, key, value []byte, replicas []Peer) error {
	if r := e.cfg.ReplicationFactor - 1; r >= 0 && len(replicas) > r {
		replicas = replicas[:r]
	}
	if len(replicas) == 0 {
		return nil
	}

	if e.cfg.Async {
		for _, r := range replicas {
			select {
			case e.queue <- task{op: op, addr: r.Address(), key: key, value: value}:
			default:
				e.logger.Warn().Str("addr", r.Address()).Msg("replication queue full, dropping task")
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(replicas))
	for i, r := range replicas {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			errs[i] = e.dial(ctx, addr, op, key, value)
		}(i, r.Address())
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrShortfall, err)
		}
	}
	return nil
}

// ReadFromReplicas tries each replica in order until one answers, used as
// a fallback when a key's primary owner is unreachable.
func (e *Engine) ReadFromReplicas(ctx context.Context, key []byte, replicas []Peer) ([]byte, error) {
	if e.read == nil {
		return nil, errors.New("replication: no read function configured")
	}
	var lastErr error
	for _, r := range replicas {
		v, err := e.read(ctx, r.Address(), key)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("replication: no replicas available")
	}
	return nil, lastErr
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case t := <-e.queue:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
			err := e.dial(ctx, t.addr, t.op, t.key, t.value)
			cancel()

			if err != nil && t.retries < e.cfg.MaxRetries {
				t.retries++
				select {
				case e.queue <- t:
				default:
					e.logger.Warn().Str("addr", t.addr).Msg("replication retry queue full, dropping task")
				}
			} else if err != nil {
				e.logger.Warn().Err(err).Str("addr", t.addr).Int("retries", t.retries).Msg("replication task abandoned after max retries")
			}
		case <-e.done:
			return
		}
	}
}

// Stop terminates the async worker, if running.
func (e *Engine) Stop() {
	if e.cfg.Async {
		close(e.done)
		e.wg.Wait()
	}
}
