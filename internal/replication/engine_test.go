package replication

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zde37/torus/pkg/logging"
)

type fakePeer struct{ addr string }

func (f fakePeer) Address() string { return f.addr }

func newTestLogger(t *testing.T) *logging.Logger {
	l, err := logging.New(logging.DefaultConfig())
	require.NoError(t, err)
	return l
}

func TestEngine_ReplicatePut_Sync_AllSucceed(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]bool{}

	dial := func(ctx context.Context, addr string, op Op, key, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls[addr] = true
		return nil
	}

	e := NewEngine(Config{ReplicationFactor: 3, Timeout: time.Second}, dial, newTestLogger(t))
	err := e.ReplicatePut(context.Background(), []byte("k"), []byte("v"),
		[]Peer{fakePeer{"a"}, fakePeer{"b"}})
	require.NoError(t, err)

	assert.True(t, calls["a"])
	assert.True(t, calls["b"])
}

func TestEngine_ReplicatePut_Sync_OneFails(t *testing.T) {
	dial := func(ctx context.Context, addr string, op Op, key, value []byte) error {
		if addr == "bad" {
			return errors.New("boom")
		}
		return nil
	}

	e := NewEngine(Config{ReplicationFactor: 3, Timeout: time.Second}, dial, newTestLogger(t))
	err := e.ReplicatePut(context.Background(), []byte("k"), []byte("v"),
		[]Peer{fakePeer{"good"}, fakePeer{"bad"}})
	assert.ErrorIs(t, err, ErrShortfall)
}

func TestEngine_ReplicatePut_Async_NeverBlocksOnFailure(t *testing.T) {
	var calls atomicInt
	dial := func(ctx context.Context, addr string, op Op, key, value []byte) error {
		calls.inc()
		return errors.New("always fails")
	}

	e := NewEngine(Config{ReplicationFactor: 3, Timeout: 50 * time.Millisecond, MaxRetries: 1, Async: true}, dial, newTestLogger(t))
	defer e.Stop()

	err := e.ReplicatePut(context.Background(), []byte("k"), []byte("v"), []Peer{fakePeer{"x"}})
	require.NoError(t, err) // async never returns the downstream error

	time.Sleep(200 * time.Millisecond)
	assert.GreaterOrEqual(t, calls.get(), 1)
}

func TestEngine_ReadFromReplicas_FirstSuccessWins(t *testing.T) {
	e := NewEngine(Config{ReplicationFactor: 3, Timeout: time.Second}, func(context.Context, string, Op, []byte, []byte) error { return nil }, newTestLogger(t))
	e.SetReadFunc(func(ctx context.Context, addr string, key []byte) ([]byte, error) {
		if addr == "first" {
			return nil, errors.New("nope")
		}
		return []byte("value-from-" + addr), nil
	})

	v, err := e.ReadFromReplicas(context.Background(), []byte("k"), []Peer{fakePeer{"first"}, fakePeer{"second"}})
	require.NoError(t, err)
	assert.Equal(t, "value-from-second", string(v))
}

func TestEngine_ReadFromReplicas_AllFail(t *testing.T) {
	e := NewEngine(Config{ReplicationFactor: 3, Timeout: time.Second}, func(context.Context, string, Op, []byte, []byte) error { return nil }, newTestLogger(t))
	e.SetReadFunc(func(ctx context.Context, addr string, key []byte) ([]byte, error) {
		return nil, errors.New("nope")
	})

	_, err := e.ReadFromReplicas(context.Background(), []byte("k"), []Peer{fakePeer{"a"}})
	assert.Error(t, err)
}

func TestEngine_EmptyReplicaSetIsNoop(t *testing.T) {
	e := NewEngine(Config{ReplicationFactor: 1, Timeout: time.Second}, func(context.Context, string, Op, []byte, []byte) error {
		t.Fatal("dial should not be called with no replicas")
		return nil
	}, newTestLogger(t))

	require.NoError(t, e.ReplicatePut(context.Background(), []byte("k"), []byte("v"), nil))
	require.NoError(t, e.ReplicateDelete(context.Background(), []byte("k"), nil))
}

// atomicInt avoids importing sync/atomic just for a test counter.
type atomicInt struct {
	mu sync.Mutex
	n  int
}

func (a *atomicInt) inc()     { a.mu.Lock(); a.n++; a.mu.Unlock() }
func (a *atomicInt) get() int { a.mu.Lock(); defer a.mu.Unlock(); return a.n }
