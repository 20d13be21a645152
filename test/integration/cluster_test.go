// Package integration exercises multiple ring.Node instances wired together
// over real TCP loopback connections, the way the teacher's own
// integration suite drives multiple ChordNode instances over gRPC.
package integration

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zde37/torus/internal/config"
	"github.com/zde37/torus/internal/dispatch"
	"github.com/zde37/torus/internal/monitor"
	"github.com/zde37/torus/internal/peer"
	"github.com/zde37/torus/internal/ring"
	"github.com/zde37/torus/pkg/logging"
)

// freePort reserves an ephemeral loopback port and releases it immediately,
// so it can be handed to both a ring.Node's config (for its self address)
// and the dispatcher that will bind to it moments later.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// testCluster wires ring.Node + dispatch.Dispatcher + peer.Client instances
// together on dynamically assigned loopback ports, avoiding the fixed port
// numbers the teacher's own integration tests hardcode.
type testCluster struct {
	t          *testing.T
	logger     *logging.Logger
	nodes      []*ring.Node
	dispatch   []*dispatch.Dispatcher
	monitors   []*monitor.Server
	remote     *peer.Client
}

func newTestCluster(t *testing.T) *testCluster {
	t.Helper()
	loggerCfg := logging.DefaultConfig()
	loggerCfg.Level = "error"
	logger, err := logging.New(loggerCfg)
	require.NoError(t, err)

	return &testCluster{
		t:      t,
		logger: logger,
		remote: peer.NewClient(logger, time.Second, 2*time.Second),
	}
}

// addNode starts a new node with fast stabilization intervals suited to
// tests. bootstrap is the address of an existing node to join, or "" to
// create a brand-new ring. replicationFactor of 0 uses the config default.
func (c *testCluster) addNode(bootstrap string, replicationFactor int) *ring.Node {
	c.t.Helper()

	cfg := config.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(c.t)
	cfg.StabilizeInterval = 50 * time.Millisecond
	cfg.FixFingersInterval = 50 * time.Millisecond
	cfg.FailureCheckInterval = 100 * time.Millisecond
	cfg.RPCTimeout = time.Second
	cfg.RPCConnectTimeout = 500 * time.Millisecond
	if replicationFactor > 0 {
		cfg.ReplicationFactor = replicationFactor
	}
	require.NoError(c.t, cfg.Validate())

	node, err := ring.NewNode(cfg, c.logger)
	require.NoError(c.t, err)
	node.SetRemote(c.remote)

	mon := monitor.NewServer(node, c.logger)
	node.SetEventBroadcaster(mon.Broadcaster())

	d := dispatch.New(node, c.logger, cfg.WorkerPoolSize, cfg.RPCTimeout)
	require.NoError(c.t, d.Start(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))

	if bootstrap == "" {
		require.NoError(c.t, node.Create())
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(c.t, node.Join(ctx, bootstrap))
	}

	c.nodes = append(c.nodes, node)
	c.dispatch = append(c.dispatch, d)
	c.monitors = append(c.monitors, mon)
	return node
}

func (c *testCluster) waitForStabilization() {
	time.Sleep(500 * time.Millisecond)
}

func (c *testCluster) shutdown() {
	for _, d := range c.dispatch {
		d.Stop()
	}
	for _, m := range c.monitors {
		m.Stop()
	}
	for _, n := range c.nodes {
		n.Shutdown()
	}
	c.remote.Close()
}
