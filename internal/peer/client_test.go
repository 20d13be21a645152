package peer

import (
	"context"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zde37/torus/internal/wire"
	"github.com/zde37/torus/pkg/logging"
)

// serve runs a minimal single-connection test server implementing handle
// for exactly one request, then closes the listener.
func serve(t *testing.T, handle func(*wire.Request) *wire.Response) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		dc := wire.NewDeadlineConn(conn, 4096, 2*time.Second)
		req, err := wire.DecodeRequest(dc)
		if err != nil {
			return
		}
		resp := handle(req)
		if err := wire.EncodeResponse(dc, resp); err != nil {
			return
		}
		dc.Flush()
	}()

	return ln.Addr().String()
}

func testClient() *Client {
	logger, _ := logging.New(logging.DefaultConfig())
	return NewClient(logger, time.Second, 2*time.Second)
}

func TestClient_FindSuccessor(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		require.Equal(t, wire.OpFindSuccessor, req.Op)
		return &wire.Response{Status: wire.StatusOK, Value: []byte("10.0.0.5:9000")}
	})

	c := testClient()
	p, err := c.FindSuccessor(context.Background(), addr, big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:9000", p.Address())
}

func TestClient_GetPredecessor_Nil(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		return &wire.Response{Status: wire.StatusOK, Value: nil}
	})

	c := testClient()
	p, err := c.GetPredecessor(context.Background(), addr)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestClient_Notify(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		require.Equal(t, wire.OpNotify, req.Op)
		require.Equal(t, "1.2.3.4:8440", string(req.Value))
		return &wire.Response{Status: wire.StatusOK}
	})

	c := testClient()
	self, err := peerFromAddr("1.2.3.4:8440")
	require.NoError(t, err)
	require.NoError(t, c.Notify(context.Background(), addr, self))
}

func TestClient_GetSuccessorList(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		return &wire.Response{Status: wire.StatusOK, Value: wire.EncodeAddrList([]string{"a:1", "b:2"})}
	})

	c := testClient()
	list, err := c.GetSuccessorList(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a:1", list[0].Address())
	require.Equal(t, "b:2", list[1].Address())
}

func TestClient_GetSuccessorList_Empty(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		return &wire.Response{Status: wire.StatusOK}
	})

	c := testClient()
	list, err := c.GetSuccessorList(context.Background(), addr)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestClient_TransferKeys(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		require.Equal(t, wire.OpTransferKey, req.Op)
		items, err := wire.DecodeBulk(req.Value)
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), items["k1"])
		return &wire.Response{Status: wire.StatusOK}
	})

	c := testClient()
	require.NoError(t, c.TransferKeys(context.Background(), addr, map[string][]byte{"k1": []byte("v1")}))
}

func TestClient_GetSetDelete(t *testing.T) {
	t.Run("get found", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			return &wire.Response{Status: wire.StatusOK, Value: []byte("bar")}
		})
		c := testClient()
		v, err := c.Get(context.Background(), addr, []byte("foo"))
		require.NoError(t, err)
		require.Equal(t, "bar", string(v))
	})

	t.Run("get not found", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			return &wire.Response{Status: wire.StatusKeyNotFound}
		})
		c := testClient()
		_, err := c.Get(context.Background(), addr, []byte("missing"))
		require.Error(t, err)
	})

	t.Run("set", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			require.Equal(t, wire.OpPut, req.Op)
			return &wire.Response{Status: wire.StatusOK}
		})
		c := testClient()
		require.NoError(t, c.Set(context.Background(), addr, []byte("k"), []byte("v")))
	})

	t.Run("delete", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			require.Equal(t, wire.OpDel, req.Op)
			return &wire.Response{Status: wire.StatusOK}
		})
		c := testClient()
		require.NoError(t, c.Delete(context.Background(), addr, []byte("k")))
	})
}

func TestClient_ReplicaOps(t *testing.T) {
	t.Run("set replica", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			require.Equal(t, wire.OpReplicateSet, req.Op)
			return &wire.Response{Status: wire.StatusOK}
		})
		c := testClient()
		require.NoError(t, c.SetReplica(context.Background(), addr, []byte("k"), []byte("v")))
	})

	t.Run("delete replica", func(t *testing.T) {
		addr := serve(t, func(req *wire.Request) *wire.Response {
			require.Equal(t, wire.OpReplicateDel, req.Op)
			return &wire.Response{Status: wire.StatusOK}
		})
		c := testClient()
		require.NoError(t, c.DeleteReplica(context.Background(), addr, []byte("k")))
	})
}

func TestClient_ErrorStatusBecomesError(t *testing.T) {
	addr := serve(t, func(req *wire.Request) *wire.Response {
		return &wire.Response{Status: wire.StatusError, Value: []byte("boom")}
	})

	c := testClient()
	_, err := c.Get(context.Background(), addr, []byte("k"))
	require.Error(t, err)
}

func TestClient_Ping_PoolsConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				dc := wire.NewDeadlineConn(conn, 512, 2*time.Second)
				for {
					req, err := wire.DecodeRequest(dc)
					if err != nil {
						return
					}
					if req.Op != wire.OpPing {
						return
					}
					if err := wire.EncodeResponse(dc, &wire.Response{Status: wire.StatusOK}); err != nil {
						return
					}
					if err := dc.Flush(); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	c := testClient()
	defer c.Close()

	require.NoError(t, c.Ping(context.Background(), ln.Addr().String()))
	require.NoError(t, c.Ping(context.Background(), ln.Addr().String()))

	c.pingMu.RLock()
	_, pooled := c.pingConns[ln.Addr().String()]
	c.pingMu.RUnlock()
	require.True(t, pooled)
}

func TestPeerFromAddr_Invalid(t *testing.T) {
	_, err := peerFromAddr("not-an-address")
	require.Error(t, err)
}
