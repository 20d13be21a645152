package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{Op: OpPut, Key: []byte("hello"), Value: []byte("world")}

	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req))

	got, err := DecodeRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req.Op, got.Op)
	assert.Equal(t, req.Key, got.Key)
	assert.Equal(t, req.Value, got.Value)
}

func TestRequestRoundTrip_EmptyValue(t *testing.T) {
	req := &Request{Op: OpGet, Key: []byte("k"), Value: nil}

	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req))

	got, err := DecodeRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, OpGet, got.Op)
	assert.Equal(t, []byte("k"), got.Key)
	assert.Empty(t, got.Value)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{Status: StatusOK, Value: []byte("v")}

	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, resp))

	got, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, resp.Status, got.Status)
	assert.Equal(t, resp.Value, got.Value)
}

func TestDecodeRequest_TruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpGet))
	buf.Write([]byte{0, 0, 0, 10}) // claims 10 bytes of key, provides none

	_, err := DecodeRequest(&buf)
	assert.Error(t, err)
}

func TestDecodeRequest_OversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpGet))
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := DecodeRequest(&buf)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDeadlineConn_RoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	dc := NewDeadlineConn(client, 4096, 2*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := server.Read(buf)
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf))
	}()

	_, err := dc.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, dc.Flush())
	<-done
}
