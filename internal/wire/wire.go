// Package wire implements the binary frame format used by both the client
// protocol and the peer RPC protocol: a fixed-width op/status header
// followed by length-prefixed key and value payloads.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// OpCode identifies the operation a request frame carries.
type OpCode byte

const (
	OpGet   OpCode = 0x01
	OpPut   OpCode = 0x02
	OpDel   OpCode = 0x03

	OpFindSuccessor OpCode = 0x20
	OpGetPredecessor OpCode = 0x22
	OpGetSuccessor   OpCode = 0x23
	OpNotify         OpCode = 0x12
	OpPing           OpCode = 0x13
	OpTransferKey    OpCode = 0x26
	OpNodeInfo       OpCode = 0x25

	OpReplicateSet OpCode = 0x14
	OpReplicateDel OpCode = 0x15
	OpReplicateGet OpCode = 0x16

	OpAdminShutdown OpCode = 0x30
)

// Status identifies the outcome a response frame carries.
type Status byte

const (
	StatusOK          Status = 0x00
	StatusKeyNotFound Status = 0x01
	StatusError       Status = 0x02
	StatusRedirect    Status = 0x03
)

// ErrInvalidFrame is returned when a frame's length header disagrees with
// the bytes actually available, or exceeds MaxPayloadSize.
var ErrInvalidFrame = errors.New("wire: invalid frame")

// MaxPayloadSize bounds a single key or value field to guard against a
// corrupt or hostile length header forcing an unbounded allocation.
const MaxPayloadSize = 64 << 20 // 64 MiB

// Request is a decoded request frame:
// OpCode(1) | KeyLen(4,BE) | Key | ValueLen(4,BE) | Value
type Request struct {
	Op    OpCode
	Key   []byte
	Value []byte
}

// Response is a decoded response frame:
// Status(1) | ValueLen(4,BE) | Value
type Response struct {
	Status Status
	Value  []byte
}

// EncodeRequest serializes req onto w.
func EncodeRequest(w io.Writer, req *Request) error {
	if err := writeByte(w, byte(req.Op)); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, req.Key); err != nil {
		return err
	}
	return writeLenPrefixed(w, req.Value)
}

// DecodeRequest reads and validates one request frame from r.
func DecodeRequest(r io.Reader) (*Request, error) {
	op, err := readByte(r)
	if err != nil {
		return nil, err
	}
	key, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	value, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	return &Request{Op: OpCode(op), Key: key, Value: value}, nil
}

// EncodeResponse serializes resp onto w.
func EncodeResponse(w io.Writer, resp *Response) error {
	if err := writeByte(w, byte(resp.Status)); err != nil {
		return err
	}
	return writeLenPrefixed(w, resp.Value)
}

// DecodeResponse reads and validates one response frame from r.
func DecodeResponse(r io.Reader) (*Response, error) {
	status, err := readByte(r)
	if err != nil {
		return nil, err
	}
	value, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	return &Response{Status: Status(status), Value: value}, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxPayloadSize {
		return nil, ErrInvalidFrame
	}
	if n == 0 {
		return []byte{}, nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFrame
		}
		return nil, err
	}
	return data, nil
}

// DeadlineConn wraps a net.Conn with buffered reads/writes that only touch
// the connection's read/write deadline when the buffer must actually hit
// the network, so a chain of small header reads/writes pays for exactly
// one timeout window instead of one per field.
type DeadlineConn struct {
	Timeout time.Duration
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
}

// NewDeadlineConn wraps conn with bufio buffers of chunkSize bytes.
func NewDeadlineConn(conn net.Conn, chunkSize int, timeout time.Duration) *DeadlineConn {
	return &DeadlineConn{
		Timeout: timeout,
		conn:    conn,
		r:       bufio.NewReaderSize(conn, chunkSize),
		w:       bufio.NewWriterSize(conn, chunkSize),
	}
}

func (c *DeadlineConn) Read(p []byte) (int, error) {
	deadline := false
	if c.r.Buffered() == 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.Timeout))
		deadline = true
	}
	n, err := c.r.Read(p)
	if deadline {
		c.conn.SetReadDeadline(time.Time{})
	}
	return n, err
}

func (c *DeadlineConn) Write(p []byte) (int, error) {
	deadline := false
	if len(p) > c.w.Available() {
		c.conn.SetWriteDeadline(time.Now().Add(c.Timeout))
		deadline = true
	}
	n, err := c.w.Write(p)
	if deadline {
		c.conn.SetWriteDeadline(time.Time{})
	}
	return n, err
}

// Flush pushes any buffered writes to the network under a fresh deadline.
func (c *DeadlineConn) Flush() error {
	c.conn.SetWriteDeadline(time.Now().Add(c.Timeout))
	err := c.w.Flush()
	c.conn.SetWriteDeadline(time.Time{})
	return err
}

// Close closes the underlying connection.
func (c *DeadlineConn) Close() error {
	return c.conn.Close()
}

// EncodeAddrList serializes a list of "host:port" strings for transport in
// a single Value field (used by GetSuccessorList responses).
func EncodeAddrList(addrs []string) []byte {
	var buf bytes.Buffer
	for i, a := range addrs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(a)
	}
	return buf.Bytes()
}

// DecodeAddrList parses the payload produced by EncodeAddrList.
func DecodeAddrList(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}

// EncodeBulk serializes a key/value map for transport in a single Value
// field (used by TransferKeys requests): repeated KeyLen(4)|Key|ValLen(4)|Val.
func EncodeBulk(items map[string][]byte) []byte {
	var buf bytes.Buffer
	for k, v := range items {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, v)
	}
	return buf.Bytes()
}

// DecodeBulk parses the payload produced by EncodeBulk.
func DecodeBulk(data []byte) (map[string][]byte, error) {
	r := bytes.NewReader(data)
	out := make(map[string][]byte)
	for r.Len() > 0 {
		k, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		v, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		out[string(k)] = v
	}
	return out, nil
}
