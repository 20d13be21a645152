// Command torus-client is a one-shot CLI client for a Torus node: put, get,
// delete, ping, and shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/zde37/torus/internal/wire"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: torus-client [-h HOST] [-p PORT] <put KEY VALUE|get KEY|delete KEY|ping|shutdown>")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	host := flag.String("h", "127.0.0.1", "server host")
	port := flag.Int("p", 8440, "server port")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 1
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	req, err := buildRequest(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "torus-client:", err)
		usage()
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := call(ctx, addr, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "torus-client:", err)
		return 1
	}

	return report(args[0], resp)
}

func buildRequest(args []string) (*wire.Request, error) {
	switch args[0] {
	case "put":
		if len(args) != 3 {
			return nil, fmt.Errorf("put requires KEY and VALUE")
		}
		return &wire.Request{Op: wire.OpPut, Key: []byte(args[1]), Value: []byte(args[2])}, nil
	case "get":
		if len(args) != 2 {
			return nil, fmt.Errorf("get requires KEY")
		}
		return &wire.Request{Op: wire.OpGet, Key: []byte(args[1])}, nil
	case "delete":
		if len(args) != 2 {
			return nil, fmt.Errorf("delete requires KEY")
		}
		return &wire.Request{Op: wire.OpDel, Key: []byte(args[1])}, nil
	case "ping":
		return &wire.Request{Op: wire.OpPing}, nil
	case "shutdown":
		return &wire.Request{Op: wire.OpAdminShutdown}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func call(ctx context.Context, addr string, req *wire.Request) (*wire.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	dc := wire.NewDeadlineConn(conn, 4096, 5*time.Second)
	if err := wire.EncodeRequest(dc, req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := dc.Flush(); err != nil {
		return nil, fmt.Errorf("flush request: %w", err)
	}
	return wire.DecodeResponse(dc)
}

func report(cmd string, resp *wire.Response) int {
	switch resp.Status {
	case wire.StatusOK:
		if cmd == "get" {
			fmt.Println(string(resp.Value))
		} else if cmd == "ping" {
			fmt.Println("pong")
		} else {
			fmt.Println("OK")
		}
		return 0
	case wire.StatusKeyNotFound:
		fmt.Fprintln(os.Stderr, "key not found")
		return 1
	default:
		fmt.Fprintln(os.Stderr, "error:", string(resp.Value))
		return 1
	}
}
