// Package enginetest provides an in-process stand-in for the engine
// socket, used by client, gateway, health, and server tests.
package enginetest

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

// Handler consumes one accepted connection. It runs on its own
// goroutine and must close the connection itself.
type Handler func(conn net.Conn)

// Serve binds a Unix socket in a short-lived temp directory and invokes
// handler once per accepted connection until the test ends. It returns
// the socket path.
func Serve(t *testing.T, handler Handler) string {
	t.Helper()

	// Unix socket paths are length-limited; os.MkdirTemp keeps them
	// under /tmp rather than the deeply nested t.TempDir layout.
	dir, err := os.MkdirTemp("", "gg")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socketPath := filepath.Join(dir, "engine.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen %s: %v", socketPath, err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()

	return socketPath
}

// AnswerWith returns a handler that reads the request line and replies
// with the given raw bytes.
func AnswerWith(raw []byte) Handler {
	return func(conn net.Conn) {
		defer conn.Close()
		readRequestLine(conn)
		conn.Write(raw)
	}
}

// CloseWithoutReply returns a handler that reads the request and closes
// the connection without writing anything.
func CloseWithoutReply() Handler {
	return func(conn net.Conn) {
		defer conn.Close()
		readRequestLine(conn)
	}
}

func readRequestLine(conn net.Conn) []byte {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for _, c := range chunk[:n] {
				if c == '\n' {
					return buf
				}
			}
		}
		if err != nil {
			return buf
		}
	}
}
