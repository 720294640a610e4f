package engine

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/iambrandonn/graphgate/internal/enginetest"
	"github.com/iambrandonn/graphgate/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(socketPath string, recvTimeout time.Duration) *Client {
	return New(Options{
		SocketPath:     socketPath,
		ConnectTimeout: 2 * time.Second,
		SendTimeout:    2 * time.Second,
		RecvTimeout:    recvTimeout,
	}, testLogger())
}

func TestCallSocketAbsent(t *testing.T) {
	client := newClient(filepath.Join(t.TempDir(), "missing.sock"), time.Second)

	_, err := client.Call(context.Background(), "ping", 1)
	te, ok := protocol.AsTransport(err)
	if !ok {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.Kind != protocol.FaultSocketAbsent {
		t.Errorf("fault = %s, want %s", te.Kind, protocol.FaultSocketAbsent)
	}
}

func TestCallAnswer(t *testing.T) {
	socketPath := enginetest.Serve(t, enginetest.AnswerWith([]byte(`{"answer":"forty-two"}`+"\n")))
	client := newClient(socketPath, 2*time.Second)

	answer, err := client.Call(context.Background(), "meaning of life", 2)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if answer != "forty-two" {
		t.Errorf("answer = %q", answer)
	}
}

func TestCallServerError(t *testing.T) {
	socketPath := enginetest.Serve(t, enginetest.AnswerWith([]byte(`{"error":"No query provided"}`+"\n")))
	client := newClient(socketPath, 2*time.Second)

	_, err := client.Call(context.Background(), "", 1)
	se, ok := protocol.AsServer(err)
	if !ok {
		t.Fatalf("want ServerError, got %v", err)
	}
	if se.Message != "No query provided" {
		t.Errorf("message = %q", se.Message)
	}
}

func TestCallNoResponse(t *testing.T) {
	socketPath := enginetest.Serve(t, enginetest.CloseWithoutReply())
	client := newClient(socketPath, 2*time.Second)

	_, err := client.Call(context.Background(), "ping", 1)
	te, ok := protocol.AsTransport(err)
	if !ok {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.Kind != protocol.FaultNoResponse {
		t.Errorf("fault = %s, want %s", te.Kind, protocol.FaultNoResponse)
	}
}

func TestCallReadTimeout(t *testing.T) {
	// Accept, read the request, then stall past the client's deadline.
	socketPath := enginetest.Serve(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 1024)
		conn.Read(buf)
		time.Sleep(2 * time.Second)
	})
	client := newClient(socketPath, 200*time.Millisecond)

	start := time.Now()
	_, err := client.Call(context.Background(), "slow", 1)
	elapsed := time.Since(start)

	te, ok := protocol.AsTransport(err)
	if !ok {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.Kind != protocol.FaultReadTimeout {
		t.Errorf("fault = %s, want %s", te.Kind, protocol.FaultReadTimeout)
	}
	if elapsed > 1500*time.Millisecond {
		t.Errorf("call blocked %s, deadline was 200ms", elapsed)
	}
}

func TestCallPartialLineWithoutNewline(t *testing.T) {
	// A complete JSON response with the trailing newline lost is still
	// decodable once the peer closes.
	socketPath := enginetest.Serve(t, enginetest.AnswerWith([]byte(`{"answer":"clipped"}`)))
	client := newClient(socketPath, 2*time.Second)

	answer, err := client.Call(context.Background(), "ping", 1)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if answer != "clipped" {
		t.Errorf("answer = %q", answer)
	}
}

func TestCallMalformedResponse(t *testing.T) {
	socketPath := enginetest.Serve(t, enginetest.AnswerWith([]byte("{}\n")))
	client := newClient(socketPath, 2*time.Second)

	_, err := client.Call(context.Background(), "ping", 1)
	te, ok := protocol.AsTransport(err)
	if !ok {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.Kind != protocol.FaultMalformedResponse {
		t.Errorf("fault = %s, want %s", te.Kind, protocol.FaultMalformedResponse)
	}
}
