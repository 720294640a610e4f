// mockengine is a development stand-in for the real graph engine. It
// binds the Unix socket, announces the readiness marker, and serves one
// canned JSON response per connection, matching the engine's behavior
// contract closely enough to exercise the supervisor, gateway, and
// health prober end to end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iambrandonn/graphgate/internal/protocol"
	"github.com/iambrandonn/graphgate/internal/wire"
)

func main() {
	socketPath := flag.String("socket", "/tmp/llm_server.sock", "Unix socket path to bind")
	marker := flag.String("marker", "SERVER_READY", "Readiness marker to print once listening")
	startupDelay := flag.Duration("startup-delay", 0, "Artificial initialization delay before binding")
	answerDelay := flag.Duration("answer-delay", 0, "Artificial per-query latency")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("mock engine starting", "pid", os.Getpid(), "socket", *socketPath)
	if *startupDelay > 0 {
		time.Sleep(*startupDelay)
	}

	// The real engine removes a stale socket before binding.
	if _, err := os.Stat(*socketPath); err == nil {
		os.Remove(*socketPath)
	}

	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		logger.Error("failed to bind socket", "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	defer os.Remove(*socketPath)

	os.Chmod(*socketPath, 0666)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		listener.Close()
		os.Remove(*socketPath)
		os.Exit(0)
	}()

	fmt.Fprintf(os.Stderr, "Mock engine listening on %s\n", *socketPath)
	fmt.Fprintln(os.Stderr, *marker)

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("accept failed", "error", err)
			return
		}
		go handle(conn, *answerDelay, logger)
	}
}

// handle serves the one-shot protocol: read until newline, answer with a
// single JSON line, close.
func handle(conn net.Conn, delay time.Duration, logger *slog.Logger) {
	defer conn.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil || n == 0 || containsNewline(buf) {
			break
		}
	}
	if len(buf) == 0 {
		return
	}

	var req protocol.Request
	resp := protocol.Response{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(buf))), &req); err != nil {
		resp.Error = "malformed request"
	} else if strings.TrimSpace(req.Query) == "" {
		resp.Error = "No query provided"
	} else {
		if delay > 0 {
			time.Sleep(delay)
		}
		resp.Answer = fmt.Sprintf(
			"Mock answer for %q (top_k=%d): machine learning is the study of algorithms that improve through experience.",
			req.Query, req.TopK)
	}

	line, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("marshal response failed", "error", err)
		return
	}
	if len(line) > wire.MaxLineSize {
		logger.Warn("response exceeds frame limit", "size", len(line))
		return
	}
	conn.Write(append(line, '\n'))
}

func containsNewline(b []byte) bool {
	for _, c := range b {
		if c == '\n' {
			return true
		}
	}
	return false
}
