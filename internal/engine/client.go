// Package engine implements the protocol client for the persistent graph
// engine: one connection per call over a Unix domain socket, one framed
// request, one framed response, every network operation wall-clock
// bounded.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/iambrandonn/graphgate/internal/protocol"
	"github.com/iambrandonn/graphgate/internal/wire"
)

// Default timeout magnitudes. Connect and receive are generous because
// the engine serializes queries and a call may queue behind an in-flight
// multi-hop search.
const (
	DefaultConnectTimeout = 120 * time.Second
	DefaultSendTimeout    = 10 * time.Second
	DefaultRecvTimeout    = 120 * time.Second
)

// Client issues one-shot query calls to the engine socket. The zero
// value is not usable; construct with New.
type Client struct {
	socketPath     string
	connectTimeout time.Duration
	sendTimeout    time.Duration
	recvTimeout    time.Duration
	logger         *slog.Logger
}

// Options configures a Client. Zero timeouts fall back to the defaults.
type Options struct {
	SocketPath     string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	RecvTimeout    time.Duration
}

// New creates a protocol client for the engine at opts.SocketPath.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.RecvTimeout <= 0 {
		opts.RecvTimeout = DefaultRecvTimeout
	}
	return &Client{
		socketPath:     opts.SocketPath,
		connectTimeout: opts.ConnectTimeout,
		sendTimeout:    opts.SendTimeout,
		recvTimeout:    opts.RecvTimeout,
		logger:         logger,
	}
}

// SocketPath returns the socket path this client dials.
func (c *Client) SocketPath() string { return c.socketPath }

// Call writes one framed request and reads one framed response. The
// returned error is a *protocol.TransportError for any failure to
// complete the exchange, or a *protocol.ServerError when the engine
// reported a well-formed failure. The connection is closed on every
// exit path.
func (c *Client) Call(ctx context.Context, query string, topK int) (string, error) {
	if _, err := os.Stat(c.socketPath); err != nil {
		return "", protocol.NewTransportError(protocol.FaultSocketAbsent,
			fmt.Errorf("socket %s: %w", c.socketPath, err))
	}

	frame, err := wire.EncodeRequest(query, topK)
	if err != nil {
		return "", protocol.NewTransportError(protocol.FaultWriteFailed, err)
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return "", protocol.NewTransportError(protocol.FaultConnectFailed, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
		return "", protocol.NewTransportError(protocol.FaultWriteFailed, err)
	}
	if _, err := conn.Write(frame); err != nil {
		return "", protocol.NewTransportError(protocol.FaultWriteFailed, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.recvTimeout)); err != nil {
		return "", protocol.NewTransportError(protocol.FaultReadTimeout, err)
	}
	reader := bufio.NewReaderSize(conn, 64*1024)
	line, err := readLine(reader)
	if err != nil {
		return "", err
	}

	answer, err := wire.DecodeResponse(line)
	if err != nil {
		return "", err
	}
	if c.logger != nil {
		c.logger.Debug("engine call completed", "socket", c.socketPath, "answer_len", len(answer))
	}
	return answer, nil
}

// readLine reads up to and including the first newline, tolerating a
// peer that closes the stream after writing a complete response without
// a trailing newline.
func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err == nil {
		return line, nil
	}
	if errors.Is(err, io.EOF) {
		if len(line) == 0 {
			return nil, protocol.NewTransportError(protocol.FaultNoResponse,
				fmt.Errorf("peer closed connection without responding"))
		}
		// Partial line before EOF: let the codec judge it.
		return line, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, protocol.NewTransportError(protocol.FaultReadTimeout, err)
	}
	return nil, protocol.NewTransportError(protocol.FaultNoResponse, err)
}
