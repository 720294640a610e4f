// Package health implements a read-only diagnostic probe of the engine
// socket. A failed probe only reports state; it never routes anything
// through the gateway's fallback path.
package health

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/iambrandonn/graphgate/internal/engine"
	"github.com/iambrandonn/graphgate/internal/observability"
	"github.com/iambrandonn/graphgate/internal/protocol"
)

// DefaultTimeout bounds a probe's connect and synthetic-query phases.
const DefaultTimeout = 5 * time.Second

// probeQuery is the minimal synthetic query issued once connected.
const probeQuery = "ping"

// Report is the structured diagnostic document produced by a probe.
// Healthy is computed, never stored: can_connect AND test_query_success.
type Report struct {
	SocketExists     bool     `json:"socket_exists"`
	SocketReadable   bool     `json:"socket_readable"`
	SocketWritable   bool     `json:"socket_writable"`
	CanConnect       bool     `json:"can_connect"`
	TestQuerySuccess bool     `json:"test_query_success"`
	ResponseTimeMS   *float64 `json:"response_time_ms,omitempty"`
	Error            string   `json:"error,omitempty"`
	Healthy          bool     `json:"healthy"`
}

// Prober dials the engine socket with short timeouts, independent of
// any gateway instance.
type Prober struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a prober for the engine socket. A non-positive timeout
// falls back to DefaultTimeout.
func New(socketPath string, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{socketPath: socketPath, timeout: timeout, logger: logger}
}

// Probe inspects the socket file, attempts a bounded connect, and if
// connected issues one minimal synthetic query. Every finding is
// reported verbatim; nothing is retried or masked.
func (p *Prober) Probe(ctx context.Context) Report {
	var report Report

	if _, err := os.Stat(p.socketPath); err != nil {
		report.Error = "socket file does not exist"
		return report
	}
	report.SocketExists = true
	report.SocketReadable = unix.Access(p.socketPath, unix.R_OK) == nil
	report.SocketWritable = unix.Access(p.socketPath, unix.W_OK) == nil

	client := engine.New(engine.Options{
		SocketPath:     p.socketPath,
		ConnectTimeout: p.timeout,
		SendTimeout:    p.timeout,
		RecvTimeout:    p.timeout,
	}, p.logger)

	start := time.Now()
	answer, err := client.Call(ctx, probeQuery, 1)
	elapsed := time.Since(start)
	observability.RecordProbe(elapsed)

	if err != nil {
		report.Error = err.Error()
		// can_connect reflects the connect attempt alone: an engine that
		// accepted the connection but answered badly (or not at all)
		// still connected. Only connect-level faults leave it false.
		if _, ok := protocol.AsServer(err); ok {
			report.CanConnect = true
			ms := float64(elapsed.Milliseconds())
			report.ResponseTimeMS = &ms
		} else if te, ok := protocol.AsTransport(err); ok {
			switch te.Kind {
			case protocol.FaultSocketAbsent, protocol.FaultConnectFailed:
			default:
				report.CanConnect = true
			}
		}
		return report
	}

	report.CanConnect = true
	report.TestQuerySuccess = answer != ""
	ms := float64(elapsed.Milliseconds())
	report.ResponseTimeMS = &ms
	report.Healthy = report.CanConnect && report.TestQuerySuccess
	return report
}
