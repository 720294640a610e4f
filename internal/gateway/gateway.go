// Package gateway is the single entry point callers use to obtain an
// answer. It composes the protocol client with the fallback executor:
// transport failures degrade to a one-shot invocation, engine-reported
// errors surface as prefixed text, and the caller always receives a
// string.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/iambrandonn/graphgate/internal/engine"
	"github.com/iambrandonn/graphgate/internal/fallback"
	"github.com/iambrandonn/graphgate/internal/observability"
	"github.com/iambrandonn/graphgate/internal/protocol"
)

// ErrorPrefix precedes engine-reported failure messages in answer text.
const ErrorPrefix = "Error: "

// Gateway answers queries, preferring the persistent socket path and
// degrading to the fallback executor. It never owns or terminates the
// engine process.
type Gateway struct {
	client   *engine.Client
	fallback *fallback.Executor
	logger   *slog.Logger
}

// New composes a gateway from a protocol client and a fallback executor.
func New(client *engine.Client, fb *fallback.Executor, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, fallback: fb, logger: logger}
}

// Answer resolves one query. It always returns a non-empty string and
// never propagates transport failures: a ServerError from the engine is
// surfaced as prefixed text, any TransportError routes through the
// fallback executor.
func (g *Gateway) Answer(ctx context.Context, query string, topK int) string {
	reqID := uuid.NewString()
	start := time.Now()

	answer, err := g.client.Call(ctx, query, topK)
	if err == nil {
		g.logger.Info("answered via socket", "req_id", reqID, "elapsed", time.Since(start))
		observability.RecordAnswer(observability.PathSocket, time.Since(start))
		return answer
	}

	if se, ok := protocol.AsServer(err); ok {
		g.logger.Info("engine reported error", "req_id", reqID, "message", se.Message)
		observability.RecordAnswer(observability.PathServerError, time.Since(start))
		return ErrorPrefix + se.Message
	}

	kind := protocol.FaultKind("unknown")
	if te, ok := protocol.AsTransport(err); ok {
		kind = te.Kind
	}
	g.logger.Warn("socket path failed, degrading to one-shot fallback",
		"req_id", reqID, "fault", string(kind))

	answer = g.fallback.Run(ctx, query, topK)
	observability.RecordAnswer(observability.PathFallback, time.Since(start))
	g.logger.Info("answered via fallback", "req_id", reqID, "elapsed", time.Since(start))
	return answer
}
