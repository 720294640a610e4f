// Package wire implements the newline-delimited JSON framing used on the
// engine socket: one UTF-8 JSON object per line, one line per connection.
// Nothing above this package touches the wire format directly.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iambrandonn/graphgate/internal/protocol"
)

// MaxLineSize caps a single framed message (1 MiB). Engine answers are
// prose; anything larger indicates a runaway peer.
const MaxLineSize = 1024 * 1024

// EncodeRequest frames a query as a single JSON line. topK values below
// 1 are clamped to 1 rather than rejected: breadth is a hint and a call
// must never fail over it.
func EncodeRequest(query string, topK int) ([]byte, error) {
	if topK < 1 {
		topK = 1
	}
	data, err := json.Marshal(protocol.Request{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if len(data) > MaxLineSize {
		return nil, fmt.Errorf("request size %d exceeds limit %d", len(data), MaxLineSize)
	}
	return append(data, '\n'), nil
}

// DecodeResponse parses one response line into answer text. A payload
// with an "error" key yields a *protocol.ServerError; a payload with
// neither key, or one that is not valid JSON, yields a malformed-response
// TransportError.
func DecodeResponse(line []byte) (string, error) {
	line = bytes.TrimSpace(line)
	if len(line) > MaxLineSize {
		return "", protocol.NewTransportError(protocol.FaultMalformedResponse,
			fmt.Errorf("response size %d exceeds limit %d", len(line), MaxLineSize))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return "", protocol.NewTransportError(protocol.FaultMalformedResponse,
			fmt.Errorf("unmarshal response: %w", err))
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return "", protocol.NewTransportError(protocol.FaultMalformedResponse,
				fmt.Errorf("unmarshal error field: %w", err))
		}
		return "", &protocol.ServerError{Message: msg}
	}
	raw, ok := fields["answer"]
	if !ok {
		return "", protocol.NewTransportError(protocol.FaultMalformedResponse,
			fmt.Errorf("response carries neither answer nor error"))
	}
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", protocol.NewTransportError(protocol.FaultMalformedResponse,
			fmt.Errorf("unmarshal answer field: %w", err))
	}
	return answer, nil
}
