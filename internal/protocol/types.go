// Package protocol defines the request/response types exchanged with the
// graph engine over its Unix domain socket, plus the error taxonomy used
// by the client and supervisor. Messages are JSON-encoded, one per
// connection, framed by a trailing newline.
package protocol

// Request is sent from the gateway to the engine. One request is written
// per connection and the request is discarded after encoding.
type Request struct {
	// Query is the user's natural-language question. Must be non-empty;
	// the engine answers an empty query with a ServerError.
	Query string `json:"query"`
	// TopK is the entry-node breadth for graph retrieval. Always >= 1.
	TopK int `json:"top_k"`
}

// Response is the engine's reply. Exactly one of Answer or Error is
// populated; a response carrying neither is a protocol violation.
type Response struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TestResult reports the outcome of a supervisor self-test.
type TestResult struct {
	Passed     bool    `json:"passed"`
	Query      string  `json:"query"`
	Excerpt    string  `json:"excerpt,omitempty"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Error      string  `json:"error,omitempty"`
}

// ProcessState is a point-in-time view of the engine process, derived
// fresh on every status query and never cached.
type ProcessState struct {
	SocketPresent bool     `json:"socket_present"`
	PID           int      `json:"pid,omitempty"`
	Running       bool     `json:"running"`
	LogTail       []string `json:"log_tail,omitempty"`
}
