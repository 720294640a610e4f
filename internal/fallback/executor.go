// Package fallback provides the gateway's backstop: a one-shot
// invocation of the engine as a fresh subprocess when the persistent
// socket path is unavailable. Slow, but it guarantees a user-visible
// answer under total service outage.
package fallback

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a one-shot invocation. A cold engine start pays
// model loading and graph connection on every call.
const DefaultTimeout = 300 * time.Second

// Placeholder is returned when even the one-shot invocation fails.
const Placeholder = "The answering service is temporarily unavailable. Please try again shortly."

// Executor runs the engine's one-shot entry point.
type Executor struct {
	cmd     []string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an executor for the given argv prefix, e.g.
// ["python3", "main_web.py"]. Query and breadth are appended as discrete
// arguments; nothing is ever passed through a shell.
func New(cmd []string, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{cmd: cmd, timeout: timeout, logger: logger}
}

// Run invokes the engine once and returns its combined output as a
// best-effort answer. Run never fails: on any internal error it returns
// a descriptive placeholder string.
func (e *Executor) Run(ctx context.Context, query string, topK int) string {
	if len(e.cmd) == 0 {
		e.log("fallback command not configured")
		return Placeholder
	}
	if topK < 1 {
		topK = 1
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.cmd[1:]...),
		"--query", query,
		"--top_k", strconv.Itoa(topK),
	)
	cmd := exec.CommandContext(ctx, e.cmd[0], args...)

	out, err := cmd.CombinedOutput()
	answer := strings.TrimSpace(string(out))
	if err != nil {
		e.log("fallback invocation failed", "error", err, "output_len", len(answer))
		if answer == "" {
			return Placeholder
		}
		// Keep whatever the engine managed to print; it is more useful
		// than a canned apology.
		return answer
	}
	if answer == "" {
		e.log("fallback produced no output")
		return Placeholder
	}
	return answer
}

func (e *Executor) log(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
