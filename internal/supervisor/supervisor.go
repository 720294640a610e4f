// Package supervisor owns the engine process's lifecycle: start with
// readiness detection, graceful stop with timed force-kill, restart,
// status, and an end-to-end self-test. Lifecycle operations take a flock
// on a lock file so concurrent invocations cannot race on the
// socket-existence check.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/iambrandonn/graphgate/internal/engine"
	"github.com/iambrandonn/graphgate/internal/fsutil"
	"github.com/iambrandonn/graphgate/internal/protocol"
)

// SelfTestQuery is the representative query used by SelfTest.
const SelfTestQuery = "What is machine learning?"

// settleDelay separates stop from start during a restart so the engine
// can release the socket path.
const settleDelay = 500 * time.Millisecond

// Options configures a Supervisor. Zero durations fall back to the
// defaults noted per field.
type Options struct {
	SocketPath string
	LogPath    string
	PIDPath    string
	LockPath   string

	// EngineCmd is the argv vector that starts the persistent engine.
	EngineCmd []string
	// ReadyMarker is the literal token the engine logs once initialized.
	ReadyMarker string
	// ReadyTimeout bounds the wait for the marker (default 60s).
	ReadyTimeout time.Duration
	// PollInterval is the log-scan interval during startup (default 1s).
	PollInterval time.Duration
	// StopGrace is the graceful-stop wait before SIGKILL (default 2s).
	StopGrace time.Duration
	// LogTailLines bounds log tails in status and failure reports
	// (default 20).
	LogTailLines int

	// Client performs the SelfTest call. Required for SelfTest only.
	Client *engine.Client
}

// Supervisor manages one engine process identified by a PID file
// recorded at spawn time.
type Supervisor struct {
	opts   Options
	logger *slog.Logger
}

// New creates a supervisor. The supervisor instance that starts the
// engine owns it; gateways and probers never do.
func New(opts Options, logger *slog.Logger) *Supervisor {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 2 * time.Second
	}
	if opts.LogTailLines <= 0 {
		opts.LogTailLines = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{opts: opts, logger: logger}
}

// Start spawns the engine detached from the caller and waits for the
// readiness marker in the engine log. A connectable socket means the
// engine is already running (ErrAlreadyRunning); a socket file nothing
// answers on is treated as stale, removed, and startup proceeds.
func (s *Supervisor) Start(ctx context.Context) error {
	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if len(s.opts.EngineCmd) == 0 {
		return errors.New("no engine command configured")
	}

	if _, err := os.Stat(s.opts.SocketPath); err == nil {
		if s.socketAnswers() {
			return protocol.ErrAlreadyRunning
		}
		s.logger.Warn("removing stale socket", "path", s.opts.SocketPath)
		if err := os.Remove(s.opts.SocketPath); err != nil {
			return fmt.Errorf("remove stale socket %s: %w", s.opts.SocketPath, err)
		}
	}

	// Fresh log per run: a readiness marker left over from a previous
	// run must not satisfy this start's wait.
	logFile, err := os.OpenFile(s.opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open engine log %s: %w", s.opts.LogPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(s.opts.EngineCmd[0], s.opts.EngineCmd[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// New session: the engine must outlive this process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	s.logger.Info("starting engine", "cmd", s.opts.EngineCmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn engine: %w", err)
	}
	pid := cmd.Process.Pid

	if err := fsutil.AtomicWrite(s.opts.PIDPath, []byte(strconv.Itoa(pid)+"\n")); err != nil {
		s.logger.Warn("failed to record PID", "pid", pid, "error", err)
	}

	// Reap on exit so an early death is observable via Kill(pid, 0)
	// having no effect on a zombie. The channel also outlives a failed
	// wait below.
	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	s.logger.Info("engine spawned, waiting for readiness", "pid", pid, "marker", s.opts.ReadyMarker)

	deadline := time.Now().Add(s.opts.ReadyTimeout)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if s.logContainsMarker() {
			s.logger.Info("engine ready", "pid", pid)
			return nil
		}

		select {
		case <-exited:
			tail := s.logTail()
			s.cleanupFailedStart(pid)
			return fmt.Errorf("engine process died before becoming ready\nlog tail:\n%s", tail)
		case <-ctx.Done():
			s.cleanupFailedStart(pid)
			return fmt.Errorf("start cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			tail := s.logTail()
			s.cleanupFailedStart(pid)
			return fmt.Errorf("%w after %s\nlog tail:\n%s",
				protocol.ErrStartTimeout, s.opts.ReadyTimeout, tail)
		}
	}
}

// Stop terminates the engine gracefully, force-killing after the grace
// period. The socket and PID files are removed unconditionally so a
// crashed engine cannot leave a stale "running" state. Absence of a
// running process is not an error.
func (s *Supervisor) Stop(ctx context.Context) error {
	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	return s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) error {
	defer func() {
		os.Remove(s.opts.SocketPath)
		os.Remove(s.opts.PIDPath)
	}()

	pid, err := s.readPID()
	if err != nil || pid <= 0 || !processAlive(pid) {
		s.logger.Info("no running engine found")
		return nil
	}

	s.logger.Info("stopping engine", "pid", pid)
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		s.logger.Warn("SIGTERM failed", "pid", pid, "error", err)
	}

	deadline := time.Now().Add(s.opts.StopGrace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			s.logger.Info("engine stopped", "pid", pid)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	s.logger.Warn("engine did not stop gracefully, killing", "pid", pid)
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		s.logger.Warn("SIGKILL failed", "pid", pid, "error", err)
	}
	return nil
}

// Restart stops the engine, waits briefly for the socket path to settle,
// and starts it again. The lock is held across both halves.
func (s *Supervisor) Restart(ctx context.Context) error {
	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.stopLocked(ctx); err != nil {
		return fmt.Errorf("restart: stop: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}

	if err := s.startLocked(ctx); err != nil {
		return fmt.Errorf("restart: start: %w", err)
	}
	return nil
}

// Status reports socket existence, process liveness, and the engine log
// tail. Read-only; derived fresh on every call.
func (s *Supervisor) Status() protocol.ProcessState {
	var state protocol.ProcessState

	if _, err := os.Stat(s.opts.SocketPath); err == nil {
		state.SocketPresent = true
	}
	if pid, err := s.readPID(); err == nil && pid > 0 {
		state.PID = pid
		state.Running = processAlive(pid)
	}
	if tail, err := fsutil.TailLines(s.opts.LogPath, s.opts.LogTailLines); err == nil {
		state.LogTail = tail
	}
	return state
}

// SelfTest performs one real call through the full protocol client path
// with a representative query. It never mutates supervisor state.
func (s *Supervisor) SelfTest(ctx context.Context) protocol.TestResult {
	result := protocol.TestResult{Query: SelfTestQuery}
	if s.opts.Client == nil {
		result.Error = "no protocol client configured"
		return result
	}

	start := time.Now()
	answer, err := s.opts.Client.Call(ctx, SelfTestQuery, 2)
	result.ElapsedSec = time.Since(start).Seconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Passed = answer != ""
	result.Excerpt = excerpt(answer, 200)
	return result
}

// socketAnswers makes a short connect attempt to distinguish a live
// engine from a stale socket file.
func (s *Supervisor) socketAnswers() bool {
	conn, err := net.DialTimeout("unix", s.opts.SocketPath, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (s *Supervisor) logContainsMarker() bool {
	data, err := os.ReadFile(s.opts.LogPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), s.opts.ReadyMarker)
}

func (s *Supervisor) logTail() string {
	lines, err := fsutil.TailLines(s.opts.LogPath, s.opts.LogTailLines)
	if err != nil || len(lines) == 0 {
		return "(no log output)"
	}
	return strings.Join(lines, "\n")
}

// cleanupFailedStart returns the tree to the stopped state after a
// failed start: the child is terminated and socket/PID files removed.
func (s *Supervisor) cleanupFailedStart(pid int) {
	if processAlive(pid) {
		unix.Kill(pid, unix.SIGTERM)
		time.Sleep(200 * time.Millisecond)
		if processAlive(pid) {
			unix.Kill(pid, unix.SIGKILL)
		}
	}
	os.Remove(s.opts.SocketPath)
	os.Remove(s.opts.PIDPath)
}

func (s *Supervisor) readPID() (int, error) {
	data, err := os.ReadFile(s.opts.PIDPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %w", s.opts.PIDPath, err)
	}
	return pid, nil
}

// processAlive signal-probes a PID without affecting the process.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
