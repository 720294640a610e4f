package supervisor

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iambrandonn/graphgate/internal/engine"
	"github.com/iambrandonn/graphgate/internal/enginetest"
	"github.com/iambrandonn/graphgate/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture holds the per-test file layout a supervisor operates on.
type fixture struct {
	dir        string
	socketPath string
	logPath    string
	pidPath    string
	lockPath   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := os.MkdirTemp("", "gg")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return &fixture{
		dir:        dir,
		socketPath: filepath.Join(dir, "engine.sock"),
		logPath:    filepath.Join(dir, "engine.log"),
		pidPath:    filepath.Join(dir, "engine.pid"),
		lockPath:   filepath.Join(dir, "engine.lock"),
	}
}

// engineScript writes an executable shell script to the fixture dir and
// returns its argv. The script's stdout/stderr land in the engine log.
func (f *fixture) engineScript(t *testing.T, body string) []string {
	t.Helper()
	path := filepath.Join(f.dir, "engine.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return []string{"/bin/sh", path}
}

func (f *fixture) supervisor(t *testing.T, engineCmd []string, readyTimeout time.Duration) *Supervisor {
	t.Helper()
	return New(Options{
		SocketPath:   f.socketPath,
		LogPath:      f.logPath,
		PIDPath:      f.pidPath,
		LockPath:     f.lockPath,
		EngineCmd:    engineCmd,
		ReadyMarker:  "SERVER_READY",
		ReadyTimeout: readyTimeout,
		PollInterval: 50 * time.Millisecond,
		StopGrace:    time.Second,
		LogTailLines: 10,
	}, testLogger())
}

func TestStartWaitsForReadinessMarker(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `echo "initializing"
sleep 0.2
echo "SERVER_READY"
sleep 30`)
	sup := f.supervisor(t, cmd, 10*time.Second)
	defer sup.Stop(context.Background())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state := sup.Status()
	if !state.Running {
		t.Error("engine not reported running after start")
	}
	if state.PID == 0 {
		t.Error("no PID recorded")
	}
}

func TestStartFailsWhenMarkerNeverAppears(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `echo "stuck initializing forever"
sleep 30`)
	sup := f.supervisor(t, cmd, 400*time.Millisecond)

	err := sup.Start(context.Background())
	if err == nil {
		t.Fatal("start succeeded without a readiness marker")
	}
	if !strings.Contains(err.Error(), "stuck initializing forever") {
		t.Errorf("failure lacks log tail: %v", err)
	}

	// State must settle back to stopped: no socket, no live process.
	state := sup.Status()
	if state.Running {
		t.Error("engine still running after failed start")
	}
	if state.SocketPresent {
		t.Error("socket left behind after failed start")
	}
}

func TestStartFailsFastWhenEngineDiesEarly(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `echo "fatal: cannot reach graph database"
exit 1`)
	sup := f.supervisor(t, cmd, 30*time.Second)

	start := time.Now()
	err := sup.Start(context.Background())
	if err == nil {
		t.Fatal("start succeeded despite engine death")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("start waited %s for a dead process", elapsed)
	}
	if !strings.Contains(err.Error(), "cannot reach graph database") {
		t.Errorf("failure lacks log tail: %v", err)
	}
}

func TestStartRefusedWhileEngineLive(t *testing.T) {
	f := newFixture(t)

	// A live listener on the socket stands in for a running engine.
	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	cmd := f.engineScript(t, `echo "SERVER_READY"; sleep 30`)
	sup := f.supervisor(t, cmd, 5*time.Second)

	err = sup.Start(context.Background())
	if err == nil {
		t.Fatal("second start succeeded with a live engine on the socket")
	}
	if err != protocol.ErrAlreadyRunning {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
	// Nothing may have been spawned.
	if _, statErr := os.Stat(f.pidPath); statErr == nil {
		t.Error("a second process was spawned")
	}
}

func TestStartRemovesStaleSocket(t *testing.T) {
	f := newFixture(t)

	// A socket file with nothing listening: the legacy behavior would
	// report "already running" forever.
	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	listener.Close() // leaves the inode unconnectable
	if _, err := os.Stat(f.socketPath); err != nil {
		// Close removed it; recreate a plain stale file.
		if err := os.WriteFile(f.socketPath, nil, 0600); err != nil {
			t.Fatalf("create stale socket: %v", err)
		}
	}

	cmd := f.engineScript(t, `echo "SERVER_READY"
sleep 30`)
	sup := f.supervisor(t, cmd, 10*time.Second)
	defer sup.Stop(context.Background())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start failed on a stale socket: %v", err)
	}
}

func TestStopRemovesSocketWithoutProcess(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.socketPath, nil, 0600); err != nil {
		t.Fatalf("create socket file: %v", err)
	}

	sup := f.supervisor(t, f.engineScript(t, "true"), time.Second)
	if err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := os.Stat(f.socketPath); !os.IsNotExist(err) {
		t.Error("socket file not removed")
	}
}

func TestStopTerminatesRunningEngine(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `echo "SERVER_READY"
sleep 30`)
	sup := f.supervisor(t, cmd, 10*time.Second)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	pid := sup.Status().PID

	if err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	// Give the signal a moment to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && processAlive(pid) {
		time.Sleep(50 * time.Millisecond)
	}
	if processAlive(pid) {
		t.Errorf("pid %d still alive after stop", pid)
	}

	state := sup.Status()
	if state.SocketPresent {
		t.Error("socket file not removed")
	}
	if state.Running {
		t.Error("engine reported running after stop")
	}
}

func TestRestart(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `echo "SERVER_READY"
sleep 30`)
	sup := f.supervisor(t, cmd, 10*time.Second)
	defer sup.Stop(context.Background())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	firstPID := sup.Status().PID

	if err := sup.Restart(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	state := sup.Status()
	if !state.Running {
		t.Error("engine not running after restart")
	}
	if state.PID == firstPID {
		t.Errorf("restart reused pid %d", firstPID)
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	f := newFixture(t)
	sup := f.supervisor(t, f.engineScript(t, "true"), time.Second)

	state := sup.Status()
	if state.SocketPresent || state.Running || state.PID != 0 {
		t.Errorf("fresh fixture reported %+v", state)
	}

	// Status on a stopped supervisor must not create files.
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "engine.sh" {
			t.Errorf("status created %s", e.Name())
		}
	}
}

func TestSelfTestWithoutClient(t *testing.T) {
	f := newFixture(t)
	sup := f.supervisor(t, f.engineScript(t, "true"), time.Second)

	result := sup.SelfTest(context.Background())
	if result.Passed {
		t.Error("self-test passed without a client")
	}
	if result.Query != SelfTestQuery {
		t.Errorf("query = %q", result.Query)
	}
}

func TestSelfTestAgainstHealthyEngine(t *testing.T) {
	socketPath := enginetest.Serve(t, enginetest.AnswerWith(
		[]byte(`{"answer":"Machine learning is the study of algorithms that improve through experience."}`+"\n")))

	f := newFixture(t)
	client := engine.New(engine.Options{
		SocketPath:     socketPath,
		ConnectTimeout: 2 * time.Second,
		SendTimeout:    2 * time.Second,
		RecvTimeout:    2 * time.Second,
	}, testLogger())

	sup := New(Options{
		SocketPath:   f.socketPath,
		LogPath:      f.logPath,
		PIDPath:      f.pidPath,
		LockPath:     f.lockPath,
		EngineCmd:    []string{"true"},
		ReadyMarker:  "SERVER_READY",
		LogTailLines: 10,
		Client:       client,
	}, testLogger())

	result := sup.SelfTest(context.Background())
	if !result.Passed {
		t.Fatalf("self-test failed: %s", result.Error)
	}
	if result.Excerpt == "" {
		t.Error("self-test result lacks an answer excerpt")
	}
	if result.Query != SelfTestQuery {
		t.Errorf("query = %q", result.Query)
	}

	// The self-test must not mutate supervisor state.
	state := sup.Status()
	if state.Running || state.SocketPresent {
		t.Errorf("self-test mutated state: %+v", state)
	}
}

func TestLifecycleLockExcludesConcurrentOperations(t *testing.T) {
	f := newFixture(t)
	cmd := f.engineScript(t, `sleep 5`)
	sup := f.supervisor(t, cmd, 2*time.Second)

	unlock, err := sup.acquireLock()
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer unlock()

	other := f.supervisor(t, cmd, 2*time.Second)
	if err := other.Stop(context.Background()); err != protocol.ErrLockBusy {
		t.Errorf("err = %v, want ErrLockBusy", err)
	}
}
