//go:build !windows

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"intifacectl/internal/channel"
	"intifacectl/internal/config"
	"intifacectl/internal/livestate"
	"intifacectl/internal/protocol"
	"intifacectl/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperModeEnv = "ENGINE_HELPER_MODE"

// fakeEngine re-executes the test binary as a stand-in engine.
func fakeEngine(mode string) func(string, ...string) *exec.Cmd {
	return func(name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", helperModeEnv+"="+mode)
		return cmd
	}
}

// TestHelperProcess is not a real test. It plays the engine for fakeEngine.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	address := ""
	args := os.Args
	for i, a := range args {
		if a == "--frontendpipe" && i+1 < len(args) {
			address = args[i+1]
		}
	}
	if address == "" {
		os.Exit(2)
	}

	conn, err := net.Dial("unix", address)
	if err != nil {
		os.Exit(3)
	}
	write := func(m protocol.EngineMessage) {
		b, _ := protocol.Marshal(m)
		_, _ = conn.Write(b)
	}

	write(protocol.EngineStarted{})
	write(protocol.ClientConnected{Name: "TestClient"})
	write(protocol.DeviceConnected{Name: "Toy1", Index: 0, Address: "AA:BB"})

	switch os.Getenv(helperModeEnv) {
	case "crash":
		time.Sleep(100 * time.Millisecond)
		os.Exit(1)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}

	// Wait for the stop instruction, then shut down cleanly.
	var buf []byte
	chunk := make([]byte, 256)
	for !bytes.Contains(buf, []byte(`"Stop"`)) {
		n, err := conn.Read(chunk)
		if err != nil {
			os.Exit(4)
		}
		buf = append(buf, chunk[:n]...)
	}
	write(protocol.EngineStopped{})
	conn.Close()
	os.Exit(0)
}

type harness struct {
	sup       *Supervisor
	cfg       config.Config
	logs      *logging.Buffer
	dir       string
	transport *recordingTransport
}

// recordingTransport remembers the last address handed out.
type recordingTransport struct {
	channel.Transport
	mu   sync.Mutex
	last string
}

func (r *recordingTransport) Address(name string) string {
	addr := r.Transport.Address(name)
	r.mu.Lock()
	r.last = addr
	r.mu.Unlock()
	return addr
}

func (r *recordingTransport) lastAddress() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()

	logs := logging.NewBuffer(1000)
	logging.InitForTUI(logging.LevelDebug, logs, nil)
	t.Cleanup(func() { logging.InitForCLI(logging.LevelInfo, os.Stderr) })

	orig := execCommand
	execCommand = fakeEngine(mode)
	t.Cleanup(func() { execCommand = orig })

	// Keep socket paths short.
	dir, err := os.MkdirTemp("", "sv")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	tr := &recordingTransport{Transport: channel.NewSocketTransport(dir)}
	sup := New(Options{
		Paths:     config.NewPaths(dir),
		Transport: tr,
	})

	cfg := config.Default()
	cfg.EnginePath = "fake-engine"

	h := &harness{sup: sup, cfg: cfg, logs: logs, dir: dir, transport: tr}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return h
}

func (h *harness) waitStopped(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.sup.Wait(ctx))
	assert.Equal(t, StateNotRunning, h.sup.State())
	assert.False(t, h.sup.IsRunning())
}

func (h *harness) logged(level logging.LogLevel, substr string) bool {
	for _, e := range h.logs.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func (h *harness) waitForClient(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		name, ok := h.sup.CurrentClientName()
		return ok && name == "TestClient" && len(h.sup.ConnectedDevices()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunAndStopEngine(t *testing.T) {
	h := newHarness(t, "clean")

	require.NoError(t, h.sup.Run(h.cfg))
	assert.True(t, h.sup.IsRunning())
	assert.Equal(t, StateRunning, h.sup.State())

	h.waitForClient(t)
	assert.Equal(t, []livestate.DeviceRecord{{Index: 0, Name: "Toy1", Address: "AA:BB"}}, h.sup.ConnectedDevices())

	require.NoError(t, h.sup.Stop())
	h.waitStopped(t)

	_, ok := h.sup.CurrentClientName()
	assert.False(t, ok)
	assert.Empty(t, h.sup.ConnectedDevices())
	assert.True(t, h.logged(logging.LevelInfo, "Engine exited after stop request"))
	assert.False(t, h.logged(logging.LevelError, "unclean shutdown"))
}

func TestUnexpectedExitIsUnclean(t *testing.T) {
	h := newHarness(t, "crash")

	require.NoError(t, h.sup.Run(h.cfg))
	h.waitStopped(t)

	assert.True(t, h.logged(logging.LevelError, "unclean shutdown"))
	_, ok := h.sup.CurrentClientName()
	assert.False(t, ok)
	assert.Empty(t, h.sup.ConnectedDevices())
}

func TestRunWhileRunning(t *testing.T) {
	h := newHarness(t, "clean")

	require.NoError(t, h.sup.Run(h.cfg))
	assert.ErrorIs(t, h.sup.Run(h.cfg), ErrAlreadyRunning)

	h.waitForClient(t)
	require.NoError(t, h.sup.Stop())
	h.waitStopped(t)

	// A finished run frees the supervisor for the next one.
	require.NoError(t, h.sup.Run(h.cfg))
	h.waitForClient(t)
	require.NoError(t, h.sup.Stop())
	h.waitStopped(t)
}

func TestStopWhenNotRunning(t *testing.T) {
	h := newHarness(t, "clean")

	assert.ErrorIs(t, h.sup.Stop(), ErrNotRunning)
	assert.ErrorIs(t, h.sup.Kill(), ErrNotRunning)
	assert.NoError(t, h.sup.Wait(context.Background()))
	assert.Equal(t, StateNotRunning, h.sup.State())
}

func TestRepeatedStopIsNoop(t *testing.T) {
	h := newHarness(t, "clean")

	require.NoError(t, h.sup.Run(h.cfg))
	h.waitForClient(t)

	require.NoError(t, h.sup.Stop())
	assert.NoError(t, h.sup.Stop())
	h.waitStopped(t)
}

func TestSpawnFailure(t *testing.T) {
	h := newHarness(t, "clean")
	execCommand = exec.Command

	h.cfg.EnginePath = "/nonexistent/intiface-engine"
	err := h.sup.Run(h.cfg)

	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, "/nonexistent/intiface-engine", startupErr.Path)
	assert.Equal(t, StateNotRunning, h.sup.State())
	assert.False(t, h.sup.IsRunning())

	// The control channel is gone.
	addr := h.transport.lastAddress()
	require.NotEmpty(t, addr)
	sockets, err := filepath.Glob(filepath.Join(h.dir, "intiface-*", "*.sock"))
	require.NoError(t, err)
	assert.Empty(t, sockets)
	assert.NoDirExists(t, filepath.Dir(addr))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, dialErr := h.transport.Dial(ctx, addr)
	assert.Error(t, dialErr)

	// Nothing was left half-started.
	err = h.sup.Run(h.cfg)
	assert.True(t, errors.As(err, &startupErr))
}

func TestStopKillsUnresponsiveEngine(t *testing.T) {
	h := newHarness(t, "hang")
	h.cfg.EngineStopTimeoutSeconds = 1

	require.NoError(t, h.sup.Run(h.cfg))
	h.waitForClient(t)

	start := time.Now()
	require.NoError(t, h.sup.Stop())
	assert.Equal(t, StateStopping, h.sup.State())
	h.waitStopped(t)

	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.True(t, h.logged(logging.LevelWarn, "killing it"))
	assert.Empty(t, h.sup.ConnectedDevices())
}

func TestShutdownKillsWhenContextExpires(t *testing.T) {
	h := newHarness(t, "hang")
	h.cfg.EngineStopTimeoutSeconds = 0

	require.NoError(t, h.sup.Run(h.cfg))
	h.waitForClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := h.sup.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateNotRunning, h.sup.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NotRunning", StateNotRunning.String())
	assert.Equal(t, "Starting", StateStarting.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Stopping", StateStopping.String())
	assert.Equal(t, "State(9)", State(9).String())
}
