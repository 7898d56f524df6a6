package channel

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"intifacectl/internal/livestate"
	"intifacectl/internal/protocol"
	"intifacectl/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeListener hands out the server halves of net.Pipe connections.
type pipeListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), closed: make(chan struct{})}
}

func (p *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	case <-p.closed:
		return nil, net.ErrClosed
	}
}

func (p *pipeListener) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeListener) Addr() net.Addr { return pipeAddr{} }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

type memTransport struct {
	ln *pipeListener
}

func (m *memTransport) Address(name string) string { return "mem:" + name }

func (m *memTransport) Listen(string) (net.Listener, error) { return m.ln, nil }

func (m *memTransport) Dial(ctx context.Context, _ string) (net.Conn, error) {
	server, client := net.Pipe()
	select {
	case m.ln.conns <- server:
		return client, nil
	case <-m.ln.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingNotifier) Notify(title, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

func (r *recordingNotifier) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

type session struct {
	listener *Listener
	registry *livestate.Registry
	notifier *recordingNotifier
	logs     *logging.Buffer
	exited   chan struct{}
	result   chan Result
	cancel   context.CancelFunc
	tr       *memTransport
}

func startSession(t *testing.T) *session {
	t.Helper()

	logs := logging.NewBuffer(500)
	logging.InitForTUI(logging.LevelDebug, logs, nil)
	t.Cleanup(func() { logging.InitForCLI(logging.LevelInfo, os.Stderr) })

	tr := &memTransport{ln: newPipeListener()}
	s := &session{
		registry: livestate.New(),
		notifier: &recordingNotifier{},
		logs:     logs,
		exited:   make(chan struct{}),
		result:   make(chan Result, 1),
		tr:       tr,
	}

	l, err := Listen(Config{
		Transport: tr,
		Address:   tr.Address(NewName()),
		Registry:  s.registry,
		Notifier:  s.notifier,
	})
	require.NoError(t, err)
	s.listener = l

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	t.Cleanup(cancel)
	go func() { s.result <- l.Serve(ctx, s.exited) }()
	return s
}

func (s *session) connect(t *testing.T) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := s.tr.Dial(ctx, s.listener.Address())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *session) wait(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-s.result:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not return")
		return Result{}
	}
}

func send(t *testing.T, conn net.Conn, msgs ...protocol.EngineMessage) {
	t.Helper()
	for _, m := range msgs {
		b, err := protocol.Marshal(m)
		require.NoError(t, err)
		_, err = conn.Write(b)
		require.NoError(t, err)
	}
}

func entriesAt(buf *logging.Buffer, level logging.LogLevel) []logging.LogEntry {
	var out []logging.LogEntry
	for _, e := range buf.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func hasMessage(buf *logging.Buffer, substr string) bool {
	for _, e := range buf.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestMessagesUpdateRegistry(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	send(t, conn,
		protocol.MessageVersion{Version: 1},
		protocol.ClientConnected{Name: "TestClient"},
		protocol.DeviceConnected{Name: "Toy1", Index: 0, Address: "AA:BB"},
	)

	assert.Eventually(t, func() bool {
		return len(s.registry.ConnectedDevices()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	name, ok := s.registry.CurrentClientName()
	assert.True(t, ok)
	assert.Equal(t, "TestClient", name)
	assert.Equal(t, []livestate.DeviceRecord{{Index: 0, Name: "Toy1", Address: "AA:BB"}}, s.registry.ConnectedDevices())
	assert.Equal(t, []string{"Intiface Client Connected", "Intiface Device Connected"}, s.notifier.Titles())

	close(s.exited)
	s.wait(t)
}

func TestExitClearsState(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	send(t, conn,
		protocol.ClientConnected{Name: "TestClient"},
		protocol.DeviceConnected{Name: "Toy1", Index: 4, Address: "AA"},
	)
	assert.Eventually(t, func() bool {
		return len(s.registry.ConnectedDevices()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	close(s.exited)
	res := s.wait(t)

	assert.True(t, res.Connected)
	_, ok := s.registry.CurrentClientName()
	assert.False(t, ok)
	assert.Empty(t, s.registry.ConnectedDevices())
}

func TestExitWithoutStopIsUnclean(t *testing.T) {
	s := startSession(t)
	s.connect(t)

	close(s.exited)
	res := s.wait(t)

	assert.False(t, res.StopSent)
	assert.False(t, res.Clean)

	errs := entriesAt(s.logs, logging.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, subsystem, errs[0].Subsystem)
	assert.Contains(t, errs[0].Message, "unclean shutdown")
}

func TestExitAfterStopIsClean(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	gotStop := make(chan protocol.ControlInstruction, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		ci, err := protocol.ParseInstruction(buf[:n])
		if err != nil {
			return
		}
		b, _ := protocol.Marshal(protocol.EngineStopped{})
		_, _ = conn.Write(b)
		gotStop <- ci
	}()

	assert.True(t, s.listener.RequestStop())

	select {
	case ci := <-gotStop:
		assert.Equal(t, protocol.InstructionStop, ci)
	case <-time.After(2 * time.Second):
		t.Fatal("engine never received Stop")
	}

	close(s.exited)
	res := s.wait(t)

	assert.True(t, res.StopSent)
	assert.True(t, res.Clean)
	assert.Empty(t, entriesAt(s.logs, logging.LevelError))
	assert.True(t, hasMessage(s.logs, "Engine exited after stop request"))
	assert.True(t, hasMessage(s.logs, "Engine stopped"), "trailing EngineStopped must be applied")
}

func TestRequestStopDoesNotBlock(t *testing.T) {
	s := startSession(t)

	assert.True(t, s.listener.RequestStop())
	assert.False(t, s.listener.RequestStop())

	s.cancel()
	s.wait(t)
}

func TestEngineLogIsReemitted(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	payload := `{"timestamp":"2024-03-01T10:00:00Z","level":"WARN","target":"buttplug::server","fields":{"message":"battery low","log.file":"src/server.rs","log.line":12}}`
	send(t, conn, protocol.EngineLog{Payload: payload})

	var found logging.LogEntry
	assert.Eventually(t, func() bool {
		for _, e := range s.logs.Entries() {
			if e.Subsystem == "Engine" {
				found = e
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, logging.LevelWarn, found.Level)
	assert.Equal(t, "battery low", found.Message)

	attrs := map[string]string{}
	for _, a := range found.Attributes {
		attrs[a.Key] = a.Value.String()
	}
	assert.Equal(t, "buttplug::server", attrs["engine_target"])
	assert.Equal(t, "src/server.rs", attrs["engine_file"])
	assert.Equal(t, "12", attrs["engine_line"])

	close(s.exited)
	s.wait(t)
}

func TestSplitWritesAreReassembled(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	b, err := protocol.Marshal(protocol.ClientConnected{Name: "Split Client"})
	require.NoError(t, err)
	for _, c := range b {
		_, err := conn.Write([]byte{c})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		name, ok := s.registry.CurrentClientName()
		return ok && name == "Split Client"
	}, 2*time.Second, 10*time.Millisecond)

	close(s.exited)
	s.wait(t)
}

func TestEngineCloseClearsStateButKeepsWaiting(t *testing.T) {
	s := startSession(t)
	conn := s.connect(t)

	send(t, conn, protocol.ClientConnected{Name: "TestClient"})
	assert.Eventually(t, func() bool {
		_, ok := s.registry.CurrentClientName()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		_, ok := s.registry.CurrentClientName()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-s.result:
		t.Fatal("loop must keep waiting for process exit")
	case <-time.After(50 * time.Millisecond):
	}

	close(s.exited)
	res := s.wait(t)
	assert.False(t, res.Clean)
	assert.Len(t, entriesAt(s.logs, logging.LevelError), 1)
}

func TestExitBeforeConnect(t *testing.T) {
	s := startSession(t)

	close(s.exited)
	res := s.wait(t)

	assert.False(t, res.Connected)
	assert.True(t, hasMessage(s.logs, "before connecting"))

	_, err := s.tr.ln.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestCancelBeforeConnectIsQuiet(t *testing.T) {
	s := startSession(t)

	s.cancel()
	res := s.wait(t)

	assert.False(t, res.Connected)
	assert.NoError(t, res.Err)
	assert.Empty(t, entriesAt(s.logs, logging.LevelError))
}
