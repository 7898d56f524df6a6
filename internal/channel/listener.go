package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"intifacectl/internal/livestate"
	"intifacectl/internal/notify"
	"intifacectl/internal/protocol"
	"intifacectl/pkg/logging"
)

const subsystem = "ControlChannel"

const (
	readChunkSize = 4096

	defaultWriteTimeout = 5 * time.Second
	// exitDrainTimeout bounds how long trailing bytes are read once the
	// process has exited.
	exitDrainTimeout = 250 * time.Millisecond
)

// Config wires a Listener to its collaborators.
type Config struct {
	Transport Transport
	Address   string
	Registry  *livestate.Registry
	Notifier  notify.Notifier
	// WriteTimeout bounds the Stop write. Zero uses a default.
	WriteTimeout time.Duration
}

// Result describes how a served session ended.
type Result struct {
	// Connected is true once the engine connected.
	Connected bool
	// StopSent is true if the Stop instruction was written.
	StopSent bool
	// Clean is true when the process exited after Stop was written.
	Clean bool
	// Err is the channel error that ended the session early, if any.
	Err error
}

type readResult struct {
	data []byte
	err  error
}

// Listener owns one control-channel endpoint for a single engine run.
type Listener struct {
	cfg  Config
	ln   net.Listener
	stop chan struct{}
}

// Listen binds the endpoint so the engine can connect as soon as it starts.
func Listen(cfg Config) (*Listener, error) {
	if cfg.Transport == nil {
		cfg.Transport = NewTransport()
	}
	if cfg.Registry == nil {
		cfg.Registry = livestate.New()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	ln, err := cfg.Transport.Listen(cfg.Address)
	if err != nil {
		return nil, err
	}
	logging.Debug(subsystem, "Listening on %s", cfg.Address)

	return &Listener{
		cfg:  cfg,
		ln:   ln,
		stop: make(chan struct{}, 1),
	}, nil
}

// Address returns the bound endpoint address.
func (l *Listener) Address() string {
	return l.cfg.Address
}

// RequestStop asks the serve loop to send Stop to the engine. It never
// blocks and reports false if a request is already pending.
func (l *Listener) RequestStop() bool {
	select {
	case l.stop <- struct{}{}:
		return true
	default:
		return false
	}
}

// Serve accepts the engine's connection and services it until the process
// exits, the context is cancelled, or the channel fails. Live state is
// cleared on return whatever the cause.
func (l *Listener) Serve(ctx context.Context, processExited <-chan struct{}) Result {
	var res Result
	defer l.cfg.Registry.Clear()
	defer l.ln.Close()

	conn, err := l.accept(ctx, processExited)
	if err != nil {
		res.Err = err
		return res
	}
	if conn == nil {
		// Process exited or context cancelled before the engine connected.
		if isClosed(processExited) {
			logging.Error(subsystem, nil, "Engine exited before connecting to the control channel")
		}
		return res
	}
	defer conn.Close()
	res.Connected = true
	logging.Info(subsystem, "Engine connected to control channel")

	done := make(chan struct{})
	defer close(done)
	reads := make(chan readResult)
	go readLoop(conn, reads, done)

	decoder := protocol.NewDecoder()

	for {
		select {
		case rr := <-reads:
			if rr.err != nil {
				if errors.Is(rr.err, io.EOF) {
					logging.Info(subsystem, "Engine closed the control channel")
					l.cfg.Registry.Clear()
					reads = nil
					continue
				}
				logging.Warn(subsystem, "Control channel read failed: %v", rr.err)
				res.Err = rr.err
				return res
			}
			l.handle(decoder, rr.data)

		case <-l.stop:
			if res.StopSent {
				logging.Debug(subsystem, "Stop already sent, ignoring repeated request")
				continue
			}
			if err := l.writeStop(conn); err != nil {
				logging.Warn(subsystem, "Failed to send stop instruction: %v", err)
				continue
			}
			res.StopSent = true
			logging.Info(subsystem, "Stop instruction sent to engine")

		case <-processExited:
			if reads != nil {
				l.drain(conn, decoder, reads)
			}
			if res.StopSent {
				res.Clean = true
				logging.Info(subsystem, "Engine exited after stop request")
			} else {
				logging.Error(subsystem, nil, "Engine process ended without receiving a stop instruction, unclean shutdown")
			}
			return res

		case <-ctx.Done():
			logging.Debug(subsystem, "Control channel loop cancelled")
			return res
		}
	}
}

// accept waits for the single engine connection. It returns a nil conn
// without error if the process exits or ctx ends first.
func (l *Listener) accept(ctx context.Context, processExited <-chan struct{}) (net.Conn, error) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := l.ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	select {
	case ar := <-accepted:
		if ar.err != nil {
			logging.Warn(subsystem, "Failed to accept engine connection: %v", ar.err)
			return nil, fmt.Errorf("accept failed: %w", ar.err)
		}
		return ar.conn, nil
	case <-processExited:
	case <-ctx.Done():
	}

	l.ln.Close()
	if ar := <-accepted; ar.conn != nil {
		ar.conn.Close()
	}
	return nil, nil
}

func readLoop(conn net.Conn, out chan<- readResult, done <-chan struct{}) {
	for {
		buf := make([]byte, readChunkSize)
		n, err := conn.Read(buf)
		if n > 0 {
			select {
			case out <- readResult{data: buf[:n]}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- readResult{err: err}:
			case <-done:
			}
			return
		}
	}
}

// drain applies whatever the engine wrote before exiting, such as a final
// EngineStopped, bounded by exitDrainTimeout.
func (l *Listener) drain(conn net.Conn, decoder *protocol.Decoder, reads <-chan readResult) {
	_ = conn.SetReadDeadline(time.Now().Add(exitDrainTimeout))
	timeout := time.After(exitDrainTimeout + 50*time.Millisecond)
	for {
		select {
		case rr := <-reads:
			if rr.err != nil {
				return
			}
			l.handle(decoder, rr.data)
		case <-timeout:
			return
		}
	}
}

func (l *Listener) writeStop(conn net.Conn) error {
	payload, err := protocol.MarshalInstruction(protocol.InstructionStop)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

func (l *Listener) handle(decoder *protocol.Decoder, data []byte) {
	msgs, err := decoder.Feed(data)
	if err != nil {
		logging.Warn(subsystem, "Problem decoding control stream: %v", err)
	}
	for _, msg := range msgs {
		l.apply(msg)
	}
}

func (l *Listener) apply(msg protocol.EngineMessage) {
	reg := l.cfg.Registry

	switch m := msg.(type) {
	case protocol.MessageVersion:
		logging.Info(subsystem, "Engine control protocol version %d", m.Version)
	case protocol.EngineLog:
		emitEngineLog(m.Payload)
	case protocol.EngineStarted:
		logging.Info(subsystem, "Engine started")
	case protocol.EngineStopped:
		logging.Info(subsystem, "Engine stopped")
	case protocol.EngineError:
		logging.Error(subsystem, errors.New(m.Message), "Engine reported an error")
	case protocol.ClientConnected:
		reg.Apply(m)
		logging.Info(subsystem, "Client connected: %s", m.Name)
		l.cfg.Notifier.Notify("Intiface Client Connected", fmt.Sprintf("Client %s connected.", m.Name))
	case protocol.ClientDisconnected:
		reg.Apply(m)
		logging.Info(subsystem, "Client disconnected")
		l.cfg.Notifier.Notify("Intiface Client Disconnected", "Client disconnected.")
	case protocol.DeviceConnected:
		reg.Apply(m)
		d, _ := reg.Device(m.Index)
		logging.Info(subsystem, "Device connected: %s (index %d, address %s)", d.Label(), m.Index, m.Address)
		l.cfg.Notifier.Notify("Intiface Device Connected", fmt.Sprintf("Device %s connected.", d.Label()))
	case protocol.DeviceDisconnected:
		if d, ok := reg.Device(m.Index); ok {
			logging.Info(subsystem, "Device disconnected: %s (index %d)", d.Label(), m.Index)
		}
		reg.Apply(m)
	case protocol.ClientRejected:
		logging.Warn(subsystem, "Engine rejected a client: %s", m.Reason)
	}
}

// emitEngineLog re-emits an engine log record at the level the engine chose.
func emitEngineLog(payload string) {
	rec, err := protocol.ParseEngineLog(payload)
	if err != nil {
		logging.Warn(subsystem, "Dropping unparseable engine log record: %v", err)
		return
	}
	level, err := logging.ParseLevel(rec.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	attrs := []slog.Attr{slog.String("engine_target", rec.Target)}
	if rec.Fields.ModulePath != "" {
		attrs = append(attrs, slog.String("engine_module_path", rec.Fields.ModulePath))
	}
	if rec.Fields.File != "" {
		attrs = append(attrs,
			slog.String("engine_file", rec.Fields.File),
			slog.Uint64("engine_line", uint64(rec.Fields.Line)))
	}
	if rec.Timestamp != "" {
		attrs = append(attrs, slog.String("engine_timestamp", rec.Timestamp))
	}
	logging.Log(level, "Engine", rec.Fields.Message, attrs...)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
