package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"intifacectl/internal/channel"
	"intifacectl/internal/config"
	"intifacectl/internal/livestate"
	"intifacectl/internal/notify"
	"intifacectl/internal/utils"
	"intifacectl/pkg/logging"
)

const subsystem = "Supervisor"

// waitDelay bounds how long Wait keeps copying engine output after exit.
const waitDelay = 2 * time.Second

// execCommand is a var so tests can substitute a helper process.
var execCommand = exec.Command

// State is the lifecycle of the supervised engine.
type State int32

const (
	StateNotRunning State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateNotRunning:
		return "NotRunning"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options wires a Supervisor to its collaborators. Zero values get defaults.
type Options struct {
	Paths     config.Paths
	Transport channel.Transport
	Registry  *livestate.Registry
	Notifier  notify.Notifier
	// FileExists decides whether optional device files are passed on.
	FileExists func(string) bool
}

// Supervisor launches and stops a single engine process and exposes the
// live state it reports over the control channel.
type Supervisor struct {
	paths      config.Paths
	transport  channel.Transport
	registry   *livestate.Registry
	notifier   notify.Notifier
	fileExists func(string) bool

	state atomic.Int32

	mu  sync.Mutex
	run *engineRun
}

// engineRun is one spawned engine and its control channel.
type engineRun struct {
	cmd         *exec.Cmd
	listener    *channel.Listener
	stopTimeout time.Duration
	stdout      *lineLogger
	stderr      *lineLogger

	// exited is closed when the process has been reaped.
	exited chan struct{}
	// done is closed after the session is torn down and state is NotRunning.
	done chan struct{}

	killOnce  sync.Once
	killTimer *time.Timer
	timerMu   sync.Mutex
}

// New creates a Supervisor in the NotRunning state.
func New(opts Options) *Supervisor {
	if opts.Transport == nil {
		opts.Transport = channel.NewTransport()
	}
	if opts.Registry == nil {
		opts.Registry = livestate.New()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.FileExists == nil {
		opts.FileExists = utils.FileExists
	}
	return &Supervisor{
		paths:      opts.Paths,
		transport:  opts.Transport,
		registry:   opts.Registry,
		notifier:   opts.Notifier,
		fileExists: opts.FileExists,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// IsRunning reports whether an engine process is alive.
func (s *Supervisor) IsRunning() bool {
	switch s.State() {
	case StateRunning, StateStopping:
		return true
	default:
		return false
	}
}

// CurrentClientName returns the connected client's name, if any.
func (s *Supervisor) CurrentClientName() (string, bool) {
	return s.registry.CurrentClientName()
}

// ConnectedDevices returns the devices the engine reports, ordered by index.
func (s *Supervisor) ConnectedDevices() []livestate.DeviceRecord {
	return s.registry.ConnectedDevices()
}

// Registry exposes the live state the supervisor maintains.
func (s *Supervisor) Registry() *livestate.Registry {
	return s.registry
}

// Run starts the engine with cfg. The control channel is bound before the
// process is spawned. It returns once the process has started; exit is
// observed in the background.
func (s *Supervisor) Run(cfg config.Config) error {
	if !s.state.CompareAndSwap(int32(StateNotRunning), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	exe := s.paths.EngineExecutable(cfg)
	address := s.transport.Address(channel.NewName())

	listener, err := channel.Listen(channel.Config{
		Transport: s.transport,
		Address:   address,
		Registry:  s.registry,
		Notifier:  s.notifier,
	})
	if err != nil {
		s.state.Store(int32(StateNotRunning))
		logging.Error(subsystem, err, "Failed to open control channel")
		return &StartupError{Path: exe, Err: fmt.Errorf("control channel: %w", err)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	served := make(chan channel.Result, 1)
	go func() {
		served <- listener.Serve(ctx, exited)
	}()

	args := BuildArguments(cfg, s.paths, address, s.fileExists)
	r := &engineRun{
		cmd:         execCommand(exe, args...),
		listener:    listener,
		stopTimeout: cfg.StopTimeout(),
		stdout:      newLineLogger(logging.LevelDebug, "stdout"),
		stderr:      newLineLogger(logging.LevelWarn, "stderr"),
		exited:      exited,
		done:        make(chan struct{}),
	}
	configureProcess(r.cmd)
	r.cmd.Stdout = r.stdout
	r.cmd.Stderr = r.stderr
	r.cmd.WaitDelay = waitDelay

	logging.Debug(subsystem, "Starting engine: %s %v", exe, args)
	if err := r.cmd.Start(); err != nil {
		cancel()
		<-served
		s.state.Store(int32(StateNotRunning))
		logging.Error(subsystem, err, "Failed to start engine %s", exe)
		return &StartupError{Path: exe, Err: err}
	}

	s.mu.Lock()
	s.run = r
	s.mu.Unlock()
	s.state.Store(int32(StateRunning))
	logging.Info(subsystem, "Engine started with pid %d", r.cmd.Process.Pid)

	go s.watch(r, served, cancel)
	return nil
}

// watch reaps the process, lets the listener finish so live state is
// cleared, and only then returns the supervisor to NotRunning.
func (s *Supervisor) watch(r *engineRun, served <-chan channel.Result, cancel context.CancelFunc) {
	err := r.cmd.Wait()
	r.stdout.Flush()
	r.stderr.Flush()
	if err != nil {
		logging.Info(subsystem, "Engine process exited: %v", err)
	} else {
		logging.Info(subsystem, "Engine process exited")
	}
	close(r.exited)

	res := <-served
	cancel()
	r.stopKillTimer()
	if res.Err != nil {
		logging.Debug(subsystem, "Control channel ended with error: %v", res.Err)
	}

	s.mu.Lock()
	if s.run == r {
		s.run = nil
	}
	s.mu.Unlock()
	s.state.Store(int32(StateNotRunning))
	close(r.done)
}

// Stop asks a running engine to shut down. It never blocks on the engine.
// Stopping an engine that is not running is logged and reported as
// ErrNotRunning; a repeated stop while one is pending is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()

	if r == nil {
		logging.Info(subsystem, "Stop requested but the engine is not running")
		return ErrNotRunning
	}
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if s.State() == StateStopping {
			logging.Debug(subsystem, "Stop already in progress")
			return nil
		}
		logging.Info(subsystem, "Stop requested but the engine is not running")
		return ErrNotRunning
	}

	r.listener.RequestStop()
	logging.Info(subsystem, "Stop requested")

	if r.stopTimeout > 0 {
		r.armKill(r.stopTimeout)
	}
	return nil
}

// Kill terminates the engine immediately.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}
	return r.kill()
}

// Wait blocks until the current engine run has been fully torn down or ctx
// ends. It returns nil immediately if nothing is running.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the engine and waits for it. If ctx ends first the
// process is killed.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.IsRunning() {
		return nil
	}
	_ = s.Stop()
	err := s.Wait(ctx)
	if err == nil {
		return nil
	}
	logging.Warn(subsystem, "Engine did not stop in time, killing it")
	if kerr := s.Kill(); kerr != nil && kerr != ErrNotRunning {
		logging.Error(subsystem, kerr, "Failed to kill engine")
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), waitDelay)
	defer cancel()
	_ = s.Wait(waitCtx)
	return err
}

func (r *engineRun) armKill(after time.Duration) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.killTimer != nil {
		return
	}
	r.killTimer = time.AfterFunc(after, func() {
		if isClosed(r.exited) {
			return
		}
		logging.Warn(subsystem, "Engine did not exit within %s of the stop request, killing it", after)
		if err := r.kill(); err != nil {
			logging.Error(subsystem, err, "Failed to kill engine")
		}
	})
}

func (r *engineRun) stopKillTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.killTimer != nil {
		r.killTimer.Stop()
	}
}

func (r *engineRun) kill() error {
	var err error
	r.killOnce.Do(func() {
		err = killProcess(r.cmd)
	})
	return err
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
