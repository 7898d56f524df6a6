package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"intifacectl/pkg/logging"
)

const subsystem = "ControlAPI"

// Tool names served by the control API.
const (
	ToolEngineStatus = "engine_status"
	ToolEngineStart  = "engine_start"
	ToolEngineStop   = "engine_stop"
)

// Options configures a Server.
type Options struct {
	Host       string
	Port       int
	Version    string
	Engine     Engine
	LoadConfig ConfigLoader
}

// Server exposes engine control as MCP tools over SSE on localhost.
type Server struct {
	opts Options
	mcp  *server.MCPServer

	mu     sync.Mutex
	addr   string
	http   *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a Server with its tools registered.
func NewServer(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{opts: opts}
	s.mcp = server.NewMCPServer(
		"intifacectl",
		opts.Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return errors.New("control API already started")
	}

	addr := net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	sse := server.NewSSEServer(
		s.mcp,
		server.WithBaseURL("http://"+ln.Addr().String()),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	// Cancelling the base context ends open event streams so Shutdown
	// does not wait on them.
	base, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.addr = ln.Addr().String()
	s.http = httpServer
	s.cancel = cancel
	s.done = make(chan struct{})

	logging.Info(subsystem, "Serving control API on %s", ln.Addr())
	go func(done chan struct{}) {
		defer close(done)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(subsystem, err, "Control API server error")
		}
	}(s.done)
	return nil
}

// Endpoint returns the base URL of a started server.
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr
}

// Stop closes open sessions and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, cancelStreams, done := s.http, s.cancel, s.done
	s.http, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	logging.Info(subsystem, "Stopping control API")
	cancelStreams()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	select {
	case <-done:
	case <-shutdownCtx.Done():
	}
	return err
}
