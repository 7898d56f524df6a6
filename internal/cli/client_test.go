package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intifacectl/internal/api"
	"intifacectl/internal/config"
	"intifacectl/internal/livestate"
	"intifacectl/internal/supervisor"
)

type stubEngine struct {
	mu    sync.Mutex
	state supervisor.State
}

func (s *stubEngine) State() supervisor.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubEngine) IsRunning() bool { return s.State() != supervisor.StateNotRunning }

func (s *stubEngine) CurrentClientName() (string, bool) {
	if s.IsRunning() {
		return "Game", true
	}
	return "", false
}

func (s *stubEngine) ConnectedDevices() []livestate.DeviceRecord {
	if !s.IsRunning() {
		return nil
	}
	return []livestate.DeviceRecord{{Index: 1, Name: "Toy1", Address: "AA:BB"}}
}

func (s *stubEngine) Run(config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != supervisor.StateNotRunning {
		return supervisor.ErrAlreadyRunning
	}
	s.state = supervisor.StateRunning
	return nil
}

func (s *stubEngine) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != supervisor.StateRunning {
		return supervisor.ErrNotRunning
	}
	s.state = supervisor.StateNotRunning
	return nil
}

func startAPI(t *testing.T) string {
	t.Helper()
	srv := api.NewServer(api.Options{
		Host:   "127.0.0.1",
		Port:   0,
		Engine: &stubEngine{},
		LoadConfig: func(context.Context) (config.Config, error) {
			return config.Default(), nil
		},
	})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv.Endpoint()
}

func TestClientAgainstServer(t *testing.T) {
	endpoint := startAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := NewCLIClient(endpoint+"/", "test")
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	var out bytes.Buffer
	exec := NewToolExecutor(c, OutputFormatJSON, &out)

	require.NoError(t, exec.Execute(ctx, api.ToolEngineStatus))
	assert.Contains(t, out.String(), `"state": "NotRunning"`)

	out.Reset()
	require.NoError(t, exec.Execute(ctx, api.ToolEngineStart))
	assert.Contains(t, out.String(), `"client": "Game"`)

	err := exec.Execute(ctx, api.ToolEngineStart)
	assert.EqualError(t, err, "Engine is already running")

	require.NoError(t, exec.Execute(ctx, api.ToolEngineStop))
	assert.EqualError(t, exec.Execute(ctx, api.ToolEngineStop), "Engine is not running")
}

func TestConnectWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewCLIClient("http://127.0.0.1:1", "test")
	assert.Error(t, c.Connect(ctx))

	_, err := c.CallTool(ctx, api.ToolEngineStatus, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

type cannedCaller struct {
	raw string
	err error
}

func (c cannedCaller) CallToolSimple(context.Context, string, map[string]interface{}) (string, error) {
	return c.raw, c.err
}

func TestExecutorRejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	err := NewToolExecutor(cannedCaller{raw: "hello"}, OutputFormatTable, &out).Execute(context.Background(), "x")
	assert.ErrorContains(t, err, "unexpected response")

	err = NewToolExecutor(cannedCaller{err: errors.New("boom")}, OutputFormatTable, &out).Execute(context.Background(), "x")
	assert.EqualError(t, err, "boom")
}

func TestWriteStatus(t *testing.T) {
	st := api.Status{
		State:   "Running",
		Running: true,
		Client:  "Game",
		Devices: []livestate.DeviceRecord{
			{Index: 0, Name: "Toy1", Address: "AA:BB"},
			{Index: 2, Name: "Toy2", DisplayName: "Blue", Address: "CC:DD"},
		},
	}

	var table bytes.Buffer
	require.NoError(t, WriteStatus(&table, st, OutputFormatTable))
	for _, want := range []string{"ENGINE", "Running", "Game", "Toy1", "Blue", "CC:DD"} {
		assert.Contains(t, table.String(), want)
	}

	var yml bytes.Buffer
	require.NoError(t, WriteStatus(&yml, st, OutputFormatYAML))
	assert.True(t, strings.HasPrefix(yml.String(), "state: Running\n"))
	assert.Contains(t, yml.String(), "display_name: Blue")

	var empty bytes.Buffer
	require.NoError(t, WriteStatus(&empty, api.Status{State: "NotRunning"}, OutputFormatTable))
	assert.Contains(t, empty.String(), "No devices connected")

	assert.Error(t, WriteStatus(&empty, st, "xml"))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatYAML, f)

	_, err = ParseOutputFormat("csv")
	assert.Error(t, err)
}
