package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"intifacectl/internal/supervisor"
	"intifacectl/pkg/logging"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolEngineStatus,
		mcp.WithDescription("Report the engine state, the connected client and connected devices"),
	), s.handleStatus)

	s.mcp.AddTool(mcp.NewTool(ToolEngineStart,
		mcp.WithDescription("Start the engine with the saved configuration"),
	), s.handleStart)

	s.mcp.AddTool(mcp.NewTool(ToolEngineStop,
		mcp.WithDescription("Ask the running engine to shut down"),
	), s.handleStop)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return statusResult(Snapshot(s.opts.Engine))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.LoadConfig == nil {
		return mcp.NewToolResultError("no configuration source"), nil
	}
	cfg, err := s.opts.LoadConfig(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load configuration: %v", err)), nil
	}

	if err := s.opts.Engine.Run(cfg); err != nil {
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			return mcp.NewToolResultError("Engine is already running"), nil
		}
		logging.Error(subsystem, err, "Engine start requested over the control API failed")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start engine: %v", err)), nil
	}
	logging.Info(subsystem, "Engine started over the control API")
	return statusResult(Snapshot(s.opts.Engine))
}

func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.opts.Engine.Stop(); err != nil {
		if errors.Is(err, supervisor.ErrNotRunning) {
			return mcp.NewToolResultError("Engine is not running"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stop engine: %v", err)), nil
	}
	logging.Info(subsystem, "Engine stop requested over the control API")
	return statusResult(Snapshot(s.opts.Engine))
}

func statusResult(st Status) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
