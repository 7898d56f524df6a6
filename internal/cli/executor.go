package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"intifacectl/internal/api"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, use table, json or yaml", s)
	}
}

// ToolCaller is the client surface the executor needs.
type ToolCaller interface {
	CallToolSimple(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// ToolExecutor runs engine tools and prints their status result.
type ToolExecutor struct {
	client ToolCaller
	format OutputFormat
	out    io.Writer
}

// NewToolExecutor creates an executor writing to out.
func NewToolExecutor(client ToolCaller, format OutputFormat, out io.Writer) *ToolExecutor {
	return &ToolExecutor{client: client, format: format, out: out}
}

// Execute calls tool and prints the returned status.
func (e *ToolExecutor) Execute(ctx context.Context, tool string) error {
	raw, err := e.client.CallToolSimple(ctx, tool, nil)
	if err != nil {
		return err
	}
	st, err := DecodeStatus(raw)
	if err != nil {
		return fmt.Errorf("unexpected response from %s: %w", tool, err)
	}
	return WriteStatus(e.out, st, e.format)
}

// DecodeStatus parses the JSON status returned by the engine tools.
func DecodeStatus(raw string) (api.Status, error) {
	var st api.Status
	err := json.Unmarshal([]byte(raw), &st)
	return st, err
}

// WriteStatus prints st in format.
func WriteStatus(w io.Writer, st api.Status, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputFormatYAML:
		data, err := yaml.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to convert to YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case OutputFormatTable, "":
		writeStatusTables(w, st)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeStatusTables(w io.Writer, st api.Status) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleRounded)
	summary.AppendRow(table.Row{text.FgHiCyan.Sprint("ENGINE"), formatState(st.State)})
	client := text.FgHiBlack.Sprint("-")
	if st.Client != "" {
		client = st.Client
	}
	summary.AppendRow(table.Row{text.FgHiCyan.Sprint("CLIENT"), client})
	summary.Render()

	if len(st.Devices) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No devices connected"))
		return
	}

	devices := table.NewWriter()
	devices.SetOutputMirror(w)
	devices.SetStyle(table.StyleRounded)
	devices.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("INDEX"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("DISPLAY NAME"),
		text.FgHiCyan.Sprint("ADDRESS"),
	})
	for _, d := range st.Devices {
		display := d.DisplayName
		if display == "" {
			display = text.FgHiBlack.Sprint("-")
		}
		devices.AppendRow(table.Row{d.Index, d.Name, display, d.Address})
	}
	devices.Render()
}

func formatState(state string) string {
	switch strings.ToLower(state) {
	case "running":
		return text.FgGreen.Sprint("▶️  Running")
	case "notrunning":
		return text.FgRed.Sprint("⏹️  Not running")
	case "starting":
		return text.FgYellow.Sprint("⏳ Starting")
	case "stopping":
		return text.FgYellow.Sprint("⏳ Stopping")
	default:
		return state
	}
}
