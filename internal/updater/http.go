package updater

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"intifacectl/pkg/logging"
)

const subsystem = "Updater"

// NewHTTPClient returns the retrying client used for all downloads.
func NewHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = leveledLogger{}
	return c
}

// leveledLogger routes retryablehttp's logging into ours.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) { logKV(logging.LevelError, msg, kv) }
func (leveledLogger) Warn(msg string, kv ...interface{})  { logKV(logging.LevelWarn, msg, kv) }
func (leveledLogger) Info(msg string, kv ...interface{})  { logKV(logging.LevelDebug, msg, kv) }
func (leveledLogger) Debug(msg string, kv ...interface{}) { logKV(logging.LevelDebug, msg, kv) }

func logKV(level logging.LogLevel, msg string, kv []interface{}) {
	attrs := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	logging.Log(level, subsystem, msg, attrs...)
}

// fetch GETs url and returns at most limit bytes of body.
func fetch(ctx context.Context, client *retryablehttp.Client, url string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, limit)
	}
	return data, nil
}
