package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EngineLogRecord is the structured record carried inside an EngineLog
// message.
type EngineLogRecord struct {
	Timestamp string          `json:"timestamp"`
	Level     string          `json:"level"`
	Target    string          `json:"target"`
	Fields    EngineLogFields `json:"fields"`
}

// EngineLogFields holds the message and its source location.
type EngineLogFields struct {
	Message    string `json:"message"`
	ModulePath string `json:"log.module_path,omitempty"`
	File       string `json:"log.file,omitempty"`
	Line       uint32 `json:"log.line,omitempty"`
}

// ParseEngineLog decodes the payload of an EngineLog message.
func ParseEngineLog(payload string) (EngineLogRecord, error) {
	var rec EngineLogRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return EngineLogRecord{}, fmt.Errorf("failed to parse engine log record: %w", err)
	}
	rec.Level = strings.ToUpper(strings.TrimSpace(rec.Level))
	return rec, nil
}
