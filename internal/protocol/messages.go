package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned for a well-formed value that does not name
// a known message variant.
var ErrUnknownMessage = errors.New("unknown engine message")

// Variant tags as they appear on the wire.
const (
	TagMessageVersion     = "MessageVersion"
	TagEngineLog          = "EngineLog"
	TagEngineStarted      = "EngineStarted"
	TagEngineStopped      = "EngineStopped"
	TagEngineError        = "EngineError"
	TagClientConnected    = "ClientConnected"
	TagClientDisconnected = "ClientDisconnected"
	TagDeviceConnected    = "DeviceConnected"
	TagDeviceDisconnected = "DeviceDisconnected"
	TagClientRejected     = "ClientRejected"
)

// EngineMessage is a message sent by the engine over the control channel.
// The concrete types below are the only implementations.
type EngineMessage interface {
	Tag() string
}

// MessageVersion announces the control protocol version.
type MessageVersion struct {
	Version uint32
}

// EngineLog carries a JSON-encoded log record emitted by the engine.
type EngineLog struct {
	Payload string
}

type EngineStarted struct{}

type EngineStopped struct{}

type EngineError struct {
	Message string
}

// ClientConnected names the remote controller now attached to the engine.
type ClientConnected struct {
	Name string
}

type ClientDisconnected struct{}

// DeviceConnected announces a peripheral. An empty DisplayName means the
// user has not assigned one.
type DeviceConnected struct {
	Name        string `json:"name"`
	Index       uint32 `json:"index"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
}

type DeviceDisconnected struct {
	Index uint32
}

// ClientRejected reports a connection attempt the engine refused.
type ClientRejected struct {
	Reason string
}

func (MessageVersion) Tag() string     { return TagMessageVersion }
func (EngineLog) Tag() string          { return TagEngineLog }
func (EngineStarted) Tag() string      { return TagEngineStarted }
func (EngineStopped) Tag() string      { return TagEngineStopped }
func (EngineError) Tag() string        { return TagEngineError }
func (ClientConnected) Tag() string    { return TagClientConnected }
func (ClientDisconnected) Tag() string { return TagClientDisconnected }
func (DeviceConnected) Tag() string    { return TagDeviceConnected }
func (DeviceDisconnected) Tag() string { return TagDeviceDisconnected }
func (ClientRejected) Tag() string     { return TagClientRejected }

// ControlInstruction is a message sent to the engine.
type ControlInstruction string

// InstructionStop asks the engine to shut down gracefully.
const InstructionStop ControlInstruction = "Stop"

// MarshalInstruction encodes an instruction for the wire.
func MarshalInstruction(ci ControlInstruction) ([]byte, error) {
	return json.Marshal(string(ci))
}

// ParseInstruction decodes a single instruction value.
func ParseInstruction(raw []byte) (ControlInstruction, error) {
	tag, _, err := splitTagged(raw)
	if err != nil {
		return "", err
	}
	if ControlInstruction(tag) != InstructionStop {
		return "", fmt.Errorf("unknown control instruction %q", tag)
	}
	return InstructionStop, nil
}

// Marshal encodes a message in its externally tagged wire form: unit
// variants as a bare string, everything else as a single-key object.
func Marshal(m EngineMessage) ([]byte, error) {
	var payload any
	switch v := m.(type) {
	case EngineStarted, EngineStopped, ClientDisconnected:
		return json.Marshal(v.Tag())
	case MessageVersion:
		payload = v.Version
	case EngineLog:
		payload = v.Payload
	case EngineError:
		payload = v.Message
	case ClientConnected:
		payload = v.Name
	case DeviceConnected:
		payload = v
	case DeviceDisconnected:
		payload = v.Index
	case ClientRejected:
		payload = v.Reason
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
	return json.Marshal(map[string]any{m.Tag(): payload})
}

// Unmarshal decodes one complete JSON value into an EngineMessage.
func Unmarshal(raw []byte) (EngineMessage, error) {
	tag, body, err := splitTagged(raw)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagEngineStarted:
		return EngineStarted{}, nil
	case TagEngineStopped:
		return EngineStopped{}, nil
	case TagClientDisconnected:
		return ClientDisconnected{}, nil
	}

	if body == nil {
		return nil, fmt.Errorf("%w: %q carries no payload", ErrUnknownMessage, tag)
	}

	var m EngineMessage
	switch tag {
	case TagMessageVersion:
		var v MessageVersion
		err = decodeField(tag, body, &v.Version)
		m = v
	case TagEngineLog:
		var v EngineLog
		err = decodeField(tag, body, &v.Payload)
		m = v
	case TagEngineError:
		var v EngineError
		err = decodeField(tag, body, &v.Message)
		m = v
	case TagClientConnected:
		var v ClientConnected
		err = decodeField(tag, body, &v.Name)
		m = v
	case TagDeviceConnected:
		var v DeviceConnected
		err = decodeField(tag, body, &v)
		m = v
	case TagDeviceDisconnected:
		var v DeviceDisconnected
		err = decodeField(tag, body, &v.Index)
		m = v
	case TagClientRejected:
		var v ClientRejected
		err = decodeField(tag, body, &v.Reason)
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeField(tag string, body json.RawMessage, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", ErrUnknownMessage, tag, err)
	}
	return nil
}

// splitTagged returns the variant tag and, for object form, its payload.
// A unit variant may also arrive as {"Tag":null}, in which case body is nil.
func splitTagged(raw []byte) (string, json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("%w: empty value", ErrUnknownMessage)
	}

	switch raw[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
		}
		return tag, nil, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
		}
		if len(obj) != 1 {
			return "", nil, fmt.Errorf("%w: expected exactly one variant key, got %d", ErrUnknownMessage, len(obj))
		}
		for tag, body := range obj {
			if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
				body = nil
			}
			return tag, body, nil
		}
	}
	return "", nil, fmt.Errorf("%w: value is neither a string nor an object", ErrUnknownMessage)
}
