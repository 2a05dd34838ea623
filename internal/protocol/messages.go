// Package protocol defines the JSON payloads exchanged with the moderation
// service: check requests and responses carried over NATS and HTTP, lexicon
// broadcasts, and the WebSocket preview messages. WebSocket messages follow
// a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/whisper/moderation/internal/moderation"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server preview message types.
const (
	TypePreview      = "preview"
	TypeSetPreset    = "set_preset"
	TypeUpdateConfig = "update_config"
	TypeGetConfig    = "get_config"
	TypePing         = "ping"
)

// Server -> Client preview message types.
const (
	TypeSessionCreated = "session_created"
	TypePreviewResult  = "preview_result"
	TypeConfig         = "config"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope: used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so the rest of the payload can be decoded later.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// PreviewMsg asks the server to moderate text without delivering it.
type PreviewMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SetPresetMsg switches the connection's engine to a built-in preset.
type SetPresetMsg struct {
	Type   string `json:"type"`
	Preset string `json:"preset"`
}

// UpdateConfigMsg patches the connection's engine config.
type UpdateConfigMsg struct {
	Type   string                 `json:"type"`
	Config moderation.ConfigPatch `json:"config"`
}

// GetConfigMsg requests the connection's current config.
type GetConfigMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent when a preview connection is established.
type SessionCreatedMsg struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Config    moderation.Config `json:"config"`
}

// PreviewResultMsg carries the outcome of a preview.
type PreviewResultMsg struct {
	Type   string            `json:"type"`
	Result moderation.Result `json:"result"`
}

// ConfigMsg reports the connection's current config.
type ConfigMsg struct {
	Type   string            `json:"type"`
	Config moderation.Config `json:"config"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypePreview:
		var m PreviewMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSetPreset:
		var m SetPresetMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUpdateConfig:
		var m UpdateConfigMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeGetConfig:
		var m GetConfigMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
