package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	Namespace         = "dumi.liveDemo"
	TypeSetSource     = Namespace + ".setSource"
	CompileDonePrefix = Namespace + ".compileDone"
	TypeCompileOK     = CompileDonePrefix + ".ok"
	TypeCompileFail   = CompileDonePrefix + ".fail"
)

// Message is the envelope exchanged with a frame. ID correlates a reply
// with its request; peers that do not echo it are still accepted.
type Message struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	ID    string          `json:"id,omitempty"`
}

// NewMessage encodes v as the message value
func NewMessage(typ string, v any) (Message, error) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	return Message{Type: typ, Value: raw}, nil
}

// Decode decodes the message value into v
func (m Message) Decode(v any) error {
	if len(m.Value) == 0 {
		return fmt.Errorf("%s: empty value", m.Type)
	}
	if err := sonic.Unmarshal(m.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// IsCompileDone reports whether m completes a setSource round trip
func (m Message) IsCompileDone() bool {
	return strings.HasPrefix(m.Type, CompileDonePrefix)
}

// Marshal encodes the envelope for the wire
func (m Message) Marshal() ([]byte, error) {
	return sonic.Marshal(m)
}

// UnmarshalMessage decodes a wire envelope
func UnmarshalMessage(data []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode message: missing type")
	}
	return m, nil
}

// CompileDone is the payload of a completion message
type CompileDone struct {
	Err *RemoteError `json:"err"`
}

// RemoteError is an error reported by the isolated context. It is
// surfaced to the demo as-is.
type RemoteError struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}
