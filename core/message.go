package core

import (
	"time"
)

// Category is the dispatch key of a message. The router resolves exactly one
// handler per category/message pair, so categories partition the runtime's
// message space.
type Category string

// Built-in categories used by the runtime. Applications may register
// handlers for additional categories.
const (
	// CategoryObservation carries an input or intermediate result delivered
	// to a node for its next decision step.
	CategoryObservation Category = "observation"
	// CategoryActionList carries the actions proposed by a single decision
	// step, prior to group execution.
	CategoryActionList Category = "action_list"
	// CategoryToolResult carries the outcome of a tool invocation.
	CategoryToolResult Category = "tool_result"
	// CategoryError carries a structured failure routed back to the sender
	// of the message that caused it.
	CategoryError Category = "error"
)

// HeaderAttemptID is the message header carrying the delivery attempt
// identifier. The join coordinator de-duplicates on (sender, attempt id), so
// a retried delivery must reuse the attempt id of the original.
const HeaderAttemptID = "attempt_id"

// Payload is the tagged union of message bodies. Exactly one concrete type
// backs every message: Observation, ActionList, ToolResult or ErrorPayload.
type Payload interface {
	payloadCategory() Category
}

// Observation is an input (or an upstream node's output) delivered to a node.
type Observation struct {
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

func (Observation) payloadCategory() Category { return CategoryObservation }

// ActionList holds the actions proposed by one decision step in proposal
// order.
type ActionList struct {
	Actions []Action `json:"actions"`
}

func (ActionList) payloadCategory() Category { return CategoryActionList }

// ToolResult captures the outcome of a previously proposed tool call.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (ToolResult) payloadCategory() Category { return CategoryToolResult }

// ErrorPayload is a structured failure. It is routed back to the sender of
// the message whose handling failed so the sender can decide between retry
// and abort.
type ErrorPayload struct {
	Code    ResultCode `json:"code"`
	Message string     `json:"message"`
}

func (ErrorPayload) payloadCategory() Category { return CategoryError }

// Message is the unit of communication between nodes. Messages are owned
// transiently by the router while in flight and should be treated as
// immutable after construction.
//
// Receivers lists the destination node ids; the router delivers an
// independent copy per receiver, each with a single-element receiver list.
type Message struct {
	ID        string            `json:"id"`
	Category  Category          `json:"category"`
	Payload   Payload           `json:"payload"`
	Sender    string            `json:"sender"`
	Receivers []string          `json:"receivers"`
	SessionID string            `json:"session_id,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage creates a message with a fresh id, attempt id and UTC timestamp.
// The category is derived from the payload type.
func NewMessage(payload Payload, sender string, receivers ...string) Message {
	return Message{
		ID:        NewID(),
		Category:  payload.payloadCategory(),
		Payload:   payload,
		Sender:    sender,
		Receivers: receivers,
		Headers:   map[string]string{HeaderAttemptID: NewID()},
		CreatedAt: time.Now().UTC(),
	}
}

// NewObservationMessage is a convenience wrapper for the common case of
// delivering textual content to one or more nodes.
func NewObservationMessage(content, sender string, receivers ...string) Message {
	return NewMessage(Observation{Content: content}, sender, receivers...)
}

// NewErrorMessage constructs an error-payload message addressed to a single
// receiver (usually the sender of the failed message).
func NewErrorMessage(code ResultCode, err error, sender, receiver string) Message {
	return NewMessage(ErrorPayload{Code: code, Message: err.Error()}, sender, receiver)
}

// AttemptID returns the delivery attempt identifier, or the empty string
// when the header is absent.
func (m Message) AttemptID() string { return m.Headers[HeaderAttemptID] }

// WithHeader returns a copy of the message with the given header set.
func (m Message) WithHeader(key, value string) Message {
	headers := make(map[string]string, len(m.Headers)+1)
	for k, v := range m.Headers {
		headers[k] = v
	}
	headers[key] = value
	m.Headers = headers
	return m
}

// ForReceiver returns a copy of the message addressed to exactly one
// receiver. The id and attempt id are preserved so retried deliveries stay
// idempotent at join barriers.
func (m Message) ForReceiver(receiver string) Message {
	m.Receivers = []string{receiver}
	return m
}

// Text extracts human-readable content from the payload. Observations return
// their content, tool results a rendering of their result, errors their
// message; action lists return the empty string.
func (m Message) Text() string {
	switch p := m.Payload.(type) {
	case Observation:
		return p.Content
	case ToolResult:
		if p.Error != "" {
			return p.Error
		}
		if s, ok := p.Result.(string); ok {
			return s
		}
		return ""
	case ErrorPayload:
		return p.Message
	default:
		return ""
	}
}
