// Package wire is the msgpack wire format for the optional TCP front-end:
// a client sends one command line per request and gets back the event
// lines it produced. A length-prefixed, msgpack-encoded envelope pair,
// narrowed to this system's single request/response shape instead of a
// typed message-kind enum.
package wire

import (
	"github.com/vmihailenco/msgpack/v5"
)

// CommandMessage carries one raw command-stream line, such as
// "W(T1,x3,33)", exactly as it would appear in a script file.
type CommandMessage struct {
	Line string `msgpack:"line"`
}

// EventMessage carries the event lines a command produced, or an error if
// the line could not be parsed or named an unknown transaction/site.
type EventMessage struct {
	Events []string `msgpack:"events,omitempty"`
	Error  string   `msgpack:"error,omitempty"`
}

// Encode encodes a message using MessagePack.
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode decodes a message using MessagePack.
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// NewCommandMessage wraps a raw command line for transmission.
func NewCommandMessage(line string) *CommandMessage {
	return &CommandMessage{Line: line}
}

// NewEventMessage wraps a successful command's event lines.
func NewEventMessage(events []string) *EventMessage {
	return &EventMessage{Events: events}
}

// NewErrorEventMessage wraps a command failure.
func NewErrorEventMessage(err error) *EventMessage {
	return &EventMessage{Error: err.Error()}
}
