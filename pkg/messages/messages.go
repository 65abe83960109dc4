package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/jigsaw/pkg/puzzle"
)

const (
	// MessageBufferSize represents the maximum size of a decoded message
	MessageBufferSize = 64 << 20
)

type MessageType string

// Message types
const (
	MessageTypeServerState   MessageType = "state"
	MessageTypeClientStart   MessageType = "start"
	MessageTypeClientMove    MessageType = "move"
	MessageTypeClientRelease MessageType = "release"
)

// Message is the envelope every frame is decoded into. Payload holds the
// JSON body of the message; on the wire the type sits alongside the body
// fields, e.g. {"type":"move","index":2,"x":1,"y":2}.
type Message struct {
	ClientID uint32          `json:"-"`
	Type     MessageType     `json:"type"`
	Payload  json.RawMessage `json:"-"`
}

// NewMessage marshals body into a message of type t.
func NewMessage(t MessageType, body interface{}) (*Message, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}
	return &Message{
		Type:    t,
		Payload: payload,
	}, nil
}

// ServerState is the full snapshot broadcast once per tick.
type ServerState struct {
	SessionID string              `json:"sessionId,omitempty"`
	Timestamp int64               `json:"timestamp"`
	Puzzle    []puzzle.PieceState `json:"puzzle"`
}

// ClientStart hands the observer's seeded layout to the authority.
type ClientStart struct {
	Puzzle []puzzle.PieceState `json:"puzzle"`
}

// ClientMove reports a new position for a held piece.
type ClientMove struct {
	Index *int    `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// ClientRelease reports that a held piece was let go.
type ClientRelease struct {
	Index *int `json:"index"`
}

// Move builds a move message.
func Move(index int, x, y float64) (*Message, error) {
	return NewMessage(MessageTypeClientMove, &ClientMove{Index: &index, X: x, Y: y})
}

// Release builds a release message.
func Release(index int) (*Message, error) {
	return NewMessage(MessageTypeClientRelease, &ClientRelease{Index: &index})
}

// Start builds a start message from a seeded state.
func Start(state *puzzle.State) (*Message, error) {
	return NewMessage(MessageTypeClientStart, &ClientStart{Puzzle: state.Pieces})
}
