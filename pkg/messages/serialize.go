package messages

import (
	"encoding/json"
	"fmt"

	messagefb "github.com/cbodonnell/jigsaw/flatbuffers/message"
	puzzlestatefb "github.com/cbodonnell/jigsaw/flatbuffers/puzzlestate"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// Format is the wire encoding negotiated per connection.
type Format string

const (
	// FormatJSON sends plain JSON text frames.
	FormatJSON Format = "json"
	// FormatZstd sends zstd-compressed JSON in binary frames.
	FormatZstd Format = "zstd"
	// FormatFlatbuffers sends a zstd-compressed flatbuffer envelope in
	// binary frames. State payloads are flatbuffer tables, the rest JSON.
	FormatFlatbuffers Format = "flatbuffers"
)

// ParseFormat parses a format name. An empty name means FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatZstd:
		return FormatZstd, nil
	case FormatFlatbuffers:
		return FormatFlatbuffers, nil
	default:
		return "", fmt.Errorf("unknown wire format: %s", s)
	}
}

// Binary reports whether frames in this format are binary rather than text.
func (f Format) Binary() bool {
	return f != FormatJSON
}

// the options are fixed so construction cannot fail
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MessageBufferSize))
)

func SerializeMessage(f Format, m *Message) ([]byte, error) {
	switch f {
	case FormatJSON:
		return SerializeMessageJSON(m)
	case FormatZstd:
		b, err := SerializeMessageJSON(m)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize message: %v", err)
		}
		return encoder.EncodeAll(b, nil), nil
	case FormatFlatbuffers:
		b, err := SerializeMessageFlatbuffer(m)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize message: %v", err)
		}
		return encoder.EncodeAll(b, nil), nil
	default:
		return nil, fmt.Errorf("unknown wire format: %s", f)
	}
}

func DeserializeMessage(f Format, data []byte) (*Message, error) {
	switch f {
	case FormatJSON:
		return DeserializeMessageJSON(data)
	case FormatZstd:
		b, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress message: %v", err)
		}
		return DeserializeMessageJSON(b)
	case FormatFlatbuffers:
		b, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress message: %v", err)
		}
		return DeserializeMessageFlatbuffer(b)
	default:
		return nil, fmt.Errorf("unknown wire format: %s", f)
	}
}

// SerializeMessageJSON flattens the payload object and the type into one
// JSON object.
func SerializeMessageJSON(m *Message) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	t, err := json.Marshal(m.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message type: %v", err)
	}
	fields["type"] = t

	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %v", err)
	}
	return b, nil
}

// DeserializeMessageJSON reads the type and keeps the whole object as the
// payload. Payload structs ignore the extra type field.
func DeserializeMessageJSON(b []byte) (*Message, error) {
	head := struct {
		Type MessageType `json:"type"`
	}{}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %v", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}

	payload := make(json.RawMessage, len(b))
	copy(payload, b)
	return &Message{
		Type:    head.Type,
		Payload: payload,
	}, nil
}

func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	payload := []byte(m.Payload)
	if m.Type == MessageTypeServerState {
		state := &ServerState{}
		if err := json.Unmarshal(m.Payload, state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal server state: %v", err)
		}
		payload = SerializeServerState(state)
	}

	builder := flatbuffers.NewBuilder(len(payload) + 64)
	payloadOffset := builder.CreateByteVector(payload)
	typeOffset := builder.CreateString(string(m.Type))

	messagefb.MessageStart(builder)
	messagefb.MessageAddType(builder, typeOffset)
	messagefb.MessageAddPayload(builder, payloadOffset)
	messageOffset := messagefb.MessageEnd(builder)
	builder.Finish(messageOffset)

	return builder.FinishedBytes(), nil
}

func DeserializeMessageFlatbuffer(b []byte) (m *Message, err error) {
	// malformed buffers make the generated accessors index out of range
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("malformed flatbuffer message: %v", r)
		}
	}()

	messageFlatbuffer := messagefb.GetRootAsMessage(b, 0)
	m = &Message{
		Type: MessageType(messageFlatbuffer.Type()),
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}

	payload := messageFlatbuffer.PayloadBytes()
	if m.Type != MessageTypeServerState {
		m.Payload = append(json.RawMessage(nil), payload...)
		return m, nil
	}

	state, err := DeserializeServerState(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize server state: %v", err)
	}
	m.Payload, err = json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server state: %v", err)
	}
	return m, nil
}

// SerializeServerState encodes a tick as a standalone PuzzleState flatbuffer.
func SerializeServerState(state *ServerState) []byte {
	builder := flatbuffers.NewBuilder(0)
	builder.Finish(SerializeServerStateFlatbuffer(builder, state))
	return builder.FinishedBytes()
}

func SerializeServerStateFlatbuffer(builder *flatbuffers.Builder, state *ServerState) flatbuffers.UOffsetT {
	pieces := make([]flatbuffers.UOffsetT, len(state.Puzzle))
	for i := range state.Puzzle {
		pieces[i] = SerializePieceStateFlatbuffer(builder, &state.Puzzle[i])
	}
	puzzlestatefb.PuzzleStateStartPiecesVector(builder, len(pieces))
	for i := len(pieces) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(pieces[i])
	}
	piecesVector := builder.EndVector(len(pieces))
	sessionID := builder.CreateString(state.SessionID)

	puzzlestatefb.PuzzleStateStart(builder)
	puzzlestatefb.PuzzleStateAddSessionId(builder, sessionID)
	puzzlestatefb.PuzzleStateAddTimestamp(builder, state.Timestamp)
	puzzlestatefb.PuzzleStateAddPieces(builder, piecesVector)
	return puzzlestatefb.PuzzleStateEnd(builder)
}

func SerializePieceStateFlatbuffer(builder *flatbuffers.Builder, p *puzzle.PieceState) flatbuffers.UOffsetT {
	var imageRef flatbuffers.UOffsetT
	if p.ImageRef != "" {
		imageRef = builder.CreateString(p.ImageRef)
	}

	puzzlestatefb.PieceStateStart(builder)
	puzzlestatefb.PieceStateAddRow(builder, int32(p.Row))
	puzzlestatefb.PieceStateAddCol(builder, int32(p.Col))
	puzzlestatefb.PieceStateAddX(builder, p.X)
	puzzlestatefb.PieceStateAddY(builder, p.Y)
	if imageRef != 0 {
		puzzlestatefb.PieceStateAddImageRef(builder, imageRef)
	}
	puzzlestatefb.PieceStateAddIsActive(builder, p.IsActive)
	return puzzlestatefb.PieceStateEnd(builder)
}

// DeserializeServerState decodes a PuzzleState flatbuffer.
func DeserializeServerState(b []byte) (state *ServerState, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, err = nil, fmt.Errorf("malformed puzzle state: %v", r)
		}
	}()

	fb := puzzlestatefb.GetRootAsPuzzleState(b, 0)
	state = &ServerState{
		SessionID: string(fb.SessionId()),
		Timestamp: fb.Timestamp(),
		Puzzle:    make([]puzzle.PieceState, fb.PiecesLength()),
	}
	piece := &puzzlestatefb.PieceState{}
	for i := range state.Puzzle {
		if !fb.Pieces(piece, i) {
			return nil, fmt.Errorf("failed to get piece state at index %d", i)
		}
		state.Puzzle[i] = puzzle.PieceState{
			Row:      int(piece.Row()),
			Col:      int(piece.Col()),
			X:        piece.X(),
			Y:        piece.Y(),
			ImageRef: string(piece.ImageRef()),
			IsActive: piece.IsActive(),
		}
	}
	return state, nil
}
