// Package puzzle holds the mutable model of where every piece currently sits.
package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cbodonnell/jigsaw/pkg/geometry"
)

// ErrIndexOutOfRange is returned for piece indices outside 0..N-1.
var ErrIndexOutOfRange = errors.New("piece index out of range")

// PieceState is the live position of one piece. The piece's index is its
// position in State.Pieces and matches geometry.PieceGeometry.Index.
type PieceState struct {
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ImageRef string  `json:"imageRef"`
	IsActive bool    `json:"isActive"`
}

// State is a flat index -> position mapping.
type State struct {
	Pieces []PieceState `json:"puzzle"`
}

// NewState returns a state with n pieces at the origin.
func NewState(n int) *State {
	return &State{
		Pieces: make([]PieceState, n),
	}
}

// Seed places every piece with layout. Pieces must be in generator order.
func Seed(pieces []geometry.PieceGeometry, layout Layout) (*State, error) {
	s := NewState(len(pieces))
	positions, err := layout.Place(pieces)
	if err != nil {
		return nil, fmt.Errorf("failed to place pieces: %v", err)
	}
	if len(positions) != len(pieces) {
		return nil, fmt.Errorf("layout placed %d pieces, want %d", len(positions), len(pieces))
	}
	for i, p := range pieces {
		if p.Index != i {
			return nil, fmt.Errorf("piece %d reports index %d", i, p.Index)
		}
		s.Pieces[i] = PieceState{
			Row: p.Row,
			Col: p.Col,
			X:   positions[i].X,
			Y:   positions[i].Y,
		}
	}
	return s, nil
}

// Len returns the number of pieces.
func (s *State) Len() int {
	return len(s.Pieces)
}

func (s *State) check(index int) error {
	if index < 0 || index >= len(s.Pieces) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.Pieces))
	}
	return nil
}

// SetPosition moves one piece.
func (s *State) SetPosition(index int, x, y float64) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.Pieces[index].X = x
	s.Pieces[index].Y = y
	return nil
}

// Position returns the coordinates of one piece.
func (s *State) Position(index int) (float64, float64, error) {
	if err := s.check(index); err != nil {
		return 0, 0, err
	}
	return s.Pieces[index].X, s.Pieces[index].Y, nil
}

// SetActive flags a piece as being manipulated somewhere.
func (s *State) SetActive(index int, active bool) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.Pieces[index].IsActive = active
	return nil
}

// SetImageRef attaches the reference a renderer uses to find the piece's pixels.
func (s *State) SetImageRef(index int, ref string) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.Pieces[index].ImageRef = ref
	return nil
}

// Copy returns a deep copy.
func (s *State) Copy() *State {
	c := &State{
		Pieces: make([]PieceState, len(s.Pieces)),
	}
	copy(c.Pieces, s.Pieces)
	return c
}

// Equal reports whether both states hold the same pieces.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Pieces) != len(other.Pieces) {
		return false
	}
	for i := range s.Pieces {
		if s.Pieces[i] != other.Pieces[i] {
			return false
		}
	}
	return true
}

// Serialize encodes the state as `{"puzzle": [...]}`.
func (s *State) Serialize() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal puzzle state: %v", err)
	}
	return b, nil
}

// Deserialize decodes a state produced by Serialize.
func Deserialize(b []byte) (*State, error) {
	s := &State{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal puzzle state: %v", err)
	}
	if s.Pieces == nil {
		s.Pieces = []PieceState{}
	}
	return s, nil
}
