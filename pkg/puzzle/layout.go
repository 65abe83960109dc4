package puzzle

import (
	"fmt"
	"math/rand"

	"github.com/cbodonnell/jigsaw/pkg/geometry"
)

// Position is a top-left screen coordinate for a piece's box.
type Position struct {
	X float64
	Y float64
}

// Layout decides where pieces start.
type Layout interface {
	Place(pieces []geometry.PieceGeometry) ([]Position, error)
}

// GridLayout puts every piece where it belongs in the solved picture,
// shifted by Origin.
type GridLayout struct {
	Origin Position
}

func (l GridLayout) Place(pieces []geometry.PieceGeometry) ([]Position, error) {
	positions := make([]Position, len(pieces))
	for i, p := range pieces {
		positions[i] = gridSlot(l.Origin, p)
	}
	return positions, nil
}

// gridSlot places the piece box so its nominal cell lands on its cell.
func gridSlot(origin Position, p geometry.PieceGeometry) Position {
	n := p.Nominal()
	return Position{
		X: origin.X + n.X - p.Offset.X,
		Y: origin.Y + n.Y - p.Offset.Y,
	}
}

// Container is the area pieces are scattered in.
type Container struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ScatterLayout drops every piece at a uniformly random point inside
// Container, leaving room for the piece box so it never overflows.
type ScatterLayout struct {
	Container Container
	Rand      *rand.Rand
}

func (l ScatterLayout) Place(pieces []geometry.PieceGeometry) ([]Position, error) {
	if l.Rand == nil {
		return nil, fmt.Errorf("scatter layout needs a random source")
	}
	if l.Container.Width <= 0 || l.Container.Height <= 0 {
		return nil, fmt.Errorf("container must not be empty, got %vx%v", l.Container.Width, l.Container.Height)
	}
	positions := make([]Position, len(pieces))
	for i, p := range pieces {
		positions[i] = Position{
			X: l.Container.X + l.Rand.Float64()*slack(l.Container.Width, p.Box.Width),
			Y: l.Container.Y + l.Rand.Float64()*slack(l.Container.Height, p.Box.Height),
		}
	}
	return positions, nil
}

// slack is the room left for a piece of size inside space. A piece larger
// than the container is pinned to the container's origin.
func slack(space, size float64) float64 {
	if size >= space {
		return 0
	}
	return space - size
}

// ShuffleLayout uses the solved grid slots but hands them out in random order.
type ShuffleLayout struct {
	Origin Position
	Rand   *rand.Rand
}

func (l ShuffleLayout) Place(pieces []geometry.PieceGeometry) ([]Position, error) {
	if l.Rand == nil {
		return nil, fmt.Errorf("shuffle layout needs a random source")
	}
	slots := make([]Position, len(pieces))
	for i, p := range pieces {
		slots[i] = gridSlot(l.Origin, p)
	}
	l.Rand.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})
	return slots, nil
}
