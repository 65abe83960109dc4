// Package geometry splits a source image into a grid of interlocking jigsaw
// pieces. It only produces boundary paths and sampling rectangles; turning
// them into pixels is the caller's job.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"

	"github.com/cbodonnell/jigsaw/pkg/curve"
)

// ErrInvalidConfig is returned when the grid or the image would make
// degenerate pieces.
var ErrInvalidConfig = errors.New("invalid puzzle configuration")

type options struct {
	rng *rand.Rand
}

// Option configures Generate.
type Option func(*options)

// WithRandomPolarity picks tab or slot independently for every internal
// edge instead of the fixed polarity. Because a tab may then face any side,
// every piece gets the tab margin on all four sides.
func WithRandomPolarity(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// margins are in template units, converted with the per-100 scalars.
type margins struct {
	left, top, right, bottom float64
}

// fixedMargins fit the fixed polarity: RIGHT is always a tab and BOTTOM
// always a slot, so LEFT is a slot and TOP a tab.
var fixedMargins = margins{
	left:   curve.SlotDepth,
	top:    curve.TabDepth,
	right:  curve.TabDepth,
	bottom: curve.SlotDepth,
}

var randomMargins = margins{
	left:   curve.TabDepth,
	top:    curve.TabDepth,
	right:  curve.TabDepth,
	bottom: curve.TabDepth,
}

// Generate builds rows*columns pieces from img in row-major order.
func Generate(img image.Image, rows, columns int, opts ...Option) ([]PieceGeometry, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: image is nil", ErrInvalidConfig)
	}
	b := img.Bounds()
	return GenerateForSize(b.Dx(), b.Dy(), rows, columns, opts...)
}

// GenerateForSize is Generate for callers that only know the image size.
func GenerateForSize(width, height, rows, columns int, opts ...Option) ([]PieceGeometry, error) {
	if rows <= 0 || columns <= 0 {
		return nil, fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidConfig, rows, columns)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image must not be empty, got %dx%d", ErrInvalidConfig, width, height)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	g := &generator{
		imageWidth:  float64(width),
		imageHeight: float64(height),
		rows:        rows,
		columns:     columns,
		pieceWidth:  float64(width) / float64(columns),
		pieceHeight: float64(height) / float64(rows),
		rng:         o.rng,
		margins:     fixedMargins,
	}
	if g.rng != nil {
		g.margins = randomMargins
	}
	return g.generate(), nil
}

type generator struct {
	imageWidth  float64
	imageHeight float64
	rows        int
	columns     int
	pieceWidth  float64
	pieceHeight float64
	rng         *rand.Rand
	margins     margins
}

func (g *generator) generate() []PieceGeometry {
	scalarWidth := g.pieceWidth / curve.Span
	scalarHeight := g.pieceHeight / curve.Span
	box := Size{
		Width:  g.pieceWidth + (g.margins.left+g.margins.right)*scalarHeight,
		Height: g.pieceHeight + (g.margins.top+g.margins.bottom)*scalarWidth,
	}

	pieces := make([]PieceGeometry, 0, g.rows*g.columns)
	globalY := 0.0
	for i := 0; i < g.rows; i++ {
		globalX := 0.0
		for j := 0; j < g.columns; j++ {
			shape := g.resolveShape(pieces, i, j)

			sampleX := math.Max(0, globalX-g.margins.left*scalarHeight)
			sampleY := math.Max(0, globalY-g.margins.top*scalarWidth)
			offset := curve.Pt(globalX-sampleX, globalY-sampleY)

			pieces = append(pieces, PieceGeometry{
				Index:  i*g.columns + j,
				Row:    i,
				Col:    j,
				Width:  g.pieceWidth,
				Height: g.pieceHeight,
				Shape:  shape,
				Box:    box,
				Offset: offset,
				Path:   tracePath(shape, offset, g.pieceWidth, g.pieceHeight),
				Sample: Rect{
					X:      sampleX,
					Y:      sampleY,
					Width:  math.Min(box.Width, g.imageWidth-sampleX),
					Height: math.Min(box.Height, g.imageHeight-sampleY),
				},
			})

			globalX += g.pieceWidth
		}
		globalY += g.pieceHeight
	}

	return pieces
}

// resolveShape works out the four sides of cell (i, j). Its left and top
// neighbors are already in pieces.
func (g *generator) resolveShape(pieces []PieceGeometry, i, j int) PieceShape {
	shape := PieceShape{}

	if i == 0 {
		shape.Top = EdgeStraight
	} else {
		shape.Top = pieces[(i-1)*g.columns+j].Shape.Bottom.Complement()
	}

	if j == 0 {
		shape.Left = EdgeStraight
	} else {
		shape.Left = pieces[i*g.columns+j-1].Shape.Right.Complement()
	}

	if j == g.columns-1 {
		shape.Right = EdgeStraight
	} else {
		shape.Right = g.pickShape(EdgeTab)
	}

	if i == g.rows-1 {
		shape.Bottom = EdgeStraight
	} else {
		shape.Bottom = g.pickShape(EdgeSlot)
	}

	return shape
}

func (g *generator) pickShape(fixed EdgeShape) EdgeShape {
	if g.rng == nil {
		return fixed
	}
	if g.rng.Intn(2) == 0 {
		return EdgeTab
	}
	return EdgeSlot
}

// tracePath walks the boundary clockwise from the nominal top-left corner.
//
// Every shared edge is generated once in a canonical direction: horizontal
// edges left to right as the lower piece's TOP, vertical edges top to bottom
// as the left piece's RIGHT. BOTTOM and LEFT replay their neighbor's
// canonical curve backwards so both pieces trace exactly the same line.
func tracePath(shape PieceShape, origin curve.Point, width, height float64) Path {
	x0, y0 := origin.X, origin.Y
	x1, y1 := x0+width, y0+height

	path := Path{Start: curve.Pt(x0, y0)}

	// top, left to right; outward is up
	if shape.Top == EdgeStraight {
		path.lineTo(curve.Pt(x1, y0))
	} else {
		_, segments := mapEdge(shape.Top, width, func(p curve.Point) curve.Point {
			return curve.Pt(x0+p.X, y0-p.Y)
		})
		path.Segments = append(path.Segments, segments...)
	}

	// right, top to bottom; outward is right
	if shape.Right == EdgeStraight {
		path.lineTo(curve.Pt(x1, y1))
	} else {
		_, segments := mapEdge(shape.Right, height, func(p curve.Point) curve.Point {
			return curve.Pt(x1+p.Y, y0+p.X)
		})
		path.Segments = append(path.Segments, segments...)
	}

	// bottom, right to left: the lower neighbor's top, reversed
	if shape.Bottom == EdgeStraight {
		path.lineTo(curve.Pt(x0, y1))
	} else {
		start, segments := mapEdge(shape.Bottom.Complement(), width, func(p curve.Point) curve.Point {
			return curve.Pt(x0+p.X, y1-p.Y)
		})
		path.Segments = append(path.Segments, reverse(start, segments)...)
	}

	// left, bottom to top: the left neighbor's right, reversed
	if shape.Left == EdgeStraight {
		path.lineTo(curve.Pt(x0, y0))
	} else {
		start, segments := mapEdge(shape.Left.Complement(), height, func(p curve.Point) curve.Point {
			return curve.Pt(x0+p.Y, y0+p.X)
		})
		path.Segments = append(path.Segments, reverse(start, segments)...)
	}

	return path
}

// mapEdge scales the template for shape to length and maps each point from
// template space into piece space with frame.
func mapEdge(shape EdgeShape, length float64, frame func(curve.Point) curve.Point) (curve.Point, []Segment) {
	template := curve.Edge(shape.curveKind(), length)
	segments := make([]Segment, len(template))
	for i, s := range template {
		segments[i] = Segment{
			Kind:     SegmentCubic,
			Control1: frame(s.Control1),
			Control2: frame(s.Control2),
			End:      frame(s.End),
		}
	}
	return frame(curve.Pt(0, 0)), segments
}

// reverse returns the chain of cubics that traces segments (starting at
// start) in the opposite direction.
func reverse(start curve.Point, segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		prev := start
		if i > 0 {
			prev = segments[i-1].End
		}
		out = append(out, Segment{
			Kind:     segments[i].Kind,
			Control1: segments[i].Control2,
			Control2: segments[i].Control1,
			End:      prev,
		})
	}
	return out
}
