package geometry

import (
	"fmt"

	"github.com/cbodonnell/jigsaw/pkg/curve"
)

// EdgeShape describes one side of a piece.
type EdgeShape int

const (
	EdgeStraight EdgeShape = iota
	EdgeTab
	EdgeSlot
)

func (e EdgeShape) String() string {
	switch e {
	case EdgeStraight:
		return "straight"
	case EdgeTab:
		return "tab"
	case EdgeSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e EdgeShape) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EdgeShape) UnmarshalText(b []byte) error {
	switch string(b) {
	case "straight":
		*e = EdgeStraight
	case "tab":
		*e = EdgeTab
	case "slot":
		*e = EdgeSlot
	default:
		return fmt.Errorf("unknown edge shape: %s", string(b))
	}
	return nil
}

// Complement returns the shape the neighbor across this edge must have.
func (e EdgeShape) Complement() EdgeShape {
	switch e {
	case EdgeTab:
		return EdgeSlot
	case EdgeSlot:
		return EdgeTab
	default:
		return EdgeStraight
	}
}

func (e EdgeShape) curveKind() curve.Kind {
	if e == EdgeTab {
		return curve.KindTab
	}
	return curve.KindSlot
}

// PieceShape holds the four sides of a grid cell.
type PieceShape struct {
	Top    EdgeShape `json:"top"`
	Right  EdgeShape `json:"right"`
	Bottom EdgeShape `json:"bottom"`
	Left   EdgeShape `json:"left"`
}

// Size is a width/height pair in image pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in image pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SegmentKind distinguishes straight lines from cubic curves in a Path.
type SegmentKind int

const (
	SegmentLine SegmentKind = iota
	SegmentCubic
)

// Segment is one step of a boundary path. Control points are only
// meaningful for SegmentCubic.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	Control1 curve.Point `json:"c1"`
	Control2 curve.Point `json:"c2"`
	End      curve.Point `json:"end"`
}

// Path is a closed boundary: it starts at Start, walks Segments and closes
// back to Start.
type Path struct {
	Start    curve.Point `json:"start"`
	Segments []Segment   `json:"segments"`
}

// Current returns the last point reached by the path.
func (p *Path) Current() curve.Point {
	if len(p.Segments) == 0 {
		return p.Start
	}
	return p.Segments[len(p.Segments)-1].End
}

func (p *Path) lineTo(pt curve.Point) {
	p.Segments = append(p.Segments, Segment{Kind: SegmentLine, End: pt})
}

// Flatten samples the path, stepping each cubic steps times. Lines
// contribute their end point only.
func (p *Path) Flatten(steps int) []curve.Point {
	if steps < 1 {
		steps = 1
	}
	points := []curve.Point{p.Start}
	current := p.Start
	for _, s := range p.Segments {
		if s.Kind == SegmentCubic {
			c := curve.Segment{Control1: s.Control1, Control2: s.Control2, End: s.End}
			for i := 1; i < steps; i++ {
				points = append(points, c.Eval(current, float64(i)/float64(steps)))
			}
		}
		points = append(points, s.End)
		current = s.End
	}
	return points
}

// PieceGeometry is the immutable shape and image-sampling data for one cell.
type PieceGeometry struct {
	Index  int        `json:"index"`
	Row    int        `json:"row"`
	Col    int        `json:"col"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Shape  PieceShape `json:"shape"`
	// Box is the piece canvas size including room for protruding tabs.
	Box Size `json:"box"`
	// Offset is where the nominal cell's top-left corner sits inside Box.
	Offset curve.Point `json:"offset"`
	// Path is the closed boundary in box-local coordinates.
	Path Path `json:"path"`
	// Sample is the source-image rectangle drawn at the box origin.
	Sample Rect `json:"sample"`
}

// Nominal returns the cell rectangle in source-image coordinates, i.e. the
// sample with the margin expansion undone.
func (g *PieceGeometry) Nominal() Rect {
	return Rect{
		X:      g.Sample.X + g.Offset.X,
		Y:      g.Sample.Y + g.Offset.Y,
		Width:  g.Width,
		Height: g.Height,
	}
}
