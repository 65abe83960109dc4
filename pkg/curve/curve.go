// Package curve holds the bezier template used to draw one tab or slot edge.
//
// Templates live in a normalized 0-100 space: the first axis runs along the
// edge from its start (0) to its end (100), the second axis is the depth
// perpendicular to the edge, positive pointing out of the piece that owns the
// edge. Callers scale a template to an edge length and map it into piece space.
package curve

// Kind selects which variant of the template to use.
type Kind int

const (
	// KindSlot is an inward notch.
	KindSlot Kind = iota
	// KindTab is an outward bump.
	KindTab
)

func (k Kind) String() string {
	switch k {
	case KindSlot:
		return "slot"
	case KindTab:
		return "tab"
	default:
		return "unknown"
	}
}

const (
	// Span is the length of an edge in template space.
	Span float64 = 100
	// SlotDepth is how far a curve reaches to the shallow side of its edge.
	SlotDepth float64 = 8.75
	// TabDepth is how far a curve reaches to the deep side of its edge.
	TabDepth float64 = 20
)

// Point is a 2D point. In template space X runs along the edge and Y is depth.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Mul returns p scaled by s.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Segment is one cubic bezier. The start point is the end of the previous
// segment (or the edge origin for the first one).
type Segment struct {
	Control1 Point `json:"c1"`
	Control2 Point `json:"c2"`
	End      Point `json:"end"`
}

// Eval returns the point at t in [0,1] on the cubic that starts at start.
func (s Segment) Eval(start Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*start.X + b*s.Control1.X + c*s.Control2.X + d*s.End.X,
		Y: a*start.Y + b*s.Control1.Y + c*s.Control2.Y + d*s.End.Y,
	}
}

// slot is the notch template: shoulders rise slightly outward, the head
// sinks TabDepth into the piece.
var slot = [6]Segment{
	{Control1: Pt(0, 0), Control2: Pt(35, 15), End: Pt(37, 5)},      // left shoulder
	{Control1: Pt(37, 5), Control2: Pt(40, 0), End: Pt(38, -5)},     // left neck
	{Control1: Pt(38, -5), Control2: Pt(20, -20), End: Pt(50, -20)}, // left head
	{Control1: Pt(50, -20), Control2: Pt(80, -20), End: Pt(62, -5)}, // right head
	{Control1: Pt(62, -5), Control2: Pt(60, 0), End: Pt(63, 5)},     // right neck
	{Control1: Pt(63, 5), Control2: Pt(65, 15), End: Pt(100, 0)},    // right shoulder
}

// Slot returns the notch template in template space.
func Slot() []Segment {
	out := make([]Segment, len(slot))
	copy(out, slot[:])
	return out
}

// Tab returns the bump template: Slot mirrored across the edge.
func Tab() []Segment {
	return Mirror(Slot())
}

// Template returns the template for kind.
func Template(kind Kind) []Segment {
	if kind == KindTab {
		return Tab()
	}
	return Slot()
}

// Mirror negates the depth of every control and end point.
func Mirror(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = Segment{
			Control1: Pt(s.Control1.X, -s.Control1.Y),
			Control2: Pt(s.Control2.X, -s.Control2.Y),
			End:      Pt(s.End.X, -s.End.Y),
		}
	}
	return out
}

// Scale maps template segments onto an edge of the given length. Both axes
// scale by length/Span so the curve keeps its proportions.
func Scale(segments []Segment, length float64) []Segment {
	k := length / Span
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = Segment{
			Control1: s.Control1.Mul(k),
			Control2: s.Control2.Mul(k),
			End:      s.End.Mul(k),
		}
	}
	return out
}

// Edge returns the template for kind scaled to length.
func Edge(kind Kind, length float64) []Segment {
	return Scale(Template(kind), length)
}
