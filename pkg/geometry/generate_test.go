package geometry

import (
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/cbodonnell/jigsaw/pkg/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func newImage(width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func TestGenerate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		rows    int
		columns int
	}{
		{name: "zero rows", img: newImage(100, 100), rows: 0, columns: 3},
		{name: "negative columns", img: newImage(100, 100), rows: 3, columns: -1},
		{name: "empty image", img: newImage(0, 100), rows: 3, columns: 3},
		{name: "nil image", img: nil, rows: 3, columns: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces, err := Generate(tt.img, tt.rows, tt.columns)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Nil(t, pieces)
		})
	}
}

func TestGenerate_EdgeInvariants(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		rows    int
		columns int
		opts    []Option
	}{
		{name: "single piece", width: 100, height: 100, rows: 1, columns: 1},
		{name: "single row", width: 400, height: 100, rows: 1, columns: 4},
		{name: "single column", width: 100, height: 400, rows: 4, columns: 1},
		{name: "non square pieces", width: 301, height: 199, rows: 5, columns: 7},
		{name: "random polarity", width: 640, height: 480, rows: 6, columns: 8, opts: []Option{WithRandomPolarity(rand.New(rand.NewSource(7)))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces, err := GenerateForSize(tt.width, tt.height, tt.rows, tt.columns, tt.opts...)
			require.NoError(t, err)
			require.Len(t, pieces, tt.rows*tt.columns)

			for idx, p := range pieces {
				assert.Equal(t, idx, p.Index)
				assert.Equal(t, idx/tt.columns, p.Row)
				assert.Equal(t, idx%tt.columns, p.Col)

				assert.Equal(t, p.Row == 0, p.Shape.Top == EdgeStraight, "top of %d", idx)
				assert.Equal(t, p.Row == tt.rows-1, p.Shape.Bottom == EdgeStraight, "bottom of %d", idx)
				assert.Equal(t, p.Col == 0, p.Shape.Left == EdgeStraight, "left of %d", idx)
				assert.Equal(t, p.Col == tt.columns-1, p.Shape.Right == EdgeStraight, "right of %d", idx)

				if p.Col > 0 {
					left := pieces[idx-1]
					assert.NotEqual(t, EdgeStraight, p.Shape.Left)
					assert.Equal(t, left.Shape.Right.Complement(), p.Shape.Left)
				}
				if p.Row > 0 {
					above := pieces[idx-tt.columns]
					assert.NotEqual(t, EdgeStraight, p.Shape.Top)
					assert.Equal(t, above.Shape.Bottom.Complement(), p.Shape.Top)
				}
			}
		})
	}
}

func TestGenerate_ThreeByThree(t *testing.T) {
	pieces, err := Generate(newImage(300, 300), 3, 3)
	require.NoError(t, err)
	require.Len(t, pieces, 9)

	first := pieces[0]
	assert.Equal(t, EdgeStraight, first.Shape.Top)
	assert.Equal(t, EdgeStraight, first.Shape.Left)
	assert.NotEqual(t, EdgeStraight, first.Shape.Right)
	assert.NotEqual(t, EdgeStraight, first.Shape.Bottom)

	center := pieces[4]
	assert.Equal(t, pieces[1].Shape.Bottom.Complement(), center.Shape.Top)
	assert.Equal(t, pieces[3].Shape.Right.Complement(), center.Shape.Left)

	assert.Equal(t, 100.0, center.Width)
	assert.Equal(t, 100.0, center.Height)
	assert.InDelta(t, 100+curve.SlotDepth+curve.TabDepth, center.Box.Width, tolerance)
	assert.InDelta(t, 100+curve.SlotDepth+curve.TabDepth, center.Box.Height, tolerance)
	assert.InDelta(t, 100-curve.SlotDepth, center.Sample.X, tolerance)
	assert.InDelta(t, 100-curve.TabDepth, center.Sample.Y, tolerance)
	assert.InDelta(t, curve.SlotDepth, center.Offset.X, tolerance)
	assert.InDelta(t, curve.TabDepth, center.Offset.Y, tolerance)

	// one line per straight side, six cubics per curved side
	assert.Len(t, first.Path.Segments, 1+6+6+1)
	assert.Len(t, center.Path.Segments, 6*4)
}

func TestGenerate_Idempotent(t *testing.T) {
	a, err := GenerateForSize(523, 311, 4, 6)
	require.NoError(t, err)
	b, err := GenerateForSize(523, 311, 4, 6)
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Shape, b[i].Shape)
		require.Len(t, b[i].Path.Segments, len(a[i].Path.Segments))
		for k := range a[i].Path.Segments {
			sa, sb := a[i].Path.Segments[k], b[i].Path.Segments[k]
			assert.InDelta(t, sa.End.X, sb.End.X, tolerance)
			assert.InDelta(t, sa.End.Y, sb.End.Y, tolerance)
			assert.InDelta(t, sa.Control1.X, sb.Control1.X, tolerance)
			assert.InDelta(t, sa.Control2.Y, sb.Control2.Y, tolerance)
		}
	}
}

func TestGenerate_RandomPolarityIsSeeded(t *testing.T) {
	a, err := GenerateForSize(500, 500, 5, 5, WithRandomPolarity(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	b, err := GenerateForSize(500, 500, 5, 5, WithRandomPolarity(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	for i := range a {
		assert.Equal(t, a[i].Shape, b[i].Shape)
	}
}

func TestGenerate_NominalRectsTileImage(t *testing.T) {
	sizes := []struct {
		width, height, rows, columns int
	}{
		{300, 300, 3, 3},
		{301, 199, 5, 7},
		{1500, 1000, 10, 10},
	}
	for _, s := range sizes {
		pieces, err := GenerateForSize(s.width, s.height, s.rows, s.columns)
		require.NoError(t, err)

		pieceWidth := float64(s.width) / float64(s.columns)
		pieceHeight := float64(s.height) / float64(s.rows)
		area := 0.0
		for _, p := range pieces {
			n := p.Nominal()
			assert.InDelta(t, float64(p.Col)*pieceWidth, n.X, 1e-6)
			assert.InDelta(t, float64(p.Row)*pieceHeight, n.Y, 1e-6)
			area += n.Width * n.Height

			// the sample never leaves the image
			assert.GreaterOrEqual(t, p.Sample.X, 0.0)
			assert.GreaterOrEqual(t, p.Sample.Y, 0.0)
			assert.LessOrEqual(t, p.Sample.X+p.Sample.Width, float64(s.width)+1e-6)
			assert.LessOrEqual(t, p.Sample.Y+p.Sample.Height, float64(s.height)+1e-6)

			// and always contains the nominal cell
			assert.LessOrEqual(t, p.Sample.X, n.X+1e-6)
			assert.LessOrEqual(t, p.Sample.Y, n.Y+1e-6)
			assert.GreaterOrEqual(t, p.Sample.X+p.Sample.Width, n.X+n.Width-1e-6)
			assert.GreaterOrEqual(t, p.Sample.Y+p.Sample.Height, n.Y+n.Height-1e-6)
		}
		assert.InDelta(t, float64(s.width*s.height), area, 1e-3)
	}
}

func TestGenerate_PathStaysInsideBox(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithRandomPolarity(rand.New(rand.NewSource(3)))}} {
		pieces, err := GenerateForSize(800, 600, 4, 4, opts...)
		require.NoError(t, err)
		for _, p := range pieces {
			points := p.Path.Flatten(32)
			for _, pt := range points {
				assert.GreaterOrEqual(t, pt.X, -1e-6, "piece %d", p.Index)
				assert.GreaterOrEqual(t, pt.Y, -1e-6, "piece %d", p.Index)
				assert.LessOrEqual(t, pt.X, p.Box.Width+1e-6, "piece %d", p.Index)
				assert.LessOrEqual(t, pt.Y, p.Box.Height+1e-6, "piece %d", p.Index)
			}
			end := p.Path.Current()
			assert.InDelta(t, p.Path.Start.X, end.X, 1e-6)
			assert.InDelta(t, p.Path.Start.Y, end.Y, 1e-6)
		}
	}
}

// Neighbors must trace the same curve along their shared edge, one forward
// and one backward, once both are moved into image coordinates.
func TestGenerate_SharedEdgesCoincide(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithRandomPolarity(rand.New(rand.NewSource(11)))}} {
		// in a 4x4 grid pieces 5, 6, 9 and 10 are curved on every side
		pieces, err := GenerateForSize(640, 480, 4, 4, opts...)
		require.NoError(t, err)

		// side returns the start point plus the six curve ends of side n,
		// in image coordinates (0=top, 1=right, 2=bottom, 3=left)
		side := func(p PieceGeometry, n int) []curve.Point {
			require.Len(t, p.Path.Segments, 24)
			start := p.Path.Start
			if n > 0 {
				start = p.Path.Segments[6*n-1].End
			}
			pts := []curve.Point{start}
			for _, s := range p.Path.Segments[6*n : 6*n+6] {
				pts = append(pts, s.End)
			}
			for i := range pts {
				pts[i] = curve.Pt(pts[i].X+p.Sample.X, pts[i].Y+p.Sample.Y)
			}
			return pts
		}
		assertReversed := func(a, b []curve.Point) {
			require.Len(t, b, len(a))
			for i := range a {
				assert.InDelta(t, a[i].X, b[len(b)-1-i].X, 1e-6)
				assert.InDelta(t, a[i].Y, b[len(b)-1-i].Y, 1e-6)
			}
		}

		assertReversed(side(pieces[5], 1), side(pieces[6], 3))
		assertReversed(side(pieces[9], 1), side(pieces[10], 3))
		assertReversed(side(pieces[5], 2), side(pieces[9], 0))
		assertReversed(side(pieces[6], 2), side(pieces[10], 0))
	}
}
