// Package render rasterizes puzzle pieces from their source image.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/cbodonnell/jigsaw/pkg/geometry"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/gogpu/gg"
)

const dataURLPrefix = "data:image/png;base64,"

// Piece draws the sample of src under the piece's outline onto a
// transparent canvas the size of the piece box.
func Piece(src *gg.ImageBuf, piece geometry.PieceGeometry) (image.Image, error) {
	width := int(math.Ceil(piece.Box.Width))
	height := int(math.Ceil(piece.Box.Height))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("piece %d has an empty box", piece.Index)
	}

	dc := gg.NewContext(width, height)
	defer dc.Close()

	pattern := dc.CreateImagePattern(src,
		int(math.Round(piece.Sample.X)),
		int(math.Round(piece.Sample.Y)),
		int(math.Ceil(piece.Sample.Width)),
		int(math.Ceil(piece.Sample.Height)),
	)
	dc.SetFillPattern(pattern)

	tracePath(dc, piece.Path)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("failed to fill piece %d: %v", piece.Index, err)
	}
	return dc.Image(), nil
}

func tracePath(dc *gg.Context, path geometry.Path) {
	dc.MoveTo(path.Start.X, path.Start.Y)
	for _, s := range path.Segments {
		switch s.Kind {
		case geometry.SegmentCubic:
			dc.CubicTo(s.Control1.X, s.Control1.Y, s.Control2.X, s.Control2.Y, s.End.X, s.End.Y)
		default:
			dc.LineTo(s.End.X, s.End.Y)
		}
	}
	dc.ClosePath()
}

// DataURL encodes img as a PNG data URL.
func DataURL(img image.Image) (string, error) {
	dc := gg.NewContextForImage(img)
	defer dc.Close()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("failed to encode png: %v", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ImageRefs renders every piece and stores its data URL on the state.
func ImageRefs(src image.Image, pieces []geometry.PieceGeometry, state *puzzle.State) error {
	buf := gg.ImageBufFromImage(src)
	for _, p := range pieces {
		img, err := Piece(buf, p)
		if err != nil {
			return err
		}
		ref, err := DataURL(img)
		if err != nil {
			return fmt.Errorf("failed to encode piece %d: %v", p.Index, err)
		}
		if err := state.SetImageRef(p.Index, ref); err != nil {
			return err
		}
	}
	return nil
}
