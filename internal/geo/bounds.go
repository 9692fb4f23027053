// internal/geo/bounds.go
package geo

import (
	"math"
	"unicode/utf8"

	"github.com/framepoint/annotate/internal/model/core"
)

// canvasPoints returns the annotation's defining points in canvas space.
// For area shapes these are the four rotated corners.
func canvasPoints(a core.Annotation, rect core.Rect) []core.Point {
	switch a.Kind {
	case core.KindFreehand:
		pts := make([]core.Point, len(a.Points))
		for i, p := range a.Points {
			pts[i] = NormalizedToCanvas(p, rect)
		}
		return pts
	case core.KindArrow:
		return []core.Point{
			NormalizedToCanvas(a.Start, rect),
			NormalizedToCanvas(a.End, rect),
		}
	case core.KindRectangle, core.KindEllipse, core.KindImage, core.KindClip:
		c := NormalizedToCanvas(a.Center, rect)
		hw := a.Width * rect.Width / 2
		hh := a.Height * rect.Height / 2
		corners := []core.Point{
			{X: c.X - hw, Y: c.Y - hh},
			{X: c.X + hw, Y: c.Y - hh},
			{X: c.X + hw, Y: c.Y + hh},
			{X: c.X - hw, Y: c.Y + hh},
		}
		for i := range corners {
			corners[i] = rotatePoint(corners[i], c, a.Rotation)
		}
		return corners
	case core.KindText:
		tl := NormalizedToCanvas(a.Position, rect)
		w, h := textBoxSize(a, rect)
		return []core.Point{
			tl,
			{X: tl.X + w, Y: tl.Y},
			{X: tl.X + w, Y: tl.Y + h},
			{X: tl.X, Y: tl.Y + h},
		}
	}
	return nil
}

// textBoxSize estimates the canvas-pixel box of a text annotation at its
// configured font size.
func textBoxSize(a core.Annotation, rect core.Rect) (w, h float64) {
	fontPx := a.FontSize * rect.Height
	return textAdvanceFactor * fontPx * float64(utf8.RuneCountInString(a.Text)), fontPx
}

// BoundsCanvas returns the canvas-space axis-aligned bounding box of an
// annotation, padded by half the stroke width for stroked shapes. The second
// return is false when the annotation has no geometry or rect has no area.
func BoundsCanvas(a core.Annotation, rect core.Rect) (core.Rect, bool) {
	if rect.IsZero() {
		return core.Rect{}, false
	}
	pts := canvasPoints(a, rect)
	if len(pts) == 0 {
		return core.Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	pad := 0.0
	switch a.Kind {
	case core.KindFreehand, core.KindArrow:
		pad = a.LineWidth / 2
	}
	return core.Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}, true
}

// SelectionBounds returns the canvas-space union bounding box of all selected
// annotations, the box the manipulation handles hang off of.
func SelectionBounds(selected []core.Annotation, rect core.Rect) (core.Rect, bool) {
	var union core.Rect
	have := false
	for _, a := range selected {
		b, ok := BoundsCanvas(a, rect)
		if !ok {
			continue
		}
		if !have {
			union = b
			have = true
			continue
		}
		minX := math.Min(union.X, b.X)
		minY := math.Min(union.Y, b.Y)
		maxX := math.Max(union.X+union.Width, b.X+b.Width)
		maxY := math.Max(union.Y+union.Height, b.Y+b.Height)
		union = core.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	}
	return union, have
}
