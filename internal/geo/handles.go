// internal/geo/handles.go
package geo

import (
	"math"

	"github.com/framepoint/annotate/internal/model/core"
)

// Handle identifies a manipulation grip on the selection bounding box.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
	HandleRotate
)

// RotateGripOffsetPx is how far above the selection's top edge the rotation
// grip floats, in canvas pixels.
const RotateGripOffsetPx = 24.0

// HandlePosition pairs a handle with its canvas-space location.
type HandlePosition struct {
	Handle Handle
	Point  core.Point
}

// HandleLayout derives the eight resize grips plus the rotation grip from a
// canvas-space selection bounding box.
func HandleLayout(bounds core.Rect) []HandlePosition {
	x0, y0 := bounds.X, bounds.Y
	x1, y1 := bounds.X+bounds.Width, bounds.Y+bounds.Height
	cx, cy := x0+bounds.Width/2, y0+bounds.Height/2
	return []HandlePosition{
		{HandleTopLeft, core.Point{X: x0, Y: y0}},
		{HandleTop, core.Point{X: cx, Y: y0}},
		{HandleTopRight, core.Point{X: x1, Y: y0}},
		{HandleRight, core.Point{X: x1, Y: cy}},
		{HandleBottomRight, core.Point{X: x1, Y: y1}},
		{HandleBottom, core.Point{X: cx, Y: y1}},
		{HandleBottomLeft, core.Point{X: x0, Y: y1}},
		{HandleLeft, core.Point{X: x0, Y: cy}},
		{HandleRotate, core.Point{X: cx, Y: y0 - RotateGripOffsetPx}},
	}
}

// HandleUnderPoint returns which grip of the current selection the canvas
// point lands on, or HandleNone (a plain move) when it misses all of them.
func HandleUnderPoint(p core.Point, selected []core.Annotation, rect core.Rect, tolerancePx float64) Handle {
	bounds, ok := SelectionBounds(selected, rect)
	if !ok {
		return HandleNone
	}
	for _, hp := range HandleLayout(bounds) {
		if math.Hypot(p.X-hp.Point.X, p.Y-hp.Point.Y) <= tolerancePx {
			return hp.Handle
		}
	}
	return HandleNone
}

// resizesX reports whether dragging the handle moves a vertical edge.
func (h Handle) resizesX() bool {
	switch h {
	case HandleTopLeft, HandleTopRight, HandleRight, HandleBottomRight, HandleBottomLeft, HandleLeft:
		return true
	}
	return false
}

// resizesY reports whether dragging the handle moves a horizontal edge.
func (h Handle) resizesY() bool {
	switch h {
	case HandleTopLeft, HandleTop, HandleTopRight, HandleBottomRight, HandleBottom, HandleBottomLeft:
		return true
	}
	return false
}

// fixedPoint returns the canvas point of bounds that stays put while the
// handle is dragged: the opposite corner for corner grips, the opposite edge
// midpoint for edge grips.
func (h Handle) fixedPoint(bounds core.Rect) core.Point {
	x0, y0 := bounds.X, bounds.Y
	x1, y1 := bounds.X+bounds.Width, bounds.Y+bounds.Height
	cx, cy := x0+bounds.Width/2, y0+bounds.Height/2
	switch h {
	case HandleTopLeft:
		return core.Point{X: x1, Y: y1}
	case HandleTop:
		return core.Point{X: cx, Y: y1}
	case HandleTopRight:
		return core.Point{X: x0, Y: y1}
	case HandleRight:
		return core.Point{X: x0, Y: cy}
	case HandleBottomRight:
		return core.Point{X: x0, Y: y0}
	case HandleBottom:
		return core.Point{X: cx, Y: y0}
	case HandleBottomLeft:
		return core.Point{X: x1, Y: y0}
	case HandleLeft:
		return core.Point{X: x1, Y: cy}
	}
	return core.Point{X: cx, Y: cy}
}
