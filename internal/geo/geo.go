// Package geo is the geometry kernel: pure functions mapping between
// normalized annotation space and canvas pixel space, hit-testing the shape
// union, and computing selection handles and move/resize/rotate transforms.
// Every function degrades to a neutral result when the rendered rect has no
// area (container not yet measured) instead of dividing by zero.
package geo

import (
	"errors"
	"math"

	"github.com/framepoint/annotate/internal/model/core"
)

// ErrUnknownShape is returned when a shape kind outside the closed union
// reaches a dispatch site.
var ErrUnknownShape = errors.New("unknown shape kind")

// textAdvanceFactor approximates average glyph advance as a fraction of the
// font size. Exact metrics live in the drawing surface; hit-testing and
// bounds only need the same rough box a reviewer perceives.
const textAdvanceFactor = 0.6

// RenderedRect computes the letterboxed placement of a video with the given
// native resolution inside a container, preserving aspect ratio and centering
// the result. Exactly one of width/height equals the container's dimension
// (both, when the ratios match). A zero-area container or native size yields
// the zero rect.
func RenderedRect(container, native core.Size) core.Rect {
	if container.Width <= 0 || container.Height <= 0 ||
		native.Width <= 0 || native.Height <= 0 {
		return core.Rect{}
	}
	scale := container.Width / native.Width
	if s := container.Height / native.Height; s < scale {
		scale = s
	}
	w := native.Width * scale
	h := native.Height * scale
	return core.Rect{
		X:      (container.Width - w) / 2,
		Y:      (container.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// NormalizedToCanvas maps a normalized point to canvas pixels within rect.
func NormalizedToCanvas(p core.Point, rect core.Rect) core.Point {
	return core.Point{
		X: rect.X + p.X*rect.Width,
		Y: rect.Y + p.Y*rect.Height,
	}
}

// CanvasToNormalized is the exact inverse of NormalizedToCanvas up to
// floating-point tolerance. A zero-area rect maps everything to the origin.
func CanvasToNormalized(p core.Point, rect core.Rect) core.Point {
	if rect.IsZero() {
		return core.Point{}
	}
	return core.Point{
		X: (p.X - rect.X) / rect.Width,
		Y: (p.Y - rect.Y) / rect.Height,
	}
}

// canvasRectToNormalized converts a canvas-space rect back to normalized space.
func canvasRectToNormalized(r core.Rect, rect core.Rect) core.Rect {
	if rect.IsZero() {
		return core.Rect{}
	}
	return core.Rect{
		X:      (r.X - rect.X) / rect.Width,
		Y:      (r.Y - rect.Y) / rect.Height,
		Width:  r.Width / rect.Width,
		Height: r.Height / rect.Height,
	}
}

// rotatePoint rotates p around origin o by angle radians.
func rotatePoint(p, o core.Point, angle float64) core.Point {
	if angle == 0 {
		return p
	}
	sin, cos := math.Sincos(angle)
	dx, dy := p.X-o.X, p.Y-o.Y
	return core.Point{
		X: o.X + dx*cos - dy*sin,
		Y: o.Y + dx*sin + dy*cos,
	}
}
