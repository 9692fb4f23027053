// internal/geo/hittest.go
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/framepoint/annotate/internal/model/core"
)

// HitTest reports whether a canvas-space point lands on the annotation.
// tolerancePx is a screen-space allowance: path shapes accept points within
// tolerancePx + half the stroke width of the path, area shapes grow their
// outline by tolerancePx. Unknown kinds and zero-area rects never hit.
func HitTest(p core.Point, a core.Annotation, rect core.Rect, tolerancePx float64) bool {
	if rect.IsZero() {
		return false
	}
	switch a.Kind {
	case core.KindFreehand:
		return hitPath(p, canvasPoints(a, rect), tolerancePx+a.LineWidth/2)
	case core.KindArrow:
		return hitPath(p, canvasPoints(a, rect), tolerancePx+a.LineWidth/2)
	case core.KindRectangle, core.KindImage, core.KindClip:
		dx, dy, ok := localOffset(p, a, rect)
		if !ok {
			return false
		}
		return math.Abs(dx) <= a.Width*rect.Width/2+tolerancePx &&
			math.Abs(dy) <= a.Height*rect.Height/2+tolerancePx
	case core.KindEllipse:
		dx, dy, ok := localOffset(p, a, rect)
		if !ok {
			return false
		}
		rx := a.Width*rect.Width/2 + tolerancePx
		ry := a.Height*rect.Height/2 + tolerancePx
		if rx <= 0 || ry <= 0 {
			return false
		}
		nx, ny := dx/rx, dy/ry
		return nx*nx+ny*ny <= 1
	case core.KindText:
		tl := NormalizedToCanvas(a.Position, rect)
		w, h := textBoxSize(a, rect)
		box := core.Rect{
			X:      tl.X - tolerancePx,
			Y:      tl.Y - tolerancePx,
			Width:  w + 2*tolerancePx,
			Height: h + 2*tolerancePx,
		}
		return box.Contains(p)
	}
	return false
}

// hitPath measures the distance from p to the polyline through pts.
func hitPath(p core.Point, pts []core.Point, threshold float64) bool {
	if len(pts) == 0 {
		return false
	}
	target, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
	if err != nil {
		return false
	}
	if len(pts) == 1 {
		dx, dy := p.X-pts[0].X, p.Y-pts[0].Y
		return math.Hypot(dx, dy) <= threshold
	}
	flat := make([]float64, 0, len(pts)*2)
	for _, pt := range pts {
		flat = append(flat, pt.X, pt.Y)
	}
	line, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return false
	}
	dist, ok := geom.Distance(target.AsGeometry(), line.AsGeometry())
	if !ok {
		return false
	}
	return dist <= threshold
}

// localOffset expresses p in the annotation's unrotated local frame, as the
// offset from its canvas-space center.
func localOffset(p core.Point, a core.Annotation, rect core.Rect) (dx, dy float64, ok bool) {
	c := NormalizedToCanvas(a.Center, rect)
	local := rotatePoint(p, c, -a.Rotation)
	return local.X - c.X, local.Y - c.Y, true
}

// MarqueeIntersects reports whether the annotation's bounding geometry
// overlaps the normalized marquee rect at all. Partial overlap selects; full
// containment is not required.
func MarqueeIntersects(a core.Annotation, marquee core.Rect, rect core.Rect) bool {
	if rect.IsZero() || marquee.Width < 0 || marquee.Height < 0 {
		return false
	}
	bounds, ok := BoundsCanvas(a, rect)
	if !ok {
		return false
	}
	marqueeCanvas := core.Rect{
		X:      rect.X + marquee.X*rect.Width,
		Y:      rect.Y + marquee.Y*rect.Height,
		Width:  marquee.Width * rect.Width,
		Height: marquee.Height * rect.Height,
	}
	return marqueeCanvas.Overlaps(bounds)
}
