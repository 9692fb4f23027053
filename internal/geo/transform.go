// internal/geo/transform.go
package geo

import (
	"math"

	"github.com/framepoint/annotate/internal/model/core"
)

// Action is what a transform session does to its annotations.
type Action int

const (
	ActionMove Action = iota
	ActionResize
	ActionRotate
)

// DefaultMinShapeSize is the smallest normalized width/height a resize may
// produce. Keeps shapes from collapsing to zero or inverting through their
// anchor.
const DefaultMinShapeSize = 0.005

// scaleFloor bounds the raw scale factors so a pointer crossing the fixed
// edge cannot flip the selection inside out.
const scaleFloor = 0.01

// TransformSession captures the baseline for a move/resize/rotate drag. All
// deltas are computed against Originals, never incrementally, so repeated
// applications cannot drift.
type TransformSession struct {
	Action    Action
	Handle    Handle
	Anchor    core.Point // canvas-space pointer-down point
	Originals []core.Annotation
	Bounds    core.Rect // canvas-space selection bounds at start
	MinSize   float64   // normalized; zero means DefaultMinShapeSize
}

// StartTransform opens a session for the given handle. HandleNone starts a
// move, HandleRotate a rotation, any grip a resize. The originals are deep
// copied so later local edits cannot corrupt the baseline.
func StartTransform(h Handle, anchor core.Point, annotations []core.Annotation, rect core.Rect) TransformSession {
	action := ActionMove
	switch {
	case h == HandleRotate:
		action = ActionRotate
	case h != HandleNone:
		action = ActionResize
	}
	originals := make([]core.Annotation, len(annotations))
	for i, a := range annotations {
		originals[i] = a.Clone()
	}
	bounds, _ := SelectionBounds(annotations, rect)
	return TransformSession{
		Action:    action,
		Handle:    h,
		Anchor:    anchor,
		Originals: originals,
		Bounds:    bounds,
	}
}

// ApplyTransform computes the transformed geometry for the current pointer
// position. It always starts from the session's originals. With the pointer
// still at the anchor the result equals the originals. A zero-area rect
// returns untouched copies.
func ApplyTransform(current core.Point, s TransformSession, rect core.Rect) []core.Annotation {
	out := make([]core.Annotation, len(s.Originals))
	for i, a := range s.Originals {
		out[i] = a.Clone()
	}
	if rect.IsZero() || len(out) == 0 {
		return out
	}
	switch s.Action {
	case ActionMove:
		dx := (current.X - s.Anchor.X) / rect.Width
		dy := (current.Y - s.Anchor.Y) / rect.Height
		for i := range out {
			translate(&out[i], dx, dy)
		}
	case ActionResize:
		applyResize(out, current, s, rect)
	case ActionRotate:
		for i := range out {
			if !out[i].Kind.HasArea() {
				continue
			}
			c := NormalizedToCanvas(out[i].Center, rect)
			from := math.Atan2(s.Anchor.Y-c.Y, s.Anchor.X-c.X)
			to := math.Atan2(current.Y-c.Y, current.X-c.X)
			out[i].Rotation += to - from
		}
	}
	return out
}

func applyResize(out []core.Annotation, current core.Point, s TransformSession, rect core.Rect) {
	fixed := s.Handle.fixedPoint(s.Bounds)
	sx, sy := 1.0, 1.0
	if s.Handle.resizesX() && s.Anchor.X != fixed.X {
		sx = (current.X - fixed.X) / (s.Anchor.X - fixed.X)
	}
	if s.Handle.resizesY() && s.Anchor.Y != fixed.Y {
		sy = (current.Y - fixed.Y) / (s.Anchor.Y - fixed.Y)
	}
	sx = math.Max(sx, scaleFloor)
	sy = math.Max(sy, scaleFloor)

	minSize := s.MinSize
	if minSize <= 0 {
		minSize = DefaultMinShapeSize
	}
	fixedN := CanvasToNormalized(fixed, rect)
	for i := range out {
		scaleAbout(&out[i], fixedN, sx, sy, minSize)
	}
}

func translate(a *core.Annotation, dx, dy float64) {
	for i := range a.Points {
		a.Points[i].X += dx
		a.Points[i].Y += dy
	}
	a.Center.X += dx
	a.Center.Y += dy
	a.Start.X += dx
	a.Start.Y += dy
	a.End.X += dx
	a.End.Y += dy
	a.Position.X += dx
	a.Position.Y += dy
}

// scaleAbout scales every geometric field of the annotation about a fixed
// normalized point. Area shapes clamp their resulting extent to minSize.
func scaleAbout(a *core.Annotation, fixed core.Point, sx, sy, minSize float64) {
	scalePt := func(p core.Point) core.Point {
		return core.Point{
			X: fixed.X + (p.X-fixed.X)*sx,
			Y: fixed.Y + (p.Y-fixed.Y)*sy,
		}
	}
	for i := range a.Points {
		a.Points[i] = scalePt(a.Points[i])
	}
	a.Start = scalePt(a.Start)
	a.End = scalePt(a.End)
	a.Position = scalePt(a.Position)
	a.Center = scalePt(a.Center)
	if a.Kind.HasArea() {
		a.Width = math.Max(a.Width*sx, minSize)
		a.Height = math.Max(a.Height*sy, minSize)
	}
	if a.Kind == core.KindText {
		a.FontSize = math.Max(a.FontSize*sy, minSize)
	}
}
