// Package render turns the visible annotation set into a canvas-space
// display list each frame tick. It owns no drawing technology: the ops carry
// everything a canvas, SVG or GPU surface needs. Comment markers are listed
// separately for the DOM overlay, which hit-tests and focuses them
// independently of the canvas.
package render

import (
	"github.com/framepoint/annotate/internal/cache"
	"github.com/framepoint/annotate/internal/frameindex"
	"github.com/framepoint/annotate/internal/geo"
	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/reconcile"
	"github.com/framepoint/annotate/internal/review"
	"github.com/framepoint/annotate/internal/session"
)

// ShapeOp is one drawable shape with all geometry resolved to canvas pixels.
type ShapeOp struct {
	ID        core.ID
	Kind      core.ShapeKind
	Color     string
	LineWidth float64
	Selected  bool

	Points        []core.Point // freehand
	Center        core.Point   // area shapes
	Width, Height float64      // canvas px
	Rotation      float64      // radians
	Start, End    core.Point   // arrow
	Position      core.Point   // text top-left
	Text          string
	FontPx        float64
	Src           string // image/clip source
}

// SelectionOp carries the selection bounding box and its manipulation grips.
type SelectionOp struct {
	Bounds  core.Rect
	Handles []geo.HandlePosition
}

// DisplayList is everything the surface draws for one frame.
type DisplayList struct {
	Shapes    []ShapeOp
	Selection *SelectionOp
	Marquee   *core.Rect // canvas px
}

// Marker is a comment pin for the DOM overlay.
type Marker struct {
	ID         core.ID
	Point      core.Point // canvas px
	AuthorName string
	AvatarURL  string
	Resolved   bool
}

// shapeOp resolves one annotation to canvas space. The kind switch is
// exhaustive over the closed shape set; an unknown kind is a programming
// error surfaced as geo.ErrUnknownShape rather than drawn wrong.
func shapeOp(a core.Annotation, rect core.Rect, selected bool) (ShapeOp, error) {
	op := ShapeOp{
		ID:        a.ID,
		Kind:      a.Kind,
		Color:     a.Color,
		LineWidth: a.LineWidth,
		Selected:  selected,
	}
	switch a.Kind {
	case core.KindFreehand:
		op.Points = make([]core.Point, len(a.Points))
		for i, p := range a.Points {
			op.Points[i] = geo.NormalizedToCanvas(p, rect)
		}
	case core.KindRectangle, core.KindEllipse:
		op.Center = geo.NormalizedToCanvas(a.Center, rect)
		op.Width = a.Width * rect.Width
		op.Height = a.Height * rect.Height
		op.Rotation = a.Rotation
	case core.KindArrow:
		op.Start = geo.NormalizedToCanvas(a.Start, rect)
		op.End = geo.NormalizedToCanvas(a.End, rect)
	case core.KindText:
		op.Position = geo.NormalizedToCanvas(a.Position, rect)
		op.Text = a.Text
		op.FontPx = a.FontSize * rect.Height
	case core.KindImage, core.KindClip:
		op.Center = geo.NormalizedToCanvas(a.Center, rect)
		op.Width = a.Width * rect.Width
		op.Height = a.Height * rect.Height
		op.Rotation = a.Rotation
		op.Src = a.Src
	default:
		return ShapeOp{}, geo.ErrUnknownShape
	}
	return op, nil
}

// BuildDisplayList resolves the visible annotations, the in-progress draft,
// the selection chrome and the marquee to canvas space. A zero rect yields
// an empty list.
func BuildDisplayList(
	annotations []core.Annotation,
	draft *core.Annotation,
	selection []core.ID,
	marquee *core.Rect, // normalized
	rect core.Rect,
) (DisplayList, error) {
	var dl DisplayList
	if rect.IsZero() {
		return dl, nil
	}

	selectedSet := make(map[string]bool, len(selection))
	for _, id := range selection {
		selectedSet[id.String()] = true
	}

	var selected []core.Annotation
	for _, a := range annotations {
		isSelected := selectedSet[a.ID.String()]
		op, err := shapeOp(a, rect, isSelected)
		if err != nil {
			return DisplayList{}, err
		}
		dl.Shapes = append(dl.Shapes, op)
		if isSelected {
			selected = append(selected, a)
		}
	}

	if draft != nil {
		op, err := shapeOp(*draft, rect, false)
		if err != nil {
			return DisplayList{}, err
		}
		dl.Shapes = append(dl.Shapes, op)
	}

	if bounds, ok := geo.SelectionBounds(selected, rect); ok {
		dl.Selection = &SelectionOp{
			Bounds:  bounds,
			Handles: geo.HandleLayout(bounds),
		}
	}

	if marquee != nil {
		tl := geo.NormalizedToCanvas(core.Point{X: marquee.X, Y: marquee.Y}, rect)
		box := core.Rect{
			X:      tl.X,
			Y:      tl.Y,
			Width:  marquee.Width * rect.Width,
			Height: marquee.Height * rect.Height,
		}
		dl.Marquee = &box
	}
	return dl, nil
}

// CommentMarkers resolves pinned comments to overlay pin positions.
func CommentMarkers(comments []core.Comment, rect core.Rect) []Marker {
	if rect.IsZero() {
		return nil
	}
	markers := make([]Marker, 0, len(comments))
	for _, c := range comments {
		if !c.Pinned() {
			continue
		}
		markers = append(markers, Marker{
			ID:         c.ID,
			Point:      geo.NormalizedToCanvas(*c.Position, rect),
			AuthorName: c.AuthorName,
			AvatarURL:  c.AvatarURL,
			Resolved:   c.Resolved,
		})
	}
	return markers
}

// View composes the review context, reconciler and session into a per-tick
// frame producer. The surface waits on the invalidator and calls Frame once
// per wakeup.
type View struct {
	ctx   *review.Context
	rec   *reconcile.Reconciler
	sess  *session.Session
	index *frameindex.Index
	inv   *Invalidator
	gen   cache.SafeCounter
}

// NewView wires the dirty signal: reconciler changes and session gestures
// both mark the view dirty.
func NewView(ctx *review.Context, rec *reconcile.Reconciler, sess *session.Session) *View {
	v := &View{
		ctx:   ctx,
		rec:   rec,
		sess:  sess,
		index: frameindex.New(),
		inv:   NewInvalidator(),
	}
	rec.SetOnChange(func() {
		v.Refresh()
		sess.Refresh()
		v.inv.Invalidate()
	})
	sess.SetInvalidate(v.inv.Invalidate)
	v.Refresh()
	return v
}

// Invalidator returns the view's dirty signal.
func (v *View) Invalidator() *Invalidator {
	return v.inv
}

// Refresh rebuilds the frame index from the working copy and bumps the
// change generation.
func (v *View) Refresh() {
	annotations, comments := v.rec.Snapshot()
	v.index.Rebuild(annotations, comments)
	v.gen.Inc()
}

// Generation is a monotonic change counter. A surface that missed wakeups can
// compare it against the generation of its last drawn frame.
func (v *View) Generation() int {
	return v.gen.Value()
}

// Frame produces the display list and overlay markers for the current
// playhead position at the given rendered rect.
func (v *View) Frame(rect core.Rect) (DisplayList, []Marker, error) {
	frame := v.ctx.Frame()

	var draft *core.Annotation
	if d, ok := v.sess.Draft(); ok {
		draft = &d
	}
	var marquee *core.Rect
	if m, ok := v.sess.Marquee(); ok {
		marquee = &m
	}

	dl, err := BuildDisplayList(
		v.index.AnnotationsAt(frame),
		draft,
		v.sess.Selection(),
		marquee,
		rect,
	)
	if err != nil {
		return DisplayList{}, nil, err
	}
	return dl, CommentMarkers(v.index.CommentsAt(frame), rect), nil
}
