// Package session implements the pointer-driven interaction state machine:
// drawing new shapes, select/move/resize/rotate of existing ones, marquee
// selection, comment-marker dragging and inline text entry. It consumes
// pointer events in canvas pixels, delegates the math to the geo package and
// emits finalized mutations through the store mutator.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/framepoint/annotate/internal/config"
	"github.com/framepoint/annotate/internal/frameindex"
	"github.com/framepoint/annotate/internal/geo"
	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/reconcile"
	"github.com/framepoint/annotate/internal/review"
	"github.com/framepoint/annotate/internal/store"
)

// Tool selects what a pointer-down gesture does.
type Tool int

const (
	ToolSelect Tool = iota
	ToolFreehand
	ToolRectangle
	ToolEllipse
	ToolArrow
	ToolText
	ToolComment
)

// Style is applied to newly created annotations. LineWidth is in screen
// pixels; FontSize is a fraction of the video's native height.
type Style struct {
	Color     string
	LineWidth float64
	FontSize  float64
}

// DefaultStyle is used until the toolbar collaborator overrides it.
var DefaultStyle = Style{Color: "#ff4d4f", LineWidth: 3, FontSize: 0.03}

// commentMarkerRadiusPx is the clickable radius of a comment marker.
const commentMarkerRadiusPx = 12.0

// gesture is the single slot holding the active ephemeral state. Exactly one
// state exists at a time; every pointer-up, cancel or escape collapses back
// to idle.
type gesture interface {
	isGesture()
}

type idle struct{}

type drawing struct {
	origin core.Point // normalized pointer-down point
	draft  core.Annotation
}

type transforming struct {
	ts    geo.TransformSession
	last  []core.Annotation
	moved bool
}

type marqueeing struct {
	origin   core.Point // canvas px
	current  core.Point
	additive bool
}

type movingComment struct {
	original core.Comment
	origin   core.Point // canvas px pointer-down
	dragging bool
	frame    int
	position core.Point // normalized, last applied
}

type editingText struct {
	position core.Point // normalized
}

func (idle) isGesture()           {}
func (*drawing) isGesture()       {}
func (*transforming) isGesture()  {}
func (*marqueeing) isGesture()    {}
func (*movingComment) isGesture() {}
func (*editingText) isGesture()   {}

// Session owns one reviewer's live interaction state. All methods are safe
// for the single UI goroutine plus the reconciler's change notifications.
type Session struct {
	mu     sync.Mutex
	cfg    config.EngineConfig
	ctx    *review.Context
	rec    *reconcile.Reconciler
	mut    *store.Mutator
	index  *frameindex.Index
	logger *slog.Logger

	tool       Tool
	style      Style
	authorID   string
	authorName string
	rect       core.Rect // rendered rect in canvas px
	selection  []core.ID

	state        gesture
	gestureStart time.Time

	onCommentClick func(core.ID)
	onPlaceComment func(frame int, position core.Point)
	onGesture      func(kind string, duration time.Duration)
	invalidate     func()
}

// New creates a Session over the given review context, reconciler and store
// mutator.
func New(cfg config.EngineConfig, ctx *review.Context, rec *reconcile.Reconciler, mut *store.Mutator, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		ctx:    ctx,
		rec:    rec,
		mut:    mut,
		index:  frameindex.New(),
		logger: logger,
		style:  DefaultStyle,
		state:  idle{},
	}
}

// SetTool switches the active tool. An in-flight gesture keeps its tool.
func (s *Session) SetTool(tool Tool) {
	s.mu.Lock()
	s.tool = tool
	s.mu.Unlock()
}

// SetStyle sets the style applied to new annotations.
func (s *Session) SetStyle(style Style) {
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
}

// SetAuthor records who new annotations and comments belong to.
func (s *Session) SetAuthor(id, name string) {
	s.mu.Lock()
	s.authorID = id
	s.authorName = name
	s.mu.Unlock()
}

// SetRenderedRect updates the letterboxed video placement after a container
// resize. With a zero rect all pointer input is ignored.
func (s *Session) SetRenderedRect(rect core.Rect) {
	s.mu.Lock()
	s.rect = rect
	s.mu.Unlock()
}

// SetOnCommentClick registers the popover toggle for comment-marker clicks.
func (s *Session) SetOnCommentClick(fn func(core.ID)) {
	s.mu.Lock()
	s.onCommentClick = fn
	s.mu.Unlock()
}

// SetOnPlaceComment registers the external comment-creation flow invoked by
// the comment tool.
func (s *Session) SetOnPlaceComment(fn func(frame int, position core.Point)) {
	s.mu.Lock()
	s.onPlaceComment = fn
	s.mu.Unlock()
}

// SetOnGesture registers a sink for completed gestures, typically telemetry.
// It receives the gesture kind and its pointer-down-to-up duration.
func (s *Session) SetOnGesture(fn func(kind string, duration time.Duration)) {
	s.mu.Lock()
	s.onGesture = fn
	s.mu.Unlock()
}

// SetInvalidate registers the render surface's dirty signal.
func (s *Session) SetInvalidate(fn func()) {
	s.mu.Lock()
	s.invalidate = fn
	s.mu.Unlock()
}

// Refresh rebuilds the frame index from the reconciler's working copy. The
// engine wires this to the reconciler's change notification.
func (s *Session) Refresh() {
	s.mu.Lock()
	s.refreshIndexLocked()
	s.mu.Unlock()
}

func (s *Session) refreshIndexLocked() {
	annotations, comments := s.rec.Snapshot()
	s.index.Rebuild(annotations, comments)
}

// Selection returns the selected annotation ids.
func (s *Session) Selection() []core.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ID, len(s.selection))
	copy(out, s.selection)
	return out
}

// Draft returns the shape being drawn, if a drawing gesture is active.
func (s *Session) Draft() (core.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.state.(*drawing); ok {
		return st.draft.Clone(), true
	}
	return core.Annotation{}, false
}

// Marquee returns the active selection box in normalized space.
func (s *Session) Marquee() (core.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(*marqueeing)
	if !ok || s.rect.IsZero() {
		return core.Rect{}, false
	}
	a := geo.CanvasToNormalized(st.origin, s.rect)
	b := geo.CanvasToNormalized(st.current, s.rect)
	return core.RectFromPoints(a, b), true
}

// TextEntry returns the normalized position of the open inline text editor.
func (s *Session) TextEntry() (core.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.state.(*editingText); ok {
		return st.position, true
	}
	return core.Point{}, false
}

// Idle reports whether no gesture is active.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.(idle)
	return ok
}

func (s *Session) isSelected(id core.ID) bool {
	for _, sel := range s.selection {
		if sel == id {
			return true
		}
	}
	return false
}

func (s *Session) toggleSelection(id core.ID) {
	for i, sel := range s.selection {
		if sel == id {
			s.selection = append(s.selection[:i], s.selection[i+1:]...)
			return
		}
	}
	s.selection = append(s.selection, id)
}

// selectedAnnotations resolves the selection against the current frame's
// annotations, dropping ids that are no longer visible.
func (s *Session) selectedAnnotations(frame int) []core.Annotation {
	visible := s.index.AnnotationsAt(frame)
	out := make([]core.Annotation, 0, len(s.selection))
	for _, a := range visible {
		if s.isSelected(a.ID) {
			out = append(out, a)
		}
	}
	return out
}

// annotationAt returns the topmost annotation under the canvas point.
func (s *Session) annotationAt(p core.Point, frame int) (core.Annotation, bool) {
	visible := s.index.AnnotationsAt(frame)
	for i := len(visible) - 1; i >= 0; i-- {
		if geo.HitTest(p, visible[i], s.rect, s.cfg.HitTolerancePx) {
			return visible[i], true
		}
	}
	return core.Annotation{}, false
}

// commentAt returns the pinned comment whose marker is under the point.
func (s *Session) commentAt(p core.Point, frame int) (core.Comment, bool) {
	for _, c := range s.index.CommentsAt(frame) {
		marker := geo.NormalizedToCanvas(*c.Position, s.rect)
		dx, dy := p.X-marker.X, p.Y-marker.Y
		if dx*dx+dy*dy <= commentMarkerRadiusPx*commentMarkerRadiusPx {
			return c, true
		}
	}
	return core.Comment{}, false
}

func (s *Session) invalidateLocked() {
	if s.invalidate != nil {
		s.invalidate()
	}
}

// recoverToIdle keeps a panic inside a handler from wedging the state
// machine in a non-idle state. Must run before the mutex unlock.
func (s *Session) recoverToIdle(handler string) {
	if r := recover(); r != nil {
		s.logger.Error("Interaction handler panicked, resetting to idle",
			"handler", handler, "panic", r)
		s.state = idle{}
	}
}
