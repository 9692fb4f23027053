package session_test

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/framepoint/annotate/internal/cache"
	"github.com/framepoint/annotate/internal/config"
	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/reconcile"
	"github.com/framepoint/annotate/internal/review"
	"github.com/framepoint/annotate/internal/session"
	"github.com/framepoint/annotate/internal/store"
	"github.com/framepoint/annotate/internal/store/memory"
)

const eps = 1e-9

// fixture wires a session over the in-memory store with an 800x450 canvas
// showing a 1920x1080 video, so normalized (nx, ny) lands on canvas
// (nx*800, ny*450).
type fixture struct {
	s       *session.Session
	rec     *reconcile.Reconciler
	mut     *store.Mutator
	ctx     *review.Context
	backend *memory.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, config.EngineConfig{
		HitTolerancePx:         8,
		DragThresholdPx:        4,
		MinShapeSize:           0.005,
		ImageDropWidthFraction: 0.25,
	})
}

func newFixtureWithConfig(t *testing.T, cfg config.EngineConfig) *fixture {
	t.Helper()
	ctx := review.NewContext()
	ctx.SetVideo("v1", core.Size{Width: 1920, Height: 1080}, 24)

	backend := memory.New()
	rec := reconcile.New(cache.NewBaselineCache())
	mut := store.NewMutator(backend, rec, slog.Default())
	s := session.New(cfg, ctx, rec, mut, slog.Default())
	s.SetRenderedRect(core.Rect{X: 0, Y: 0, Width: 800, Height: 450})
	s.SetAuthor("u1", "Reviewer One")
	return &fixture{s: s, rec: rec, mut: mut, ctx: ctx, backend: backend}
}

func canvas(nx, ny float64) core.Point {
	return core.Point{X: nx * 800, Y: ny * 450}
}

// seedRectangle stores a confirmed rectangle annotation and mirrors it into
// the working copy: center (0.2,0.2), extent 0.2, axis aligned.
func (f *fixture) seedRectangle(t *testing.T, frame int) core.ID {
	t.Helper()
	a := core.Annotation{
		VideoID: "v1",
		Frame:   frame,
		Kind:    core.KindRectangle,
		Center:  core.Point{X: 0.2, Y: 0.2},
		Width:   0.2,
		Height:  0.2,
	}
	id, err := f.backend.CreateAnnotation(context.Background(), a)
	if err != nil {
		t.Fatalf("seed annotation: %v", err)
	}
	a.ID = id
	f.rec.ApplyRemote([]core.Annotation{a}, nil)
	return id
}

// seedComment stores a confirmed pinned comment and mirrors it into the
// working copy.
func (f *fixture) seedComment(t *testing.T, frame int, pos core.Point) core.ID {
	t.Helper()
	c := core.Comment{VideoID: "v1", Text: "too dark", Frame: &frame, Position: &pos}
	id, err := f.backend.CreateComment(context.Background(), c)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	c.ID = id
	f.rec.ApplyRemote(nil, []core.Comment{c})
	return id
}

func (f *fixture) annotations() []core.Annotation {
	annotations, _ := f.rec.Snapshot()
	return annotations
}

func TestDrawRectangle(t *testing.T) {
	f := newFixture(t)
	f.ctx.SetFrame(12)
	f.s.SetTool(session.ToolRectangle)

	f.s.PointerDown(canvas(0.1, 0.1), false)
	f.s.PointerMove(canvas(0.3, 0.3))
	f.s.PointerUp(canvas(0.3, 0.3))

	annotations := f.annotations()
	if len(annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(annotations))
	}
	a := annotations[0]
	if a.Frame != 12 || a.Kind != core.KindRectangle {
		t.Errorf("wrong frame/kind: %+v", a)
	}
	if math.Abs(a.Center.X-0.2) > eps || math.Abs(a.Center.Y-0.2) > eps {
		t.Errorf("expected center (0.2,0.2), got %+v", a.Center)
	}
	if math.Abs(a.Width-0.2) > eps || math.Abs(a.Height-0.2) > eps {
		t.Errorf("expected extent 0.2, got %v x %v", a.Width, a.Height)
	}
	if a.Rotation != 0 {
		t.Errorf("expected rotation 0, got %v", a.Rotation)
	}

	// The store confirmation swaps the temporary id in place.
	f.mut.Wait()
	annotations = f.annotations()
	if annotations[0].ID.IsTemporary() {
		t.Error("temporary id was never confirmed")
	}
	if !f.s.Idle() {
		t.Error("session did not return to idle")
	}
}

func TestDrawFreehand_SinglePointIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.s.SetTool(session.ToolFreehand)

	f.s.PointerDown(canvas(0.5, 0.5), false)
	f.s.PointerUp(canvas(0.5, 0.5))

	if n := len(f.annotations()); n != 0 {
		t.Errorf("degenerate stroke should be discarded, got %d annotations", n)
	}
}

func TestSelectAndMove(t *testing.T) {
	f := newFixture(t)
	id := f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	sel := f.s.Selection()
	if len(sel) != 1 || sel[0] != id {
		t.Fatalf("expected rectangle selected, got %v", sel)
	}

	f.s.PointerMove(canvas(0.3, 0.3))
	f.s.PointerUp(canvas(0.3, 0.3))

	a := f.annotations()[0]
	if math.Abs(a.Center.X-0.3) > eps || math.Abs(a.Center.Y-0.3) > eps {
		t.Errorf("expected center (0.3,0.3) after move, got %+v", a.Center)
	}
}

func TestResizeBottomRightHandle(t *testing.T) {
	f := newFixture(t)
	f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	// Click to select, then drag the bottom-right grip outward by +0.1
	// normalized along both axes.
	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerUp(canvas(0.2, 0.2))

	f.s.PointerDown(canvas(0.3, 0.3), false)
	f.s.PointerMove(canvas(0.4, 0.4))
	f.s.PointerUp(canvas(0.4, 0.4))

	a := f.annotations()[0]
	if math.Abs(a.Width-0.3) > 1e-6 || math.Abs(a.Height-0.3) > 1e-6 {
		t.Errorf("expected extent 0.3, got %v x %v", a.Width, a.Height)
	}
	if math.Abs(a.Center.X-0.25) > 1e-6 || math.Abs(a.Center.Y-0.25) > 1e-6 {
		t.Errorf("expected center (0.25,0.25), got %+v", a.Center)
	}
}

func TestResizeClampsToConfiguredMinimum(t *testing.T) {
	f := newFixtureWithConfig(t, config.EngineConfig{
		HitTolerancePx:  8,
		DragThresholdPx: 4,
		MinShapeSize:    0.1,
	})
	f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerUp(canvas(0.2, 0.2))

	// Drag the bottom-right grip all the way onto the opposite corner.
	f.s.PointerDown(canvas(0.3, 0.3), false)
	f.s.PointerMove(canvas(0.1, 0.1))
	f.s.PointerUp(canvas(0.1, 0.1))

	a := f.annotations()[0]
	if math.Abs(a.Width-0.1) > eps || math.Abs(a.Height-0.1) > eps {
		t.Errorf("expected extent clamped to 0.1, got %v x %v", a.Width, a.Height)
	}
}

func TestGestureHookReportsCompletedGestures(t *testing.T) {
	f := newFixture(t)
	var kinds []string
	f.s.SetOnGesture(func(kind string, duration time.Duration) {
		if duration < 0 {
			t.Errorf("negative gesture duration: %v", duration)
		}
		kinds = append(kinds, kind)
	})

	f.s.SetTool(session.ToolRectangle)
	f.s.PointerDown(canvas(0.1, 0.1), false)
	f.s.PointerMove(canvas(0.3, 0.3))
	f.s.PointerUp(canvas(0.3, 0.3))

	f.s.SetTool(session.ToolSelect)
	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerMove(canvas(0.3, 0.3))
	f.s.PointerUp(canvas(0.3, 0.3))

	// A plain click moves nothing and is not a gesture.
	f.s.PointerDown(canvas(0.3, 0.3), false)
	f.s.PointerUp(canvas(0.3, 0.3))

	want := []string{"draw", "move"}
	if len(kinds) != len(want) {
		t.Fatalf("expected gestures %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected gestures %v, got %v", want, kinds)
		}
	}
}

func TestRemoteEditAppliesAfterMoveSettles(t *testing.T) {
	f := newFixture(t)
	id := f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerMove(canvas(0.3, 0.3))
	f.s.PointerUp(canvas(0.3, 0.3))
	f.mut.Wait()

	// Another reviewer's edit in the next snapshot must win once the local
	// move has been acknowledged.
	theirs := core.Annotation{
		ID:      id,
		VideoID: "v1",
		Kind:    core.KindRectangle,
		Center:  core.Point{X: 0.6, Y: 0.6},
		Width:   0.2,
		Height:  0.2,
	}
	f.rec.ApplyRemote([]core.Annotation{theirs}, nil)

	a := f.annotations()[0]
	if math.Abs(a.Center.X-0.6) > eps || math.Abs(a.Center.Y-0.6) > eps {
		t.Errorf("concurrent remote edit lost, center = %+v", a.Center)
	}
}

func TestMarqueeSelectsRectangleNotText(t *testing.T) {
	f := newFixture(t)
	id := f.seedRectangle(t, 0)
	f.rec.UpsertAnnotations([]core.Annotation{{
		ID:       core.ConfirmedID("text-1"),
		VideoID:  "v1",
		Frame:    0,
		Kind:     core.KindText,
		Position: core.Point{X: 0.8, Y: 0.8},
		Text:     "note",
		FontSize: 0.03,
	}})
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.05, 0.05), false)
	f.s.PointerMove(canvas(0.35, 0.35))
	f.s.PointerUp(canvas(0.35, 0.35))

	sel := f.s.Selection()
	if len(sel) != 1 || sel[0] != id {
		t.Errorf("expected only the rectangle selected, got %v", sel)
	}
}

func TestMarqueePartialOverlapSelects(t *testing.T) {
	f := newFixture(t)
	id := f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	// Box clips only the rectangle's top-left corner.
	f.s.PointerDown(canvas(0.05, 0.05), false)
	f.s.PointerMove(canvas(0.12, 0.12))
	f.s.PointerUp(canvas(0.12, 0.12))

	sel := f.s.Selection()
	if len(sel) != 1 || sel[0] != id {
		t.Errorf("partial overlap should select, got %v", sel)
	}
}

func TestShiftClickTogglesMembership(t *testing.T) {
	f := newFixture(t)
	id := f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), true)
	f.s.PointerUp(canvas(0.2, 0.2))
	if sel := f.s.Selection(); len(sel) != 1 || sel[0] != id {
		t.Fatalf("shift-click should add to selection, got %v", sel)
	}

	f.s.PointerDown(canvas(0.2, 0.2), true)
	f.s.PointerUp(canvas(0.2, 0.2))
	if sel := f.s.Selection(); len(sel) != 0 {
		t.Errorf("second shift-click should remove, got %v", sel)
	}
}

func TestClickEmptyCanvasClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerUp(canvas(0.2, 0.2))

	f.s.PointerDown(canvas(0.9, 0.9), false)
	f.s.PointerUp(canvas(0.9, 0.9))
	if sel := f.s.Selection(); len(sel) != 0 {
		t.Errorf("expected empty selection, got %v", sel)
	}
}

func TestDeleteSelection(t *testing.T) {
	f := newFixture(t)
	f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerUp(canvas(0.2, 0.2))
	f.s.DeleteSelection()

	if n := len(f.annotations()); n != 0 {
		t.Errorf("expected annotation deleted, got %d", n)
	}
	if sel := f.s.Selection(); len(sel) != 0 {
		t.Errorf("selection should clear after delete, got %v", sel)
	}
}

func TestEscapeRevertsTransform(t *testing.T) {
	f := newFixture(t)
	f.seedRectangle(t, 0)
	f.s.SetTool(session.ToolSelect)

	f.s.PointerDown(canvas(0.2, 0.2), false)
	f.s.PointerMove(canvas(0.5, 0.5))
	f.s.Escape()

	a := f.annotations()[0]
	if math.Abs(a.Center.X-0.2) > eps || math.Abs(a.Center.Y-0.2) > eps {
		t.Errorf("escape should revert optimistic geometry, got %+v", a.Center)
	}
	if !f.s.Idle() {
		t.Error("session did not return to idle")
	}
}

func TestCommentClickVersusDrag(t *testing.T) {
	f := newFixture(t)
	commentID := f.seedComment(t, 0, core.Point{X: 0.5, Y: 0.5})
	f.s.SetTool(session.ToolSelect)

	var clicked core.ID
	f.s.SetOnCommentClick(func(id core.ID) { clicked = id })

	// Below the drag threshold: a click, toggling the popover.
	f.s.PointerDown(canvas(0.5, 0.5), false)
	f.s.PointerMove(core.Point{X: 401, Y: 225})
	f.s.PointerUp(core.Point{X: 401, Y: 225})
	if clicked != commentID {
		t.Fatalf("expected comment click, got %v", clicked)
	}
	_, comments := f.rec.Snapshot()
	if comments[0].Position.X != 0.5 {
		t.Errorf("click must not move the marker, got %+v", comments[0].Position)
	}

	// Past the threshold: a drag, committing the new position.
	f.s.PointerDown(canvas(0.5, 0.5), false)
	f.s.PointerMove(canvas(0.75, 0.75))
	f.s.PointerUp(canvas(0.75, 0.75))
	f.mut.Wait()

	_, comments = f.rec.Snapshot()
	if math.Abs(comments[0].Position.X-0.75) > eps {
		t.Errorf("expected marker at 0.75, got %+v", comments[0].Position)
	}
}

func TestTextToolCommit(t *testing.T) {
	f := newFixture(t)
	f.ctx.SetFrame(7)
	f.s.SetTool(session.ToolText)

	f.s.PointerDown(canvas(0.4, 0.4), false)
	f.s.PointerUp(canvas(0.4, 0.4))
	if _, open := f.s.TextEntry(); !open {
		t.Fatal("text editor should stay open across pointer-up")
	}

	f.s.CommitText("check the shadows")

	annotations := f.annotations()
	if len(annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(annotations))
	}
	a := annotations[0]
	if a.Kind != core.KindText || a.Text != "check the shadows" || a.Frame != 7 {
		t.Errorf("unexpected text annotation: %+v", a)
	}
	if math.Abs(a.Position.X-0.4) > eps {
		t.Errorf("expected position 0.4, got %+v", a.Position)
	}
}

func TestTextToolEscapeDiscards(t *testing.T) {
	f := newFixture(t)
	f.s.SetTool(session.ToolText)

	f.s.PointerDown(canvas(0.4, 0.4), false)
	f.s.Escape()

	if n := len(f.annotations()); n != 0 {
		t.Errorf("escape should discard the draft, got %d annotations", n)
	}
	if !f.s.Idle() {
		t.Error("session did not return to idle")
	}
}

func TestDropImage(t *testing.T) {
	f := newFixture(t)
	f.ctx.SetFrame(3)

	f.s.DropImage(canvas(0.5, 0.5), "data:image/png;base64,xyz",
		core.Size{Width: 400, Height: 300}, 1234, "image/png")

	annotations := f.annotations()
	if len(annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(annotations))
	}
	a := annotations[0]
	if a.Kind != core.KindImage || a.Frame != 3 {
		t.Errorf("unexpected image annotation: %+v", a)
	}
	if math.Abs(a.Width-0.25) > eps {
		t.Errorf("expected width 0.25, got %v", a.Width)
	}
	// height = 0.25 * (300/400) * (1920/1080)
	want := 0.25 * (300.0 / 400.0) * (1920.0 / 1080.0)
	if math.Abs(a.Height-want) > eps {
		t.Errorf("expected height %v, got %v", want, a.Height)
	}
}

func TestDropImage_UndecodedIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.s.DropImage(canvas(0.5, 0.5), "data:broken", core.Size{}, 0, "image/png")
	if n := len(f.annotations()); n != 0 {
		t.Errorf("zero-size image should be ignored, got %d annotations", n)
	}
}

func TestZeroRectIgnoresPointerInput(t *testing.T) {
	f := newFixture(t)
	f.s.SetRenderedRect(core.Rect{})
	f.s.SetTool(session.ToolRectangle)

	f.s.PointerDown(core.Point{X: 10, Y: 10}, false)
	f.s.PointerMove(core.Point{X: 50, Y: 50})
	f.s.PointerUp(core.Point{X: 50, Y: 50})

	if n := len(f.annotations()); n != 0 {
		t.Errorf("unmeasured container must not create annotations, got %d", n)
	}
	if !f.s.Idle() {
		t.Error("session did not stay idle")
	}
}
