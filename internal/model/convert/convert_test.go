package convert

import (
	"testing"
	"time"

	"github.com/framepoint/annotate/internal/model/core"
)

func TestAnnotationRoundTrip_Rectangle(t *testing.T) {
	a := core.Annotation{
		ID:        core.ConfirmedID("a1"),
		VideoID:   "v1",
		AuthorID:  "u1",
		Frame:     12,
		Kind:      core.KindRectangle,
		Color:     "#ff0000",
		LineWidth: 2,
		Center:    core.Point{X: 0.2, Y: 0.2},
		Width:     0.2,
		Height:    0.2,
		Rotation:  0.5,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	got := AnnotationToCore(CoreToAnnotation(a))

	if got.ID != a.ID || got.Frame != 12 || got.Kind != core.KindRectangle {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Center != a.Center || got.Width != a.Width || got.Rotation != a.Rotation {
		t.Errorf("geometry lost: %+v", got)
	}
}

func TestAnnotationRoundTrip_Freehand(t *testing.T) {
	a := core.Annotation{
		ID:     core.ConfirmedID("a2"),
		Kind:   core.KindFreehand,
		Points: []core.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.3}, {X: 0.4, Y: 0.2}},
	}

	got := AnnotationToCore(CoreToAnnotation(a))

	if len(got.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got.Points))
	}
	if got.Points[1] != (core.Point{X: 0.2, Y: 0.3}) {
		t.Errorf("point order lost: %+v", got.Points)
	}
}

func TestAnnotationRoundTrip_Arrow(t *testing.T) {
	a := core.Annotation{
		ID:    core.ConfirmedID("a3"),
		Kind:  core.KindArrow,
		Start: core.Point{X: 0.1, Y: 0.9},
		End:   core.Point{X: 0.9, Y: 0.1},
	}

	got := AnnotationToCore(CoreToAnnotation(a))
	if got.Start != a.Start || got.End != a.End {
		t.Errorf("arrow endpoints lost: %+v", got)
	}
}

func TestAnnotationRoundTrip_Image(t *testing.T) {
	a := core.Annotation{
		ID:          core.ConfirmedID("a4"),
		Kind:        core.KindImage,
		Src:         "data:image/png;base64,xyz",
		Center:      core.Point{X: 0.5, Y: 0.5},
		Width:       0.25,
		Height:      0.14,
		NaturalSize: core.Size{Width: 640, Height: 360},
		ByteSize:    12345,
		MimeType:    "image/png",
	}

	got := AnnotationToCore(CoreToAnnotation(a))
	if got.Src != a.Src || got.NaturalSize != a.NaturalSize || got.ByteSize != a.ByteSize {
		t.Errorf("media metadata lost: %+v", got)
	}
}

func TestCommentRoundTrip(t *testing.T) {
	frame := 8
	c := core.Comment{
		ID:         core.ConfirmedID("c1"),
		VideoID:    "v1",
		AuthorID:   "u2",
		AuthorName: "Dana",
		ParentID:   core.ConfirmedID("c0"),
		Text:       "tighten this cut",
		Frame:      &frame,
		Position:   &core.Point{X: 0.3, Y: 0.7},
		Resolved:   true,
	}

	got := CommentToCore(CoreToComment(c))

	if got.ParentID.String() != "c0" {
		t.Errorf("parent id lost: %s", got.ParentID)
	}
	if got.Frame == nil || *got.Frame != 8 {
		t.Error("frame pin lost")
	}
	if got.Position == nil || got.Position.X != 0.3 {
		t.Error("position pin lost")
	}
	if !got.Resolved {
		t.Error("resolved flag lost")
	}
}

func TestCommentRoundTrip_Unpinned(t *testing.T) {
	c := core.Comment{ID: core.ConfirmedID("c2"), Text: "general note"}

	got := CommentToCore(CoreToComment(c))

	if got.Frame != nil || got.Position != nil {
		t.Error("unpinned comment grew pins in conversion")
	}
	if !got.ParentID.IsZero() {
		t.Error("zero parent id should stay zero")
	}
}
