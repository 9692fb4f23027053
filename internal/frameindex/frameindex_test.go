package frameindex

import (
	"testing"

	"github.com/framepoint/annotate/internal/model/core"
)

func annotationOnFrame(id string, frame int) core.Annotation {
	return core.Annotation{
		ID:    core.ConfirmedID(id),
		Frame: frame,
		Kind:  core.KindRectangle,
	}
}

func TestIndex_FrameFilteringExactness(t *testing.T) {
	ix := New()
	ix.Rebuild([]core.Annotation{
		annotationOnFrame("a", 0),
		annotationOnFrame("b", 5),
		annotationOnFrame("c", 5),
		annotationOnFrame("d", 9),
	}, nil)

	got := ix.AnnotationsAt(5)
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 annotations on frame 5, got %d", len(got))
	}
	if got[0].ID.String() != "b" || got[1].ID.String() != "c" {
		t.Errorf("expected [b c] in original order, got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestIndex_NoStaleResultsAfterRebuild(t *testing.T) {
	ix := New()
	ix.Rebuild([]core.Annotation{annotationOnFrame("a", 3)}, nil)

	if len(ix.AnnotationsAt(3)) != 1 {
		t.Fatal("expected annotation on frame 3")
	}

	ix.Rebuild([]core.Annotation{annotationOnFrame("a", 7)}, nil)
	if len(ix.AnnotationsAt(3)) != 0 {
		t.Error("frame 3 still returns the moved annotation")
	}
	if len(ix.AnnotationsAt(7)) != 1 {
		t.Error("frame 7 missing the moved annotation")
	}
}

func TestIndex_EmptyFrame(t *testing.T) {
	ix := New()
	ix.Rebuild([]core.Annotation{annotationOnFrame("a", 1)}, nil)

	if got := ix.AnnotationsAt(2); got != nil {
		t.Errorf("expected nil for empty frame, got %v", got)
	}
}

func TestIndex_CommentsRequirePin(t *testing.T) {
	frame := 4
	pinned := core.Comment{
		ID:       core.ConfirmedID("pinned"),
		Frame:    &frame,
		Position: &core.Point{X: 0.5, Y: 0.5},
	}
	frameOnly := core.Comment{
		ID:    core.ConfirmedID("frame-only"),
		Frame: &frame,
	}
	global := core.Comment{ID: core.ConfirmedID("global")}

	ix := New()
	ix.Rebuild(nil, []core.Comment{pinned, frameOnly, global})

	got := ix.CommentsAt(4)
	if len(got) != 1 || got[0].ID.String() != "pinned" {
		t.Errorf("expected only the pinned comment, got %v", got)
	}
}

func TestIndex_Frames(t *testing.T) {
	ix := New()
	ix.Rebuild([]core.Annotation{
		annotationOnFrame("a", 0),
		annotationOnFrame("b", 5),
		annotationOnFrame("c", 5),
	}, nil)

	frames := ix.Frames()
	if len(frames) != 2 {
		t.Errorf("expected 2 distinct frames, got %v", frames)
	}
}

func TestIndex_ReturnedSliceIsACopy(t *testing.T) {
	ix := New()
	ix.Rebuild([]core.Annotation{annotationOnFrame("a", 1)}, nil)

	got := ix.AnnotationsAt(1)
	got[0].Frame = 99

	again := ix.AnnotationsAt(1)
	if again[0].Frame != 1 {
		t.Error("mutating a query result must not corrupt the index")
	}
}
