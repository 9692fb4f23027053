package reconcile

import (
	"testing"

	"github.com/framepoint/annotate/internal/cache"
	"github.com/framepoint/annotate/internal/model/core"
)

func confirmed(id string) core.Annotation {
	return core.Annotation{ID: core.ConfirmedID(id), Kind: core.KindRectangle}
}

func TestMergeAnnotations_NeverDropsUnconfirmedLocalCreations(t *testing.T) {
	temp := core.Annotation{ID: core.NewTemporaryID(), Kind: core.KindRectangle}
	local := []core.Annotation{temp}
	remote := []core.Annotation{confirmed("r1")}

	merged := MergeAnnotations(local, remote, nil)

	foundTemp, foundRemote := false, false
	for _, a := range merged {
		if a.ID == temp.ID {
			foundTemp = true
		}
		if a.ID.String() == "r1" {
			foundRemote = true
		}
	}
	if !foundTemp {
		t.Error("temporary-id item vanished during merge")
	}
	if !foundRemote {
		t.Error("unknown authoritative item was not spliced in")
	}
}

func TestMergeAnnotations_PendingLocalCopyWinsOverStaleEcho(t *testing.T) {
	localEdit := confirmed("a1")
	localEdit.Center = core.Point{X: 0.9, Y: 0.9}
	staleEcho := confirmed("a1")
	staleEcho.Center = core.Point{X: 0.1, Y: 0.1}
	pending := map[string]struct{}{"a1": {}}

	merged := MergeAnnotations([]core.Annotation{localEdit}, []core.Annotation{staleEcho}, pending)

	if len(merged) != 1 {
		t.Fatalf("expected 1 item, got %d", len(merged))
	}
	if merged[0].Center.X != 0.9 {
		t.Error("stale server echo clobbered the in-flight local edit")
	}
}

func TestMergeAnnotations_SettledLocalTracksRemoteEdit(t *testing.T) {
	mine := confirmed("a1")
	mine.Center = core.Point{X: 0.2, Y: 0.2}
	theirs := confirmed("a1")
	theirs.Center = core.Point{X: 0.7, Y: 0.7}

	merged := MergeAnnotations([]core.Annotation{mine}, []core.Annotation{theirs}, nil)

	if len(merged) != 1 {
		t.Fatalf("expected 1 item, got %d", len(merged))
	}
	if merged[0].Center.X != 0.7 {
		t.Error("concurrent remote edit to a settled item was discarded")
	}
}

func TestMergeAnnotations_RemoteDeletionDropsConfirmedLocal(t *testing.T) {
	merged := MergeAnnotations([]core.Annotation{confirmed("gone")}, nil, nil)
	if len(merged) != 0 {
		t.Errorf("confirmed item deleted remotely should be dropped, got %v", merged)
	}
}

func TestMergeAnnotations_TempPhaseStillSeesConcurrentEdits(t *testing.T) {
	temp := core.Annotation{ID: core.NewTemporaryID()}
	mine := confirmed("mine")
	theirs := confirmed("theirs")

	merged := MergeAnnotations([]core.Annotation{temp, mine}, []core.Annotation{mine, theirs}, nil)

	if len(merged) != 3 {
		t.Fatalf("expected 3 items (temp + mine + theirs), got %d", len(merged))
	}
}

func TestReconciler_SecondSnapshotAppliesConcurrentRemoteEdit(t *testing.T) {
	r := New(cache.NewBaselineCache())

	a := confirmed("srv-1")
	a.Center = core.Point{X: 0.2, Y: 0.2}
	r.ApplyRemote([]core.Annotation{a}, nil)

	// Another reviewer moves the shape; no local edit is in flight.
	edited := confirmed("srv-1")
	edited.Center = core.Point{X: 0.7, Y: 0.7}
	r.ApplyRemote([]core.Annotation{edited}, nil)

	annotations, _ := r.Snapshot()
	if len(annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(annotations))
	}
	if annotations[0].Center != (core.Point{X: 0.7, Y: 0.7}) {
		t.Errorf("remote edit lost: center = %v, want {0.7 0.7}", annotations[0].Center)
	}
}

func TestReconciler_InFlightEditShieldsUntilSettled(t *testing.T) {
	r := New(cache.NewBaselineCache())

	a := confirmed("a1")
	a.Center = core.Point{X: 0.2, Y: 0.2}
	r.ApplyRemote([]core.Annotation{a}, nil)

	dragged := a.Clone()
	dragged.Center = core.Point{X: 0.8, Y: 0.8}
	r.UpsertAnnotations([]core.Annotation{dragged})

	// A snapshot racing in mid-drag must not clobber the optimistic geometry.
	r.ApplyRemote([]core.Annotation{a.Clone()}, nil)
	annotations, _ := r.Snapshot()
	if annotations[0].Center.X != 0.8 {
		t.Errorf("snapshot clobbered the in-flight edit: %v", annotations[0].Center)
	}

	// Once the store acknowledges the update, snapshots own the id again.
	r.SettleAnnotations([]core.ID{a.ID})
	r.ApplyRemote([]core.Annotation{a.Clone()}, nil)
	annotations, _ = r.Snapshot()
	if annotations[0].Center.X != 0.2 {
		t.Errorf("settled item still shadowing the authoritative copy: %v", annotations[0].Center)
	}
}

func TestReconciler_ConfirmCreateSwapsIDWithoutFlicker(t *testing.T) {
	r := New(cache.NewBaselineCache())

	temp := core.Annotation{ID: core.NewTemporaryID(), Kind: core.KindRectangle, Width: 0.2, Height: 0.2}
	r.UpsertAnnotations([]core.Annotation{temp})

	// Authoritative snapshot races in before the create confirmation: the
	// temporary item must remain visible.
	r.ApplyRemote(nil, nil)
	annotations, _ := r.Snapshot()
	if len(annotations) != 1 {
		t.Fatal("temporary item vanished before confirmation")
	}

	r.ConfirmAnnotationCreate(temp.ID, core.ConfirmedID("server-1"))
	annotations, _ = r.Snapshot()
	if len(annotations) != 1 {
		t.Fatalf("expected 1 annotation after confirm, got %d", len(annotations))
	}
	if annotations[0].ID.String() != "server-1" {
		t.Errorf("expected confirmed id, got %s", annotations[0].ID)
	}

	// The echo with the real id must not duplicate the entry.
	echo := annotations[0]
	r.ApplyRemote([]core.Annotation{echo}, nil)
	annotations, _ = r.Snapshot()
	if len(annotations) != 1 {
		t.Errorf("authoritative echo duplicated the confirmed item: %d entries", len(annotations))
	}
}

func TestReconciler_FailCreateRollsBack(t *testing.T) {
	r := New(cache.NewBaselineCache())
	temp := core.Annotation{ID: core.NewTemporaryID(), Kind: core.KindArrow}
	r.UpsertAnnotations([]core.Annotation{temp})

	r.FailAnnotationCreate(temp.ID)

	annotations, _ := r.Snapshot()
	if len(annotations) != 0 {
		t.Error("rejected creation still present after rollback")
	}
}

func TestReconciler_FailUpdateRevertsToBaseline(t *testing.T) {
	baseline := cache.NewBaselineCache()
	r := New(baseline)

	a := confirmed("a1")
	a.Center = core.Point{X: 0.2, Y: 0.2}
	r.ApplyRemote([]core.Annotation{a}, nil)

	moved := a.Clone()
	moved.Center = core.Point{X: 0.8, Y: 0.8}
	r.UpsertAnnotations([]core.Annotation{moved})

	r.FailAnnotationUpdate([]core.ID{a.ID})

	annotations, _ := r.Snapshot()
	if annotations[0].Center.X != 0.2 {
		t.Errorf("expected geometry to snap back to 0.2, got %f", annotations[0].Center.X)
	}
}

func TestReconciler_FailCommentMoveRestoresPosition(t *testing.T) {
	baseline := cache.NewBaselineCache()
	r := New(baseline)

	frame := 3
	c := core.Comment{
		ID:       core.ConfirmedID("c1"),
		Frame:    &frame,
		Position: &core.Point{X: 0.4, Y: 0.4},
	}
	r.ApplyRemote(nil, []core.Comment{c})

	dragged := c.Clone()
	dragged.Position = &core.Point{X: 0.7, Y: 0.1}
	r.UpsertComments([]core.Comment{dragged})

	r.FailCommentMove(c.ID)

	_, comments := r.Snapshot()
	if comments[0].Position.X != 0.4 {
		t.Errorf("expected marker back at 0.4, got %f", comments[0].Position.X)
	}
}

func TestReconciler_OnChangeFires(t *testing.T) {
	r := New(cache.NewBaselineCache())
	fired := 0
	r.SetOnChange(func() { fired++ })

	r.UpsertAnnotations([]core.Annotation{confirmed("a1")})
	r.ApplyRemote(nil, nil)
	r.RemoveAnnotations([]core.ID{core.ConfirmedID("a1")})

	if fired != 3 {
		t.Errorf("expected 3 change notifications, got %d", fired)
	}
}

func TestReconciler_RemoveAnnotationsClearsBaseline(t *testing.T) {
	baseline := cache.NewBaselineCache()
	r := New(baseline)

	a := confirmed("a1")
	r.ApplyRemote([]core.Annotation{a}, nil)
	r.RemoveAnnotations([]core.ID{a.ID})

	if _, ok := baseline.GetAnnotation(a.ID); ok {
		t.Error("baseline still holds a deleted annotation")
	}
}
