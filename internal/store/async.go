package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/reconcile"
)

const mutationTimeout = 15 * time.Second

// Mutator pushes optimistic edits to the store off the interaction path. The
// session never blocks on persistence: each mutation runs in its own
// goroutine and reports back to the reconciler, which confirms temporary ids
// or rolls the edit back to the last confirmed state.
type Mutator struct {
	store  Store
	rec    *reconcile.Reconciler
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewMutator creates a Mutator over the given store and reconciler.
func NewMutator(st Store, rec *reconcile.Reconciler, logger *slog.Logger) *Mutator {
	return &Mutator{store: st, rec: rec, logger: logger}
}

// Wait blocks until all in-flight mutations have completed.
func (m *Mutator) Wait() {
	m.wg.Wait()
}

func (m *Mutator) run(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// CreateAnnotation persists an optimistically drawn shape. The annotation
// must already carry its temporary id and be present in the reconciler.
func (m *Mutator) CreateAnnotation(a core.Annotation) {
	tempID := a.ID
	m.run(func(ctx context.Context) {
		id, err := m.store.CreateAnnotation(ctx, a)
		if err != nil {
			m.logger.Warn("Annotation create rejected, rolling back",
				"tempId", tempID, "error", err)
			m.rec.FailAnnotationCreate(tempID)
			return
		}
		m.rec.ConfirmAnnotationCreate(tempID, id)
	})
}

// UpdateAnnotations persists one logical batch of geometry edits. On success
// the ids settle so later snapshots own them again; on rejection every
// touched id reverts to its last confirmed geometry.
func (m *Mutator) UpdateAnnotations(items []core.Annotation) {
	batch := make([]core.Annotation, len(items))
	for i, a := range items {
		batch[i] = a.Clone()
	}
	m.run(func(ctx context.Context) {
		ids := make([]core.ID, len(batch))
		for i, a := range batch {
			ids[i] = a.ID
		}
		if err := m.store.UpdateAnnotations(ctx, batch); err != nil {
			m.logger.Warn("Annotation update rejected, reverting to baseline",
				"count", len(ids), "error", err)
			m.rec.FailAnnotationUpdate(ids)
			return
		}
		m.rec.SettleAnnotations(ids)
	})
}

// DeleteAnnotations persists a deletion. A rejected delete is only logged:
// the next authoritative snapshot restores the item through the merge.
func (m *Mutator) DeleteAnnotations(ids []core.ID) {
	m.run(func(ctx context.Context) {
		if err := m.store.DeleteAnnotations(ctx, ids); err != nil {
			m.logger.Warn("Annotation delete rejected", "count", len(ids), "error", err)
		}
	})
}

// CreateComment persists an optimistically added comment.
func (m *Mutator) CreateComment(c core.Comment) {
	tempID := c.ID
	m.run(func(ctx context.Context) {
		id, err := m.store.CreateComment(ctx, c)
		if err != nil {
			m.logger.Warn("Comment create rejected, rolling back",
				"tempId", tempID, "error", err)
			m.rec.FailCommentCreate(tempID)
			return
		}
		m.rec.ConfirmCommentCreate(tempID, id)
	})
}

// MoveComment persists a re-pinned comment marker. On rejection the marker
// snaps back to its last confirmed position.
func (m *Mutator) MoveComment(id core.ID, frame int, position core.Point) {
	m.run(func(ctx context.Context) {
		if err := m.store.UpdateCommentPosition(ctx, id, frame, position); err != nil {
			m.logger.Warn("Comment move rejected, reverting to baseline",
				"id", id, "error", err)
			m.rec.FailCommentMove(id)
			return
		}
		m.rec.SettleComments([]core.ID{id})
	})
}

// ToggleCommentResolved persists a resolved-flag flip. On rejection the
// comment reverts to its last confirmed state.
func (m *Mutator) ToggleCommentResolved(id core.ID) {
	m.run(func(ctx context.Context) {
		if _, err := m.store.ToggleCommentResolved(ctx, id); err != nil {
			m.logger.Warn("Comment resolve rejected, reverting to baseline",
				"id", id, "error", err)
			m.rec.FailCommentMove(id)
			return
		}
		m.rec.SettleComments([]core.ID{id})
	})
}

// DeleteComments persists a comment deletion. Like annotation deletes, a
// rejection heals through the next authoritative snapshot.
func (m *Mutator) DeleteComments(ids []core.ID) {
	m.run(func(ctx context.Context) {
		if err := m.store.DeleteComments(ctx, ids); err != nil {
			m.logger.Warn("Comment delete rejected", "count", len(ids), "error", err)
		}
	})
}

// Follow pumps authoritative snapshots for a video into the reconciler until
// the returned cancel function is called.
func Follow(st Store, videoID string, rec *reconcile.Reconciler) func() {
	ch, cancel := st.Subscribe(videoID)
	go func() {
		for snap := range ch {
			rec.ApplyRemote(snap.Annotations, snap.Comments)
		}
	}()
	return cancel
}
