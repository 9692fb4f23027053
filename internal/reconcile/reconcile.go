// Package reconcile merges the authoritative annotation/comment collections
// arriving from the collaborative store with in-flight local optimistic
// edits. The policy keeps freshly created items visible while their store
// confirmation is outstanding, lets concurrent edits from other reviewers
// through, and rolls rejected mutations back to the last confirmed state.
package reconcile

import (
	"sync"

	"github.com/framepoint/annotate/internal/cache"
	"github.com/framepoint/annotate/internal/model/core"
)

// mergeByID implements the merge policy. The authoritative collection is the
// base. A local copy replaces the authoritative item only while its id is in
// the pending set, so an in-flight optimistic edit is not clobbered by a
// stale echo but a settled item always tracks other reviewers' edits. Local
// items missing from the authoritative set survive only while their id is
// temporary (an unconfirmed creation); confirmed ones were deleted remotely
// and are dropped.
func mergeByID[T any](local, remote []T, pending map[string]struct{}, idOf func(T) core.ID) []T {
	localByID := make(map[string]T, len(local))
	for _, item := range local {
		localByID[idOf(item).String()] = item
	}

	out := make([]T, 0, len(remote)+len(local))
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, item := range remote {
		id := idOf(item).String()
		remoteIDs[id] = struct{}{}
		localCopy, known := localByID[id]
		if _, dirty := pending[id]; known && dirty {
			out = append(out, localCopy)
		} else {
			out = append(out, item)
		}
	}
	for _, item := range local {
		id := idOf(item)
		if _, echoed := remoteIDs[id.String()]; echoed {
			continue
		}
		if id.IsTemporary() {
			out = append(out, item)
		}
	}
	return out
}

// MergeAnnotations applies the reconciliation policy to annotation sets.
// pending holds the ids of local edits not yet acknowledged by the store.
func MergeAnnotations(local, remote []core.Annotation, pending map[string]struct{}) []core.Annotation {
	return mergeByID(local, remote, pending, func(a core.Annotation) core.ID { return a.ID })
}

// MergeComments applies the reconciliation policy to comment sets.
func MergeComments(local, remote []core.Comment, pending map[string]struct{}) []core.Comment {
	return mergeByID(local, remote, pending, func(c core.Comment) core.ID { return c.ID })
}

// Reconciler owns the client's working copy of both collections. The session
// writes optimistic edits into it, store confirmations and remote snapshots
// flow back through it, and the render path reads from it.
type Reconciler struct {
	mu          sync.Mutex
	annotations []core.Annotation
	comments    []core.Comment
	baseline    *cache.BaselineCache
	onChange    func()

	// ids whose optimistic edit has not been acknowledged by the store yet.
	// Only these may shadow the authoritative version during a merge.
	pendingAnnotations map[string]struct{}
	pendingComments    map[string]struct{}
}

// New creates a Reconciler backed by the given baseline cache.
func New(baseline *cache.BaselineCache) *Reconciler {
	return &Reconciler{
		baseline:           baseline,
		pendingAnnotations: make(map[string]struct{}),
		pendingComments:    make(map[string]struct{}),
	}
}

// SetOnChange registers a callback fired after every state change, with the
// lock released. The render surface hooks its dirty signal here.
func (r *Reconciler) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Snapshot returns copies of the current working collections.
func (r *Reconciler) Snapshot() ([]core.Annotation, []core.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	annotations := make([]core.Annotation, len(r.annotations))
	for i, a := range r.annotations {
		annotations[i] = a.Clone()
	}
	comments := make([]core.Comment, len(r.comments))
	for i, c := range r.comments {
		comments[i] = c.Clone()
	}
	return annotations, comments
}

// ApplyRemote merges an authoritative snapshot into the working copy and
// refreshes the baseline for every confirmed item it carries.
func (r *Reconciler) ApplyRemote(annotations []core.Annotation, comments []core.Comment) {
	r.mu.Lock()
	r.annotations = MergeAnnotations(r.annotations, annotations, r.pendingAnnotations)
	r.comments = MergeComments(r.comments, comments, r.pendingComments)
	r.mu.Unlock()

	for _, a := range annotations {
		r.baseline.PutAnnotation(a)
	}
	for _, c := range comments {
		r.baseline.PutComment(c)
	}
	r.notify()
}

// UpsertAnnotations writes optimistic local state: existing ids are replaced
// in place, new ids appended. Every touched id becomes pending until the
// store acknowledges it, shielding the edit from snapshot merges.
func (r *Reconciler) UpsertAnnotations(items []core.Annotation) {
	r.mu.Lock()
	for _, item := range items {
		r.pendingAnnotations[item.ID.String()] = struct{}{}
		replaced := false
		for i := range r.annotations {
			if r.annotations[i].ID == item.ID {
				r.annotations[i] = item.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			r.annotations = append(r.annotations, item.Clone())
		}
	}
	r.mu.Unlock()
	r.notify()
}

// SettleAnnotations marks the given ids as acknowledged: the next
// authoritative snapshot owns them again.
func (r *Reconciler) SettleAnnotations(ids []core.ID) {
	r.mu.Lock()
	for _, id := range ids {
		delete(r.pendingAnnotations, id.String())
	}
	r.mu.Unlock()
}

// RemoveAnnotations drops the given ids from the working copy and baseline.
func (r *Reconciler) RemoveAnnotations(ids []core.ID) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id.String()] = struct{}{}
	}
	r.mu.Lock()
	kept := r.annotations[:0]
	for _, a := range r.annotations {
		if _, gone := drop[a.ID.String()]; !gone {
			kept = append(kept, a)
		}
	}
	r.annotations = kept
	for id := range drop {
		delete(r.pendingAnnotations, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.baseline.DeleteAnnotation(id)
	}
	r.notify()
}

// ConfirmAnnotationCreate swaps a temporary id for the store-issued one. The
// confirmed item becomes the new baseline. Unknown temp ids are ignored (the
// item was deleted locally before the confirmation arrived).
func (r *Reconciler) ConfirmAnnotationCreate(tempID, confirmed core.ID) {
	r.mu.Lock()
	delete(r.pendingAnnotations, tempID.String())
	var confirmedCopy *core.Annotation
	for i := range r.annotations {
		if r.annotations[i].ID == tempID {
			r.annotations[i].ID = confirmed
			c := r.annotations[i].Clone()
			confirmedCopy = &c
			break
		}
	}
	r.mu.Unlock()

	if confirmedCopy != nil {
		r.baseline.PutAnnotation(*confirmedCopy)
	}
	r.notify()
}

// FailAnnotationCreate rolls back a rejected creation by removing the
// temporary item.
func (r *Reconciler) FailAnnotationCreate(tempID core.ID) {
	r.RemoveAnnotations([]core.ID{tempID})
}

// FailAnnotationUpdate reverts the given ids to their last confirmed
// geometry. Items with no baseline (never confirmed) are left alone.
func (r *Reconciler) FailAnnotationUpdate(ids []core.ID) {
	r.mu.Lock()
	for _, id := range ids {
		delete(r.pendingAnnotations, id.String())
		if known, ok := r.baseline.GetAnnotation(id); ok {
			for i := range r.annotations {
				if r.annotations[i].ID == id {
					r.annotations[i] = known
					break
				}
			}
		}
	}
	r.mu.Unlock()
	r.notify()
}

// UpsertComments mirrors UpsertAnnotations for comments.
func (r *Reconciler) UpsertComments(items []core.Comment) {
	r.mu.Lock()
	for _, item := range items {
		r.pendingComments[item.ID.String()] = struct{}{}
		replaced := false
		for i := range r.comments {
			if r.comments[i].ID == item.ID {
				r.comments[i] = item.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			r.comments = append(r.comments, item.Clone())
		}
	}
	r.mu.Unlock()
	r.notify()
}

// RemoveComments drops the given comment ids.
func (r *Reconciler) RemoveComments(ids []core.ID) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id.String()] = struct{}{}
	}
	r.mu.Lock()
	kept := r.comments[:0]
	for _, c := range r.comments {
		if _, gone := drop[c.ID.String()]; !gone {
			kept = append(kept, c)
		}
	}
	r.comments = kept
	for id := range drop {
		delete(r.pendingComments, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.baseline.DeleteComment(id)
	}
	r.notify()
}

// ConfirmCommentCreate swaps a temporary comment id for the confirmed one.
func (r *Reconciler) ConfirmCommentCreate(tempID, confirmed core.ID) {
	r.mu.Lock()
	delete(r.pendingComments, tempID.String())
	var confirmedCopy *core.Comment
	for i := range r.comments {
		if r.comments[i].ID == tempID {
			r.comments[i].ID = confirmed
			c := r.comments[i].Clone()
			confirmedCopy = &c
			break
		}
	}
	r.mu.Unlock()

	if confirmedCopy != nil {
		r.baseline.PutComment(*confirmedCopy)
	}
	r.notify()
}

// FailCommentCreate removes a comment whose creation the store rejected.
func (r *Reconciler) FailCommentCreate(tempID core.ID) {
	r.RemoveComments([]core.ID{tempID})
}

// SettleComments marks the given comment ids as acknowledged.
func (r *Reconciler) SettleComments(ids []core.ID) {
	r.mu.Lock()
	for _, id := range ids {
		delete(r.pendingComments, id.String())
	}
	r.mu.Unlock()
}

// FailCommentMove snaps a comment marker back to its last confirmed position.
func (r *Reconciler) FailCommentMove(id core.ID) {
	r.mu.Lock()
	delete(r.pendingComments, id.String())
	if known, ok := r.baseline.GetComment(id); ok {
		for i := range r.comments {
			if r.comments[i].ID == id {
				r.comments[i] = known
				break
			}
		}
	}
	r.mu.Unlock()
	r.notify()
}
