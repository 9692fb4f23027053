// internal/store/memory/memory.go
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/store"
)

// videoRecord groups one video's collections, in insertion order.
type videoRecord struct {
	annotations []core.Annotation
	comments    []core.Comment
}

// Backend stores collections in memory. It is the reference implementation
// of the store contract: tests run against it, and offline review sessions
// use it when no persistence is configured.
type Backend struct {
	mu     sync.RWMutex
	videos map[string]*videoRecord
	subs   map[string][]chan store.Snapshot
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		videos: make(map[string]*videoRecord),
		subs:   make(map[string][]chan store.Snapshot),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close releases all subscriptions.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan store.Snapshot)
	return nil
}

func (b *Backend) record(videoID string) *videoRecord {
	rec, ok := b.videos[videoID]
	if !ok {
		rec = &videoRecord{}
		b.videos[videoID] = rec
	}
	return rec
}

// snapshotLocked builds a deep-copied snapshot. Caller holds at least RLock.
func (b *Backend) snapshotLocked(videoID string) store.Snapshot {
	rec, ok := b.videos[videoID]
	if !ok {
		return store.Snapshot{}
	}
	snap := store.Snapshot{
		Annotations: make([]core.Annotation, len(rec.annotations)),
		Comments:    make([]core.Comment, len(rec.comments)),
	}
	for i, a := range rec.annotations {
		snap.Annotations[i] = a.Clone()
	}
	for i, c := range rec.comments {
		snap.Comments[i] = c.Clone()
	}
	return snap
}

// broadcastLocked pushes the current snapshot to every subscriber of the
// video. Slow subscribers drop intermediate snapshots rather than block the
// store; only the latest state matters to a renderer.
func (b *Backend) broadcastLocked(videoID string) {
	subs := b.subs[videoID]
	if len(subs) == 0 {
		return
	}
	snap := b.snapshotLocked(videoID)
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// CreateAnnotation stores a new annotation under a freshly issued id.
func (b *Backend) CreateAnnotation(_ context.Context, a core.Annotation) (core.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a = a.Clone()
	a.ID = core.ConfirmedID(uuid.New().String())
	rec := b.record(a.VideoID)
	rec.annotations = append(rec.annotations, a)
	b.broadcastLocked(a.VideoID)
	return a.ID, nil
}

// UpdateAnnotations replaces the stored geometry for every annotation in the
// batch. The batch is applied atomically: either all entries are known and
// updated, or nothing changes.
func (b *Backend) UpdateAnnotations(_ context.Context, annotations []core.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	type target struct {
		rec *videoRecord
		idx int
	}
	targets := make([]target, 0, len(annotations))
	for _, a := range annotations {
		if a.ID.IsTemporary() {
			return store.ErrTemporaryID
		}
		rec, ok := b.videos[a.VideoID]
		if !ok {
			return store.ErrNotFound
		}
		found := -1
		for i := range rec.annotations {
			if rec.annotations[i].ID == a.ID {
				found = i
				break
			}
		}
		if found < 0 {
			return store.ErrNotFound
		}
		targets = append(targets, target{rec, found})
	}
	touched := make(map[string]struct{})
	for i, a := range annotations {
		targets[i].rec.annotations[targets[i].idx] = a.Clone()
		touched[a.VideoID] = struct{}{}
	}
	for videoID := range touched {
		b.broadcastLocked(videoID)
	}
	return nil
}

// DeleteAnnotations removes the given ids. Unknown ids are ignored: a delete
// raced by another client's delete is not an error.
func (b *Backend) DeleteAnnotations(_ context.Context, ids []core.ID) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
		drop[id.String()] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for videoID, rec := range b.videos {
		kept := rec.annotations[:0]
		removed := false
		for _, a := range rec.annotations {
			if _, gone := drop[a.ID.String()]; gone {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		rec.annotations = kept
		if removed {
			b.broadcastLocked(videoID)
		}
	}
	return nil
}

// CreateComment stores a new comment under a freshly issued id.
func (b *Backend) CreateComment(_ context.Context, c core.Comment) (core.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c = c.Clone()
	c.ID = core.ConfirmedID(uuid.New().String())
	rec := b.record(c.VideoID)
	rec.comments = append(rec.comments, c)
	b.broadcastLocked(c.VideoID)
	return c.ID, nil
}

// UpdateCommentPosition re-pins a comment marker.
func (b *Backend) UpdateCommentPosition(_ context.Context, id core.ID, frame int, position core.Point) error {
	if id.IsTemporary() {
		return store.ErrTemporaryID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for videoID, rec := range b.videos {
		for i := range rec.comments {
			if rec.comments[i].ID == id {
				f := frame
				p := position
				rec.comments[i].Frame = &f
				rec.comments[i].Position = &p
				b.broadcastLocked(videoID)
				return nil
			}
		}
	}
	return store.ErrNotFound
}

// ToggleCommentResolved flips the resolved flag and returns the new value.
func (b *Backend) ToggleCommentResolved(_ context.Context, id core.ID) (bool, error) {
	if id.IsTemporary() {
		return false, store.ErrTemporaryID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for videoID, rec := range b.videos {
		for i := range rec.comments {
			if rec.comments[i].ID == id {
				rec.comments[i].Resolved = !rec.comments[i].Resolved
				b.broadcastLocked(videoID)
				return rec.comments[i].Resolved, nil
			}
		}
	}
	return false, store.ErrNotFound
}

// DeleteComments removes the given comment ids.
func (b *Backend) DeleteComments(_ context.Context, ids []core.ID) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
		drop[id.String()] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for videoID, rec := range b.videos {
		kept := rec.comments[:0]
		removed := false
		for _, c := range rec.comments {
			if _, gone := drop[c.ID.String()]; gone {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		rec.comments = kept
		if removed {
			b.broadcastLocked(videoID)
		}
	}
	return nil
}

// Load returns the current snapshot for a video.
func (b *Backend) Load(_ context.Context, videoID string) (store.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(videoID), nil
}

// Subscribe registers a snapshot channel for the video.
func (b *Backend) Subscribe(videoID string) (<-chan store.Snapshot, func()) {
	ch := make(chan store.Snapshot, 1)

	b.mu.Lock()
	b.subs[videoID] = append(b.subs[videoID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[videoID]
		for i, c := range subs {
			if c == ch {
				b.subs[videoID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}
