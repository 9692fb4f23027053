// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/framepoint/annotate/internal/model/core"
)

// ErrNotFound is returned when an id does not exist in the store.
var ErrNotFound = errors.New("item not found")

// ErrTemporaryID is returned when a write other than create carries a
// temporary id. Temporary ids exist only on the client; the store never
// accepts them as identities.
var ErrTemporaryID = errors.New("temporary id not valid in store")

// Snapshot is an authoritative view of one video's collections, the input to
// reconciliation.
type Snapshot struct {
	Annotations []core.Annotation
	Comments    []core.Comment
}

// Store is the collaborative store contract. Implementations are the
// in-memory backend (tests, offline review), the SQLite backend (local
// persistence), and the websocket backend (live collaboration). All calls
// are eventually consistent from the client's point of view and may race
// with local edits; the reconcile package absorbs that.
type Store interface {
	// Lifecycle
	Init() error
	Close() error

	// Annotations. Create assigns and returns the authoritative id; any
	// temporary id on the passed value is discarded. UpdateAnnotations is
	// one logical operation for the whole batch.
	CreateAnnotation(ctx context.Context, a core.Annotation) (core.ID, error)
	UpdateAnnotations(ctx context.Context, annotations []core.Annotation) error
	DeleteAnnotations(ctx context.Context, ids []core.ID) error

	// Comments
	CreateComment(ctx context.Context, c core.Comment) (core.ID, error)
	UpdateCommentPosition(ctx context.Context, id core.ID, frame int, position core.Point) error
	ToggleCommentResolved(ctx context.Context, id core.ID) (bool, error)
	DeleteComments(ctx context.Context, ids []core.ID) error

	// Load returns the current authoritative snapshot for a video.
	Load(ctx context.Context, videoID string) (Snapshot, error)

	// Subscribe yields authoritative snapshots whenever the video's
	// collections change. The returned cancel function releases the
	// subscription.
	Subscribe(videoID string) (<-chan Snapshot, func())
}
