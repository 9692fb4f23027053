// Package frameindex maintains a frame-keyed index over the annotation and
// comment collections so the render path asks "what is visible on frame N"
// without scanning every item per tick. Annotations are frame-exclusive: an
// annotation is visible on exactly the frame it was created on.
package frameindex

import (
	"sync"

	"github.com/framepoint/annotate/internal/model/core"
)

// Index is a rebuildable frame lookup. Rebuild replaces the whole index when
// either collection changes; queries are cheap map hits after that.
type Index struct {
	mu          sync.RWMutex
	annotations map[int][]core.Annotation
	comments    map[int][]core.Comment
}

// New creates an empty index.
func New() *Index {
	return &Index{
		annotations: make(map[int][]core.Annotation),
		comments:    make(map[int][]core.Comment),
	}
}

// Rebuild re-derives the index from the full collections. Items keep their
// relative order within a frame bucket. Comments enter the index only when
// spatially pinned; unpinned comments never render on the canvas.
func (ix *Index) Rebuild(annotations []core.Annotation, comments []core.Comment) {
	byFrame := make(map[int][]core.Annotation)
	for _, a := range annotations {
		byFrame[a.Frame] = append(byFrame[a.Frame], a)
	}
	commentsByFrame := make(map[int][]core.Comment)
	for _, c := range comments {
		if !c.Pinned() {
			continue
		}
		commentsByFrame[*c.Frame] = append(commentsByFrame[*c.Frame], c)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.annotations = byFrame
	ix.comments = commentsByFrame
}

// AnnotationsAt returns the annotations pinned to the given frame, in their
// original relative order. The returned slice is a copy.
func (ix *Index) AnnotationsAt(frame int) []core.Annotation {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	bucket := ix.annotations[frame]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]core.Annotation, len(bucket))
	copy(out, bucket)
	return out
}

// CommentsAt returns the spatially pinned comments on the given frame.
func (ix *Index) CommentsAt(frame int) []core.Comment {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	bucket := ix.comments[frame]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]core.Comment, len(bucket))
	copy(out, bucket)
	return out
}

// Frames returns the set of frames that carry at least one annotation,
// useful for timeline markers.
func (ix *Index) Frames() []int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	frames := make([]int, 0, len(ix.annotations))
	for f := range ix.annotations {
		frames = append(frames, f)
	}
	return frames
}
