package cache

import (
	"sync"

	"github.com/framepoint/annotate/internal/model/core"
)

// BaselineCache holds the last store-confirmed copy of annotations and
// comments, keyed by id. When an optimistic update is rejected by the store,
// the reconciler restores geometry from here, so the shape snaps back instead
// of staying in a state the server never accepted.
type BaselineCache struct {
	m           sync.Mutex
	annotations map[string]core.Annotation
	comments    map[string]core.Comment
}

func NewBaselineCache() *BaselineCache {
	return &BaselineCache{
		annotations: make(map[string]core.Annotation),
		comments:    make(map[string]core.Comment),
	}
}

func (c *BaselineCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.annotations = make(map[string]core.Annotation)
	c.comments = make(map[string]core.Comment)
}

// PutAnnotation records a confirmed annotation state. Temporary-id items are
// never baselined: there is nothing to roll back to before the first confirm.
func (c *BaselineCache) PutAnnotation(a core.Annotation) {
	if a.ID.IsTemporary() || a.ID.IsZero() {
		return
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.annotations[a.ID.String()] = a.Clone()
}

func (c *BaselineCache) GetAnnotation(id core.ID) (core.Annotation, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if a, ok := c.annotations[id.String()]; ok {
		return a.Clone(), true
	}
	return core.Annotation{}, false
}

func (c *BaselineCache) DeleteAnnotation(id core.ID) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.annotations, id.String())
}

func (c *BaselineCache) PutComment(cm core.Comment) {
	if cm.ID.IsTemporary() || cm.ID.IsZero() {
		return
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.comments[cm.ID.String()] = cm.Clone()
}

func (c *BaselineCache) GetComment(id core.ID) (core.Comment, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if cm, ok := c.comments[id.String()]; ok {
		return cm.Clone(), true
	}
	return core.Comment{}, false
}

func (c *BaselineCache) DeleteComment(id core.ID) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.comments, id.String())
}

// SafeCounter is a thread-safe counter. The render surface uses one as its
// dirty generation: any bump invalidates the last drawn frame.
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
