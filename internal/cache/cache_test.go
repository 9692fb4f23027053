package cache

import (
	"sync"
	"testing"

	"github.com/framepoint/annotate/internal/model/core"
)

func TestBaselineCache_PutGetAnnotation(t *testing.T) {
	c := NewBaselineCache()
	a := core.Annotation{
		ID:     core.ConfirmedID("a1"),
		Kind:   core.KindRectangle,
		Center: core.Point{X: 0.5, Y: 0.5},
		Width:  0.2,
		Height: 0.2,
	}
	c.PutAnnotation(a)

	got, ok := c.GetAnnotation(core.ConfirmedID("a1"))
	if !ok {
		t.Fatal("expected cached annotation")
	}
	if got.Center.X != 0.5 || got.Width != 0.2 {
		t.Errorf("unexpected cached geometry: %+v", got)
	}
}

func TestBaselineCache_TemporaryIDsAreNotBaselined(t *testing.T) {
	c := NewBaselineCache()
	a := core.Annotation{ID: core.NewTemporaryID(), Kind: core.KindRectangle}
	c.PutAnnotation(a)

	if _, ok := c.GetAnnotation(a.ID); ok {
		t.Error("temporary items must not enter the baseline")
	}
}

func TestBaselineCache_GetReturnsCopy(t *testing.T) {
	c := NewBaselineCache()
	a := core.Annotation{
		ID:     core.ConfirmedID("a1"),
		Kind:   core.KindFreehand,
		Points: []core.Point{{X: 0.1, Y: 0.1}},
	}
	c.PutAnnotation(a)

	got, _ := c.GetAnnotation(a.ID)
	got.Points[0].X = 0.9

	again, _ := c.GetAnnotation(a.ID)
	if again.Points[0].X != 0.1 {
		t.Error("cached baseline was mutated through a returned copy")
	}
}

func TestBaselineCache_DeleteAndReset(t *testing.T) {
	c := NewBaselineCache()
	c.PutAnnotation(core.Annotation{ID: core.ConfirmedID("a1")})
	c.PutComment(core.Comment{ID: core.ConfirmedID("c1")})

	c.DeleteAnnotation(core.ConfirmedID("a1"))
	if _, ok := c.GetAnnotation(core.ConfirmedID("a1")); ok {
		t.Error("annotation survived delete")
	}

	c.Reset()
	if _, ok := c.GetComment(core.ConfirmedID("c1")); ok {
		t.Error("comment survived reset")
	}
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	if c.Value() != 50 {
		t.Errorf("expected 50, got %d", c.Value())
	}

	c.Set(7)
	if c.Value() != 7 {
		t.Errorf("expected 7, got %d", c.Value())
	}
}
