package render

// Invalidator is the render surface's dirty signal. Invalidate is safe from
// any goroutine and coalesces: however many times the state changes between
// two frame ticks, the surface wakes once and draws the latest state.
type Invalidator struct {
	ch chan struct{}
}

// NewInvalidator creates an idle dirty signal.
func NewInvalidator() *Invalidator {
	return &Invalidator{ch: make(chan struct{}, 1)}
}

// Invalidate marks the view dirty.
func (i *Invalidator) Invalidate() {
	select {
	case i.ch <- struct{}{}:
	default:
	}
}

// C is the channel the surface's draw loop waits on.
func (i *Invalidator) C() <-chan struct{} {
	return i.ch
}
