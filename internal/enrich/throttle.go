package enrich

import "context"

// Throttle admits exactly one in-flight classification call at a time.
// SharedThrottle is process-wide so independent Service instances still
// contend for the same single slot.
type Throttle struct {
	slot chan struct{}
}

// NewThrottle constructs a single-slot throttle.
func NewThrottle() *Throttle {
	return &Throttle{slot: make(chan struct{}, 1)}
}

// SharedThrottle is the default process-wide throttle.
var SharedThrottle = NewThrottle()

// Acquire blocks until the slot is free or the context ends.
func (t *Throttle) Acquire(ctx context.Context) error {
	select {
	case t.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot. Must be called exactly once per successful Acquire.
func (t *Throttle) Release() {
	<-t.slot
}
