/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"sync"
	"time"
)

// FinishCard keys the session-level auto-finish action.
const FinishCard = 0

// DeferredKey ties a delayed action to one session instance and card.
type DeferredKey struct {
	Epoch string
	Card  int
}

// Stopper is the part of *time.Timer the Deferrer needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules fn after d.
type AfterFunc func(d time.Duration, fn func()) Stopper

// Deferrer runs single-shot actions after a delay, at most one per key.
type Deferrer struct {
	mu      sync.Mutex
	after   AfterFunc
	pending map[DeferredKey]Stopper
}

type DeferrerOption func(*Deferrer)

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) DeferrerOption {
	return func(d *Deferrer) {
		d.after = fn
	}
}

func NewDeferrer(opts ...DeferrerOption) *Deferrer {
	d := &Deferrer{
		after: func(delay time.Duration, fn func()) Stopper {
			return time.AfterFunc(delay, fn)
		},
		pending: make(map[DeferredKey]Stopper),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule arranges for fn to run after delay. It returns false, and does
// nothing, if an action is already pending for key. A non-positive delay
// runs fn before Schedule returns.
func (d *Deferrer) Schedule(key DeferredKey, delay time.Duration, fn func()) bool {
	d.mu.Lock()
	if _, ok := d.pending[key]; ok {
		d.mu.Unlock()
		return false
	}

	if delay <= 0 {
		d.mu.Unlock()
		fn()
		return true
	}

	var timer Stopper
	timer = d.after(delay, func() {
		d.mu.Lock()
		current, ok := d.pending[key]
		if !ok || current != timer {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		fn()
	})
	d.pending[key] = timer
	d.mu.Unlock()

	return true
}

// Pending reports whether an action is waiting for key.
func (d *Deferrer) Pending(key DeferredKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.pending[key]
	return ok
}

// Cancel stops the action pending for key, if any.
func (d *Deferrer) Cancel(key DeferredKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.pending[key]; ok {
		t.Stop()
		delete(d.pending, key)
	}
}

// CancelEpoch stops every action pending for one session instance.
func (d *Deferrer) CancelEpoch(epoch string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.pending {
		if key.Epoch == epoch {
			t.Stop()
			delete(d.pending, key)
		}
	}
}

// Stop cancels everything.
func (d *Deferrer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}
