package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hoverGate throttles hover highlights of one stream. A hover arriving while
// the limiter has no token is not lost: the latest one waits for the next
// token and is applied then, so the highlight always ends on the row or line
// last under the pointer.
type hoverGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	apply   func(int) error
	onErr   func(error)

	pending     int
	scheduled   bool
	reservation *rate.Reservation
	timer       *time.Timer
	generation  int
}

func newHoverGate(limiter *rate.Limiter, apply func(int) error, onErr func(error)) *hoverGate {
	return &hoverGate{limiter: limiter, apply: apply, onErr: onErr}
}

// Hover applies index now when a token is free, otherwise schedules it for
// the next token. A hover scheduled earlier is replaced.
func (g *hoverGate) Hover(index int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.scheduled {
		g.pending = index
		return nil
	}

	r := g.limiter.Reserve()
	if !r.OK() {
		return nil
	}
	delay := r.Delay()
	if delay == 0 {
		return g.apply(index)
	}

	g.pending = index
	g.scheduled = true
	g.reservation = r
	gen := g.generation
	g.timer = time.AfterFunc(delay, func() { g.fire(gen) })
	return nil
}

// Cancel drops a scheduled hover. Called when the pointer leaves or the
// solution changes, so a stale hover cannot land afterwards.
func (g *hoverGate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
}

func (g *hoverGate) cancelLocked() {
	if !g.scheduled {
		return
	}
	g.timer.Stop()
	g.reservation.Cancel()
	g.scheduled = false
	g.timer = nil
	g.reservation = nil
	g.generation++
}

func (g *hoverGate) fire(gen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.scheduled || gen != g.generation {
		return
	}
	g.scheduled = false
	g.timer = nil
	g.reservation = nil
	g.generation++

	if err := g.apply(g.pending); err != nil && g.onErr != nil {
		g.onErr(err)
	}
}
