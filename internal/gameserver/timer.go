package gameserver

import (
	"sync"
	"time"
)

// TurnTimer fires a callback once after a configurable duration unless
// stopped or reset. It is safe for concurrent use.
type TurnTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewTurnTimer creates and starts a timer that calls onFire after duration.
// onFire is called in a separate goroutine.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: Returns a running TurnTimer; onFire will be called unless
// Stop or Reset is called first.
func NewTurnTimer(duration time.Duration, onFire func()) *TurnTimer {
	tt := &TurnTimer{}
	tt.arm(duration, onFire)
	return tt
}

// arm schedules onFire under a new sequence number. A callback whose
// sequence is stale by the time it runs is discarded.
func (tt *TurnTimer) arm(duration time.Duration, onFire func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.seq++
	seq := tt.seq
	tt.stopped = false
	if tt.timer != nil {
		tt.timer.Stop()
	}
	tt.timer = time.AfterFunc(duration, func() {
		tt.mu.Lock()
		live := !tt.stopped && tt.seq == seq
		tt.mu.Unlock()
		if live {
			onFire()
		}
	})
}

// Reset cancels the pending callback and schedules onFire after duration from now.
//
// Precondition: duration > 0; onFire must not be nil.
func (tt *TurnTimer) Reset(duration time.Duration, onFire func()) {
	tt.arm(duration, onFire)
}

// Stop prevents the pending callback from firing. Safe to call multiple times.
//
// Postcondition: no callback scheduled before Stop runs after Stop returns.
func (tt *TurnTimer) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stopped = true
	if tt.timer != nil {
		tt.timer.Stop()
	}
}
