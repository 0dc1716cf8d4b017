package actions

import (
	"errors"
	"sync"
	"time"
)

// DefaultCooldown is how long controls stay disabled after an action settles.
const DefaultCooldown = 500 * time.Millisecond

var ErrBusy = errors.New("another action is in flight for this order")

// Gate admits one action at a time and stays closed for a cool-down after
// the action settles, whether it succeeded or failed.
type Gate struct {
	mu       sync.Mutex
	inFlight bool
	openAt   time.Time
	lastSeen time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewGate(cooldown time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{cooldown: cooldown, now: now}
}

func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busyLocked()
}

func (g *Gate) busyLocked() bool {
	return g.inFlight || g.now().Before(g.openAt)
}

func (g *Gate) touch() {
	g.mu.Lock()
	g.lastSeen = g.now()
	g.mu.Unlock()
}

// idleFor reports whether the gate is open and has been neither handed out
// nor released for at least d.
func (g *Gate) idleFor(d time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busyLocked() {
		return false
	}
	last := g.lastSeen
	if g.openAt.After(last) {
		last = g.openAt
	}
	return g.now().Sub(last) >= d
}

// Acquire closes the gate. The returned release must be called exactly once
// when the action settles.
func (g *Gate) Acquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busyLocked() {
		return nil, ErrBusy
	}
	g.inFlight = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inFlight = false
			g.openAt = g.now().Add(g.cooldown)
			g.mu.Unlock()
		})
	}, nil
}

// Gates hands out one Gate per order id.
type Gates struct {
	mu       sync.Mutex
	gates    map[string]*Gate
	cooldown time.Duration
	now      func() time.Time
}

const (
	sweepThreshold = 1024
	// sweepIdle is how long an open gate must go untouched before a sweep drops it.
	sweepIdle = 5 * time.Minute
)

func NewGates(cooldown time.Duration, now func() time.Time) *Gates {
	if now == nil {
		now = time.Now
	}
	return &Gates{gates: make(map[string]*Gate), cooldown: cooldown, now: now}
}

func (gs *Gates) For(orderID string) *Gate {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if g, ok := gs.gates[orderID]; ok {
		g.touch()
		return g
	}
	if len(gs.gates) >= sweepThreshold {
		gs.sweepLocked()
	}
	g := NewGate(gs.cooldown, gs.now)
	g.touch()
	gs.gates[orderID] = g
	return g
}

// sweepLocked drops gates that have been open and untouched for a while.
func (gs *Gates) sweepLocked() {
	idle := sweepIdle
	if gs.cooldown > idle {
		idle = gs.cooldown
	}
	for id, g := range gs.gates {
		if g.idleFor(idle) {
			delete(gs.gates, id)
		}
	}
}

func (gs *Gates) Len() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.gates)
}
