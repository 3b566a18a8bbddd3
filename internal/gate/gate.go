// Package gate implements the per-user upload permission window.
//
// A user must arm the gate (the "upload" menu action) before an inbound file
// is accepted. The window closes when one upload attempt resolves or when the
// window timer fires, whichever comes first. Each user has an independent
// slot with its own cancellable timer.
package gate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// ErrBusy is returned by Arm while an upload for the user is in flight.
var ErrBusy = errors.New("upload already in progress")

// State is the observable state of a user's slot.
type State int

const (
	Disarmed State = iota
	Armed
	Processing
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Processing:
		return "processing"
	default:
		return "disarmed"
	}
}

// Timer is the cancellation handle of a scheduled expiry.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through
// realAfter; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfter(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type slot struct {
	gen        uint64
	timer      Timer
	processing bool
}

// Gate is the per-user table of upload windows.
type Gate struct {
	mu       sync.Mutex
	window   time.Duration
	slots    map[models.UserID]*slot
	nextGen  uint64
	onExpire func(models.UserID)
	after    AfterFunc
	closed   bool
}

// New creates a gate whose windows last for window.
func New(window time.Duration) *Gate {
	if window <= 0 {
		window = common.DefaultUploadWindow
	}
	return &Gate{
		window: window,
		slots:  make(map[models.UserID]*slot),
		after:  realAfter,
	}
}

// Window returns the configured window length.
func (g *Gate) Window() time.Duration {
	return g.window
}

// OnExpire registers the callback invoked, outside the gate lock, when a
// user's window elapses without an upload.
func (g *Gate) OnExpire(fn func(models.UserID)) {
	g.mu.Lock()
	g.onExpire = fn
	g.mu.Unlock()
}

// SetAfterFunc replaces the timer source. Must be called before first use.
func (g *Gate) SetAfterFunc(fn AfterFunc) {
	g.mu.Lock()
	g.after = fn
	g.mu.Unlock()
}

// Arm opens (or restarts) the user's window. A pending expiry is cancelled so
// windows never stack.
func (g *Gate) Arm(userID models.UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("gate closed")
	}

	s, ok := g.slots[userID]
	if ok && s.processing {
		return ErrBusy
	}
	if ok && s.timer != nil {
		s.timer.Stop()
	}

	g.nextGen++
	gen := g.nextGen
	s = &slot{gen: gen}
	s.timer = g.after(g.window, func() { g.expire(userID, gen) })
	g.slots[userID] = s
	return nil
}

// Acquire claims the open window for one upload attempt. The expiry timer is
// cancelled; the slot stays claimed until Release.
func (g *Gate) Acquire(userID models.UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[userID]
	if !ok || s.processing {
		return common.ErrPermissionDenied
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.processing = true
	return nil
}

// Release closes the user's window after an attempt resolved, successfully
// or not.
func (g *Gate) Release(userID models.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.slots[userID]; ok {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(g.slots, userID)
	}
}

// State reports the user's current state.
func (g *Gate) State(userID models.UserID) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[userID]
	switch {
	case !ok:
		return Disarmed
	case s.processing:
		return Processing
	default:
		return Armed
	}
}

// Armed reports whether the user may send a file right now.
func (g *Gate) Armed(userID models.UserID) bool {
	return g.State(userID) == Armed
}

// Close stops every pending timer and refuses further arming.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, s := range g.slots {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(g.slots, id)
	}
	g.closed = true
}

// expire runs on the timer goroutine. It only acts on the exact window it
// was scheduled for; a re-armed or claimed slot is left alone.
func (g *Gate) expire(userID models.UserID, gen uint64) {
	g.mu.Lock()
	s, ok := g.slots[userID]
	if !ok || s.gen != gen || s.processing {
		g.mu.Unlock()
		return
	}
	delete(g.slots, userID)
	fn := g.onExpire
	g.mu.Unlock()

	if fn != nil {
		fn(userID)
	}
}
