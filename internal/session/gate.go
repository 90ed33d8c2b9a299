package session

import (
	"sync"
	"time"
)

// Default gate settings: analyze at most every few seconds and only once the
// transcript has grown by a sentence or so.
const (
	DefaultDebounce  = 4 * time.Second
	DefaultMinGrowth = 40
)

// Gate throttles transcript-driven analysis. Each named channel (e.g.
// "suggestions", "mirror") fires only when the debounce window since its last
// firing has elapsed, the watched text has grown by at least minGrowth
// characters since then, and no request on that channel is still in flight.
type Gate struct {
	debounce  time.Duration
	minGrowth int

	now func() time.Time

	mu       sync.Mutex
	channels map[string]*channelState
}

type channelState struct {
	lastLen  int
	lastFire time.Time
	inFlight bool
}

// NewGate creates a gate. Non-positive arguments select the defaults.
func NewGate(debounce time.Duration, minGrowth int) *Gate {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if minGrowth <= 0 {
		minGrowth = DefaultMinGrowth
	}
	return &Gate{
		debounce:  debounce,
		minGrowth: minGrowth,
		now:       time.Now,
		channels:  map[string]*channelState{},
	}
}

// TryStart reports whether an analysis on channel may fire for a watched text
// of textLen characters, and if so claims the channel's single in-flight
// slot. The caller must call Done when the analysis completes.
func (g *Gate) TryStart(channel string, textLen int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cs := g.channels[channel]
	if cs == nil {
		cs = &channelState{}
		g.channels[channel] = cs
	}

	if cs.inFlight {
		return false
	}
	if textLen-cs.lastLen < g.minGrowth {
		return false
	}
	if !cs.lastFire.IsZero() && g.now().Sub(cs.lastFire) < g.debounce {
		return false
	}

	cs.inFlight = true
	cs.lastLen = textLen
	cs.lastFire = g.now()
	return true
}

// Reset drops all per-channel bookkeeping, for when a new call starts.
// In-flight requests from the previous call may still invoke Done; that is a
// no-op on the fresh state.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels = map[string]*channelState{}
}

// Done releases the channel's in-flight slot.
func (g *Gate) Done(channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cs := g.channels[channel]; cs != nil {
		cs.inFlight = false
	}
}
