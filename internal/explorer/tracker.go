package explorer

import (
	"sync"
	"time"
)

// Tracker holds the search state of one browsing session.
//
// Every search takes a new generation number when it begins. Results are
// committed only while their generation is still the latest, so when two
// searches overlap the one started last always wins, whatever order the
// responses arrive in.
type Tracker struct {
	mu         sync.Mutex
	generation uint64
	query      string
	state      State
	lastAccess time.Time
}

// NewTracker starts in Idle.
func NewTracker() *Tracker {
	return &Tracker{state: Idle{}, lastAccess: time.Now()}
}

// Snapshot returns the last submitted query and the current state.
func (t *Tracker) Snapshot() (string, State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAccess = time.Now()
	return t.query, t.state
}

// begin records query, clears any previous result or error by moving to
// Loading, and returns the generation the caller must commit with.
func (t *Tracker) begin(query string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.query = query
	t.state = Loading{}
	t.lastAccess = time.Now()
	return t.generation
}

// commit applies state if gen is still the latest generation. It reports
// whether the state was applied.
func (t *Tracker) commit(gen uint64, state State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return false
	}
	t.state = state
	t.lastAccess = time.Now()
	return true
}

func (t *Tracker) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAccess
}

// Registry maps browsing-session IDs to their Tracker and forgets sessions
// that have been idle for longer than the configured TTL.
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry starts the background cleanup loop; call Stop to end it.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Registry{
		trackers: make(map[string]*Tracker),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Get returns the tracker for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[sessionID]
	if !ok {
		t = NewTracker()
		r.trackers[sessionID] = t
	}
	return t
}

// Forget drops the tracker for sessionID (sign-out).
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, sessionID)
}

// Len is the number of live trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Stop ends the cleanup loop. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle removes trackers not touched within the TTL before now.
func (r *Registry) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.trackers {
		if now.Sub(t.idleSince()) > r.ttl {
			delete(r.trackers, id)
		}
	}
}
