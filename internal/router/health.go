package router

import "sync"

// Kind names one backend capable of answering a memory operation.
type Kind string

const (
	// KindRemote is the direct canister query client.
	KindRemote Kind = "icp-query"
	// KindSDK is the SDK-mediated bridge client.
	KindSDK Kind = "kinic-sdk"
	// KindLocal is the in-process emulation store.
	KindLocal Kind = "local"
)

// Health is the process-lifetime status of one backend kind. Working is
// only meaningful once Tested is true.
type Health struct {
	Tested  bool
	Working bool
}

// HealthRegistry tracks per-kind backend health for the lifetime of the
// process. The flags are monotone: Working transitions true to false at
// most once, on the first observed result, and is never reset. A backend
// that failed its first test is skipped by every later request; only a
// process restart re-promotes it.
//
// Races between requests are tolerated by design: the worst case is one
// extra doomed attempt before the demotion lands, which is wasted work,
// not a correctness violation.
type HealthRegistry struct {
	mu      sync.Mutex
	entries map[Kind]*Health
}

// NewHealthRegistry creates a registry where every kind starts untested
// and presumed working.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{entries: make(map[Kind]*Health)}
}

// Viable reports whether kind should be attempted: it is viable until
// its first test fails.
func (r *HealthRegistry) Viable(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[kind]
	if !ok {
		return true
	}
	return !e.Tested || e.Working
}

// Record notes the outcome of an attempt against kind. Only the first
// recorded outcome sets the flags; later outcomes (a stale flag that
// raced, or a backend degrading after a good first test) leave health
// unchanged and merely cost the caller a fall-through.
func (r *HealthRegistry) Record(kind Kind, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[kind]
	if !exists {
		e = &Health{Working: true}
		r.entries[kind] = e
	}
	if e.Tested {
		return
	}
	e.Tested = true
	e.Working = ok
}

// Snapshot returns a copy of the current health flags, for the health
// endpoint and for logging.
func (r *HealthRegistry) Snapshot() map[Kind]Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[Kind]Health, len(r.entries))
	for k, e := range r.entries {
		out[k] = *e
	}
	return out
}
