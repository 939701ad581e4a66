// Package session keeps the live bill engines between requests. Working
// bills are ephemeral: nothing here survives a process restart, and idle
// sessions are dropped after a TTL.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hmaji/billfold/internal/bill"
	"github.com/hmaji/billfold/internal/models"
)

const DefaultTTL = 4 * time.Hour

// entry pairs one engine with its own mutex. The registry mutex only guards
// the session map; concurrent commands against the same bill serialize on
// the entry mutex instead, so two sessions never block each other.
type entry struct {
	mu       sync.Mutex
	engine   *bill.Engine
	catalog  []models.Product
	lastSeen time.Time
}

type Registry struct {
	mu    sync.Mutex
	bills map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		bills: map[string]*entry{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Open starts a new bill session over the given catalog snapshot and returns
// its id. The snapshot is held alongside the engine so the picker options for
// the session match what the engine will accept.
func (r *Registry) Open(products []models.Product) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.bills[id] = &entry{engine: bill.New(products), catalog: products, lastSeen: r.now()}
	return id
}

// Do runs fn against the session's engine and catalog snapshot while holding
// that session's lock, refreshing its idle timer. It returns false when the
// id is unknown or expired, in which case fn is not called. The engine must
// not escape fn.
func (r *Registry) Do(id string, fn func(engine *bill.Engine, catalog []models.Product)) bool {
	r.mu.Lock()
	r.prune()
	e, ok := r.bills[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.engine, e.catalog)
	return true
}

// Close drops the session. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bills, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bills)
}

// prune drops expired sessions. Called with the lock held; there is no
// background sweeper, expiry is checked lazily on access.
func (r *Registry) prune() {
	cutoff := r.now().Add(-r.ttl)
	for id, e := range r.bills {
		if e.lastSeen.Before(cutoff) {
			delete(r.bills, id)
		}
	}
}
