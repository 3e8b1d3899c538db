package tenantrouter

import (
	"sort"
	"sync"
	"time"

	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
)

// Registry maps tenant aliases to live connection settings. It is a cache
// of the control plane: entries are re-derivable from the Tenant row and
// are never persisted.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]entry
	onUnregister []func(alias string)
}

type entry struct {
	cfg      config.ConnConfig
	loadedAt time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// OnUnregister adds a hook run when an alias is removed. Hooks run with the
// registry write lock held and must not call back into the registry.
func (r *Registry) OnUnregister(fn func(alias string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUnregister = append(r.onUnregister, fn)
}

// Register is idempotent; concurrent registrations of one alias converge on
// the last value written.
func (r *Registry) Register(alias string, cfg config.ConnConfig) {
	r.mu.Lock()
	r.entries[alias] = entry{cfg: cfg, loadedAt: time.Now()}
	n := len(r.entries)
	r.mu.Unlock()
	telemetry.Default.RegisteredTenants.Set(float64(n))
}

func (r *Registry) Get(alias string) (config.ConnConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[alias]
	return e.cfg, ok
}

// LoadedAt reports when alias was last registered.
func (r *Registry) LoadedAt(alias string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[alias]
	return e.loadedAt, ok
}

func (r *Registry) Has(alias string) bool {
	_, ok := r.Get(alias)
	return ok
}

// Unregister removes alias and runs the hooks before releasing the lock, so
// a concurrent cold load cannot register the alias again and open a pool
// that a hook then closes.
func (r *Registry) Unregister(alias string) {
	r.mu.Lock()
	_, existed := r.entries[alias]
	delete(r.entries, alias)
	n := len(r.entries)
	if existed {
		for _, fn := range r.onUnregister {
			fn(alias)
		}
	}
	r.mu.Unlock()
	telemetry.Default.RegisteredTenants.Set(float64(n))
}

func (r *Registry) Aliases() []string {
	r.mu.RLock()
	aliases := make([]string, 0, len(r.entries))
	for alias := range r.entries {
		aliases = append(aliases, alias)
	}
	r.mu.RUnlock()
	sort.Strings(aliases)
	return aliases
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
