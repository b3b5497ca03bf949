package chain

import (
	"sort"
	"sync"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
)

type healthRecord struct {
	status    ports.ProviderHealthStatus
	lastCheck time.Time
}

// HealthRegistry tracks per-(chain, backend) health state. It is
// process-scoped and best effort: empty at start, populated on first
// registration, reset on restart. Health is an ordering hint for the
// pool, never a correctness source of truth, so concurrent updates from
// in-flight operations only need the map-level lock.
type HealthRegistry struct {
	mu      sync.RWMutex
	records map[string]healthRecord
	order   []string // registration order, for stable snapshots
	now     func() time.Time
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		records: make(map[string]healthRecord),
		now:     time.Now,
	}
}

func healthKey(chain domain.Chain, provider string) string {
	return string(chain) + "-" + provider
}

// Register adds a (chain, backend) pair as healthy.
func (r *HealthRegistry) Register(chain domain.Chain, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := healthKey(chain, provider)
	if _, exists := r.records[key]; !exists {
		r.order = append(r.order, key)
	}
	r.records[key] = healthRecord{status: ports.ProviderHealthy, lastCheck: r.now()}
}

// Mark records a health transition from an operation outcome.
func (r *HealthRegistry) Mark(chain domain.Chain, provider string, status ports.ProviderHealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := healthKey(chain, provider)
	if _, exists := r.records[key]; !exists {
		r.order = append(r.order, key)
	}
	r.records[key] = healthRecord{status: status, lastCheck: r.now()}
}

// Status returns the current health of a backend. Unknown backends
// report healthy so a fresh registration is tried first.
func (r *HealthRegistry) Status(chain domain.Chain, provider string) ports.ProviderHealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[healthKey(chain, provider)]
	if !ok {
		return ports.ProviderHealthy
	}
	return rec.status
}

// Priority maps a health status to its failover sort rank.
func Priority(status ports.ProviderHealthStatus) int {
	switch status {
	case ports.ProviderHealthy:
		return 0
	case ports.ProviderDegraded:
		return 1
	default:
		return 2
	}
}

// Snapshot returns a point-in-time view of every tracked record.
func (r *HealthRegistry) Snapshot() []ports.ProviderHealthSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.ProviderHealthSnapshot, 0, len(r.records))
	for _, key := range r.order {
		rec := r.records[key]
		chain, provider := splitHealthKey(key)
		out = append(out, ports.ProviderHealthSnapshot{
			Chain:     chain,
			Provider:  provider,
			Status:    rec.status,
			LastCheck: rec.lastCheck,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Chain < out[j].Chain })
	return out
}

func splitHealthKey(key string) (domain.Chain, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '-' {
			return domain.Chain(key[:i]), key[i+1:]
		}
	}
	return domain.Chain(key), ""
}
