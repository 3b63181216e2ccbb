package deploy

import (
	"sync"
	"time"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// Registry is the in-memory mapping of app name to deployment record. It is
// the single cached view of active deployments; the engine's container set is
// ground truth and the registry is reconciled against it on demand. The
// registry is owned by the Service and never exposed as mutable state.
type Registry struct {
	mu      sync.RWMutex
	records map[string]domain.DeploymentRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]domain.DeploymentRecord)}
}

// Get returns a copy of the record for appName.
func (r *Registry) Get(appName string) (domain.DeploymentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[appName]
	return rec, ok
}

// Put inserts or replaces the record for rec.AppName.
func (r *Registry) Put(rec domain.DeploymentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.AppName] = rec
}

// Delete removes the record for appName.
func (r *Registry) Delete(appName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, appName)
}

// Touch advances LastAccessed for appName. It never moves the timestamp
// backwards and is a no-op for unknown names.
func (r *Registry) Touch(appName string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[appName]
	if !ok || t.Before(rec.LastAccessed) {
		return
	}
	rec.LastAccessed = t
	r.records[appName] = rec
}

// Snapshot returns a copy of every record.
func (r *Registry) Snapshot() []domain.DeploymentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DeploymentRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of active records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
