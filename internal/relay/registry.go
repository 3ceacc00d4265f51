package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnEntry is one live persistent connection in the registry. Model holds
// the connection's current default model, changed by model_switch frames.
type ConnEntry struct {
	ID           string
	Model        string
	CreatedAt    time.Time
	LastActivity time.Time
	close        func()
}

// Registry tracks live WebSocket connections so idle ones can be swept.
// It is injected into the transport adapter that owns it; there is no
// package-level instance. All mutation goes through the registry's own
// methods under one mutex.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*ConnEntry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*ConnEntry),
	}
}

// Add registers a connection. closeFn is invoked (outside the lock) when
// the sweeper expires the entry.
func (r *Registry) Add(id string, closeFn func()) *ConnEntry {
	now := time.Now()
	entry := &ConnEntry{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		close:        closeFn,
	}

	r.mu.Lock()
	r.entries[id] = entry
	r.mu.Unlock()

	return entry
}

// Touch refreshes the entry's activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.LastActivity = time.Now()
	}
}

// SetModel records the connection's default model.
func (r *Registry) SetModel(id, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.Model = model
	}
}

// Model returns the connection's default model, if any.
func (r *Registry) Model(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.Model
	}
	return ""
}

// Remove drops a connection from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes entries idle longer than maxIdle and closes their
// connections. Returns the ids that were expired.
func (r *Registry) Sweep(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var expired []*ConnEntry
	for id, e := range r.entries {
		if e.LastActivity.Before(cutoff) {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.ID)
		if e.close != nil {
			e.close()
		}
	}
	return ids
}

// StartSweeper runs the idle sweep on a fixed interval until ctx ends.
// A non-positive interval or idle timeout disables the sweeper.
func (r *Registry) StartSweeper(ctx context.Context, interval, maxIdle time.Duration, log *zap.Logger) {
	if interval <= 0 || maxIdle <= 0 {
		log.Warn("Session sweeper disabled",
			zap.Duration("interval", interval),
			zap.Duration("max_idle", maxIdle),
		)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if expired := r.Sweep(maxIdle); len(expired) > 0 {
					log.Info("Closed idle sessions",
						zap.Strings("sessions", expired),
						zap.Duration("max_idle", maxIdle),
					)
				}
			}
		}
	}()
}
