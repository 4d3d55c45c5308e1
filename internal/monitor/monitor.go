// Package monitor keeps the current alert banners for each ledger and
// re-evaluates them on demand and on a fixed interval.
package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
)

// ItemSource loads the full inventory snapshot to evaluate.
type ItemSource interface {
	All(ctx context.Context) ([]domain.InventoryItem, error)
}

// Monitor holds the latest AlertSet per kind. Evaluation is pure; only the
// swap of the finished snapshots is locked. Each refresh is numbered before
// it loads, and a refresh never replaces the result of a later-numbered one.
type Monitor struct {
	source   ItemSource
	opts     ledger.Options
	interval time.Duration
	now      func() time.Time

	seq atomic.Uint64

	mu      sync.RWMutex
	sets    map[domain.Kind]domain.AlertSet
	applied uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithInterval sets the periodic refresh interval (default 5 minutes).
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func New(source ItemSource, opts ledger.Options, options ...Option) *Monitor {
	m := &Monitor{
		source:   source,
		opts:     opts,
		interval: 5 * time.Minute,
		now:      time.Now,
		sets:     make(map[domain.Kind]domain.AlertSet),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Options returns the evaluation options the monitor was built with.
func (m *Monitor) Options() ledger.Options { return m.opts }

// Now returns the monitor's clock reading truncated to the start of day.
func (m *Monitor) Now() time.Time { return ledger.StartOfDay(m.now()) }

// Refresh loads every lot and replaces the alert sets for all kinds. A
// refresh that finishes after a newer one has been applied is dropped.
func (m *Monitor) Refresh(ctx context.Context) error {
	seq := m.seq.Add(1)
	items, err := m.source.All(ctx)
	if err != nil {
		return err
	}
	asOf := m.Now()

	byKind := make(map[domain.Kind][]domain.InventoryItem, len(domain.Kinds))
	for _, it := range items {
		byKind[it.Kind] = append(byKind[it.Kind], it)
	}
	next := make(map[domain.Kind]domain.AlertSet, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		next[kind] = ledger.Evaluate(kind, byKind[kind], asOf, m.opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.applied {
		m.sets = next
		m.applied = seq
	}
	return nil
}

// Snapshot returns the latest alert set for kind. ok is false before the
// first successful Refresh.
func (m *Monitor) Snapshot(kind domain.Kind) (domain.AlertSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[kind]
	if !ok {
		return domain.AlertSet{Kind: kind, ExpiringSoon: []domain.InventoryItem{}, LowStock: []domain.InventoryItem{}}, false
	}
	set.ExpiringSoon = append([]domain.InventoryItem{}, set.ExpiringSoon...)
	set.LowStock = append([]domain.InventoryItem{}, set.LowStock...)
	return set, true
}

// Run refreshes on every tick until ctx is cancelled. Failed refreshes are
// logged and the previous snapshot is kept.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("alert monitor started, refreshing every %s", m.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("alert monitor stopped")
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Printf("alert refresh failed: %v", err)
			}
		}
	}
}
