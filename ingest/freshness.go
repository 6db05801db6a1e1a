package ingest

import (
	"context"
	"time"
)

// staleAfter is the fixed freshness policy: a record synced within the last
// day is skipped.
const staleAfter = 24 * time.Hour

// FreshnessGate decides per external record whether it needs re-processing
// based on its last-synced timestamp. Race-tolerant: two overlapping runs
// may both decide true from the value each read; no locking.
type FreshnessGate struct {
	store  Store
	source string
	maxAge time.Duration
}

func NewFreshnessGate(store Store, source string) *FreshnessGate {
	return &FreshnessGate{store: store, source: source, maxAge: staleAfter}
}

// NeedsSync reports whether the record should be fetched and processed.
// First sight and store errors both resolve to true.
func (g *FreshnessGate) NeedsSync(ctx context.Context, externalID string) (bool, error) {
	p, err := g.store.GetPropertyByExternalID(ctx, g.source, externalID)
	if err != nil {
		return true, err
	}
	if p == nil {
		return true, nil
	}
	return time.Since(p.LastSyncedAt) >= g.maxAge, nil
}
