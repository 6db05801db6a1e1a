package ingest

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// batchSize records are processed between cooldowns.
	batchSize = 20
	// batchCooldown separates batches; fixed, not adaptive.
	batchCooldown = 5 * time.Second
	// recordDelayMin..recordDelayMax is the randomized pause after each
	// record, deliberately irregular so the upstream provider never sees
	// a fixed-interval request pattern.
	recordDelayMin = 800 * time.Millisecond
	recordDelayMax = 2000 * time.Millisecond
)

// Pacer decides how long the orchestrator pauses between records and
// between batches. Swappable so tests can run without wall-clock waits.
type Pacer interface {
	RecordDelay() time.Duration
	BatchCooldown() time.Duration
}

// organicPacer jitters per-record delays inside a fixed range.
type organicPacer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewOrganicPacer() Pacer {
	return &organicPacer{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *organicPacer) RecordDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	span := int64(recordDelayMax - recordDelayMin)
	return recordDelayMin + time.Duration(p.rng.Int63n(span))
}

func (p *organicPacer) BatchCooldown() time.Duration {
	return batchCooldown
}
