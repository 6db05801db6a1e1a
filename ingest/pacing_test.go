package ingest

import (
	"testing"
	"time"
)

func TestOrganicPacerDelayRange(t *testing.T) {
	p := NewOrganicPacer()

	for i := 0; i < 200; i++ {
		d := p.RecordDelay()
		if d < recordDelayMin || d >= recordDelayMax {
			t.Fatalf("delay %v outside [%v, %v)", d, recordDelayMin, recordDelayMax)
		}
	}

	if p.BatchCooldown() != batchCooldown {
		t.Fatalf("unexpected cooldown %v", p.BatchCooldown())
	}
}

func TestOrganicPacerDelaysVary(t *testing.T) {
	p := NewOrganicPacer()

	seen := make(map[time.Duration]struct{})
	for i := 0; i < 50; i++ {
		seen[p.RecordDelay()] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected jittered delays, got a fixed interval")
	}
}
