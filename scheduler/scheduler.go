package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"propsync/config"
	"propsync/ingest"
	"propsync/provider"
)

// Scheduler triggers recurring property syncs for each configured target.
// A target without its own cron expression inherits the default schedule.
type Scheduler struct {
	cfg  *config.Config
	orch *ingest.Orchestrator
	cron *cron.Cron
}

func New(cfg *config.Config, orch *ingest.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		orch: orch,
		cron: cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	scheduled := 0

	for id, target := range s.cfg.Targets {
		expr := target.Cron
		if expr == "" {
			expr = s.cfg.Scheduler.Cron
		}
		if expr == "" {
			continue
		}

		t := target
		_, err := s.cron.AddFunc(expr, func() {
			s.runTarget(ctx, t)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression for target %s: %w", id, err)
		}
		log.Printf("Scheduled target %s (%s): %s", id, t.Name, expr)
		scheduled++
	}

	if scheduled == 0 {
		log.Println("No schedules configured, daemon will only respond to API requests")
		return nil
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// TriggerAll runs every configured target once, back to back.
func (s *Scheduler) TriggerAll(ctx context.Context) {
	for _, target := range s.cfg.Targets {
		s.runTarget(ctx, target)
	}
}

// TriggerTarget runs one configured target once.
func (s *Scheduler) TriggerTarget(ctx context.Context, id string) error {
	target, ok := s.cfg.Targets[id]
	if !ok {
		return fmt.Errorf("unknown target %q", id)
	}
	s.runTarget(ctx, target)
	return nil
}

func (s *Scheduler) runTarget(ctx context.Context, t *config.TargetConfig) {
	log.Printf("Scheduled sync starting for target %s", t.ID)

	summary, err := s.orch.SyncProperties(ctx, ingest.SyncRequest{
		Filter: provider.PropertyFilter{
			LocationIDs: t.LocationIDs,
			Purpose:     t.Purpose,
			Category:    t.Category,
			Limit:       t.Limit,
		},
	})
	if err != nil {
		log.Printf("Scheduled sync for %s failed: %v", t.ID, err)
		return
	}

	log.Printf("Scheduled sync for %s: %d found, %d synced, %d API calls, %d errors",
		t.ID, summary.PropertiesFound, summary.PropertiesSynced,
		summary.APICallsUsed, len(summary.Errors))
}
