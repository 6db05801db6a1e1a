package models

import "time"

type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// SyncRun is the persisted audit record of one orchestrator invocation.
// Created in "running" state, mutated only by the orchestrator, terminal
// once status leaves "running".
type SyncRun struct {
	ID                  int64      `json:"id" db:"id"`
	SyncType            string     `json:"sync_type" db:"sync_type"` // properties, transactions
	Target              string     `json:"target" db:"target"`       // requested location filter
	Status              RunStatus  `json:"status" db:"status"`
	StartedAt           time.Time  `json:"started_at" db:"started_at"`
	CompletedAt         *time.Time `json:"completed_at" db:"completed_at"`
	PropertiesFound     int        `json:"properties_found" db:"properties_found"`
	PropertiesSynced    int        `json:"properties_synced" db:"properties_synced"`
	PhotosRehosted      int        `json:"photos_rehosted" db:"photos_rehosted"`
	PhotosCDNReferenced int        `json:"photos_cdn_referenced" db:"photos_cdn_referenced"`
	FloorPlansRehosted  int        `json:"floor_plans_rehosted" db:"floor_plans_rehosted"`
	AgentsDiscovered    int        `json:"agents_discovered" db:"agents_discovered"`
	AgenciesDiscovered  int        `json:"agencies_discovered" db:"agencies_discovered"`
	APICallsUsed        int        `json:"api_calls_used" db:"api_calls_used"`
	StorageSavedMB      float64    `json:"storage_saved_mb" db:"storage_saved_mb"`
	Errors              []string   `json:"errors" db:"errors"`
}
