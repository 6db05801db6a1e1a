package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"propsync/models"
	"propsync/provider"
)

// ErrNoLocations rejects a sync request before any provider call is made.
var ErrNoLocations = errors.New("at least one location is required")

const defaultSyncLimit = 25

// Store is the persistence surface the orchestrator writes through.
// Implemented by storage.PostgresStore.
type Store interface {
	GetPropertyByExternalID(ctx context.Context, source, externalID string) (*models.Property, error)
	UpsertProperty(ctx context.Context, p *models.Property) error
	UpsertAgent(ctx context.Context, a *models.Agent) error
	UpsertAgency(ctx context.Context, a *models.Agency) error
	UpsertTransaction(ctx context.Context, t *models.Transaction) error
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	UpdateSyncRun(ctx context.Context, run *models.SyncRun) error
}

// ProviderAPI is the slice of the provider client the orchestrator uses.
type ProviderAPI interface {
	SearchProperties(ctx context.Context, filter provider.PropertyFilter) (*provider.SearchResult, error)
	CountProperties(ctx context.Context, filter provider.PropertyFilter) (int, error)
	GetTransactions(ctx context.Context, filter provider.TransactionFilter) ([]provider.Transaction, error)
}

// Media is the hybrid storage decision surface, implemented by
// MediaStrategist.
type Media interface {
	DistributeImages(ctx context.Context, externalID string, photos, floorPlans []string) Distribution
}

// Orchestrator is the top-level sync controller: builds provider queries,
// iterates result batches, gates on freshness, fans out to media and entity
// extraction, paces itself, and persists the run log.
type Orchestrator struct {
	store  Store
	api    ProviderAPI
	media  Media
	source string
	pacer  Pacer
	sleep  func(time.Duration)
}

func NewOrchestrator(store Store, api ProviderAPI, media Media, source string) *Orchestrator {
	return &Orchestrator{
		store:  store,
		api:    api,
		media:  media,
		source: source,
		pacer:  NewOrganicPacer(),
		sleep:  time.Sleep,
	}
}

// SetPacer swaps the delay strategy (tests run without wall-clock waits).
func (o *Orchestrator) SetPacer(p Pacer, sleep func(time.Duration)) {
	o.pacer = p
	if sleep != nil {
		o.sleep = sleep
	}
}

// SyncRequest is one property sync invocation.
type SyncRequest struct {
	Filter provider.PropertyFilter
	DryRun bool
}

// SyncSummary is the caller-visible outcome of a sync invocation.
type SyncSummary struct {
	RunID               int64            `json:"runId,omitempty"`
	Status              models.RunStatus `json:"status,omitempty"`
	PropertiesFound     int              `json:"propertiesFound"`
	PropertiesSynced    int              `json:"propertiesSynced"`
	PhotosRehosted      int              `json:"photosRehosted"`
	PhotosCDNReferenced int              `json:"photosCdnReferenced"`
	FloorPlansRehosted  int              `json:"floorPlansRehosted"`
	StorageSavedMB      float64          `json:"estimatedStorageSavedMb"`
	AgentsDiscovered    int              `json:"agentsDiscovered"`
	AgenciesDiscovered  int              `json:"agenciesDiscovered"`
	APICallsUsed        int              `json:"apiCallsUsed"`
	TotalAvailable      int              `json:"totalAvailable"`
	WouldSync           int              `json:"wouldSync,omitempty"`
	EstimatedAPICalls   int              `json:"estimatedApiCalls,omitempty"`
	Errors              []string         `json:"errors,omitempty"`
}

// RunStats are the mutable counters of one run. Threaded explicitly through
// the orchestrator and mutated only by it, so concurrent runs never
// interfere.
type RunStats struct {
	PropertiesFound     int
	PropertiesSynced    int
	PhotosRehosted      int
	PhotosCDNReferenced int
	FloorPlansRehosted  int
	AgentsDiscovered    int
	AgenciesDiscovered  int
	APICalls            int
	StorageSavedMB      float64
	Errors              []string
}

func (s *RunStats) addError(format string, args ...interface{}) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

func (s *RunStats) absorb(d Distribution) {
	s.PhotosRehosted += d.PhotosRehosted
	s.PhotosCDNReferenced += d.PhotosCDNReferenced
	s.FloorPlansRehosted += d.FloorPlansRehosted
	s.StorageSavedMB += d.StorageSavedMB()
	s.Errors = append(s.Errors, d.Errors...)
}

// SyncProperties runs one property sync. Dry-run mode spends exactly one
// provider call and finalizes nothing.
func (o *Orchestrator) SyncProperties(ctx context.Context, req SyncRequest) (*SyncSummary, error) {
	if len(req.Filter.LocationIDs) == 0 {
		return nil, ErrNoLocations
	}

	limit := req.Filter.Limit
	if limit <= 0 {
		limit = defaultSyncLimit
	}

	if req.DryRun {
		total, err := o.api.CountProperties(ctx, req.Filter)
		if err != nil {
			return nil, err
		}
		would := total
		if limit < total {
			would = limit
		}
		return &SyncSummary{
			TotalAvailable:    total,
			WouldSync:         would,
			EstimatedAPICalls: 1,
			APICallsUsed:      1,
		}, nil
	}

	run := &models.SyncRun{
		SyncType:  "properties",
		Target:    strings.Join(req.Filter.LocationIDs, ","),
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := o.store.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}

	stats := &RunStats{}

	result, err := o.api.SearchProperties(ctx, req.Filter)
	stats.APICalls++
	if err != nil {
		o.finalize(ctx, run, stats, err)
		return nil, err
	}

	gate := NewFreshnessGate(o.store, o.source)
	extractor := NewExtractor(o.source)

	hits := result.Hits
	if limit < len(hits) {
		hits = hits[:limit]
	}

	for i := range hits {
		stats.PropertiesFound++
		o.syncRecord(ctx, gate, extractor, &hits[i], stats)

		if i+1 < len(hits) {
			o.sleep(o.pacer.RecordDelay())
			if (i+1)%batchSize == 0 {
				o.sleep(o.pacer.BatchCooldown())
			}
		}
	}

	o.finalize(ctx, run, stats, nil)

	summary := summaryFromStats(run, stats)
	summary.TotalAvailable = result.TotalAvailable
	return summary, nil
}

// syncRecord processes one provider record. Every failure inside it is
// caught, counted, and recorded; the run always continues to the next
// record.
func (o *Orchestrator) syncRecord(ctx context.Context, gate *FreshnessGate, extractor *Extractor, p *provider.Property, stats *RunStats) {
	needsSync, err := gate.NeedsSync(ctx, p.ExternalID)
	if err != nil {
		log.Printf("Warning: freshness check for %s: %v", p.ExternalID, err)
	}
	if !needsSync {
		return
	}

	// Related entities are best-effort; the property upsert is the primary
	// guarantee.
	if agent := extractor.Agent(p); agent != nil {
		if err := o.store.UpsertAgent(ctx, agent); err != nil {
			log.Printf("Warning: agent upsert for %s: %v", agent.ExternalID, err)
			stats.addError("agent %s: %v", agent.ExternalID, err)
		} else {
			stats.AgentsDiscovered++
		}
	}
	if agency := extractor.Agency(p); agency != nil {
		if err := o.store.UpsertAgency(ctx, agency); err != nil {
			log.Printf("Warning: agency upsert for %s: %v", agency.ExternalID, err)
			stats.addError("agency %s: %v", agency.ExternalID, err)
		} else {
			stats.AgenciesDiscovered++
		}
	}

	dist := o.media.DistributeImages(ctx, p.ExternalID, p.PhotoURLs(), p.FloorPlanURLs())
	stats.absorb(dist)

	row := o.buildProperty(p, dist, extractor)
	if err := o.store.UpsertProperty(ctx, row); err != nil {
		log.Printf("Warning: property upsert for %s: %v", p.ExternalID, err)
		stats.addError("property %s: %v", p.ExternalID, err)
		return
	}
	stats.PropertiesSynced++
}

// buildProperty merges provider fields with the distributed image sets and
// extracted entity snapshots into one upsertable row.
func (o *Orchestrator) buildProperty(p *provider.Property, dist Distribution, extractor *Extractor) *models.Property {
	now := time.Now()

	row := &models.Property{
		ID:               uuid.New(),
		ExternalSource:   o.source,
		ExternalID:       p.ExternalID,
		Title:            p.Title,
		Purpose:          p.Purpose,
		Category:         p.Category,
		IsFurnished:      p.FurnishingStatus == "furnished",
		CompletionStatus: p.CompletionStatus,
		Images:           dist.Images,
		GalleryURLs:      dist.GalleryURLs,
		FloorPlanURLs:    dist.FloorPlanURLs,
		LastSyncedAt:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Price > 0 {
		price := p.Price
		row.Price = &price
	}
	if rooms := int(p.Rooms); rooms > 0 {
		row.Rooms = &rooms
	}
	if baths := int(p.Baths); baths > 0 {
		row.Baths = &baths
	}
	if p.Area > 0 {
		area := p.Area
		row.AreaSqFt = &area
	}
	if leaf := p.LeafLocation(); leaf != nil {
		row.LocationID = leaf.ExternalID
		row.LocationName = leaf.Name
	}

	if p.Agent != nil {
		row.AgentInfo, _ = json.Marshal(p.Agent)
	}
	if p.Agency != nil {
		row.AgencyInfo, _ = json.Marshal(p.Agency)
	}
	row.BuildingInfo, _ = json.Marshal(extractor.BuildingInfo(p))
	row.RawData, _ = json.Marshal(p)

	return row
}

// finalize stamps the terminal status and persists counters and the error
// list. Never called for dry runs.
func (o *Orchestrator) finalize(ctx context.Context, run *models.SyncRun, stats *RunStats, fatal error) {
	now := time.Now()
	run.CompletedAt = &now
	run.PropertiesFound = stats.PropertiesFound
	run.PropertiesSynced = stats.PropertiesSynced
	run.PhotosRehosted = stats.PhotosRehosted
	run.PhotosCDNReferenced = stats.PhotosCDNReferenced
	run.FloorPlansRehosted = stats.FloorPlansRehosted
	run.AgentsDiscovered = stats.AgentsDiscovered
	run.AgenciesDiscovered = stats.AgenciesDiscovered
	run.APICallsUsed = stats.APICalls
	run.StorageSavedMB = stats.StorageSavedMB
	run.Errors = stats.Errors

	switch {
	case fatal != nil:
		run.Status = models.RunStatusFailed
		run.Errors = append(run.Errors, fatal.Error())
	case len(stats.Errors) > 0:
		run.Status = models.RunStatusCompletedWithErrors
	default:
		run.Status = models.RunStatusCompleted
	}

	if err := o.store.UpdateSyncRun(ctx, run); err != nil {
		log.Printf("Warning: failed to finalize sync run %d: %v", run.ID, err)
	}
}

func summaryFromStats(run *models.SyncRun, stats *RunStats) *SyncSummary {
	return &SyncSummary{
		RunID:               run.ID,
		Status:              run.Status,
		PropertiesFound:     stats.PropertiesFound,
		PropertiesSynced:    stats.PropertiesSynced,
		PhotosRehosted:      stats.PhotosRehosted,
		PhotosCDNReferenced: stats.PhotosCDNReferenced,
		FloorPlansRehosted:  stats.FloorPlansRehosted,
		StorageSavedMB:      stats.StorageSavedMB,
		AgentsDiscovered:    stats.AgentsDiscovered,
		AgenciesDiscovered:  stats.AgenciesDiscovered,
		APICallsUsed:        stats.APICalls,
		Errors:              stats.Errors,
	}
}

// TransactionSummary is the caller-visible outcome of a transaction sync.
type TransactionSummary struct {
	RunID              int64            `json:"runId"`
	Status             models.RunStatus `json:"status"`
	TransactionsFound  int              `json:"transactionsFound"`
	TransactionsSynced int              `json:"transactionsSynced"`
	APICallsUsed       int              `json:"apiCallsUsed"`
	Errors             []string         `json:"errors,omitempty"`
}

// SyncTransactions mirrors the property loop for recorded transactions:
// run row, pacing, per-record error isolation. No media or entity fan-out.
func (o *Orchestrator) SyncTransactions(ctx context.Context, filter provider.TransactionFilter) (*TransactionSummary, error) {
	if filter.LocationExternalID == "" {
		return nil, ErrNoLocations
	}

	run := &models.SyncRun{
		SyncType:  "transactions",
		Target:    filter.LocationExternalID,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := o.store.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}

	stats := &RunStats{}

	transactions, err := o.api.GetTransactions(ctx, filter)
	stats.APICalls++
	if err != nil {
		o.finalize(ctx, run, stats, err)
		return nil, err
	}

	synced := 0
	for i := range transactions {
		stats.PropertiesFound++
		if err := o.syncTransaction(ctx, &transactions[i]); err != nil {
			log.Printf("Warning: transaction upsert for %s: %v", transactions[i].ExternalID, err)
			stats.addError("transaction %s: %v", transactions[i].ExternalID, err)
		} else {
			synced++
		}

		if i+1 < len(transactions) {
			o.sleep(o.pacer.RecordDelay())
			if (i+1)%batchSize == 0 {
				o.sleep(o.pacer.BatchCooldown())
			}
		}
	}
	stats.PropertiesSynced = synced

	o.finalize(ctx, run, stats, nil)

	return &TransactionSummary{
		RunID:              run.ID,
		Status:             run.Status,
		TransactionsFound:  stats.PropertiesFound,
		TransactionsSynced: synced,
		APICallsUsed:       stats.APICalls,
		Errors:             stats.Errors,
	}, nil
}

func (o *Orchestrator) syncTransaction(ctx context.Context, t *provider.Transaction) error {
	now := time.Now()
	row := &models.Transaction{
		ID:                 uuid.New(),
		ExternalSource:     o.source,
		ExternalID:         t.ExternalID,
		LocationExternalID: t.LocationExternalID,
		Purpose:            t.Purpose,
		Date:               parseTransactionDate(t.Date),
		CreatedAt:          now,
	}
	if t.Price > 0 {
		price := t.Price
		row.Price = &price
	}
	if t.Area > 0 {
		area := t.Area
		row.AreaSqFt = &area
	}
	if rooms := int(t.Rooms); rooms > 0 {
		row.Rooms = &rooms
	}
	return o.store.UpsertTransaction(ctx, row)
}

func parseTransactionDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
