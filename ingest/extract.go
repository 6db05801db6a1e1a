package ingest

import (
	"time"

	"github.com/google/uuid"
	"propsync/models"
	"propsync/provider"
)

// Extractor pulls nested agent/agency/building fragments out of property
// payloads and normalizes them into upsertable entities. A per-run seen-set
// keeps the same external agent/agency from being upserted once per
// property it appears on.
type Extractor struct {
	source       string
	seenAgents   map[string]struct{}
	seenAgencies map[string]struct{}
}

func NewExtractor(source string) *Extractor {
	return &Extractor{
		source:       source,
		seenAgents:   make(map[string]struct{}),
		seenAgencies: make(map[string]struct{}),
	}
}

// Agent returns the normalized agent from the record, or nil when the
// record carries no agent block or this run already produced it.
func (e *Extractor) Agent(p *provider.Property) *models.Agent {
	if p.Agent == nil || p.Agent.ExternalID == "" {
		return nil
	}
	if _, ok := e.seenAgents[p.Agent.ExternalID]; ok {
		return nil
	}
	e.seenAgents[p.Agent.ExternalID] = struct{}{}

	now := time.Now()
	a := &models.Agent{
		ID:             uuid.New(),
		ExternalSource: e.source,
		ExternalID:     p.Agent.ExternalID,
		Name:           p.Agent.Name,
		Email:          p.Agent.Email,
		Phone:          firstNonEmpty(p.Agent.Mobile, p.Agent.Phone),
		WhatsApp:       p.Agent.WhatsApp,
		PhotoURL:       p.Agent.Photo,
		IsVerified:     bool(p.Agent.IsVerified),
		FirstSeenAt:    now,
		LastSeenAt:     now,
		CreatedAt:      now,
	}
	if years := int(p.Agent.Experience); years > 0 {
		a.ExperienceYears = &years
	}
	if p.Agency != nil {
		a.AgencyExternalID = p.Agency.ExternalID
	}
	return a
}

// Agency returns the normalized agency from the record, or nil when absent
// or already produced this run.
func (e *Extractor) Agency(p *provider.Property) *models.Agency {
	if p.Agency == nil || p.Agency.ExternalID == "" {
		return nil
	}
	if _, ok := e.seenAgencies[p.Agency.ExternalID]; ok {
		return nil
	}
	e.seenAgencies[p.Agency.ExternalID] = struct{}{}

	now := time.Now()
	a := &models.Agency{
		ID:             uuid.New(),
		ExternalSource: e.source,
		ExternalID:     p.Agency.ExternalID,
		Name:           p.Agency.Name,
		LogoURL:        p.Agency.Logo.URL,
		Phone:          p.Agency.Phone,
		IsFeatured:     bool(p.Agency.IsFeatured),
		FirstSeenAt:    now,
		LastSeenAt:     now,
		CreatedAt:      now,
	}
	if count := int(p.Agency.PropertyCount); count > 0 {
		a.PropertyCount = &count
	}
	return a
}

// BuildingInfo returns the normalized building/community block. Missing
// numeric fields stay nil rather than zero.
func (e *Extractor) BuildingInfo(p *provider.Property) models.BuildingInfo {
	var info models.BuildingInfo
	if p.Building == nil {
		return info
	}
	info.Name = p.Building.Name
	if v := int(p.Building.Floors); v > 0 {
		info.Floors = &v
	}
	if v := int(p.Building.Elevators); v > 0 {
		info.Elevators = &v
	}
	if v := int(p.Building.YearCompleted); v > 0 {
		info.YearCompleted = &v
	}
	if v := int(p.Building.ParkingSpaces); v > 0 {
		info.ParkingSpaces = &v
	}
	return info
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
