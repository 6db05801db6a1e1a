package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a normalized listing agent discovered inside property payloads.
// Addressed by external id; refreshed on every run it appears in, never
// deleted by the pipeline.
type Agent struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ExternalSource   string    `json:"external_source" db:"external_source"`
	ExternalID       string    `json:"external_id" db:"external_id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	Phone            string    `json:"phone" db:"phone"`
	WhatsApp         string    `json:"whatsapp" db:"whatsapp"`
	PhotoURL         string    `json:"photo_url" db:"photo_url"`
	ExperienceYears  *int      `json:"experience_years" db:"experience_years"`
	IsVerified       bool      `json:"is_verified" db:"is_verified"`
	AgencyExternalID string    `json:"agency_external_id" db:"agency_external_id"`
	FirstSeenAt      time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Agency is a normalized brokerage/agency discovered inside property payloads.
type Agency struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ExternalSource string    `json:"external_source" db:"external_source"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	Name           string    `json:"name" db:"name"`
	LogoURL        string    `json:"logo_url" db:"logo_url"`
	Phone          string    `json:"phone" db:"phone"`
	PropertyCount  *int      `json:"property_count" db:"property_count"`
	IsFeatured     bool      `json:"is_featured" db:"is_featured"`
	FirstSeenAt    time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Transaction is one recorded sale/rental transaction from the provider.
type Transaction struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	ExternalSource     string    `json:"external_source" db:"external_source"`
	ExternalID         string    `json:"external_id" db:"external_id"`
	LocationExternalID string    `json:"location_external_id" db:"location_external_id"`
	Purpose            string    `json:"purpose" db:"purpose"`
	Price              *float64  `json:"price" db:"price"`
	AreaSqFt           *float64  `json:"area_sqft" db:"area_sqft"`
	Rooms              *int      `json:"rooms" db:"rooms"`
	Date               time.Time `json:"date" db:"date"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
