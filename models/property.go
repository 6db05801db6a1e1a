package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Property mirrors one provider-side listing into the local catalog.
// Identity is (external_source, external_id); upserts are idempotent.
type Property struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ExternalSource   string          `json:"external_source" db:"external_source"`
	ExternalID       string          `json:"external_id" db:"external_id"`
	Title            string          `json:"title" db:"title"`
	Purpose          string          `json:"purpose" db:"purpose"` // for-sale, for-rent
	Category         string          `json:"category" db:"category"`
	Price            *float64        `json:"price" db:"price"`
	Rooms            *int            `json:"rooms" db:"rooms"`
	Baths            *int            `json:"baths" db:"baths"`
	AreaSqFt         *float64        `json:"area_sqft" db:"area_sqft"`
	LocationID       string          `json:"location_id" db:"location_id"`
	LocationName     string          `json:"location_name" db:"location_name"`
	IsFurnished      bool            `json:"is_furnished" db:"is_furnished"`
	CompletionStatus string          `json:"completion_status" db:"completion_status"`
	Images           []string        `json:"images" db:"images"`                   // rehosted, owned-storage URLs
	GalleryURLs      []string        `json:"gallery_urls" db:"gallery_urls"`       // provider CDN references
	FloorPlanURLs    []string        `json:"floor_plan_urls" db:"floor_plan_urls"` // rehosted floor plans
	AgentInfo        json.RawMessage `json:"agent_info" db:"agent_info"`
	AgencyInfo       json.RawMessage `json:"agency_info" db:"agency_info"`
	BuildingInfo     json.RawMessage `json:"building_info" db:"building_info"`
	RawData          json.RawMessage `json:"raw_data" db:"raw_data"`
	LastSyncedAt     time.Time       `json:"last_synced_at" db:"last_synced_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// BuildingInfo is the normalized building/community block captured from a
// listing payload. Stored as JSON on the property row.
type BuildingInfo struct {
	Name          string `json:"name,omitempty"`
	Floors        *int   `json:"floors,omitempty"`
	Elevators     *int   `json:"elevators,omitempty"`
	YearCompleted *int   `json:"year_completed,omitempty"`
	ParkingSpaces *int   `json:"parking_spaces,omitempty"`
}
