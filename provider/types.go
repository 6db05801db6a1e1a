package provider

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric-looking string. The provider's
// payloads are not consistent about which one a field arrives as.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(int(v))
	return nil
}

// FlexBool decodes a JSON bool, a 0/1 number, or a "true"/"false" string,
// defaulting to false on anything else.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// PropertyFilter is the typed search filter passed through to the provider.
type PropertyFilter struct {
	LocationIDs  []string `json:"locations_ids,omitempty"`
	Purpose      string   `json:"purpose,omitempty"` // for-sale, for-rent
	Category     string   `json:"category,omitempty"`
	Rooms        *int     `json:"rooms,omitempty"`
	Baths        *int     `json:"baths,omitempty"`
	PriceMin     *float64 `json:"price_min,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	AreaMin      *float64 `json:"area_min,omitempty"`
	AreaMax      *float64 `json:"area_max,omitempty"`
	IsFurnished  *bool    `json:"is_furnished,omitempty"`
	IsCompleted  *bool    `json:"is_completed,omitempty"`
	SaleType     string   `json:"sale_type,omitempty"`
	HasVideo     *bool    `json:"has_video,omitempty"`
	Has360Tour   *bool    `json:"has_360_tour,omitempty"`
	HasFloorPlan *bool    `json:"has_floorplan,omitempty"`
	Index        string   `json:"index,omitempty"` // sort index
	Page         int      `json:"page,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// TransactionFilter selects transactions for one location.
type TransactionFilter struct {
	LocationExternalID string `json:"location_external_id"`
	Purpose            string `json:"purpose,omitempty"`
	Page               int    `json:"page,omitempty"`
	Limit              int    `json:"limit,omitempty"`
}

type Photo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type FloorPlanImage struct {
	URL string `json:"image"`
}

type FloorPlan struct {
	Images []FloorPlanImage `json:"images"`
}

// AgentBlock is the nested agent fragment inside a property payload.
type AgentBlock struct {
	ExternalID string   `json:"externalID"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Mobile     string   `json:"mobile"`
	WhatsApp   string   `json:"whatsapp"`
	Photo      string   `json:"photo"`
	Experience FlexInt  `json:"experience"`
	IsVerified FlexBool `json:"isCertified"`
}

// AgencyBlock is the nested agency fragment inside a property payload.
type AgencyBlock struct {
	ExternalID    string   `json:"externalID"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Logo          Photo    `json:"logo"`
	PropertyCount FlexInt  `json:"propertyCount"`
	IsFeatured    FlexBool `json:"isFeatured"`
}

// BuildingBlock is the nested building/community fragment.
type BuildingBlock struct {
	Name          string  `json:"name"`
	Floors        FlexInt `json:"floors"`
	Elevators     FlexInt `json:"elevators"`
	YearCompleted FlexInt `json:"completionYear"`
	ParkingSpaces FlexInt `json:"parkingSpaces"`
}

type LocationNode struct {
	ExternalID string `json:"externalID"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Type       string `json:"type"`
}

// Property is one raw listing record as returned by the provider search.
type Property struct {
	ExternalID       string          `json:"externalID"`
	Title            string          `json:"title"`
	Purpose          string          `json:"purpose"`
	Category         string          `json:"category"`
	Price            float64         `json:"price"`
	Rooms            FlexInt         `json:"rooms"`
	Baths            FlexInt         `json:"baths"`
	Area             float64         `json:"area"`
	FurnishingStatus string          `json:"furnishingStatus"`
	CompletionStatus string          `json:"completionStatus"`
	CoverPhoto       *Photo          `json:"coverPhoto"`
	Photos           []Photo         `json:"photos"`
	FloorPlan        *FloorPlan      `json:"floorPlan"`
	Location         []LocationNode  `json:"location"`
	Agent            *AgentBlock     `json:"agent"`
	Agency           *AgencyBlock    `json:"agency"`
	Building         *BuildingBlock  `json:"building"`
	Raw              json.RawMessage `json:"-"`
}

// PhotoURLs returns cover photo first, then the gallery in payload order.
func (p *Property) PhotoURLs() []string {
	var urls []string
	if p.CoverPhoto != nil && p.CoverPhoto.URL != "" {
		urls = append(urls, p.CoverPhoto.URL)
	}
	for _, ph := range p.Photos {
		if ph.URL == "" || (p.CoverPhoto != nil && ph.URL == p.CoverPhoto.URL) {
			continue
		}
		urls = append(urls, ph.URL)
	}
	return urls
}

// FloorPlanURLs returns every floor plan image URL present on the record.
func (p *Property) FloorPlanURLs() []string {
	if p.FloorPlan == nil {
		return nil
	}
	var urls []string
	for _, img := range p.FloorPlan.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return urls
}

// LeafLocation returns the most specific location node on the record.
func (p *Property) LeafLocation() *LocationNode {
	if len(p.Location) == 0 {
		return nil
	}
	leaf := &p.Location[0]
	for i := range p.Location {
		if p.Location[i].Level > leaf.Level {
			leaf = &p.Location[i]
		}
	}
	return leaf
}

// SearchResult is one page of property search hits.
type SearchResult struct {
	Hits           []Property `json:"hits"`
	TotalAvailable int        `json:"nbHits"`
	Page           int        `json:"page"`
}

type Location struct {
	ExternalID string `json:"externalID"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Type       string `json:"type"`
}

type Developer struct {
	ExternalID string `json:"externalID"`
	Name       string `json:"name"`
	Logo       Photo  `json:"logo"`
}

// Transaction is one recorded transaction from the provider.
type Transaction struct {
	ExternalID         string  `json:"externalID"`
	LocationExternalID string  `json:"locationExternalID"`
	Purpose            string  `json:"purpose"`
	Price              float64 `json:"price"`
	Area               float64 `json:"area"`
	Rooms              FlexInt `json:"rooms"`
	Date               string  `json:"date"` // RFC 3339 or YYYY-MM-DD
}
