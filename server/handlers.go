package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"propsync/ingest"
	"propsync/provider"
)

// ActionRequest is the single action-dispatch payload of the ingestion
// surface. Filter fields pass through to the provider search.
type ActionRequest struct {
	Action       string   `json:"action"`
	Query        string   `json:"query"`
	ExternalID   string   `json:"external_id"`
	LocationIDs  []string `json:"locations_ids"`
	Purpose      string   `json:"purpose"`
	Category     string   `json:"category"`
	Rooms        *int     `json:"rooms"`
	Baths        *int     `json:"baths"`
	PriceMin     *float64 `json:"price_min"`
	PriceMax     *float64 `json:"price_max"`
	AreaMin      *float64 `json:"area_min"`
	AreaMax      *float64 `json:"area_max"`
	IsFurnished  *bool    `json:"is_furnished"`
	IsCompleted  *bool    `json:"is_completed"`
	SaleType     string   `json:"sale_type"`
	HasVideo     *bool    `json:"has_video"`
	Has360Tour   *bool    `json:"has_360_tour"`
	HasFloorPlan *bool    `json:"has_floorplan"`
	Index        string   `json:"index"`
	Page         int      `json:"page"`
	Limit        int      `json:"limit"`
	DryRun       bool     `json:"dry_run"`
}

func (a *ActionRequest) filter() provider.PropertyFilter {
	return provider.PropertyFilter{
		LocationIDs:  a.LocationIDs,
		Purpose:      a.Purpose,
		Category:     a.Category,
		Rooms:        a.Rooms,
		Baths:        a.Baths,
		PriceMin:     a.PriceMin,
		PriceMax:     a.PriceMax,
		AreaMin:      a.AreaMin,
		AreaMax:      a.AreaMax,
		IsFurnished:  a.IsFurnished,
		IsCompleted:  a.IsCompleted,
		SaleType:     a.SaleType,
		HasVideo:     a.HasVideo,
		Has360Tour:   a.Has360Tour,
		HasFloorPlan: a.HasFloorPlan,
		Index:        a.Index,
		Page:         a.Page,
		Limit:        a.Limit,
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// A missing provider credential is fatal to the whole surface; refuse
	// before spending anything.
	if !s.client.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"message": "provider API key not configured",
		})
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	switch req.Action {
	case "test":
		locations, err := s.client.SearchLocations(ctx, "Dubai")
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "provider reachable",
			"locations": len(locations),
		})

	case "search_locations":
		locations, err := s.client.SearchLocations(ctx, req.Query)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"locations": locations,
		})

	case "sync_properties":
		s.handleSyncProperties(w, r, &req)

	case "sync_transactions":
		summary, err := s.orch.SyncTransactions(ctx, provider.TransactionFilter{
			LocationExternalID: firstOrEmpty(req.LocationIDs),
			Purpose:            req.Purpose,
			Page:               req.Page,
			Limit:              req.Limit,
		})
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":            true,
			"message":            "transaction sync finished",
			"transactionsFound":  summary.TransactionsFound,
			"transactionsSynced": summary.TransactionsSynced,
			"apiCallsUsed":       summary.APICallsUsed,
			"errors":             summary.Errors,
		})

	case "search_agents":
		agents, err := s.client.SearchAgents(ctx, firstOrEmpty(req.LocationIDs), req.Page)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "agents": agents})

	case "search_agencies":
		agencies, err := s.client.SearchAgencies(ctx, req.Query, req.Page)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "agencies": agencies})

	case "search_developers":
		developers, err := s.client.SearchDevelopers(ctx, req.Query, req.Page)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "developers": developers})

	case "get_property_details":
		if req.ExternalID == "" {
			writeError(w, http.StatusBadRequest, "external_id is required")
			return
		}
		property, err := s.client.GetPropertyDetails(ctx, req.ExternalID)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "property": property})

	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

func (s *Server) handleSyncProperties(w http.ResponseWriter, r *http.Request, req *ActionRequest) {
	summary, err := s.orch.SyncProperties(r.Context(), ingest.SyncRequest{
		Filter: req.filter(),
		DryRun: req.DryRun,
	})
	if err != nil {
		writeSyncError(w, err)
		return
	}

	if req.DryRun {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"dryRun":            true,
			"wouldSync":         summary.WouldSync,
			"totalAvailable":    summary.TotalAvailable,
			"estimatedApiCalls": summary.EstimatedAPICalls,
		})
		return
	}

	resp := map[string]interface{}{
		"success":          true,
		"message":          "property sync finished",
		"propertiesFound":  summary.PropertiesFound,
		"propertiesSynced": summary.PropertiesSynced,
		"storage": map[string]interface{}{
			"photosRehosted":          summary.PhotosRehosted,
			"photosCdnReferenced":     summary.PhotosCDNReferenced,
			"floorPlansRehosted":      summary.FloorPlansRehosted,
			"estimatedStorageSavedMb": summary.StorageSavedMB,
		},
		"intelligence": map[string]interface{}{
			"agentsDiscovered":   summary.AgentsDiscovered,
			"agenciesDiscovered": summary.AgenciesDiscovered,
		},
		"apiCallsUsed":   summary.APICallsUsed,
		"totalAvailable": summary.TotalAvailable,
	}
	if len(summary.Errors) > 0 {
		resp["errors"] = summary.Errors
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrNoLocations) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeProviderError(w, err)
}

func writeProviderError(w http.ResponseWriter, err error) {
	log.Printf("Provider error: %v", err)
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, apiErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
