package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Host:    "provider.test",
	}, srv.Client())
}

func TestSearchProperties(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Errorf("expected API key header, got %q", r.Header.Get("X-RapidAPI-Key"))
		}
		if r.Header.Get("X-RapidAPI-Host") != "provider.test" {
			t.Errorf("expected host header, got %q", r.Header.Get("X-RapidAPI-Host"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": [
				{"externalID": "101", "title": "2BR Marina View", "price": 2450000, "rooms": "2"},
				{"externalID": "102", "title": "Studio JLT", "price": 650000, "rooms": 0}
			],
			"nbHits": 4821,
			"page": 0
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	rooms := 2
	result, err := c.SearchProperties(context.Background(), PropertyFilter{
		LocationIDs: []string{"5002", "5003"},
		Purpose:     "for-sale",
		Rooms:       &rooms,
		Limit:       25,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if gotPath != "/properties/list" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotQuery["locationExternalIDs"] != "5002,5003" {
		t.Fatalf("unexpected locations %s", gotQuery["locationExternalIDs"])
	}
	if gotQuery["purpose"] != "for-sale" {
		t.Fatalf("unexpected purpose %s", gotQuery["purpose"])
	}
	if gotQuery["roomsMin"] != "2" || gotQuery["roomsMax"] != "2" {
		t.Fatalf("expected rooms pinned to 2, got %s/%s", gotQuery["roomsMin"], gotQuery["roomsMax"])
	}
	if gotQuery["hitsPerPage"] != "25" {
		t.Fatalf("unexpected page size %s", gotQuery["hitsPerPage"])
	}

	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(result.Hits))
	}
	if result.TotalAvailable != 4821 {
		t.Fatalf("expected total 4821, got %d", result.TotalAvailable)
	}
	if result.Hits[0].ExternalID != "101" {
		t.Fatalf("unexpected first hit %s", result.Hits[0].ExternalID)
	}
	if int(result.Hits[0].Rooms) != 2 {
		t.Fatalf("expected string room count parsed, got %d", int(result.Hits[0].Rooms))
	}
}

func TestCountProperties_SingleMinimalRequest(t *testing.T) {
	var requests int
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotQuery = map[string]string{
			"hitsPerPage": r.URL.Query().Get("hitsPerPage"),
			"page":        r.URL.Query().Get("page"),
		}
		w.Write([]byte(`{"hits": [{"externalID": "101"}], "nbHits": 4821}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	total, err := c.CountProperties(context.Background(), PropertyFilter{LocationIDs: []string{"5002"}})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 4821 {
		t.Fatalf("expected 4821, got %d", total)
	}
	if requests != 1 {
		t.Fatalf("expected exactly 1 request, got %d", requests)
	}
	if gotQuery["hitsPerPage"] != "1" || gotQuery["page"] != "0" {
		t.Fatalf("expected minimal page request, got %v", gotQuery)
	}
}

func TestNon2xxSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "You are not subscribed to this API."}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.SearchProperties(context.Background(), PropertyFilter{LocationIDs: []string{"5002"}})
	if err == nil {
		t.Fatalf("expected error on 403")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "not subscribed") {
		t.Fatalf("expected upstream body preserved, got %s", apiErr.Body)
	}
}

func TestSearchLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auto-complete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "Dubai Marina" {
			t.Errorf("unexpected query %s", r.URL.Query().Get("query"))
		}
		w.Write([]byte(`{"hits": [
			{"externalID": "5002", "name": "Dubai Marina", "level": 2, "type": "neighbourhood"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	locations, err := c.SearchLocations(context.Background(), "Dubai Marina")
	if err != nil {
		t.Fatalf("location search failed: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locations))
	}
	if locations[0].ExternalID != "5002" || locations[0].Name != "Dubai Marina" {
		t.Fatalf("unexpected location %+v", locations[0])
	}
}

func TestGetTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("locationExternalIDs") != "5002" {
			t.Errorf("unexpected location %s", r.URL.Query().Get("locationExternalIDs"))
		}
		w.Write([]byte(`{"hits": [
			{"externalID": "tx-1", "locationExternalID": "5002", "purpose": "for-sale", "price": 2500000, "area": 1200, "rooms": "2", "date": "2026-02-14"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	transactions, err := c.GetTransactions(context.Background(), TransactionFilter{LocationExternalID: "5002"})
	if err != nil {
		t.Fatalf("transactions failed: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Price != 2500000 {
		t.Fatalf("unexpected price %f", transactions[0].Price)
	}
	if int(transactions[0].Rooms) != 2 {
		t.Fatalf("expected string rooms parsed, got %d", int(transactions[0].Rooms))
	}
}

func TestConfigured(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "https://provider.test"}, nil)
	if c.Configured() {
		t.Fatalf("expected unconfigured without a key")
	}
	c = NewClient(ClientConfig{BaseURL: "https://provider.test", APIKey: "k"}, nil)
	if !c.Configured() {
		t.Fatalf("expected configured with a key")
	}
}

func TestFlexTypes(t *testing.T) {
	var p Property
	payload := `{"externalID": "1", "rooms": "3", "baths": null, "agent": {"externalID": "a", "experience": "seven", "isCertified": 1}}`
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if int(p.Rooms) != 3 {
		t.Fatalf("expected rooms 3, got %d", int(p.Rooms))
	}
	if int(p.Baths) != 0 {
		t.Fatalf("expected null baths as 0, got %d", int(p.Baths))
	}
	if int(p.Agent.Experience) != 0 {
		t.Fatalf("expected unparseable experience as 0, got %d", int(p.Agent.Experience))
	}
	if !bool(p.Agent.IsVerified) {
		t.Fatalf("expected numeric 1 as true")
	}
}
