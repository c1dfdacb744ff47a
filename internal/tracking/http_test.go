package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"intake/internal/services"
)

func TestHTTPClientFindOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/entity/Shot/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if token := r.Header.Get("Authorization"); token != "Bearer token-123" {
			t.Fatalf("unexpected token header: %q", token)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode search request: %v", err)
		}
		if len(req.Filters) != 2 || req.Filters[1].Field != "code" {
			t.Fatalf("unexpected filters: %#v", req.Filters)
		}
		if req.Limit != 1 {
			t.Fatalf("expected limit 1, got %d", req.Limit)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Entities: []Entity{
			{"type": "Shot", "id": float64(11), "code": "sh010"},
		}})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "token-123", nil)
	entity, err := client.FindOne(context.Background(), "Shot", []Filter{
		Eq("project", EntityRef{Type: "Project", ID: 1}),
		Eq("code", "sh010"),
	}, []string{"code"})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if entity == nil || entity.ID() != 11 || entity.Name() != "sh010" {
		t.Fatalf("unexpected entity: %#v", entity)
	}
}

func TestHTTPClientFindOneMissReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", nil)
	entity, err := client.FindOne(context.Background(), "Shot", []Filter{Eq("code", "nope")}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if entity != nil {
		t.Fatalf("expected nil entity for empty result, got %#v", entity)
	}
}

func TestHTTPClientCreateAndUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/entity/Asset":
			var req entityRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode create request: %v", err)
			}
			if req.Data["code"] != "bg_forest" {
				t.Fatalf("unexpected create data: %#v", req.Data)
			}
			_ = json.NewEncoder(w).Encode(entityResponse{Entity: Entity{
				"type": "Asset", "id": float64(5), "code": "bg_forest",
			}})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/entity/Asset/5":
			var req entityRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode update request: %v", err)
			}
			if req.MultiEntityModes["published_files"] != ModeAdd {
				t.Fatalf("expected add mode, got %#v", req.MultiEntityModes)
			}
			_ = json.NewEncoder(w).Encode(entityResponse{Entity: Entity{
				"type": "Asset", "id": float64(5),
			}})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", nil)
	created, err := client.Create(context.Background(), "Asset", map[string]any{"code": "bg_forest"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID() != 5 {
		t.Fatalf("unexpected created entity: %#v", created)
	}

	_, err = client.Update(context.Background(), "Asset", 5,
		map[string]any{"published_files": []any{EntityRef{Type: "PublishedFile", ID: 9}.Map()}},
		WithMultiEntityMode("published_files", ModeAdd))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestHTTPClientClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusInternalServerError, services.ErrTransient},
		{http.StatusGatewayTimeout, services.ErrTimeout},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		client := NewHTTPClient(server.URL, "t", nil)
		_, err := client.FindOne(context.Background(), "Shot", nil, nil)
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v classification, got %v", tc.status, tc.want, err)
		}
	}
}

func TestHTTPClientDelete(t *testing.T) {
	deleted := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/entity/Asset/5" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", nil)
	if err := client.Delete(context.Background(), "Asset", 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete endpoint to be called")
	}
}

func TestHTTPClientSchemaField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path != "/api/v1/schema/Asset/snapshot_type" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(schemaResponse{Properties: map[string]any{
				"valid_values": []any{"ingest"},
			}})
		case http.MethodPatch:
			var req struct {
				Properties map[string]any `json:"properties"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode schema update: %v", err)
			}
			values, _ := req.Properties["valid_values"].([]any)
			if len(values) != 2 {
				t.Fatalf("expected two valid values, got %#v", req.Properties)
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", nil)
	props, err := client.SchemaFieldRead(context.Background(), "Asset", "snapshot_type")
	if err != nil {
		t.Fatalf("SchemaFieldRead: %v", err)
	}
	values, _ := props["valid_values"].([]any)
	if len(values) != 1 || values[0] != "ingest" {
		t.Fatalf("unexpected properties: %#v", props)
	}

	props["valid_values"] = append(values, "comp")
	if err := client.SchemaFieldUpdate(context.Background(), "Asset", "snapshot_type", props); err != nil {
		t.Fatalf("SchemaFieldUpdate: %v", err)
	}
}
