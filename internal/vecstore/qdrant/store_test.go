package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/schemapilot/schemapilot/internal/vecstore"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func TestRecreateDeletesThenCreates(t *testing.T) {
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		if r.Method == http.MethodDelete {
			http.Error(w, `{"status":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})
	}))
	defer server.Close()

	store := NewForURL(server.URL, "schema_embeddings", nil)
	if err := store.Recreate(context.Background(), 1536); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if requests[0].method != http.MethodDelete || requests[0].path != "/collections/schema_embeddings" {
		t.Fatalf("first request = %+v", requests[0])
	}
	if requests[1].method != http.MethodPut {
		t.Fatalf("second request method = %q", requests[1].method)
	}
	vectors, ok := requests[1].body["vectors"].(map[string]any)
	if !ok {
		t.Fatalf("create body = %v", requests[1].body)
	}
	if vectors["size"].(float64) != 1536 {
		t.Fatalf("vector size = %v", vectors["size"])
	}
	if vectors["distance"] != "Cosine" {
		t.Fatalf("distance = %v", vectors["distance"])
	}
}

func TestUpsertSendsPoints(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/schema_embeddings/points" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	store := NewForURL(server.URL, "schema_embeddings", nil)
	err := store.Upsert(context.Background(), []vecstore.Point{
		{ID: 0, Vector: []float32{0.1, 0.2}, Payload: vecstore.Payload{TableName: "orders", Description: "orders table", Chunk: "Table: orders"}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	points, ok := got["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("points = %v", got["points"])
	}
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	if payload["table_name"] != "orders" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestUpsertRejectsEmpty(t *testing.T) {
	store := NewForURL("http://localhost:1", "c", nil)
	if err := store.Upsert(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty upsert")
	}
}

func TestSearchReturnsScoredHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/schema_embeddings/points/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["limit"].(float64) != 3 {
			t.Errorf("limit = %v", body["limit"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.93, "payload": map[string]string{"table_name": "orders", "description": "d", "chunk": "c"}},
				{"score": 0.71, "payload": map[string]string{"table_name": "customers", "description": "d2", "chunk": "c2"}},
			},
		})
	}))
	defer server.Close()

	store := NewForURL(server.URL, "schema_embeddings", nil)
	hits, err := store.Search(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].TableName != "orders" || hits[0].Score < 0.9 {
		t.Fatalf("first hit = %+v", hits[0])
	}
}

func TestSearchSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"collection not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	store := NewForURL(server.URL, "missing", nil)
	if _, err := store.Search(context.Background(), []float32{0.1}, 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Port: 6333, Collection: "c"}); err == nil {
		t.Fatal("expected error for missing host")
	}
	if _, err := New(Config{Host: "localhost", Collection: "c"}); err == nil {
		t.Fatal("expected error for missing port")
	}
	if _, err := New(Config{Host: "localhost", Port: 6333}); err == nil {
		t.Fatal("expected error for missing collection")
	}
}

func TestNewToleratesSchemePrefixedHost(t *testing.T) {
	store, err := New(Config{Host: "https://qdrant.internal/", Port: 6333, Collection: "c"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if store.baseURL != "https://qdrant.internal:6333" {
		t.Fatalf("baseURL = %q", store.baseURL)
	}

	store, err = New(Config{Host: "http://localhost", Port: 6333, Collection: "c"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if store.baseURL != "http://localhost:6333" {
		t.Fatalf("baseURL = %q", store.baseURL)
	}
}
