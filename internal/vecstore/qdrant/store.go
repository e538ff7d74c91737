// Package qdrant implements vecstore.Store against the Qdrant HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/schemapilot/schemapilot/internal/vecstore"
)

type Config struct {
	Host       string
	Port       int
	UseTLS     bool
	Collection string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Store struct {
	baseURL    string
	collection string
	client     *http.Client
}

func New(cfg Config) (*Store, error) {
	// QDRANT_URL is a bare host, but tolerate a scheme prefix.
	host := strings.TrimSpace(cfg.Host)
	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
		cfg.UseTLS = true
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}
	host = strings.TrimRight(host, "/")
	if host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("qdrant port is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Store{
		baseURL:    fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Port),
		collection: strings.TrimSpace(cfg.Collection),
		client:     client,
	}, nil
}

// NewForURL builds a store from an explicit base URL. Used by tests.
func NewForURL(baseURL, collection string, client *http.Client) *Store {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		client:     client,
	}
}

// Recreate drops and recreates the collection with cosine distance.
// A 404 on delete means the collection never existed and is fine.
func (s *Store) Recreate(ctx context.Context, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive")
	}

	status, body, err := s.do(ctx, http.MethodDelete, s.collectionPath(), nil)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if status >= 400 && status != http.StatusNotFound {
		return fmt.Errorf("delete collection failed status=%d body=%s", status, body)
	}

	payload := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	status, body, err = s.do(ctx, http.MethodPut, s.collectionPath(), payload)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("create collection failed status=%d body=%s", status, body)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []vecstore.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("no points to upsert")
	}

	type qdrantPoint struct {
		ID      uint64           `json:"id"`
		Vector  []float32        `json:"vector"`
		Payload vecstore.Payload `json:"payload"`
	}
	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, 0, len(points))}
	for _, p := range points {
		body.Points = append(body.Points, qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}

	status, raw, err := s.do(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", body)
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("upsert points failed status=%d body=%s", status, raw)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]vecstore.Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if topK <= 0 {
		topK = 3
	}

	payload := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	status, raw, err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/search", payload)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("search points failed status=%d body=%s", status, raw)
	}

	var parsed struct {
		Result []struct {
			Score   float32          `json:"score"`
			Payload vecstore.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]vecstore.Hit, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		hits = append(hits, vecstore.Hit{Payload: item.Payload, Score: item.Score})
	}
	return hits, nil
}

func (s *Store) collectionPath() string {
	return "/collections/" + s.collection
}

func (s *Store) do(ctx context.Context, method, path string, payload any) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, "", fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(raw)), nil
}
