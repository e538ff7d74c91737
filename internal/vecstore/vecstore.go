// Package vecstore abstracts the vector database holding one embedded
// chunk per digested table.
package vecstore

import "context"

// Point is a stored schema chunk with its embedding.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside each vector. TableName is the
// chunk identifier.
type Payload struct {
	TableName   string `json:"table_name"`
	Description string `json:"description"`
	Chunk       string `json:"chunk"`
}

// Hit is a search result with its similarity score.
type Hit struct {
	Payload
	Score float32
}

// Store is the write+search surface the digester and chat interface use.
// Digestion recreates the collection wholesale; there is no incremental
// update path.
type Store interface {
	Recreate(ctx context.Context, vectorSize int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
}
