package vectorstore

import "context"

// Chunk is a scored documentation fragment returned by a similarity search.
type Chunk struct {
	Title      string
	SourceURL  string
	DocPath    string
	HeaderPath []string
	Text       string
	Score      float32
}

// Store performs nearest-neighbor search over a pre-populated corpus of
// documentation chunk embeddings. Indexing the corpus is external to this
// service.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error)
}
