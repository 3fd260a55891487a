package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

type QdrantStore struct {
	cfg    QdrantConfig
	client *http.Client
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &QdrantStore{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type qdrantQueryRequest struct {
	Query       []float32 `json:"query"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type qdrantPayload struct {
	Text       string   `json:"text"`
	Title      string   `json:"title"`
	SourceURL  string   `json:"source_url"`
	DocPath    string   `json:"doc_path"`
	HeaderPath []string `json:"header_path"`
}

type qdrantQueryResponse struct {
	Result struct {
		Points []struct {
			Score   float32       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	body, err := json.Marshal(qdrantQueryRequest{
		Query:       vector,
		Limit:       topK,
		WithPayload: true,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/query",
		strings.TrimRight(s.cfg.URL, "/"), s.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant query failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	var out qdrantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, len(out.Result.Points))
	for _, point := range out.Result.Points {
		chunks = append(chunks, Chunk{
			Title:      point.Payload.Title,
			SourceURL:  point.Payload.SourceURL,
			DocPath:    point.Payload.DocPath,
			HeaderPath: point.Payload.HeaderPath,
			Text:       point.Payload.Text,
			Score:      point.Score,
		})
	}
	return chunks, nil
}
