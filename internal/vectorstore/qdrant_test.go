package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQdrantSearchSendsQueryAndParsesPoints(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody qdrantQueryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{
			"result": {
				"points": [
					{"score": 0.91, "payload": {"text": "first chunk", "title": "Install Guide", "source_url": "https://docs.example.com/install", "doc_path": "guide/install.md", "header_path": ["Guide", "Install"]}},
					{"score": 0.75, "payload": {"text": "second chunk", "title": "FAQ"}}
				]
			}
		}`))
	}))
	defer server.Close()

	store := NewQdrantStore(QdrantConfig{
		URL:        server.URL,
		APIKey:     "secret",
		Collection: "docs",
	})
	chunks, err := store.Search(context.Background(), []float32{0.1, 0.2}, 4)
	require.NoError(t, err)

	require.Equal(t, "/collections/docs/points/query", gotPath)
	require.Equal(t, "secret", gotAPIKey)
	require.Equal(t, []float32{0.1, 0.2}, gotBody.Query)
	require.Equal(t, 4, gotBody.Limit)
	require.True(t, gotBody.WithPayload)

	require.Len(t, chunks, 2)
	require.Equal(t, "first chunk", chunks[0].Text)
	require.Equal(t, "Install Guide", chunks[0].Title)
	require.Equal(t, "https://docs.example.com/install", chunks[0].SourceURL)
	require.Equal(t, "guide/install.md", chunks[0].DocPath)
	require.Equal(t, []string{"Guide", "Install"}, chunks[0].HeaderPath)
	require.InDelta(t, 0.91, chunks[0].Score, 0.0001)
	require.Equal(t, "FAQ", chunks[1].Title)
}

func TestQdrantSearchOmitsAPIKeyHeaderWhenUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Api-Key"]
		require.False(t, present)
		_, _ = w.Write([]byte(`{"result":{"points":[]}}`))
	}))
	defer server.Close()

	store := NewQdrantStore(QdrantConfig{URL: server.URL, Collection: "docs"})
	chunks, err := store.Search(context.Background(), []float32{0.1}, 6)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestQdrantSearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	store := NewQdrantStore(QdrantConfig{URL: server.URL, Collection: "missing"})
	_, err := store.Search(context.Background(), []float32{0.1}, 6)
	require.Error(t, err)
	require.Contains(t, err.Error(), "qdrant query failed")
}
