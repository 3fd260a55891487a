package model

// Source is one retrieved documentation chunk as returned to the client.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	DocPath string  `json:"doc_path,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float32 `json:"score"`
	Snippet string  `json:"snippet"`
}
