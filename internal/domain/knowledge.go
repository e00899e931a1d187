package domain

// Passage is a retrieved text snippet used to ground a prompt.
type Passage struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// DocumentChunk is a stored slice of the knowledge base with its embedding.
type DocumentChunk struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Embedding  []float32 `json:"-"`
	ChunkIndex int       `json:"chunk_index"`
}
