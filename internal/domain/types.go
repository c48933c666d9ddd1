package domain

import "encoding/json"

// Collection is a named, queryable index of a document's content owned by
// the indexing service. Its existence is the canonical marker that a book
// is usable for chat.
type Collection struct {
	Name        string `json:"name"`
	PointsCount int    `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
}

// Chapter is one entry of a processed book's structural decomposition.
// ChapterID is 0-based and order-significant.
type Chapter struct {
	ChapterID  int    `json:"chapter_id"`
	Title      string `json:"title"`
	ImageCount int    `json:"image_count"`
}

// ProcessedBook is the chapter/image decomposition of a document owned by
// the processing service. It may exist without a matching Collection when
// indexing has not run or failed.
type ProcessedBook struct {
	Status        string    `json:"status"`
	BookName      string    `json:"book_name"`
	TotalChapters int       `json:"total_chapters"`
	TotalImages   int       `json:"total_images"`
	Chapters      []Chapter `json:"chapters"`
}

// ChapterContent is the full payload of one chapter, fetched lazily and
// never cached beyond the currently open view.
type ChapterContent struct {
	ChapterID  int             `json:"chapter_id"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	ImageCount int             `json:"image_count"`
	Images     json.RawMessage `json:"images,omitempty"`
}

// UploadResult is the processing service's response to a document upload.
// BookName is the server-assigned identifier and takes precedence over any
// name derived locally from the filename.
type UploadResult struct {
	Message       string `json:"message"`
	BookName      string `json:"book_name"`
	TotalChapters int    `json:"total_chapters"`
	TotalImages   int    `json:"total_images"`
}

// ScanResult reports which books a bulk scan-and-index run picked up.
type ScanResult struct {
	Message string   `json:"message"`
	Books   []string `json:"books"`
	Status  string   `json:"status"`
}

// Artifact is an opaque evidence object returned with an assistant reply.
// It is passed through uninterpreted.
type Artifact map[string]any

// Role classifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ChatReply is the assistant endpoint's response to one chat turn.
type ChatReply struct {
	Response  string     `json:"response"`
	Artifacts []Artifact `json:"artifacts"`
}

// SearchRequest asks the indexing service for semantically similar chunks.
type SearchRequest struct {
	CollectionName string   `json:"collection_name"`
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// SearchHit is one ranked result of a semantic search.
type SearchHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// SearchResponse holds the ranked results of a semantic search.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
	Total   int         `json:"total"`
}
