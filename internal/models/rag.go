package models

// Distance is the similarity metric of a collection.
type Distance string

const (
	Cosine    Distance = "cosine"
	Dot       Distance = "dot"
	Euclidean Distance = "euclid"
)

// Valid reports whether d is a supported metric.
func (d Distance) Valid() bool {
	switch d {
	case Cosine, Dot, Euclidean:
		return true
	}
	return false
}

// IndexPoint is a vector plus its payload as stored in a collection.
type IndexPoint struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// ScoredResult is a search hit. Higher scores are more similar.
type ScoredResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Source returns the hit's source identifier or "Unknown".
func (r ScoredResult) Source() string {
	return sourceOf(r.Metadata)
}

// Filter restricts a search to points whose metadata has exactly these values.
type Filter map[string]any

// CollectionStats describes a collection.
type CollectionStats struct {
	Name        string `json:"collectionName"`
	PointCount  int64  `json:"pointsCount"`
	VectorCount int64  `json:"vectorsCount"`
	Status      string `json:"status"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one side of a question/answer exchange.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is a role-tagged prompt message sent to the language model.
type Message struct {
	Role    Role
	Content string
}

// Source attributes part of an answer to a retrieved passage.
type Source struct {
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

// QueryResult is what the agent returns for every question, failed or not.
type QueryResult struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextUsed bool     `json:"contextUsed"`
	Error       string   `json:"error,omitempty"`
}
