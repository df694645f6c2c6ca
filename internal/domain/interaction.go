package domain

import (
	"time"

	"github.com/google/uuid"
)

type InteractionType string

const (
	InteractionPost    InteractionType = "authored_post"
	InteractionComment InteractionType = "authored_comment"
	InteractionReply   InteractionType = "authored_reply"
)

func ValidInteractionType(t string) bool {
	switch InteractionType(t) {
	case InteractionPost, InteractionComment, InteractionReply:
		return true
	}
	return false
}

// MetadataSubreddit is the context metadata key used by the search filter.
const MetadataSubreddit = "subreddit"

// Interaction is one self-authored statement in the persona's episodic memory.
// Rows are immutable apart from the lazily attached embedding.
type Interaction struct {
	ID             uuid.UUID       `json:"id"`
	PersonaID      uuid.UUID       `json:"persona_id"`
	Seq            int64           `json:"seq"`
	Content        string          `json:"content"`
	Type           InteractionType `json:"type"`
	ExternalRef    string          `json:"external_ref"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Embedding      []float32       `json:"-"`
	EmbeddingModel string          `json:"embedding_model,omitempty"`
	EmbeddedAt     *time.Time      `json:"embedded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Subreddit returns the community label from metadata, or "".
func (i *Interaction) Subreddit() string {
	if i.Metadata == nil {
		return ""
	}
	s, _ := i.Metadata[MetadataSubreddit].(string)
	return s
}

// InteractionMatch is a search hit.
type InteractionMatch struct {
	Interaction
	Score float64 `json:"score"`
}

// SearchQuery drives SearchHistory. Exactly one of Text or Vector is set.
type SearchQuery struct {
	Text      string
	Vector    []float32
	K         int
	Subreddit string
}

// EmbeddingStats summarises a persona's embedded interactions.
type EmbeddingStats struct {
	Count  int
	MaxSeq int64
}

// MaxEmbedAttempts is how many failed embedding attempts an interaction gets
// before the background worker stops picking it up.
const MaxEmbedAttempts = 5

// InteractionCursor pages through a persona's embedded interactions in Seq order.
type InteractionCursor struct {
	AfterSeq int64
	Limit    int
}
