package domain

import (
	"time"

	"github.com/google/uuid"
)

// InsufficientInfoSentinel is the exact phrase the generation prompt
// instructs the model to emit when the retrieved context cannot support an
// answer. Callers match on it to distinguish grounded answers from refusals.
const InsufficientInfoSentinel = "The provided documents do not contain sufficient information to answer this question."

// Trace step statuses.
const (
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepError      = "error"
)

// TraceStep records one stage of the answer pipeline for observability.
type TraceStep struct {
	Step    string         `json:"step"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

// RAGResult is the full outcome of one answer request.
type RAGResult struct {
	Answer       string
	Confidence   float64 // 0..1
	TierUsed     int     // highest tier that ran: 1, 2 or 3
	Chunks       []ScoredChunk
	Steps        []TraceStep
	FromCache    bool
	Insufficient bool
}

// SearchTrace is the persisted record of one retrieval, kept for offline
// quality analysis.
type SearchTrace struct {
	ID         uuid.UUID
	Query      string
	TierUsed   int
	Confidence float64
	ChunkIDs   []uuid.UUID
	DurationMs int64
	CreatedAt  time.Time
}
