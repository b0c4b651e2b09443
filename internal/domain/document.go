package domain

import "time"

// Document processing states.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// Document is the ingestion record for one source document. The extracted
// text itself lives upstream; this tracks what the engine has indexed.
type Document struct {
	ID          string // upstream identifier, opaque to the engine
	Name        string
	ContentType string // declared source type, e.g. text/csv; may be empty
	SourceHash  string // content hash for idempotent reprocessing
	ChunkCount  int
	Status      string
	LastError   string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
