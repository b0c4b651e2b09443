package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job types handled by the background worker.
const (
	JobTypeReprocessDocument = "reprocess_document"
	JobTypeAnswerDisclosures = "answer_disclosures"
)

// Job states.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job is one unit of deferred work: document reprocessing or a bulk answer
// run. Jobs are acquired with row locks so multiple workers never run the
// same job twice.
type Job struct {
	ID        uuid.UUID
	JobType   string
	Payload   json.RawMessage
	Status    string
	Attempts  int
	MaxRetry  int
	LastError string
	RunAfter  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReprocessDocumentPayload is the payload for JobTypeReprocessDocument.
type ReprocessDocumentPayload struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Text         string `json:"text"`
	ContentType  string `json:"content_type,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

// AnswerDisclosuresPayload is the payload for JobTypeAnswerDisclosures.
type AnswerDisclosuresPayload struct {
	ReportID  string   `json:"report_id"`
	Questions []string `json:"questions"`
}
