package rag_http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"esg-rag/internal/domain"
	"esg-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AnswerExecutor answers one question end to end.
type AnswerExecutor interface {
	Execute(ctx context.Context, query string) (*domain.RAGResult, error)
}

// RetrieveExecutor serves retrieval without generation.
type RetrieveExecutor interface {
	Execute(ctx context.Context, query string) (*usecase.RetrieveResult, error)
}

type Handler struct {
	answerUsecase   AnswerExecutor
	retrieveUsecase RetrieveExecutor
	documentRepo    domain.DocumentRepository
	jobRepo         domain.JobRepository
}

func NewHandler(
	answerUsecase AnswerExecutor,
	retrieveUsecase RetrieveExecutor,
	documentRepo domain.DocumentRepository,
	jobRepo domain.JobRepository,
) *Handler {
	return &Handler{
		answerUsecase:   answerUsecase,
		retrieveUsecase: retrieveUsecase,
		documentRepo:    documentRepo,
		jobRepo:         jobRepo,
	}
}

// RegisterRoutes wires the handler onto the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/rag/answer", h.Answer)
	e.POST("/v1/rag/retrieve", h.Retrieve)
	e.POST("/v1/rag/answers/bulk", h.BulkAnswer)
	e.GET("/v1/rag/documents", h.ListDocuments)
	e.GET("/v1/rag/jobs/:id", h.GetJob)
	e.POST("/internal/rag/reprocess", h.Reprocess)
}

type AnswerRequest struct {
	Query string `json:"query"`
}

type ChunkResponse struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	Origin       string  `json:"origin"`
	Score        float64 `json:"score"`
}

type AnswerResponse struct {
	Answer       string             `json:"answer"`
	Confidence   int                `json:"confidence"` // 0-100
	TierUsed     int                `json:"tier_used"`
	Insufficient bool               `json:"insufficient"`
	FromCache    bool               `json:"from_cache"`
	Chunks       []ChunkResponse    `json:"chunks"`
	Steps        []domain.TraceStep `json:"steps"`
}

// Answer runs the tiered answer pipeline for one question.
// (POST /v1/rag/answer)
func (h *Handler) Answer(ctx echo.Context) error {
	var req AnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing query"})
	}

	result, err := h.answerUsecase.Execute(ctx.Request().Context(), req.Query)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, AnswerResponse{
		Answer:       result.Answer,
		Confidence:   confidencePercent(result.Confidence),
		TierUsed:     result.TierUsed,
		Insufficient: result.Insufficient,
		FromCache:    result.FromCache,
		Chunks:       chunkResponses(result.Chunks),
		Steps:        result.Steps,
	})
}

type RetrieveRequest struct {
	Query string `json:"query"`
}

type RetrieveResponse struct {
	Chunks     []ChunkResponse `json:"chunks"`
	Confidence int             `json:"confidence"` // 0-100
	TierUsed   int             `json:"tier_used"`
	Variations []string        `json:"variations,omitempty"`
}

// Retrieve returns scored chunks without generation.
// (POST /v1/rag/retrieve)
func (h *Handler) Retrieve(ctx echo.Context) error {
	var req RetrieveRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing query"})
	}

	result, err := h.retrieveUsecase.Execute(ctx.Request().Context(), req.Query)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, RetrieveResponse{
		Chunks:     chunkResponses(result.Chunks),
		Confidence: confidencePercent(result.Confidence),
		TierUsed:   result.TierUsed,
		Variations: result.Variations,
	})
}

type BulkAnswerRequest struct {
	ReportID  string   `json:"report_id"`
	Questions []string `json:"questions"`
}

// BulkAnswer enqueues a disclosure run; answers land in the job record's
// lifecycle, not in this response.
// (POST /v1/rag/answers/bulk)
func (h *Handler) BulkAnswer(ctx echo.Context) error {
	var req BulkAnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if len(req.Questions) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing questions"})
	}

	payload, err := json.Marshal(domain.AnswerDisclosuresPayload{
		ReportID:  req.ReportID,
		Questions: req.Questions,
	})
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return h.enqueue(ctx, domain.JobTypeAnswerDisclosures, payload)
}

type ReprocessRequest struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Text         string `json:"text"`
	ContentType  string `json:"content_type"`
	Force        bool   `json:"force"`
}

// Reprocess enqueues a document for (re)ingestion.
// (POST /internal/rag/reprocess)
func (h *Handler) Reprocess(ctx echo.Context) error {
	var req ReprocessRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.DocumentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing document_id"})
	}
	if req.Text == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing text"})
	}

	payload, err := json.Marshal(domain.ReprocessDocumentPayload{
		DocumentID:   req.DocumentID,
		ContentType:  req.ContentType,
		DocumentName: req.DocumentName,
		Text:         req.Text,
		Force:        req.Force,
	})
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return h.enqueue(ctx, domain.JobTypeReprocessDocument, payload)
}

func (h *Handler) enqueue(ctx echo.Context, jobType string, payload json.RawMessage) error {
	now := time.Now()
	job := domain.Job{
		ID:        uuid.New(),
		JobType:   jobType,
		Payload:   payload,
		Status:    domain.JobStatusPending,
		MaxRetry:  3,
		RunAfter:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String(), "status": "queued"})
}

type JobResponse struct {
	ID        string `json:"id"`
	JobType   string `json:"job_type"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// GetJob reports the status of an enqueued job.
// (GET /v1/rag/jobs/:id)
func (h *Handler) GetJob(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
	}

	job, err := h.jobRepo.GetByID(ctx.Request().Context(), id)
	if err == domain.ErrJobNotFound {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, JobResponse{
		ID:        job.ID.String(),
		JobType:   job.JobType,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	})
}

type DocumentResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type,omitempty"`
	Status      string     `json:"status"`
	ChunkCount  int        `json:"chunk_count"`
	LastError   string     `json:"last_error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// ListDocuments reports what is indexed and in which state.
// (GET /v1/rag/documents)
func (h *Handler) ListDocuments(ctx echo.Context) error {
	docs, err := h.documentRepo.List(ctx.Request().Context(), 500)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, DocumentResponse{
			ID:          doc.ID,
			Name:        doc.Name,
			ContentType: doc.ContentType,
			Status:      doc.Status,
			ChunkCount:  doc.ChunkCount,
			LastError:   doc.LastError,
			ProcessedAt: doc.ProcessedAt,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"documents": responses})
}

func chunkResponses(chunks []domain.ScoredChunk) []ChunkResponse {
	responses := make([]ChunkResponse, 0, len(chunks))
	for _, sc := range chunks {
		responses = append(responses, ChunkResponse{
			ChunkID:      sc.Chunk.ID.String(),
			DocumentID:   sc.Chunk.DocumentID,
			DocumentName: sc.Chunk.DocumentName,
			ChunkIndex:   sc.Chunk.ChunkIndex,
			Text:         sc.Chunk.Content,
			Origin:       string(sc.Origin),
			Score:        sc.Fused,
		})
	}
	return responses
}

func confidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}
