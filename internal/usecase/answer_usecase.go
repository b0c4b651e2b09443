package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"esg-rag/internal/domain"
	"esg-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// critiqueAcceptThreshold is the minimum critique score at which the draft
// answer is kept without a refinement pass.
const critiqueAcceptThreshold = 80

// AnswerUsecase is the tiered answer orchestrator: cheap hybrid retrieval
// first, query expansion when confidence is low, and a self-reflection
// refinement pass when it stays low.
type AnswerUsecase struct {
	pipeline  *retrieval.Pipeline
	generator domain.LLMClient
	traces    domain.SearchTraceRepository
	prompts   PromptBuilder
	cfg       RetrievalConfig
	maxTokens int
	cache     *lru.Cache[string, domain.RAGResult]
	logger    *slog.Logger
}

// NewAnswerUsecase wires the orchestrator. traces may be nil to disable
// retrieval logging; cacheSize <= 0 disables the answer cache.
func NewAnswerUsecase(
	pipeline *retrieval.Pipeline,
	generator domain.LLMClient,
	traces domain.SearchTraceRepository,
	prompts PromptBuilder,
	cfg RetrievalConfig,
	maxTokens int,
	cacheSize int,
	logger *slog.Logger,
) (*AnswerUsecase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	var cache *lru.Cache[string, domain.RAGResult]
	if cacheSize > 0 {
		var err error
		cache, err = lru.New[string, domain.RAGResult](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create answer cache: %w", err)
		}
	}

	return &AnswerUsecase{
		pipeline:  pipeline,
		generator: generator,
		traces:    traces,
		prompts:   prompts,
		cfg:       cfg,
		maxTokens: maxTokens,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Execute answers one question, escalating through the tiers as needed.
func (u *AnswerUsecase) Execute(ctx context.Context, query string) (*domain.RAGResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	if cached, ok := u.cacheGet(query); ok {
		u.logger.Info("answer_cache_hit", slog.String("query", truncateForLog(query)))
		return cached, nil
	}

	start := time.Now()
	trace := &stepTrace{}

	result, err := u.answer(ctx, query, trace)
	if err != nil {
		return nil, err
	}
	result.Steps = trace.steps

	u.recordSearchTrace(ctx, query, result, time.Since(start))
	u.cachePut(query, result)

	u.logger.Info("answer_completed",
		slog.String("query", truncateForLog(query)),
		slog.Int("tier_used", result.TierUsed),
		slog.Float64("confidence", result.Confidence),
		slog.Int("chunk_count", len(result.Chunks)),
		slog.Bool("insufficient", result.Insufficient),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (u *AnswerUsecase) answer(ctx context.Context, query string, trace *stepTrace) (*domain.RAGResult, error) {
	// Tier 1: single-query hybrid retrieval.
	trace.start("hybrid_retrieval")
	tier1, err := u.pipeline.Retrieve(ctx, query)
	if err != nil {
		trace.fail("hybrid_retrieval", err)
		return nil, fmt.Errorf("hybrid retrieval failed: %w", err)
	}
	trace.done("hybrid_retrieval", map[string]any{
		"chunk_count": len(tier1.Chunks),
		"confidence":  tier1.Confidence,
	})

	chunks := tier1.Chunks
	confidence := tier1.Confidence
	tierUsed := 1

	// Tier 2: multi-query expansion plus neighbor context.
	if confidence < u.cfg.Tiers.Tier2Threshold {
		trace.start("query_expansion")
		variations := u.pipeline.GenerateVariations(ctx, query)
		tier2, err := u.pipeline.RetrieveMulti(ctx, query, variations)
		if err != nil {
			// tier 1 results are still usable
			trace.fail("query_expansion", err)
			u.logger.Warn("query_expansion_failed_using_tier1",
				slog.String("error", err.Error()),
			)
		} else {
			chunks = u.pipeline.ExpandNeighbors(ctx, tier2.Chunks)
			confidence = tier2.Confidence
			tierUsed = 2
			trace.done("query_expansion", map[string]any{
				"variations":  len(variations),
				"chunk_count": len(chunks),
				"confidence":  confidence,
			})
		}
	}

	if len(chunks) == 0 {
		trace.done("generation", map[string]any{"skipped": "no retrieval results"})
		return &domain.RAGResult{
			Answer:       domain.InsufficientInfoSentinel,
			Confidence:   0,
			TierUsed:     tierUsed,
			Insufficient: true,
		}, nil
	}

	trace.start("generation")
	answer, err := u.generate(ctx, query, chunks)
	if err != nil {
		trace.fail("generation", err)
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	trace.done("generation", nil)

	// Tier 3: self-reflection refinement.
	if confidence < u.cfg.Tiers.Tier3Threshold {
		trace.start("self_reflection")
		answer, chunks, confidence = u.refine(ctx, query, answer, chunks, confidence, trace)
		tierUsed = 3
	}

	return &domain.RAGResult{
		Answer:       answer,
		Confidence:   confidence,
		TierUsed:     tierUsed,
		Chunks:       chunks,
		Insufficient: strings.Contains(answer, domain.InsufficientInfoSentinel),
	}, nil
}

// refine critiques the draft and, when it falls short, retrieves against a
// reformulated query, reranks the merged evidence and regenerates with the
// original query. Every sub-step is non-fatal; the worst case returns the
// draft unchanged.
func (u *AnswerUsecase) refine(ctx context.Context, query, draft string, chunks []domain.ScoredChunk, confidence float64, trace *stepTrace) (string, []domain.ScoredChunk, float64) {
	critique := u.pipeline.Critique(ctx, query, draft, chunks)
	if critique >= critiqueAcceptThreshold {
		trace.done("self_reflection", map[string]any{
			"critique_score": critique,
			"refined":        false,
		})
		return draft, chunks, confidence
	}

	reformulated := u.pipeline.Reformulate(ctx, query)
	extra, err := u.pipeline.Retrieve(ctx, reformulated)
	if err != nil {
		u.logger.Warn("refinement_retrieval_failed",
			slog.String("error", err.Error()),
		)
	} else {
		chunks = mergeChunks(chunks, extra.Chunks)
	}

	chunks = u.pipeline.Rerank(ctx, query, chunks)

	answer, err := u.generate(ctx, query, chunks)
	if err != nil {
		trace.fail("self_reflection", err)
		u.logger.Warn("regeneration_failed_keeping_draft",
			slog.String("error", err.Error()),
		)
		return draft, chunks, confidence
	}

	refined := confidence + u.cfg.Tiers.ConfidenceBonus
	if refined > u.cfg.Tiers.ConfidenceCeiling {
		refined = u.cfg.Tiers.ConfidenceCeiling
	}
	if refined < confidence {
		refined = confidence
	}

	trace.done("self_reflection", map[string]any{
		"critique_score":     critique,
		"refined":            true,
		"reformulated_query": reformulated,
		"chunk_count":        len(chunks),
		"confidence":         refined,
	})
	return answer, chunks, refined
}

func (u *AnswerUsecase) generate(ctx context.Context, query string, chunks []domain.ScoredChunk) (string, error) {
	messages, err := u.prompts.Build(PromptInput{
		Query:    query,
		Contexts: promptContexts(readingOrder(chunks)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	answer, err := u.generator.Generate(ctx, messages, domain.GenerateOptions{
		Temperature: 0.0,
		MaxTokens:   u.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// mergeChunks appends extras not already present, keyed by chunk identity.
func mergeChunks(existing, extra []domain.ScoredChunk) []domain.ScoredChunk {
	seen := make(map[uuid.UUID]bool, len(existing))
	for _, c := range existing {
		seen[c.Chunk.ID] = true
	}
	for _, c := range extra {
		if seen[c.Chunk.ID] {
			continue
		}
		seen[c.Chunk.ID] = true
		existing = append(existing, c)
	}
	return existing
}

func (u *AnswerUsecase) cacheGet(query string) (*domain.RAGResult, bool) {
	if u.cache == nil {
		return nil, false
	}
	result, ok := u.cache.Get(cacheKey(query))
	if !ok {
		return nil, false
	}
	result.FromCache = true
	return &result, true
}

func (u *AnswerUsecase) cachePut(query string, result *domain.RAGResult) {
	if u.cache == nil {
		return
	}
	u.cache.Add(cacheKey(query), *result)
}

func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func (u *AnswerUsecase) recordSearchTrace(ctx context.Context, query string, result *domain.RAGResult, elapsed time.Duration) {
	if u.traces == nil {
		return
	}
	chunkIDs := make([]uuid.UUID, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		chunkIDs = append(chunkIDs, c.Chunk.ID)
	}
	err := u.traces.Insert(ctx, domain.SearchTrace{
		ID:         uuid.New(),
		Query:      query,
		TierUsed:   result.TierUsed,
		Confidence: result.Confidence,
		ChunkIDs:   chunkIDs,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		u.logger.Warn("search_trace_insert_failed",
			slog.String("error", err.Error()),
		)
	}
}

// stepTrace accumulates pipeline steps for the response payload.
type stepTrace struct {
	steps []domain.TraceStep
}

func (t *stepTrace) start(step string) {
	t.steps = append(t.steps, domain.TraceStep{Step: step, Status: domain.StepInProgress})
}

func (t *stepTrace) done(step string, result map[string]any) {
	t.finish(step, domain.StepCompleted, "", result)
}

func (t *stepTrace) fail(step string, err error) {
	t.finish(step, domain.StepError, err.Error(), nil)
}

// finish updates the in_progress entry for step, or appends one when the
// step never recorded a start.
func (t *stepTrace) finish(step, status, message string, result map[string]any) {
	for i := len(t.steps) - 1; i >= 0; i-- {
		if t.steps[i].Step == step && t.steps[i].Status == domain.StepInProgress {
			t.steps[i].Status = status
			t.steps[i].Message = message
			t.steps[i].Result = result
			return
		}
	}
	t.steps = append(t.steps, domain.TraceStep{Step: step, Status: status, Message: message, Result: result})
}

func truncateForLog(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
