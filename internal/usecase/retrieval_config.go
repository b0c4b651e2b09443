package usecase

import (
	"fmt"

	"esg-rag/internal/infra/config"
	"esg-rag/internal/usecase/retrieval"
)

// FusionConfig holds the lexical/semantic score fusion settings.
// The 0.4/0.6 split slightly favors semantic matches; ESG questions tend to
// paraphrase the disclosures they ask about, which pure term overlap misses.
type FusionConfig struct {
	// LexicalWeight scales the normalized BM25 score.
	LexicalWeight float64
	// SemanticWeight scales the cosine similarity.
	SemanticWeight float64
	// K1 and B are the BM25 shape parameters.
	K1 float64
	B  float64
}

// DefaultFusionConfig returns the production fusion settings.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		LexicalWeight:  0.4,
		SemanticWeight: 0.6,
		K1:             1.5,
		B:              0.75,
	}
}

// Validate checks the fusion configuration.
func (c FusionConfig) Validate() error {
	if c.LexicalWeight < 0 || c.SemanticWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative, got %f/%f", c.LexicalWeight, c.SemanticWeight)
	}
	if c.LexicalWeight+c.SemanticWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if c.K1 <= 0 {
		return fmt.Errorf("bm25 k1 must be positive, got %f", c.K1)
	}
	if c.B < 0 || c.B > 1 {
		return fmt.Errorf("bm25 b must be in [0.0, 1.0], got %f", c.B)
	}
	return nil
}

// TierConfig controls tier escalation. A tier runs only when the previous
// tier's confidence falls below its threshold; a threshold of 1.0 makes the
// tier run unconditionally, 0.0 disables it.
type TierConfig struct {
	Tier2Threshold float64
	Tier3Threshold float64
	// NeighborWeight discounts the scores of neighbor-expanded chunks.
	NeighborWeight float64
	// Variations is how many query rewrites tier 2 requests from the LLM.
	Variations int
	// ConfidenceBonus is added to confidence after a completed tier 3 pass,
	// capped at ConfidenceCeiling.
	ConfidenceBonus   float64
	ConfidenceCeiling float64
}

// DefaultTierConfig returns the production escalation settings.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		Tier2Threshold:    0.70,
		Tier3Threshold:    0.70,
		NeighborWeight:    0.7,
		Variations:        2,
		ConfidenceBonus:   0.15,
		ConfidenceCeiling: 0.95,
	}
}

// Validate checks the tier configuration.
func (c TierConfig) Validate() error {
	if c.Tier2Threshold < 0 || c.Tier2Threshold > 1 {
		return fmt.Errorf("tier2 threshold must be in [0.0, 1.0], got %f", c.Tier2Threshold)
	}
	if c.Tier3Threshold < 0 || c.Tier3Threshold > 1 {
		return fmt.Errorf("tier3 threshold must be in [0.0, 1.0], got %f", c.Tier3Threshold)
	}
	if c.NeighborWeight < 0 || c.NeighborWeight > 1 {
		return fmt.Errorf("neighbor weight must be in [0.0, 1.0], got %f", c.NeighborWeight)
	}
	if c.Variations < 0 {
		return fmt.Errorf("variations must be non-negative, got %d", c.Variations)
	}
	return nil
}

// RetrievalConfig holds all tunable parameters of the retrieval pipeline.
type RetrievalConfig struct {
	// TopK is the number of chunks kept after fusion.
	TopK int
	// CandidatePool bounds how many chunks are loaded as the scoring corpus.
	CandidatePool int

	Fusion FusionConfig
	Tiers  TierConfig
}

// DefaultRetrievalConfig returns the production retrieval settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:          10,
		CandidatePool: 2000,
		Fusion:        DefaultFusionConfig(),
		Tiers:         DefaultTierConfig(),
	}
}

// RetrievalConfigFromEnv maps the loaded environment config onto retrieval
// settings, keeping the defaults for anything not exposed as an env var.
func RetrievalConfigFromEnv(cfg *config.Config) RetrievalConfig {
	rc := DefaultRetrievalConfig()
	rc.TopK = cfg.TopK
	rc.CandidatePool = cfg.CandidatePool
	rc.Fusion.LexicalWeight = cfg.LexicalWeight
	rc.Fusion.SemanticWeight = cfg.SemanticWeight
	rc.Fusion.K1 = cfg.BM25K1
	rc.Fusion.B = cfg.BM25B
	rc.Tiers.Tier2Threshold = cfg.Tier2Threshold
	rc.Tiers.Tier3Threshold = cfg.Tier3Threshold
	return rc
}

// Params flattens the config into the retrieval pipeline's parameter set.
func (c RetrievalConfig) Params() retrieval.Params {
	return retrieval.Params{
		TopK:           c.TopK,
		CandidatePool:  c.CandidatePool,
		LexicalWeight:  c.Fusion.LexicalWeight,
		SemanticWeight: c.Fusion.SemanticWeight,
		K1:             c.Fusion.K1,
		B:              c.Fusion.B,
		NeighborWeight: c.Tiers.NeighborWeight,
		Variations:     c.Tiers.Variations,
	}
}

// Validate checks if the configuration values are within acceptable ranges.
func (c RetrievalConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", c.TopK)
	}
	if c.CandidatePool <= 0 {
		return fmt.Errorf("candidate pool must be positive, got %d", c.CandidatePool)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion config invalid: %w", err)
	}
	if err := c.Tiers.Validate(); err != nil {
		return fmt.Errorf("tier config invalid: %w", err)
	}
	return nil
}
