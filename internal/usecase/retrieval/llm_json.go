package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Model output parsing. Models wrap JSON in code fences or prose often
// enough that every parse site strips decoration first, then fails closed:
// callers substitute a safe default rather than propagate malformed output.

// stripCodeFences removes a surrounding ```json ... ``` block if present and
// trims everything before the first JSON bracket.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	if idx := strings.IndexAny(s, "[{"); idx > 0 {
		s = s[idx:]
	}
	return strings.TrimSpace(s)
}

func parseStringArray(raw string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("expected JSON string array: %w", err)
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("string array is empty")
	}
	return cleaned, nil
}

func parseCritiqueScore(raw string) (int, error) {
	var out struct {
		Score    *int   `json:"score"`
		Critique string `json:"critique"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return 0, fmt.Errorf("expected critique JSON object: %w", err)
	}
	if out.Score == nil {
		return 0, fmt.Errorf("critique object missing score")
	}
	score := *out.Score
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("critique score %d out of range", score)
	}
	return score, nil
}

// parseRanking validates that the ranking is a permutation-prefix over n
// candidates: indices in range, no duplicates. Missing indices are appended
// in their original order so no candidate is silently dropped.
func parseRanking(raw string, n int) ([]int, error) {
	var out struct {
		Ranking []int `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("expected ranking JSON object: %w", err)
	}
	if len(out.Ranking) == 0 {
		return nil, fmt.Errorf("ranking is empty")
	}

	seen := make(map[int]bool, n)
	var ranking []int
	for _, idx := range out.Ranking {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("ranking index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			return nil, fmt.Errorf("ranking index %d duplicated", idx)
		}
		seen[idx] = true
		ranking = append(ranking, idx)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			ranking = append(ranking, i)
		}
	}
	return ranking, nil
}
