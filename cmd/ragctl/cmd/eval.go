package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type evalCase struct {
	Query             string   `json:"query"`
	ExpectedDocuments []string `json:"expected_documents"`
}

type retrieveResponse struct {
	Chunks []struct {
		DocumentID string `json:"document_id"`
	} `json:"chunks"`
	Confidence int `json:"confidence"`
	TierUsed   int `json:"tier_used"`
}

var evalCmd = &cobra.Command{
	Use:   "eval <cases.json>",
	Short: "Score retrieval quality against labeled cases",
	Long: `Run retrieval for each labeled case and report hit rate and mean
reciprocal rank. The cases file is a JSON array of
{"query": ..., "expected_documents": [...]} objects.

Example:
  ragctl eval --rate 60 eval/esrs_cases.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().Int("rate", 60, "max retrieve requests per minute")
	evalCmd.Flags().Bool("verbose", false, "print per-case results")
}

func runEval(cmd *cobra.Command, args []string) error {
	perMinute, _ := cmd.Flags().GetInt("rate")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if perMinute <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var cases []evalCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}
	if len(cases) == 0 {
		return fmt.Errorf("%s contains no cases", args[0])
	}

	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	client := httpClient()

	var hits int
	var reciprocalSum float64
	for _, c := range cases {
		if err := limiter.Wait(cmd.Context()); err != nil {
			return err
		}

		var resp retrieveResponse
		err := postJSON(client, "/v1/rag/retrieve", map[string]string{"query": c.Query}, &resp)
		if err != nil {
			return err
		}

		rank := firstExpectedRank(resp, c.ExpectedDocuments)
		if rank > 0 {
			hits++
			reciprocalSum += 1.0 / float64(rank)
		}
		if verbose {
			status := "miss"
			if rank > 0 {
				status = fmt.Sprintf("rank %d", rank)
			}
			fmt.Printf("%-8s tier %d  %s\n", status, resp.TierUsed, c.Query)
		}
	}

	fmt.Printf("cases:    %d\n", len(cases))
	fmt.Printf("hit rate: %.3f\n", float64(hits)/float64(len(cases)))
	fmt.Printf("mrr:      %.3f\n", reciprocalSum/float64(len(cases)))
	return nil
}

func firstExpectedRank(resp retrieveResponse, expected []string) int {
	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}
	for i, chunk := range resp.Chunks {
		if want[chunk.DocumentID] {
			return i + 1
		}
	}
	return 0
}
