package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type answerResponse struct {
	Answer       string `json:"answer"`
	Confidence   int    `json:"confidence"`
	TierUsed     int    `json:"tier_used"`
	Insufficient bool   `json:"insufficient"`
	FromCache    bool   `json:"from_cache"`
	Chunks       []struct {
		DocumentName string  `json:"document_name"`
		ChunkIndex   int     `json:"chunk_index"`
		Origin       string  `json:"origin"`
		Score        float64 `json:"score"`
	} `json:"chunks"`
}

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Ask one question against the indexed reports",
	Long: `Run the full tiered answer pipeline for a single question and print
the answer with its confidence and sources.

Examples:
  ragctl answer "What were scope 1 emissions in FY2024?"
  ragctl answer --json "board gender diversity"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnswer,
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerCmd.Flags().Bool("json", false, "output the raw response as JSON")
}

func runAnswer(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	question := strings.Join(args, " ")

	var resp answerResponse
	err := postJSON(httpClient(), "/v1/rag/answer", map[string]string{"query": question}, &resp)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	fmt.Printf("\nconfidence: %d%%  tier: %d", resp.Confidence, resp.TierUsed)
	if resp.FromCache {
		fmt.Print("  (cached)")
	}
	fmt.Println()
	if resp.Insufficient {
		return nil
	}
	for _, c := range resp.Chunks {
		fmt.Printf("  [%s] %s chunk %d (%.3f)\n", c.Origin, c.DocumentName, c.ChunkIndex, c.Score)
	}
	return nil
}
