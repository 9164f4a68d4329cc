package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docchat/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the indexed documents",
	Long: `Search for the passages most similar to a query. The index is built first
if it is missing or stale.

Examples:
  docchat query -q "capital of France"
  docchat query -q "quarterly revenue" --top-k 10 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}

	ws := a.workspace("")
	if _, err := a.load(ctx, ws); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	if !ws.HasIndex() {
		return fmt.Errorf("nothing indexed. Run 'docchat upload' first")
	}

	topK := a.cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	chunks, err := a.retrieve.SearchWorkspace(ctx, ws, queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(usecase.ToResults(chunks, 0), "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(chunks), queryText)
	for i, r := range usecase.ToResults(chunks, 500) {
		fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, sourceLabel(r.Source, r.Page), r.Score)
		fmt.Println(r.Text)
		fmt.Println()
	}
	return nil
}
