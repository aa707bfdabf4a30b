package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/services"
)

var (
	searchLimit int
	searchFile  string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [phrase]",
	Short: "Search indexed passages",
	Long: `Performs semantic search over the indexed document chunks and prints
the best-matching passages with their filename and page number.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", services.DefaultSearchLimit, "maximum number of passages")
	searchCmd.Flags().StringVarP(&searchFile, "file", "f", "", "restrict results to a single document filename")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	phrase := args[0]

	if retriever == nil {
		return errors.New("search service not configured")
	}

	limit := searchLimit
	if !cmd.Flags().Changed("limit") && configStore != nil {
		if v := configStore.GetInt(driven.ConfigKeySearchLimit); v > 0 {
			limit = v
		}
	}

	passages, err := retriever.Search(cmd.Context(), phrase, searchFile, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, passages)
	}

	return outputSearchTable(cmd, passages)
}

func outputSearchJSON(cmd *cobra.Command, passages []domain.Passage) error {
	data, err := json.MarshalIndent(passages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, passages []domain.Passage) error {
	if len(passages) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, passage := range passages {
		cmd.Printf("  [%d] %s, page %d (%.2f)\n", i+1, passage.Filename, passage.PageNumber, passage.Score)
		cmd.Printf("      %s\n", passage.Text)
		cmd.Println()
	}

	return nil
}
