package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trellisearch/vectorpipe"
	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/logger"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

var rerankCmd = &cobra.Command{
	Use:   "rerank <query> [candidate...]",
	Short: "Rerank candidate texts against a query",
	Long: `Scores each candidate text against the query with the cross-encoder
and prints the candidates in descending relevance order. Candidates are
taken from the arguments, or from stdin (one per line) when only the
query is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRerank,
}

func init() {
	rerankCmd.Flags().Int("top", 0, "keep only the top N results (0 keeps all)")
	rootCmd.AddCommand(rerankCmd)
}

func runRerank(cmd *cobra.Command, args []string) error {
	query := args[0]
	texts := args[1:]
	if len(texts) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				texts = append(texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	engine, err := vectorpipe.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer engine.Close()

	candidates := make([]types.ScoredCandidate, len(texts))
	for i, t := range texts {
		candidates[i] = types.ScoredCandidate{Text: t}
	}

	top, _ := cmd.Flags().GetInt("top")
	ranked, err := engine.Reranker().Rerank(cmd.Context(), query, candidates, top)
	if err != nil {
		return err
	}

	for _, c := range ranked {
		fmt.Fprintf(os.Stdout, "%.6f\t%s\n", c.Score, c.Text)
	}
	return nil
}
