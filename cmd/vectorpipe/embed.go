package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/trellisearch/vectorpipe"
	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/logger"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Embed texts and print the vectors as JSON",
	Long: `Embeds the given texts (or lines from stdin when no arguments are
given) and prints one JSON vector per line. Use --sparse for term-weight
vectors instead of dense embeddings, and --query to encode with the
query prefix.`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().Bool("sparse", false, "produce sparse term-weight vectors")
	embedCmd.Flags().Bool("local", false, "score sparse vectors locally with BM25 instead of calling the model server")
	embedCmd.Flags().Bool("query", false, "encode in query mode")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	texts := args
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
	if len(texts) == 0 {
		return fmt.Errorf("no texts to embed")
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

	items := make([]types.TextItem, len(texts))
	for i, t := range texts {
		items[i] = types.TextItem{Content: t}
	}

	mode := scoring.ModeDoc
	if query, _ := cmd.Flags().GetBool("query"); query {
		mode = scoring.ModeQuery
	}

	sparse, _ := cmd.Flags().GetBool("sparse")
	local, _ := cmd.Flags().GetBool("local")
	switch {
	case sparse && local:
		return printVectors(engine.Sparse().ScoreLocal(items))
	case sparse:
		vectors, err := engine.Sparse().EmbedAll(cmd.Context(), items, mode)
		if err != nil {
			return err
		}
		return printVectors(vectors)
	case local:
		return fmt.Errorf("--local requires --sparse")
	default:
		vectors, err := engine.Dense().EmbedAll(cmd.Context(), items, mode)
		if err != nil {
			return err
		}
		return printVectors(vectors)
	}
}

func printVectors[T any](vectors []T) error {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for _, v := range vectors {
		line, err := sonic.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to render vector: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}
