package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trellisearch/vectorpipe"
	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/logger"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check connectivity to the configured model servers",
	Long: `Sends a single probe request to each configured capability (dense
embedding, sparse embedding, reranking) and reports which ones respond.
Capabilities with no endpoint configured are skipped.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Int("timeout", 15, "per-probe timeout in seconds")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
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

	timeout, _ := cmd.Flags().GetInt("timeout")
	probe := func(name string, run func(ctx context.Context) error) bool {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			fmt.Fprintf(os.Stdout, "  %-8s FAIL  %v\n", name, err)
			return false
		}
		fmt.Fprintf(os.Stdout, "  %-8s OK    %s\n", name, time.Since(start).Round(time.Millisecond))
		return true
	}

	fmt.Fprintln(os.Stdout, "Probing model servers:")
	healthy := true

	if cfg.Embedding.BaseURL != "" || cfg.Embedding.StreamOrigin != "" {
		healthy = probe("dense", func(ctx context.Context) error {
			_, err := engine.Client().EmbedDense(ctx, scoring.DenseRequest{
				Inputs: []string{"connectivity probe"},
				Mode:   scoring.ModeDoc,
			})
			return err
		}) && healthy
	} else {
		fmt.Fprintln(os.Stdout, "  dense    SKIP  no endpoint configured")
	}

	if cfg.Sparse.DocOrigin != "" || cfg.Sparse.DocStreamOrigin != "" {
		healthy = probe("sparse", func(ctx context.Context) error {
			_, err := engine.Client().EmbedSparse(ctx, scoring.SparseRequest{
				Inputs: []string{"connectivity probe"},
				Mode:   scoring.ModeDoc,
			})
			return err
		}) && healthy
	} else {
		fmt.Fprintln(os.Stdout, "  sparse   SKIP  no endpoint configured")
	}

	if cfg.Reranker.BaseURL != "" || cfg.Reranker.StreamOrigin != "" {
		healthy = probe("rerank", func(ctx context.Context) error {
			_, err := engine.Client().Rerank(ctx, scoring.RerankRequest{
				Query: "connectivity probe",
				Texts: []string{"connectivity probe"},
			})
			return err
		}) && healthy
	} else {
		fmt.Fprintln(os.Stdout, "  rerank   SKIP  no endpoint configured")
	}

	if !healthy {
		return fmt.Errorf("one or more model servers failed the probe")
	}
	return nil
}
