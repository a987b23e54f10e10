package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [docs-path]",
	Short: "Load course documents into the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docsPath := cfg.Ingest.DocsPath
		if len(args) == 1 {
			docsPath = args[0]
		}

		rt, err := buildRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.Ingestor.IngestDirectory(cmd.Context(), docsPath, ingestForce)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d course(s), skipped %d, %d chunk(s) added.\n",
			stats.CoursesAdded, stats.CoursesSkipped, stats.ChunksAdded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest courses that are already in the catalog")
	ingestCmd.Flags().Int("ingest.chunk_size", 0, "chunk size in characters")
	ingestCmd.Flags().Int("ingest.chunk_overlap", 0, "chunk overlap in characters")
}
