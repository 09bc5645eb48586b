package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/rrr-query-engine/internal/bootstrap"
	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		category string
		dir      string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "rrr-ingest",
		Short: "Load documents into the stores backing a knowledge category",
		Long: "rrr-ingest extracts text from documents under a directory, splits it into chunks, " +
			"embeds them into the category's vector collection and indexes them for full-text search.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			slog.SetDefault(logging.NewJSONLogger("rrr-ingest", cfg.LogLevel))

			in, err := bootstrap.NewIngest(cmd.Context(), cfg, dir)
			if err != nil {
				return err
			}
			defer in.Close()

			if file != "" {
				doc, err := in.UseCase.IngestFile(cmd.Context(), category, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\n", doc.Category, doc.Filename, doc.ChunkCount)
				return nil
			}

			docs, err := in.UseCase.IngestAll(cmd.Context(), category)
			for _, doc := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\n", doc.Category, doc.Filename, doc.ChunkCount)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category to load documents into (required)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "documents directory (defaults to DOCUMENTS_PATH)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "single document key relative to the directory")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
