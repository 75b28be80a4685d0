package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/logger"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess URL...",
	Short: "Analyze the given job URLs again, even if they were processed before",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		skip, _ := cmd.Flags().GetBool("skip-unchanged")
		reprocess(args, skip)
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)

	reprocessCmd.Flags().Bool("skip-unchanged", false, "do not rescore jobs whose content did not change")
}

func reprocess(urls []string, skipUnchanged bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)

	p, err := newPipeline(ctx, cfg, l, pipelineOptions{
		concurrency:   1,
		skipUnchanged: skipUnchanged || cfg.Workflow.SkipUnchangedContent,
	})
	if err != nil {
		l.Fatal("creating the pipeline", logger.ErrorFields(err)...)
	}
	defer p.Close()

	failed := 0
	for _, url := range urls {
		out := p.workflow.Reprocess(ctx, url)
		if !out.Persisted() {
			failed++
		}
		l.Info("reprocessed", zap.String(logger.FieldJobURL, url), zap.String("status", string(out.Status)))
	}

	if failed > 0 {
		p.Close()
		l.Fatal("some jobs were not stored", zap.Int("failed", failed), zap.Int("total", len(urls)))
	}
}
