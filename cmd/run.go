package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
	"github.com/spigell/jobseekr/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search for jobs, analyze new postings and store the results",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceP("term", "t", nil, "search term, can be repeated. Default is workflow.terms from the config")
	runCmd.Flags().String("date-restrict", "", "search date restriction like d1, w2, m1. Default is search.default-date-restrict")
	runCmd.Flags().String("schedule", "", `repeat the run on a cron schedule, e.g. "@every 6h"`)
	runCmd.Flags().IntP("concurrency", "c", 0, "jobs analyzed at once. Default is workflow.concurrency")
	runCmd.Flags().Bool("skip-unchanged", false, "do not rescore jobs whose content did not change")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with job URLs to skip, one per line. Default is unset.")
	runCmd.Flags().Bool("remote-only", false, "only analyze jobs that mention remote work")

	viper.BindPFlag("workflow.terms", runCmd.Flags().Lookup("term"))
	viper.BindPFlag("search.default-date-restrict", runCmd.Flags().Lookup("date-restrict"))
	viper.BindPFlag("workflow.schedule", runCmd.Flags().Lookup("schedule"))
	viper.BindPFlag("workflow.concurrency", runCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("workflow.skip-unchanged-content", runCmd.Flags().Lookup("skip-unchanged"))
	viper.BindPFlag("workflow.exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("workflow.remote-only", runCmd.Flags().Lookup("remote-only"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)

	l.Info("starting the jobseekr", zap.String("version", version))

	terms := cfg.Workflow.Terms
	if len(terms) == 0 {
		l.Fatal("nothing to search for", zap.String(logger.FieldHint, "pass --term or set workflow.terms in the config"))
	}

	p, err := newPipeline(ctx, cfg, l, pipelineOptions{
		concurrency:   cfg.Workflow.Concurrency,
		skipUnchanged: cfg.Workflow.SkipUnchangedContent,
		needSearch:    true,
	})
	if err != nil {
		l.Fatal("creating the pipeline", logger.ErrorFields(err)...)
	}
	defer p.Close()

	runAll := func(ctx context.Context) error {
		return runTerms(ctx, l, p, terms, cfg.Search.DefaultDateRestrict)
	}

	if cfg.Workflow.Schedule == "" {
		if err := runAll(ctx); err != nil {
			l.Fatal("run failed", logger.ErrorFields(err)...)
		}
		return
	}

	s, err := scheduler.New(cfg.Workflow.Schedule, runAll, l.Named("scheduler"))
	if err != nil {
		l.Fatal("creating the scheduler", logger.ErrorFields(err)...)
	}
	if err := s.Run(ctx); err != nil {
		l.Fatal("scheduler failed", logger.ErrorFields(err)...)
	}
}

// runTerms runs the pipeline for every term. A failed term does not stop the
// others; the returned error lists all failures.
func runTerms(ctx context.Context, l *zap.Logger, p *pipeline, terms []string, dateRestrict string) error {
	var (
		failed    error
		persisted []jobs.Job
	)

	for _, term := range terms {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		found, err := p.workflow.SearchAndProcessJobs(ctx, term, dateRestrict)
		if err != nil {
			l.Error("search run failed", append([]zap.Field{zap.String("term", term)}, logger.ErrorFields(err)...)...)
			failed = errors.CombineErrors(failed, errors.Wrapf(err, "term %q", term))
			continue
		}
		persisted = append(persisted, found...)
	}

	if !viper.GetBool("json") {
		printPersisted(ctx, p.repo, persisted)
	}

	return failed
}

func printPersisted(ctx context.Context, repo jobs.Repository, list []jobs.Job) {
	if len(list) == 0 {
		pterm.Info.Println("No new jobs were stored")
		return
	}

	data := pterm.TableData{{"Recommendation", "Fit", "Title", "Company", "URL"}}
	for _, job := range list {
		row := []string{"", "", job.Title, job.Company, job.URL}
		if stored, err := repo.Get(ctx, job.URL); err == nil {
			row[0] = string(stored.Recommendation)
			row[1] = pterm.Sprint(stored.FitScore)
		}
		data = append(data, row)
	}

	pterm.DefaultSection.Printfln("%d new jobs", len(list))
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
