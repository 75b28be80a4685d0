package cmd

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	recentJobs = 5
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the job database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		dbInit()
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored job",
	Run: func(cmd *cobra.Command, _ []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		dbReset(yes)
	},
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show statistics and the most recent jobs",
	Run: func(_ *cobra.Command, _ []string) {
		dbInfo()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd, dbResetCmd, dbInfoCmd)

	dbResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func withRepository(fn func(ctx context.Context, l *zap.Logger, repo *repository)) {
	ctx := context.Background()
	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)

	repo, err := openRepository(ctx, cfg, l)
	if err != nil {
		l.Fatal("opening the database", logger.ErrorFields(err)...)
	}
	defer repo.Close()

	fn(ctx, l, repo)
}

func dbInit() {
	withRepository(func(ctx context.Context, l *zap.Logger, repo *repository) {
		stats, err := repo.Stats(ctx)
		if err != nil {
			l.Fatal("reading stats", logger.ErrorFields(err)...)
		}
		l.Info("database initialized",
			zap.String("dialect", string(repo.sql.Dialect())),
			zap.Int("jobs", stats.Total),
		)
	})
}

func dbReset(yes bool) {
	if !yes {
		prompt := promptui.Select{
			Label: "Delete every stored job?",
			Items: []string{PromptNo, PromptYes},
		}
		_, answer, err := prompt.Run()
		if err != nil || answer != PromptYes {
			fmt.Println("Reset cancelled")
			return
		}
	}

	withRepository(func(ctx context.Context, l *zap.Logger, repo *repository) {
		if err := repo.Reset(ctx); err != nil {
			l.Fatal("resetting the database", logger.ErrorFields(err)...)
		}
		l.Info("database reset")
	})
}

func dbInfo() {
	withRepository(func(ctx context.Context, l *zap.Logger, repo *repository) {
		stats, err := repo.Stats(ctx)
		if err != nil {
			l.Fatal("reading stats", logger.ErrorFields(err)...)
		}

		recent, err := repo.List(ctx, jobs.ListFilter{}, recentJobs, 0)
		if err != nil {
			l.Fatal("listing recent jobs", logger.ErrorFields(err)...)
		}

		pterm.DefaultSection.Println("Statistics")
		_ = pterm.DefaultTable.WithData(pterm.TableData{
			{"Total", pterm.Sprint(stats.Total)},
			{"Apply", pterm.Sprint(stats.ApplyCount)},
			{"Maybe", pterm.Sprint(stats.MaybeCount)},
			{"Skip", pterm.Sprint(stats.SkipCount)},
			{"Avg fit score", fmt.Sprintf("%.2f", stats.AvgFitScore)},
			{"Avg confidence", fmt.Sprintf("%.2f", stats.AvgConfidence)},
		}).Render()

		if len(recent) == 0 {
			return
		}

		pterm.DefaultSection.Println("Recent jobs")
		items := make([]pterm.BulletListItem, 0, len(recent))
		for _, job := range recent {
			items = append(items, pterm.BulletListItem{
				Level: 0,
				Text:  fmt.Sprintf("%s - %s", job.Job("").String(), job.Recommendation),
			})
		}
		_ = pterm.DefaultBulletList.WithItems(items).Render()
	})
}
