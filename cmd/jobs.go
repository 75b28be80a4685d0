package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the stored job analyses",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		rec, _ := cmd.Flags().GetString("recommendation")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		format, _ := cmd.Flags().GetString("format")
		listJobs(rec, limit, offset, format)
	},
}

var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored job to a json or yaml file",
	Run: func(cmd *cobra.Command, _ []string) {
		output, _ := cmd.Flags().GetString("output")
		rec, _ := cmd.Flags().GetString("recommendation")
		exportJobs(output, rec)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsExportCmd)

	jobsListCmd.Flags().StringP("recommendation", "r", "", "only show apply, maybe or skip")
	jobsListCmd.Flags().IntP("limit", "l", 20, "maximum number of jobs, 0 for all")
	jobsListCmd.Flags().Int("offset", 0, "skip this many jobs")
	jobsListCmd.Flags().StringP("format", "f", formatTable, "table, json or yaml")

	jobsExportCmd.Flags().StringP("output", "o", "jobs.json", "output file, the format follows the extension (.json, .yaml, .yml)")
	jobsExportCmd.Flags().StringP("recommendation", "r", "", "only export apply, maybe or skip")
}

func parseRecommendation(s string) (jobs.Recommendation, error) {
	if s == "" {
		return "", nil
	}
	rec := jobs.Recommendation(strings.ToLower(strings.TrimSpace(s)))
	if !rec.Valid() {
		return "", errors.WithHint(errors.Newf("unknown recommendation %q", s), "use apply, maybe or skip")
	}
	return rec, nil
}

func listJobs(recommendation string, limit, offset int, format string) {
	ctx := context.Background()
	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)

	rec, err := parseRecommendation(recommendation)
	if err != nil {
		l.Fatal("listing jobs", logger.ErrorFields(err)...)
	}

	repo, err := openRepository(ctx, cfg, l)
	if err != nil {
		l.Fatal("opening the database", logger.ErrorFields(err)...)
	}
	defer repo.Close()

	list, err := repo.List(ctx, jobs.ListFilter{Recommendation: rec}, limit, offset)
	if err != nil {
		l.Fatal("listing jobs", logger.ErrorFields(err)...)
	}

	switch format {
	case formatJSON, formatYAML:
		err = encodeJobs(os.Stdout, format, list)
	case formatTable:
		err = renderJobs(list)
	default:
		err = errors.WithHint(errors.Newf("unknown format %q", format), "use table, json or yaml")
	}
	if err != nil {
		l.Fatal("printing jobs", logger.ErrorFields(err)...)
	}
}

func exportJobs(output, recommendation string) {
	ctx := context.Background()
	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)

	format, err := formatFromPath(output)
	if err != nil {
		l.Fatal("exporting jobs", logger.ErrorFields(err)...)
	}

	rec, err := parseRecommendation(recommendation)
	if err != nil {
		l.Fatal("exporting jobs", logger.ErrorFields(err)...)
	}

	repo, err := openRepository(ctx, cfg, l)
	if err != nil {
		l.Fatal("opening the database", logger.ErrorFields(err)...)
	}
	defer repo.Close()

	list, err := repo.List(ctx, jobs.ListFilter{Recommendation: rec}, 0, 0)
	if err != nil {
		l.Fatal("listing jobs", logger.ErrorFields(err)...)
	}

	f, err := os.Create(output)
	if err != nil {
		l.Fatal("creating the export file", zap.Error(err))
	}
	defer f.Close()

	if err := encodeJobs(f, format, list); err != nil {
		l.Fatal("writing the export file", zap.Error(err))
	}

	l.Info("jobs exported", zap.Int("count", len(list)), zap.String("file", output))
}

func formatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return "", errors.WithHint(errors.Newf("cannot tell the format of %q", path), "use a .json, .yaml or .yml file")
	}
}

func encodeJobs(w io.Writer, format string, list []*jobs.ProcessedJob) error {
	if list == nil {
		list = []*jobs.ProcessedJob{}
	}

	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(list), "encoding json")
}

func renderJobs(list []*jobs.ProcessedJob) error {
	if len(list) == 0 {
		pterm.Info.Println("No jobs stored")
		return nil
	}

	data := pterm.TableData{{"Processed", "Rec", "Fit", "Conf", "Title", "Company", "URL"}}
	for _, job := range list {
		data = append(data, []string{
			job.ProcessedAt.Local().Format("2006-01-02 15:04"),
			string(job.Recommendation),
			pterm.Sprint(job.FitScore),
			pterm.Sprint(job.Confidence),
			job.Title,
			job.Company,
			job.URL,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
