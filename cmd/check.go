package cmd

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spigell/jobseekr/internal/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the search credentials, the AI provider and the database",
	Run: func(_ *cobra.Command, _ []string) {
		check()
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func check() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	l := newLogger()
	defer l.Sync()

	cfg := mustConfig(l)
	ok := true

	report := func(name string, err error) {
		if err != nil {
			ok = false
			pterm.Error.Printfln("%s: %v", name, err)
			l.Debug("check failed", append(logger.ErrorFields(err), logger.StringFields(logger.StringField{Key: "check", Value: name})...)...)
			return
		}
		pterm.Success.Println(name)
	}

	searchClient, err := newSearchClient(cfg, l)
	if err == nil {
		err = searchClient.ValidateCredentials(ctx)
	}
	report("search api", err)

	_, err = newFetcher(cfg, l)
	report("content reader", err)

	service, err := newAIService(ctx, cfg, l)
	if err == nil && !service.IsAvailable(ctx) {
		err = errNotAvailable(service.Name())
	}
	report("ai provider "+cfg.AI.Provider, err)

	repo, err := openRepository(ctx, cfg, l)
	if err == nil {
		_, err = repo.Stats(ctx)
		repo.Close()
	}
	report("database "+cfg.Database.Type, err)

	if !ok {
		l.Fatal("some checks failed")
	}
}

func errNotAvailable(provider string) error {
	return errors.WithHint(errors.Newf("%s did not answer a test prompt", provider), "check the provider url, api key and model names")
}
