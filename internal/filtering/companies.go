package filtering

import (
	"context"
	"strings"

	"github.com/spigell/jobseekr/internal/jobs"
)

type companiesFilter struct {
	companies map[string]struct{}
}

// NewExcludedCompanies drops jobs whose company matches one of companies, ignoring case.
func NewExcludedCompanies(companies []string) Filter {
	set := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		if c = normalizeCompany(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return &companiesFilter{companies: set}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Apply(_ context.Context, list []jobs.Job) ([]jobs.Job, Step, error) {
	kept := keep(list, func(job jobs.Job) bool {
		_, excluded := f.companies[normalizeCompany(job.Company)]
		return !excluded
	})
	return kept, newStep(len(list), len(kept)), nil
}

func normalizeCompany(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
