package filtering

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spigell/jobseekr/internal/jobs"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile drops jobs whose URL is listed in path, one URL per line.
// Empty lines and lines starting with # are ignored.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Apply(_ context.Context, list []jobs.Job) ([]jobs.Job, Step, error) {
	urls, err := readExcludeFile(f.path)
	if err != nil {
		return nil, Step{}, err
	}

	kept := keep(list, func(job jobs.Job) bool {
		_, excluded := urls[job.URL]
		return !excluded
	})
	return kept, newStep(len(list), len(kept)), nil
}

func readExcludeFile(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "opening exclude file"), "fix or unset workflow.exclude-file")
	}
	defer file.Close()

	urls := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading exclude file")
	}
	return urls, nil
}
