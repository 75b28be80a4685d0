package workflow

import (
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
)

// Status is the terminal state of one job in a run.
type Status string

const (
	StatusPersisted     Status = "persisted"
	StatusDuplicate     Status = "duplicate"
	StatusNotIndividual Status = "not-individual"
	StatusUnchanged     Status = "unchanged"
	StatusAIFailure     Status = "ai-failure"
	StatusFailed        Status = "failed"
)

// Outcome records what happened to one job.
type Outcome struct {
	Job    jobs.Job
	Status Status
	Reason string
	Err    error
}

func (o Outcome) Persisted() bool { return o.Status == StatusPersisted }

// Summary counts a run the way the log line reports it.
type Summary struct {
	Term     string
	Found    int
	Parsed   int
	Statuses map[Status]int
}

func summarize(term string, found int, outcomes []Outcome) Summary {
	s := Summary{Term: term, Found: found, Parsed: len(outcomes), Statuses: map[Status]int{}}
	for _, o := range outcomes {
		s.Statuses[o.Status]++
	}
	return s
}

func (s Summary) Persisted() int { return s.Statuses[StatusPersisted] }

func (s Summary) Skipped() int { return s.Parsed - s.Persisted() }

func (s Summary) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("term", s.Term),
		zap.Int("found", s.Found),
		zap.Int("parsed", s.Parsed),
		zap.Int("persisted", s.Persisted()),
		zap.Int("skipped", s.Skipped()),
	}

	statuses := make([]string, 0, len(s.Statuses))
	for st := range s.Statuses {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		if Status(st) == StatusPersisted {
			continue
		}
		fields = append(fields, zap.Int("skipped_"+st, s.Statuses[Status(st)]))
	}
	return fields
}
