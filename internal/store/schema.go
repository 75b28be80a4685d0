package store

import (
	"strconv"
	"strings"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const table = "processed_jobs"

var columns = []string{
	"job_url",
	"job_title",
	"company",
	"location",
	"posted_time",
	"employment_type",
	"salary",
	"logo_url",
	"recommendation",
	"confidence",
	"fit_score",
	"analysis_json",
	"processed_at",
	"content_hash",
	"processing_version",
}

func (d Dialect) schema() []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if d == Postgres {
		id = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
	id ` + id + `,
	job_url TEXT NOT NULL UNIQUE,
	job_title TEXT NOT NULL,
	company TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	posted_time TEXT NOT NULL DEFAULT '',
	employment_type TEXT NOT NULL DEFAULT '',
	salary TEXT NOT NULL DEFAULT '',
	logo_url TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL CHECK (recommendation IN ('apply', 'maybe', 'skip')),
	confidence INTEGER NOT NULL CHECK (confidence BETWEEN 1 AND 5),
	fit_score INTEGER NOT NULL CHECK (fit_score BETWEEN 1 AND 5),
	analysis_json TEXT NOT NULL,
	processed_at ` + ts + ` NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	processing_version TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_jobs_recommendation ON ` + table + ` (recommendation)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_jobs_processed_at ON ` + table + ` (processed_at)`,
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func upsertQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		updates = append(updates, c+" = excluded."+c)
	}

	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")" +
		" ON CONFLICT (job_url) DO UPDATE SET " + strings.Join(updates, ", ")
}

func selectColumns() string {
	return strings.Join(columns, ", ")
}
