// Package store persists processed jobs in SQLite or PostgreSQL, optionally
// fronted by a Redis set of known URLs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/utils"
)

// SQLStore implements jobs.Repository on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

var _ jobs.Repository = (*SQLStore)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger, now: time.Now}
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Migrate creates the table and indexes when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating processed_jobs schema")
		}
	}
	return nil
}

// Reset drops every processed job and recreates the schema.
func (s *SQLStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return errors.Wrap(err, "dropping processed_jobs")
	}
	s.logger.Info("processed jobs table dropped")
	return s.Migrate(ctx)
}

func (s *SQLStore) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT 1 FROM "+table+" WHERE job_url = ?"), url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "checking processed status for %s", url)
	}
	return true, nil
}

// Save inserts job or replaces the row with the same URL.
func (s *SQLStore) Save(ctx context.Context, job *jobs.ProcessedJob) error {
	if job == nil {
		return errors.New("nil processed job")
	}

	analysis, err := json.Marshal(job.Analysis)
	if err != nil {
		return errors.Wrap(err, "encoding analysis")
	}

	processedAt := job.ProcessedAt
	if processedAt.IsZero() {
		processedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(upsertQuery()),
		job.URL,
		job.Title,
		job.Company,
		job.Location,
		job.PostedTime,
		job.EmploymentType,
		job.Salary,
		job.LogoURL,
		string(job.Recommendation),
		job.Confidence,
		job.FitScore,
		string(analysis),
		processedAt.UTC(),
		job.ContentHash,
		job.ProcessingVersion,
	)
	if err != nil {
		return errors.Wrapf(err, "saving processed job %s", job.URL)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, url string) (*jobs.ProcessedJob, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT "+selectColumns()+" FROM "+table+" WHERE job_url = ?"), url)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(jobs.ErrNotFound, "%s", url)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading processed job %s", url)
	}
	return job, nil
}

// List returns jobs newest first. A non-positive limit means no limit.
func (s *SQLStore) List(ctx context.Context, filter jobs.ListFilter, limit, offset int) ([]*jobs.ProcessedJob, error) {
	query := "SELECT " + selectColumns() + " FROM " + table
	var args []any

	if filter.Recommendation != "" {
		query += " WHERE recommendation = ?"
		args = append(args, string(filter.Recommendation))
	}

	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY processed_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing processed jobs")
	}
	defer rows.Close()

	var result []*jobs.ProcessedJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning processed job")
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing processed jobs")
	}
	return result, nil
}

const statsQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN recommendation = 'apply' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN recommendation = 'maybe' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN recommendation = 'skip' THEN 1 ELSE 0 END), 0),
	CAST(COALESCE(AVG(fit_score), 0) AS DOUBLE PRECISION),
	CAST(COALESCE(AVG(confidence), 0) AS DOUBLE PRECISION)
FROM ` + table

func (s *SQLStore) Stats(ctx context.Context) (*jobs.Stats, error) {
	var st jobs.Stats
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(
		&st.Total,
		&st.ApplyCount,
		&st.MaybeCount,
		&st.SkipCount,
		&st.AvgFitScore,
		&st.AvgConfidence,
	)
	if err != nil {
		return nil, errors.Wrap(err, "computing processing stats")
	}

	st.AvgFitScore = round2(st.AvgFitScore)
	st.AvgConfidence = round2(st.AvgConfidence)
	return &st, nil
}

// HasContentChanged reports whether contentHash differs from the stored one.
// Unknown URLs count as changed.
func (s *SQLStore) HasContentChanged(ctx context.Context, url, contentHash string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT content_hash FROM "+table+" WHERE job_url = ?"), url).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "loading content hash for %s", url)
	}
	return !utils.SameHash(stored, contentHash), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*jobs.ProcessedJob, error) {
	var (
		job            jobs.ProcessedJob
		recommendation string
		analysisJSON   string
	)

	err := row.Scan(
		&job.URL,
		&job.Title,
		&job.Company,
		&job.Location,
		&job.PostedTime,
		&job.EmploymentType,
		&job.Salary,
		&job.LogoURL,
		&recommendation,
		&job.Confidence,
		&job.FitScore,
		&analysisJSON,
		&job.ProcessedAt,
		&job.ContentHash,
		&job.ProcessingVersion,
	)
	if err != nil {
		return nil, err
	}

	job.Recommendation = jobs.Recommendation(recommendation)
	if analysisJSON != "" && analysisJSON != "null" {
		var analysis jobs.Analysis
		if err := json.Unmarshal([]byte(analysisJSON), &analysis); err != nil {
			return nil, errors.Wrap(err, "decoding analysis")
		}
		job.Analysis = &analysis
	}

	return &job, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
