package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/pkg/logger"
	"github.com/okian/tenure/pkg/metrics"
)

// SQLStore implements Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger logger.Logger
}

var _ Store = (*SQLStore)(nil)

// New opens the configured database and runs migrations.
func New(ctx context.Context, opts ...Option) (*SQLStore, error) {
	o := options{driver: DriverSQLite, sqlitePath: "tenure.db", logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	var db *sql.DB
	var err error

	switch o.driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, o.sqlitePath)
	case DriverPostgres:
		db, err = openPostgres(ctx, o.postgresDSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, o.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}
	if o.maxIdleConns > 0 {
		db.SetMaxIdleConns(o.maxIdleConns)
	}
	if o.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.connMaxLifetime)
	}

	s := &SQLStore{db: db, driver: o.driver, logger: o.logger.Named("repository")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info(ctx, "repository ready", logger.String("driver", o.driver))
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// observe records latency and failure of one repository operation.
func observe(op string, start time.Time, err *error) {
	metrics.RecordRepository(op, float64(time.Since(start).Microseconds())/1000, *err)
}

// CreateJob inserts a new job.
func (s *SQLStore) CreateJob(ctx context.Context, job model.Job) (err error) {
	defer observe("create_job", time.Now(), &err)

	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO analysis_jobs (id, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		job.ID, string(job.Status), job.Error,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	return err
}

// UpdateJob moves a job to status.
func (s *SQLStore) UpdateJob(ctx context.Context, id string, status model.JobStatus, errMsg string, at time.Time) (err error) {
	defer observe("update_job", time.Now(), &err)

	query := `
		UPDATE analysis_jobs
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, s.rebind(query), string(status), errMsg, formatTime(at), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob returns a job by ID.
func (s *SQLStore) GetJob(ctx context.Context, id string) (job model.Job, err error) {
	defer observe("get_job", time.Now(), &err)

	query := `
		SELECT id, status, error, created_at, updated_at
		FROM analysis_jobs
		WHERE id = ?
	`
	job, err = scanJob(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	return job, err
}

// ListJobs returns up to limit jobs, newest first.
func (s *SQLStore) ListJobs(ctx context.Context, limit int) (jobs []model.Job, err error) {
	defer observe("list_jobs", time.Now(), &err)

	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	query := `
		SELECT id, status, error, created_at, updated_at
		FROM analysis_jobs
		ORDER BY created_at DESC, id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountJobs returns the number of jobs per status.
func (s *SQLStore) CountJobs(ctx context.Context) (counts map[model.JobStatus]int, err error) {
	defer observe("count_jobs", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM analysis_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// SaveReport stores the result of a job.
func (s *SQLStore) SaveReport(ctx context.Context, rec Record) (err error) {
	defer observe("save_report", time.Now(), &err)

	if rec.JobID == "" || len(rec.Report) == 0 {
		return fmt.Errorf("%w: job id and report are required", ErrInvalidInput)
	}

	var cIndex sql.NullFloat64
	if rec.Summary.CIndex != nil {
		cIndex = sql.NullFloat64{Float64: *rec.Summary.CIndex, Valid: true}
	}

	query := `
		INSERT INTO analysis_reports (job_id, c_index, n, events, comparable_pairs, note, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			c_index = excluded.c_index,
			n = excluded.n,
			events = excluded.events,
			comparable_pairs = excluded.comparable_pairs,
			note = excluded.note,
			report = excluded.report,
			created_at = excluded.created_at
	`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		rec.JobID, cIndex, rec.Summary.N, rec.Summary.Events, rec.Summary.Comparable,
		rec.Summary.Note, string(rec.Report), formatTime(rec.CreatedAt),
	)
	return err
}

// GetReport returns the result of a job.
func (s *SQLStore) GetReport(ctx context.Context, jobID string) (rec Record, err error) {
	defer observe("get_report", time.Now(), &err)

	query := `
		SELECT job_id, c_index, n, events, comparable_pairs, note, report, created_at
		FROM analysis_reports
		WHERE job_id = ?
	`
	var cIndex sql.NullFloat64
	var report, createdAt string
	err = s.db.QueryRowContext(ctx, s.rebind(query), jobID).Scan(
		&rec.JobID, &cIndex, &rec.Summary.N, &rec.Summary.Events, &rec.Summary.Comparable,
		&rec.Summary.Note, &report, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	if cIndex.Valid {
		v := cIndex.Float64
		rec.Summary.CIndex = &v
	}
	rec.Report = []byte(report)
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var job model.Job
	var status, createdAt, updatedAt string
	if err := row.Scan(&job.ID, &status, &job.Error, &createdAt, &updatedAt); err != nil {
		return model.Job{}, err
	}
	job.Status = model.JobStatus(status)

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Job{}, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	result := make([]byte, 0, len(query)+8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
