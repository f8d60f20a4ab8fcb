package repository

// Schema definitions, compatible with both SQLite and PostgreSQL.
// Timestamps are stored as RFC 3339 text so both drivers scan them the same way.

const schemaJobs = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created ON analysis_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS analysis_reports (
    job_id TEXT PRIMARY KEY REFERENCES analysis_jobs(id),
    c_index DOUBLE PRECISION,
    n INTEGER NOT NULL,
    events INTEGER NOT NULL,
    comparable_pairs BIGINT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    report TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// AllSchemas returns the migrations in the order they must run.
func AllSchemas() []string {
	return []string{schemaJobs, schemaReports}
}
