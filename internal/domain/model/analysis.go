package model

import "time"

// Dataset is the input of one survival analysis.
type Dataset struct {
	Observations []Observation
	Numeric      []string // numeric covariates for the design matrix, in column order
	Categorical  []string // categorical covariates for the design matrix, in column order
	Strata       string   // optional covariate to stratify survival curves by
}

// Task is the unit of work flowing through the analysis queue.
type Task struct {
	JobID        string
	Dataset      Dataset
	Coefficients map[string]float64 // hazard coefficients supplied by an external fit
	SubmittedAt  time.Time
}

// JobStatus tracks an analysis job through its lifecycle.
type JobStatus string

// Job statuses.
const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Job describes an asynchronous analysis request.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the key-value form of an analysis result.
// CIndex is nil when the concordance index is undefined.
type Summary struct {
	CIndex     *float64 `json:"c_index"`
	N          int      `json:"n"`
	Events     int      `json:"events"`
	Comparable int64    `json:"comparable_pairs"`
	Note       string   `json:"note,omitempty"`
}
