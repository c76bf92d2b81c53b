package backfill

import (
	"time"
)

// JobType enumerates the supported backfill job variants.
type JobType string

const (
	JobTypeSeason    JobType = "season"
	JobTypeDateRange JobType = "date_range"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a backfill request tracked by the Service.
type Job struct {
	JobID           string     `json:"job_id"`
	JobType         JobType    `json:"job_type"`
	SeasonID        string     `json:"season_id,omitempty"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	Status          JobStatus  `json:"status"`
	StatusMessage   string     `json:"status_message,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	LastError       string     `json:"last_error,omitempty"`
	Summary         *Summary   `json:"summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type     JobType
	SeasonID string
	Start    time.Time
	End      time.Time
	DryRun   bool
}

// Summary is the outcome of one runner pass
type Summary struct {
	Days        int      `json:"days"`
	DaysFailed  int      `json:"days_failed"`
	GamesStored int      `json:"games_stored"`
	FailedDates []string `json:"failed_dates,omitempty"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnDateStart(date time.Time, index int, total int)
	OnDateDone(date time.Time, games int)
	OnDateFailed(date time.Time, err error)
	OnJobComplete(summary *Summary)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
