package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidRequest = errors.New("invalid backfill request")
	ErrQueueFull      = errors.New("backfill queue is full")
)

const (
	queueSize    = 16
	historyLimit = 10
	retainedJobs = 50
)

// Request represents a backfill invocation request.
type Request struct {
	SeasonID  string     `json:"season_id,omitempty"`
	StartDate *time.Time `json:"-"`
	EndDate   *time.Time `json:"-"`
	DryRun    bool       `json:"dry_run,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if r.StartDate != nil && r.EndDate != nil {
		return JobTypeDateRange, nil
	}
	if r.SeasonID != "" {
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("%w: need start_date and end_date, or season_id", ErrInvalidRequest)
}

// Spec converts the request into a runner spec
func (r Request) Spec() (JobSpec, error) {
	jobType, err := r.DeriveType()
	if err != nil {
		return JobSpec{}, err
	}

	spec := JobSpec{Type: jobType, SeasonID: r.SeasonID, DryRun: r.DryRun}
	switch jobType {
	case JobTypeSeason:
		start, end, err := SeasonWindow(r.SeasonID)
		if err != nil {
			return JobSpec{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		spec.Start, spec.End = start, end
	case JobTypeDateRange:
		spec.Start, spec.End = truncateDate(*r.StartDate), truncateDate(*r.EndDate)
		if spec.End.Before(spec.Start) {
			return JobSpec{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidRequest)
		}
	}
	return spec, nil
}

type queuedJob struct {
	jobID string
	spec  JobSpec
}

// Service queues backfill jobs for the API and runs them one at a time on a
// single worker. Job history is kept in memory.
type Service struct {
	runner *Runner
	logger *logrus.Logger

	mu   sync.Mutex
	jobs []*Job

	queue  chan queuedJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(runner *Runner, logger *logrus.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner: runner,
		logger: logger,
		queue:  make(chan queuedJob, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for the running job to return.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue validates the request and queues a job for it.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobID:         uuid.NewString(),
		JobType:       spec.Type,
		SeasonID:      spec.SeasonID,
		StartDate:     spec.Start.Format(store.DateLayout),
		EndDate:       spec.End.Format(store.DateLayout),
		Status:        JobStatusQueued,
		StatusMessage: "Queued",
		ProgressTotal: len(enumerateDates(spec.Start, spec.End)),
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.queue <- queuedJob{jobID: job.JobID, spec: spec}:
	default:
		return nil, ErrQueueFull
	}

	s.jobs = append(s.jobs, job)
	if len(s.jobs) > retainedJobs {
		s.jobs = s.jobs[len(s.jobs)-retainedJobs:]
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":     job.JobID,
		"start_date": job.StartDate,
		"end_date":   job.EndDate,
	}).Info("Backfill job queued")
	return job.Copy(), nil
}

// GetStatus returns the currently running job plus recent history, newest first.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &StatusSummary{}
	for i := len(s.jobs) - 1; i >= 0; i-- {
		job := s.jobs[i]
		if job.Status == JobStatusRunning {
			summary.ActiveJob = job.Copy()
		}
		if len(summary.History) < historyLimit {
			summary.History = append(summary.History, job.Copy())
		}
	}
	return summary, nil
}

// GetJob returns a job by ID
func (s *Service) GetJob(jobID string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.JobID == jobID {
			return job.Copy(), true
		}
	}
	return nil, false
}

func (s *Service) update(jobID string, fn func(job *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.JobID == jobID {
			fn(job)
			return
		}
	}
}

func (s *Service) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case queued := <-s.queue:
			s.executeJob(queued)
		}
	}
}

func (s *Service) executeJob(queued queuedJob) {
	log := s.logger.WithField("job_id", queued.jobID)
	started := time.Now().UTC()
	s.update(queued.jobID, func(job *Job) {
		job.Status = JobStatusRunning
		job.StatusMessage = "Job starting"
		job.StartedAt = &started
	})

	reporter := &jobReporter{service: s, jobID: queued.jobID}
	summary, err := s.runner.Run(s.ctx, queued.spec, reporter)

	completed := time.Now().UTC()
	s.update(queued.jobID, func(job *Job) {
		job.CompletedAt = &completed
		job.Summary = summary
		switch {
		case errors.Is(err, context.Canceled):
			job.Status = JobStatusCancelled
			job.StatusMessage = "Job cancelled"
		case err != nil:
			job.Status = JobStatusFailed
			job.StatusMessage = "Job failed"
			job.LastError = err.Error()
		default:
			job.Status = JobStatusCompleted
			job.StatusMessage = "Job completed"
		}
	})

	if err != nil {
		log.WithError(err).Warn("Backfill job did not complete")
	}
}

type jobReporter struct {
	service *Service
	jobID   string
}

func (r *jobReporter) OnJobStart(spec JobSpec) {}

func (r *jobReporter) OnDateStart(date time.Time, index int, total int) {
	r.service.update(r.jobID, func(job *Job) {
		job.ProgressCurrent = index
		job.ProgressTotal = total
		job.StatusMessage = fmt.Sprintf("Processing %s (%d/%d)", date.Format("Jan 2, 2006"), index+1, total)
	})
}

func (r *jobReporter) OnDateDone(date time.Time, games int) {
	r.service.update(r.jobID, func(job *Job) {
		job.ProgressCurrent++
	})
}

func (r *jobReporter) OnDateFailed(date time.Time, err error) {
	r.service.update(r.jobID, func(job *Job) {
		job.ProgressCurrent++
		job.LastError = fmt.Sprintf("%s: %v", date.Format(store.DateLayout), err)
	})
}

func (r *jobReporter) OnJobComplete(summary *Summary) {
	r.service.update(r.jobID, func(job *Job) {
		job.ProgressCurrent = job.ProgressTotal
	})
}
