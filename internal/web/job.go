package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"musicinfo/internal/musicinfo"
)

// JobStatus represents the current status of a load job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// Job is one background panel load requested over HTTP.
type Job struct {
	ID          string
	Identity    musicinfo.Identity
	Force       bool
	Status      JobStatus
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	cancel context.CancelFunc
}

// JobManager keeps track of load jobs
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	now  func() time.Time
}

const jobRetention = 1 * time.Hour

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// StartCleanup starts a background goroutine that removes old finished jobs.
// Stops when ctx is cancelled.
func (jm *JobManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				jm.cleanup()
			}
		}
	}()
}

func (jm *JobManager) cleanup() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cutoff := jm.now().Add(-jobRetention)
	for id, job := range jm.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(jm.jobs, id)
		}
	}
}

// CreateJob registers a pending load of id
func (jm *JobManager) CreateJob(id musicinfo.Identity, force bool) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        generateJobID(),
		Identity:  id,
		Force:     force,
		Status:    StatusPending,
		CreatedAt: jm.now(),
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a copy of the job with the given ID
func (jm *JobManager) GetJob(id string) (Job, error) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// ListJobs returns copies of all jobs, newest first
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// UpdateJob applies fn to the job and stamps status transitions
func (jm *JobManager) UpdateJob(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	oldStatus := job.Status
	fn(job)
	if oldStatus != job.Status {
		jm.stampLocked(job)
	}
	return nil
}

// StartJob moves a pending job to running and keeps cancel so CancelJob can
// stop it. It reports false when the job is gone or was cancelled before it
// started.
func (jm *JobManager) StartJob(id string, cancel context.CancelFunc) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok || job.Status != StatusPending {
		return false
	}
	job.Status = StatusRunning
	job.cancel = cancel
	jm.stampLocked(job)
	return true
}

// CancelJob stops one job. A pending job is marked cancelled at once; a
// running job has its context cancelled and is marked by its worker. The
// returned copy reflects the job after the request.
func (jm *JobManager) CancelJob(id string) (Job, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	switch {
	case job.Status.Done():
		return *job, ErrJobFinished
	case job.Status == StatusPending:
		job.Status = StatusCancelled
		jm.stampLocked(job)
	case job.cancel != nil:
		job.cancel()
	}
	return *job, nil
}

func (jm *JobManager) stampLocked(job *Job) {
	now := jm.now()
	switch {
	case job.Status == StatusRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case job.Status.Done():
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		job.cancel = nil
	}
}

func generateJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("load_%x", b)
}
