package scheduler

import "context"

// Job represents a unit of work processed by the worker pool.
type Job interface {
	// Execute runs the job. ctx carries the per-job timeout.
	Execute(ctx context.Context) error

	// ID identifies the job, e.g. "sync:12".
	ID() string

	// Description returns a human-readable description for logging.
	Description() string
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	JobID string
	Desc  string
	Fn    func(ctx context.Context) error
}

func (j *FuncJob) Execute(ctx context.Context) error { return j.Fn(ctx) }
func (j *FuncJob) ID() string                        { return j.JobID }

func (j *FuncJob) Description() string {
	if j.Desc != "" {
		return j.Desc
	}
	return "job " + j.JobID
}
