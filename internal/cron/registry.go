package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrJobSkipped is returned by a job that deliberately did no work this cycle.
// The service counts it as skipped rather than as a success or a failure.
var ErrJobSkipped = errors.New("job skipped")

// Job is one unit of work executed on every scheduled cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the cycle's jobs in execution order. Names are unique
// because logs and metrics are keyed by them.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order; nil entries are ignored.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends job to the cycle.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
