package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Job is one unit of scheduled maintenance. Name labels its logs and metrics.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered set of jobs a Service runs each cycle.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nils and later duplicates.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		if job != nil {
			_ = r.Register(job)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("nil cron job")
	}
	if slices.ContainsFunc(r.jobs, func(existing Job) bool { return existing.Name() == job.Name() }) {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns the jobs in registration order. The slice is a copy.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
