package job

import (
	"errors"
	"sort"
	"sync"
)

// ErrJobNotFound is returned when a job is not in the registry.
var ErrJobNotFound = errors.New("job not found")

// Registry tracks renders that are in flight.
// It uses a map with RWMutex for thread-safe access. A job is added when its
// render starts and removed once its scratch directory is gone.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*RenderJob
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*RenderJob),
	}
}

// Add registers a job. A job with the same ID is replaced.
func (r *Registry) Add(job *RenderJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Remove unregisters a job. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Get returns a snapshot of the job with the given ID.
func (r *Registry) Get(id string) (*RenderJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots of all registered jobs, oldest first.
func (r *Registry) List() []*RenderJob {
	r.mu.RLock()
	result := make([]*RenderJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
