package job

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()
	job := NewWithID("job-1")

	r.Add(job)
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}

	got, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "job-1" {
		t.Errorf("expected job-1, got %s", got.ID)
	}

	r.Remove("job-1")
	if r.Count() != 0 {
		t.Errorf("expected count 0, got %d", r.Count())
	}
	if _, err := r.Get("job-1"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	// Removing twice is harmless.
	r.Remove("job-1")
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	job := NewWithID("job-s")
	r.Add(job)

	snap, _ := r.Get("job-s")
	snap.Stage = StageFailed

	if job.GetStage() != StagePending {
		t.Error("modifying snapshot should not affect the registered job")
	}

	_ = job.TransitionTo(StageExtracting)
	snap, _ = r.Get("job-s")
	if snap.Stage != StageExtracting {
		t.Errorf("expected live stage EXTRACTING, got %s", snap.Stage)
	}
}

func TestRegistry_ListOldestFirst(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	for i := 2; i >= 0; i-- {
		job := NewWithID(fmt.Sprintf("job-%d", i))
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		r.Add(job)
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(list))
	}
	for i, job := range list {
		if job.ID != fmt.Sprintf("job-%d", i) {
			t.Errorf("position %d: got %s", i, job.ID)
		}
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			r.Add(NewWithID(id))
			_ = r.List()
			r.Remove(id)
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}
