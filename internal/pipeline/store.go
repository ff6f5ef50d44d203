package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"yt-studio/pkg/logger"
)

// Store is the in-memory job registry: a map for lookup plus a FIFO of ids
// for eviction ordering, all mutations under a single exclusive lock.
// Callers only ever see snapshot views, never the live records.
type Store struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	fifo       []string
	ttl        time.Duration
	historyMax int
}

// NewStore creates a job store with the given TTL and history cap.
func NewStore(ttlSeconds, historyMax int) *Store {
	return &Store{
		jobs:       make(map[string]*Job),
		ttl:        time.Duration(ttlSeconds) * time.Second,
		historyMax: historyMax,
	}
}

// NewJobID generates an opaque "ytjob-<32 hex chars>" identity.
func NewJobID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "ytjob-" + hex.EncodeToString(buf)
}

// Create inserts a freshly-built job in Queued status and returns it.
func (s *Store) Create(req Request) *Job {
	now := time.Now()
	job := &Job{
		ID:           NewJobID(),
		Req:          req,
		Status:       StatusQueued,
		Stage:        StageResolving,
		Progress:     0,
		CreatedAtUTC: now.UTC(),
		UpdatedAtUTC: now.UTC(),
		CreatedTS:    now,
		UpdatedTS:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.jobs[job.ID] = job
	s.fifo = append(s.fifo, job.ID)
	return job
}

// Get returns a snapshot view of the job, or false if unknown/evicted.
func (s *Store) Get(id string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	job, ok := s.jobs[id]
	if !ok {
		return View{}, false
	}
	return job.view(), true
}

// withJob runs fn against the live *Job under the store lock, skipping the
// mutation entirely if the job is unknown. Used by the worker to perform
// multi-field transitions atomically.
func (s *Store) withJob(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// transitionStage advances stage/progress if the job has not already gone
// terminal (the cancel path may have beaten the worker to it).
func (s *Store) transitionStage(id string, stage Stage) {
	s.withJob(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = StatusRunning
		j.Stage = stage
		if anchor, ok := stageProgress[stage]; ok && anchor[0] > j.Progress {
			j.Progress = anchor[0]
		}
		now := time.Now()
		j.UpdatedTS = now
		j.UpdatedAtUTC = now.UTC()
	})
}

// advanceProgress bumps progress within the current stage's anchor range,
// never decreasing it and never exceeding the stage's upper bound.
func (s *Store) advanceProgress(id string, fraction float64) {
	s.withJob(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		anchor, ok := stageProgress[j.Stage]
		if !ok {
			return
		}
		target := anchor[0] + fraction*(anchor[1]-anchor[0])
		if target > j.Progress {
			j.Progress = target
		}
		now := time.Now()
		j.UpdatedTS = now
		j.UpdatedAtUTC = now.UTC()
	})
}

// complete marks the job Done with progress exactly 1.0 and the given summary.
func (s *Store) complete(id, summary string) {
	s.withJob(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = StatusDone
		j.Stage = StageDone
		j.Progress = 1.0
		j.Summary = summary
		now := time.Now()
		j.UpdatedTS = now
		j.UpdatedAtUTC = now.UTC()
	})
}

// fail marks the job Failed or Cancelled (depending on the failure code)
// with the given error recorded. No-op if already terminal.
func (s *Store) fail(id string, failure *Failure) {
	s.withJob(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		if failure.FailureCode == CodeJobCancelled {
			j.Status = StatusCancelled
			j.Stage = StageCancelled
		} else {
			j.Status = StatusFailed
			j.Stage = StageFailed
		}
		j.Err = &ErrorInfo{Code: failure.FailureCode, Message: failure.Message, Subcode: failure.Subcode, Details: failure.Details}
		now := time.Now()
		j.UpdatedTS = now
		j.UpdatedAtUTC = now.UTC()
	})
}

// cancelQueued transitions a Queued job directly to Cancelled, synchronously,
// without ever having acquired the concurrency slot. Returns the view and
// true if the job existed and was Queued.
func (s *Store) cancelQueued(id, message string) (View, bool) {
	var view View
	var did bool
	s.withJob(id, func(j *Job) {
		if j.Status != StatusQueued {
			return
		}
		j.Status = StatusCancelled
		j.Stage = StageCancelled
		j.Err = &ErrorInfo{Code: CodeJobCancelled, Message: message}
		now := time.Now()
		j.UpdatedTS = now
		j.UpdatedAtUTC = now.UTC()
		view = j.view()
		did = true
	})
	return view, did
}

// signalCancel arms the job's cancel context. Returns false if the job is
// unknown. The context is read under the store lock; invoking it happens
// outside so a slow cancel chain never extends the critical section.
func (s *Store) signalCancel(id string) (*Job, bool) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var cancel func()
	if ok {
		cancel = job.cancel
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if cancel != nil {
		cancel()
	}
	return job, true
}

// evictLocked drops terminal jobs past their TTL, then trims the FIFO down
// to historyMax by dropping terminal entries from the head. Caller must
// hold s.mu. Active jobs are never evicted regardless of age or FIFO size.
func (s *Store) evictLocked() {
	now := time.Now()
	kept := s.fifo[:0]
	for _, id := range s.fifo {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.Status.Terminal() && now.Sub(job.UpdatedTS) > s.ttl {
			delete(s.jobs, id)
			logger.Debug("Evicted expired job", "job_id", id, "status", job.Status)
			continue
		}
		kept = append(kept, id)
	}
	s.fifo = kept

	for len(s.fifo) > s.historyMax {
		head := s.fifo[0]
		job, ok := s.jobs[head]
		if !ok {
			s.fifo = s.fifo[1:]
			continue
		}
		if !job.Status.Terminal() {
			break
		}
		delete(s.jobs, head)
		s.fifo = s.fifo[1:]
		logger.Debug("Evicted job past history cap", "job_id", head)
	}
}
