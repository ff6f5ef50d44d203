package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() Request {
	return Request{
		VideoURL:  "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		ASRModel:  "base",
		DraftTone: ToneProfessional,
	}
}

func TestNewJobID(t *testing.T) {
	id := NewJobID()
	assert.True(t, strings.HasPrefix(id, "ytjob-"))
	assert.Len(t, id, len("ytjob-")+32)
	assert.NotEqual(t, id, NewJobID())
}

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore(3600, 100)
	job := s.Create(testRequest())

	view, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, view.Status)
	assert.Equal(t, 0.0, view.Progress)
	assert.False(t, view.CreatedAtUTC.IsZero())

	_, ok = s.Get("ytjob-does-not-exist")
	assert.False(t, ok)
}

func TestStoreTransitions(t *testing.T) {
	s := NewStore(3600, 100)

	t.Run("StageAdvancesProgress", func(t *testing.T) {
		job := s.Create(testRequest())
		s.transitionStage(job.ID, StageResolving)
		view, _ := s.Get(job.ID)
		assert.Equal(t, StatusRunning, view.Status)
		assert.Equal(t, StageResolving, view.Stage)
		assert.Equal(t, 0.05, view.Progress)

		s.transitionStage(job.ID, StageExtractingHooks)
		view, _ = s.Get(job.ID)
		assert.Equal(t, 0.55, view.Progress)
	})

	t.Run("ProgressNeverDecreases", func(t *testing.T) {
		job := s.Create(testRequest())
		s.transitionStage(job.ID, StageGeneratingDrafts)
		s.advanceProgress(job.ID, 0.5)
		before, _ := s.Get(job.ID)
		s.advanceProgress(job.ID, 0.1)
		after, _ := s.Get(job.ID)
		assert.GreaterOrEqual(t, after.Progress, before.Progress)
	})

	t.Run("DoneIsExactlyOne", func(t *testing.T) {
		job := s.Create(testRequest())
		s.complete(job.ID, "the summary")
		view, _ := s.Get(job.ID)
		assert.Equal(t, StatusDone, view.Status)
		assert.Equal(t, 1.0, view.Progress)
		assert.Equal(t, "the summary", view.Summary)
	})

	t.Run("TerminalIsSticky", func(t *testing.T) {
		job := s.Create(testRequest())
		s.fail(job.ID, NewFailure(CodeYoutubeDownloadFailed, "boom"))
		view, _ := s.Get(job.ID)
		require.Equal(t, StatusFailed, view.Status)

		s.transitionStage(job.ID, StageTranscribing)
		s.complete(job.ID, "should not apply")
		after, _ := s.Get(job.ID)
		assert.Equal(t, StatusFailed, after.Status)
		assert.Equal(t, StageFailed, after.Stage)
		assert.Empty(t, after.Summary)
	})

	t.Run("CancelCodeYieldsCancelledStatus", func(t *testing.T) {
		job := s.Create(testRequest())
		s.fail(job.ID, NewFailure(CodeJobCancelled, "cancelled"))
		view, _ := s.Get(job.ID)
		assert.Equal(t, StatusCancelled, view.Status)
		require.NotNil(t, view.Err)
		assert.Equal(t, CodeJobCancelled, view.Err.Code)
	})
}

func TestStoreCancelQueued(t *testing.T) {
	s := NewStore(3600, 100)
	job := s.Create(testRequest())

	view, did := s.cancelQueued(job.ID, "Job cancelled while waiting for execution slot.")
	require.True(t, did)
	assert.Equal(t, StatusCancelled, view.Status)
	assert.Contains(t, view.Err.Message, "waiting for execution slot")

	// A second cancel is a no-op.
	_, did = s.cancelQueued(job.ID, "again")
	assert.False(t, did)

	// Running jobs are not eligible for the queued shortcut.
	running := s.Create(testRequest())
	s.transitionStage(running.ID, StageResolving)
	_, did = s.cancelQueued(running.ID, "nope")
	assert.False(t, did)
}

func TestStoreEviction(t *testing.T) {
	t.Run("TTLDropsOldTerminalJobs", func(t *testing.T) {
		s := NewStore(300, 100)
		done := s.Create(testRequest())
		s.complete(done.ID, "s")
		active := s.Create(testRequest())

		// Backdate both well past the TTL.
		old := time.Now().Add(-time.Hour)
		s.withJob(done.ID, func(j *Job) { j.UpdatedTS = old })
		s.withJob(active.ID, func(j *Job) { j.UpdatedTS = old })

		_, ok := s.Get(done.ID)
		assert.False(t, ok, "terminal job past TTL must be evicted")
		_, ok = s.Get(active.ID)
		assert.True(t, ok, "active job must never be evicted")
	})

	t.Run("HistoryCapEvictsTerminalHead", func(t *testing.T) {
		s := NewStore(86400, 10)
		var ids []string
		for i := 0; i < 10; i++ {
			job := s.Create(testRequest())
			s.complete(job.ID, "s")
			ids = append(ids, job.ID)
		}
		overflow := s.Create(testRequest())

		_, ok := s.Get(ids[0])
		assert.False(t, ok, "oldest terminal job should fall off the cap")
		_, ok = s.Get(overflow.ID)
		assert.True(t, ok)
	})

	t.Run("CapNeverEvictsActiveHead", func(t *testing.T) {
		s := NewStore(86400, 10)
		head := s.Create(testRequest())
		s.transitionStage(head.ID, StageResolving)
		for i := 0; i < 12; i++ {
			s.Create(testRequest())
		}
		_, ok := s.Get(head.ID)
		assert.True(t, ok, "an active head blocks cap eviction")
	})
}

func TestViewIsACopy(t *testing.T) {
	s := NewStore(3600, 100)
	job := s.Create(testRequest())
	s.fail(job.ID, NewFailure(CodeLLMRequestFailed, "bad").WithDetail("statusCode", 502))

	view, _ := s.Get(job.ID)
	view.Err.Details["statusCode"] = 999
	view.Err.Message = "mutated"

	fresh, _ := s.Get(job.ID)
	assert.Equal(t, 502, fresh.Err.Details["statusCode"])
	assert.Equal(t, "bad", fresh.Err.Message)
}
