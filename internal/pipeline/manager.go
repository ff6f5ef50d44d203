package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"yt-studio/internal/pipeline/process"
	"yt-studio/pkg/binaries"
	"yt-studio/pkg/logger"
)

// Generator is the narrow surface the orchestrator needs from a
// chat-completion client. Defined here (rather than depending on
// internal/generation directly) so the orchestrator stays decoupled from
// any one HTTP client implementation; internal/generation.Client satisfies
// this interface structurally.
type Generator interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// GeneratorFactory builds a Generator for one job's generation config. Each
// job carries its own base URL and HTTP timeout, so the client is constructed
// per job rather than shared.
type GeneratorFactory func(cfg GenerationConfig) Generator

// TranscribeFunc is the injected STT callback the Transcribing stage calls.
// The callback owns engine selection, warm-up, and error semantics; a
// returned error is always mapped to ASR_TRANSCRIBE_FAILED.
type TranscribeFunc func(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error)

// DependencyPaths resolves the fetcher/transcoder binary paths and whether
// they're usable.
type DependencyPaths struct {
	YtDLP  binaries.Dependency
	FFmpeg binaries.Dependency
}

// ManagerConfig configures a Manager for its lifetime.
type ManagerConfig struct {
	DataRoot             string
	MaxConcurrentJobs    int
	LogCaptureMaxChars   int
	DownloadTimeoutSec   int
	ConvertTimeoutSec    int
	SummaryTimeoutSec    int
	YtDlpPath            string
	FFmpegPath           string
	AllowUnsafeArtifacts bool
}

// Manager is the JobManager orchestrator: admits requests through a bounded
// semaphore and drives each admitted job through the fixed stage sequence.
type Manager struct {
	store      *Store
	sem        *semaphore.Weighted
	cfg        ManagerConfig
	transcribe TranscribeFunc
	newGen     GeneratorFactory
	deps       DependencyPaths
}

// NewManager builds a Manager bound to store, cfg, and the injected
// collaborators.
func NewManager(store *Store, cfg ManagerConfig, transcribe TranscribeFunc, newGen GeneratorFactory, deps DependencyPaths) *Manager {
	return &Manager{
		store:      store,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		cfg:        cfg,
		transcribe: transcribe,
		newGen:     newGen,
		deps:       deps,
	}
}

var youtubeHosts = []string{"youtube.com", "youtu.be", "www.youtube.com", "m.youtube.com"}

func validateVideoURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return NewFailure(CodeInvalidURL, "Video URL must be an http(s) URL.")
	}
	host := strings.ToLower(parsed.Host)
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return nil
		}
	}
	return NewFailure(CodeInvalidURL, "Video URL must be a youtube.com or youtu.be URL.")
}

// StartJob validates the request, creates a Queued job, and spawns its
// worker goroutine. Validation failures return synchronously without
// creating a job.
func (m *Manager) StartJob(req Request) (View, error) {
	if err := validateVideoURL(req.VideoURL); err != nil {
		return View{}, err
	}
	if strings.TrimSpace(req.ASRModel) == "" {
		return View{}, NewFailure(CodeASRModelUnavailable, "asrModel must not be empty.")
	}
	if req.DraftTone == "" {
		req.DraftTone = ToneProfessional
	}

	job := m.store.Create(req)
	ctx, cancel := context.WithCancel(context.Background())
	m.store.withJob(job.ID, func(j *Job) { j.cancel = cancel })

	go m.run(ctx, job)

	view, _ := m.store.Get(job.ID)
	return view, nil
}

// GetJob returns the current view of a job.
func (m *Manager) GetJob(id string) (View, bool) {
	return m.store.Get(id)
}

// CancelJob cancels a job. Idempotent on terminal jobs. The cancel context
// is always armed, even for Queued jobs, so a worker that has already begun
// polling the semaphore observes the cancellation too.
func (m *Manager) CancelJob(id string) (View, bool) {
	job, ok := m.store.signalCancel(id)
	if !ok {
		return View{}, false
	}
	m.store.cancelQueued(id, "Job cancelled while waiting for execution slot.")
	if p := job.attachedProcess(); p != nil && p.Process != nil {
		_ = process.Terminate(p.Process)
	}
	return m.store.Get(id)
}

// DependencyStatus reports fetcher/transcoder availability plus the
// resolved concurrency and data-root configuration.
func (m *Manager) DependencyStatus() map[string]any {
	ready := m.deps.YtDLP.Available && m.deps.FFmpeg.Available
	return map[string]any{
		"ready": ready,
		"ytDlp": map[string]any{"available": m.deps.YtDLP.Available, "path": m.deps.YtDLP.Path},
		"ffmpeg": map[string]any{"available": m.deps.FFmpeg.Available, "path": m.deps.FFmpeg.Path},
		"dataRoot":          m.cfg.DataRoot,
		"maxConcurrentJobs": m.cfg.MaxConcurrentJobs,
	}
}

const admissionPoll = 250 * time.Millisecond

// run is the per-job worker goroutine: blocks on admission, then drives the
// fixed stage sequence, recording a terminal outcome on any exit path.
func (m *Manager) run(ctx context.Context, job *Job) {
	if !m.admit(ctx, job) {
		return
	}
	defer m.sem.Release(1)

	// The cancel path may have won while we held no slot yet.
	if view, ok := m.store.Get(job.ID); !ok || view.Status.Terminal() {
		return
	}

	start := time.Now()
	rc := &runContext{mgr: m, job: job, ctx: ctx, gen: m.newGen(job.Req.Generation)}
	if err := rc.execute(); err != nil {
		m.terminate(job.ID, err)
		logger.JobFailed(job.ID, time.Since(start), err)
		return
	}
	m.store.complete(job.ID, rc.summary)
	logger.JobCompleted(job.ID, time.Since(start))
}

// admit polls the concurrency semaphore with TryAcquire so a queued job
// stays cancellable while waiting; a blocking Acquire would make a queued
// cancel invisible until a slot freed up.
func (m *Manager) admit(ctx context.Context, job *Job) bool {
	ticker := time.NewTicker(admissionPoll)
	defer ticker.Stop()
	for {
		if m.sem.TryAcquire(1) {
			return true
		}
		select {
		case <-ctx.Done():
			m.store.cancelQueued(job.ID, "Job cancelled while waiting for execution slot.")
			return false
		case <-ticker.C:
		}
	}
}

func (m *Manager) terminate(jobID string, err error) {
	if failure, ok := AsFailure(err); ok {
		m.store.fail(jobID, failure)
		return
	}
	logger.Error("Unmapped pipeline error, recording as internal failure", "job_id", jobID, "error", err)
	m.store.fail(jobID, NewFailure(CodeIOWriteFailed, fmt.Sprintf("Unexpected error: %v", err)))
}
