package pipeline

import (
	"context"
	"os/exec"
	"sync"
	"time"
)

// Status is the coarse observable state of a job.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusRunning   Status = "Running"
	StatusDone      Status = "Done"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// Terminal reports whether s is one of {Done, Failed, Cancelled}.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// Stage is the fine-grained pipeline step a job is currently executing.
type Stage string

const (
	StageResolving         Stage = "Resolving"
	StageDownloadingAudio  Stage = "DownloadingAudio"
	StageConvertingAudio   Stage = "ConvertingAudio"
	StageTranscribing      Stage = "Transcribing"
	StageWritingTranscript Stage = "WritingTranscript"
	StageExtractingHooks   Stage = "ExtractingHooks"
	StageGeneratingDrafts  Stage = "GeneratingDrafts"
	StageWritingAssets     Stage = "WritingAssets"
	StageDone              Stage = "Done"
	StageFailed            Stage = "Failed"
	StageCancelled         Stage = "Cancelled"
)

// DraftTone is the voice requested for the generated drafts.
type DraftTone string

const (
	ToneProfessional DraftTone = "professional"
	TonePlayful      DraftTone = "playful"
	ToneDirect       DraftTone = "direct"
)

// stageProgress holds the [start, end) progress anchors for each stage.
var stageProgress = map[Stage][2]float64{
	StageResolving:         {0.05, 0.12},
	StageDownloadingAudio:  {0.12, 0.20},
	StageConvertingAudio:   {0.20, 0.35},
	StageTranscribing:      {0.35, 0.38},
	StageWritingTranscript: {0.38, 0.55},
	StageExtractingHooks:   {0.55, 0.80},
	StageGeneratingDrafts:  {0.80, 0.92},
	StageWritingAssets:     {0.92, 1.0},
}

// ErrorInfo is the terminal error recorded on a Failed or Cancelled job.
type ErrorInfo struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Subcode string         `json:"subcode,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// GenerationConfig configures the chat-completion calls issued for a job.
type GenerationConfig struct {
	BaseURL        string
	Model          string
	Temperature    float64
	MaxInputChars  int
	HTTPTimeoutSec int
}

// Request is the validated input to StartJob.
type Request struct {
	VideoURL     string
	LanguageHint string
	KeepAudio    bool
	ASREngine    string
	ASRModel     string
	Generation   GenerationConfig
	DraftTone    DraftTone
}

// Artifacts are the resolved paths and metadata populated across the pipeline.
type Artifacts struct {
	VideoID     string `json:"videoId,omitempty"`
	Title       string `json:"title,omitempty"`
	Channel     string `json:"channel,omitempty"`
	DurationSec int    `json:"durationSec,omitempty"`
	OutputDir   string `json:"outputDir,omitempty"`

	TranscriptPath string `json:"transcriptPath,omitempty"`
	SummaryPath    string `json:"summaryPath,omitempty"`
	HooksPath      string `json:"hooksPath,omitempty"`
	FactsSheetPath string `json:"factsSheetPath,omitempty"`
	LinkedInPath   string `json:"linkedinCarouselPath,omitempty"`
	XThreadPath    string `json:"xThreadPath,omitempty"`
	NewsletterPath string `json:"newsletterSummaryPath,omitempty"`
}

// Job is the internal, mutable record of a unit of work. All field access
// outside of the owning worker goroutine must go through the JobStore lock.
type Job struct {
	ID  string
	Req Request

	Status   Status
	Stage    Stage
	Progress float64

	CreatedAtUTC time.Time
	UpdatedAtUTC time.Time
	CreatedTS    time.Time
	UpdatedTS    time.Time

	Artifacts Artifacts
	Summary   string
	Err       *ErrorInfo

	cancel  context.CancelFunc
	process *exec.Cmd
	mu      sync.Mutex // guards process, independent of the store lock
}

// View is an immutable, primitive-copy snapshot of a Job safe to hand to
// any caller without risk of a torn read or a live reference back into the
// store.
type View struct {
	ID       string  `json:"jobId"`
	Status   Status  `json:"status"`
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`

	CreatedAtUTC time.Time `json:"createdAtUtc"`
	UpdatedAtUTC time.Time `json:"updatedAtUtc"`

	Artifacts Artifacts  `json:"artifacts"`
	Summary   string     `json:"summary,omitempty"`
	Err       *ErrorInfo `json:"error,omitempty"`
}

// view builds a primitive-copy snapshot. Caller must hold the store lock.
func (j *Job) view() View {
	var errCopy *ErrorInfo
	if j.Err != nil {
		details := make(map[string]any, len(j.Err.Details))
		for k, v := range j.Err.Details {
			details[k] = v
		}
		errCopy = &ErrorInfo{Code: j.Err.Code, Message: j.Err.Message, Subcode: j.Err.Subcode, Details: details}
	}
	return View{
		ID:           j.ID,
		Status:       j.Status,
		Stage:        j.Stage,
		Progress:     j.Progress,
		CreatedAtUTC: j.CreatedAtUTC,
		UpdatedAtUTC: j.UpdatedAtUTC,
		Artifacts:    j.Artifacts,
		Summary:      j.Summary,
		Err:          errCopy,
	}
}

// attachProcess records the currently running child process for this job,
// so CancelJob can terminate it. Safe to call from the worker goroutine.
func (j *Job) attachProcess(cmd *exec.Cmd) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.process = cmd
}

// detachProcess clears the attached process; guaranteed to run on every
// ProcessRunner exit path.
func (j *Job) detachProcess() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.process = nil
}

func (j *Job) attachedProcess() *exec.Cmd {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.process
}
