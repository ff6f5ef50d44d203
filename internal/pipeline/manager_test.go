package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-studio/internal/validator"
)

// scriptedGen replays canned responses in call order, recording every prompt.
type scriptedGen struct {
	mu        sync.Mutex
	responses []string
	calls     []string
}

func (g *scriptedGen) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, userPrompt)
	idx := len(g.calls) - 1
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	return g.responses[idx], nil
}

func (g *scriptedGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

const testHooksJSON = `{
	"hasTimestamps": false,
	"hooks": [
		{"rank": 1, "hook": "H1", "who": "builders", "outcome": "O1", "proof": "P1",
		 "supporting_moments": [{"quote": "Q1", "startSec": null, "endSec": null}, {"quote": "Q2", "startSec": null, "endSec": null}]},
		{"rank": 2, "hook": "H2", "who": "founders", "outcome": "O2", "proof": "P2",
		 "supporting_moments": [{"quote": "Q3", "startSec": null, "endSec": null}, {"quote": "Q4", "startSec": null, "endSec": null}]},
		{"rank": 3, "hook": "H3", "who": "creators", "outcome": "O3", "proof": "P3",
		 "supporting_moments": [{"quote": "Q5", "startSec": null, "endSec": null}, {"quote": "Q6", "startSec": null, "endSec": null}]}
	]
}`

func testDrafts() string {
	return `===LINKEDIN_CAROUSEL===
Slide 1: The opener about H1
Slide 2: Who this is for
Slide 3: The proof
Slide 4: The second hook
Slide 5: The call to action
===X_THREAD===
[1/5] First post about O1
[2/5] Second post about O2
[3/5] Third post about O3
[4/5] Fourth post with proof
[5/5] Fifth post wrapping up
===NEWSLETTER_SUMMARY===
## Overview

` + strings.Repeat("A long grounded paragraph about the recording and its claims. ", 8) + `

### Key Takeaways

- First takeaway from the hooks
- Second takeaway from the hooks
`
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// fakeYtDlp answers the metadata dump inline and materializes a source file
// for the download invocation.
const fakeYtDlpBody = `case "$1" in
--dump-single-json)
  printf '{"id":"AAAAAAAAAAA","title":"T","uploader":"U","duration":60}'
  ;;
*)
  out=""
  while [ $# -gt 0 ]; do
    if [ "$1" = "-o" ]; then shift; out="$1"; fi
    shift
  done
  out=$(printf '%s' "$out" | sed 's/%(ext)s/m4a/')
  printf 'fake-audio' > "$out"
  ;;
esac`

// fakeFFmpeg writes a stub WAV to its final argument.
const fakeFFmpegBody = `for out in "$@"; do :; done
printf 'RIFFxxxxWAVEfmt ' > "$out"`

type testEnv struct {
	mgr      *Manager
	store    *Store
	gen      *scriptedGen
	dataRoot string
}

func newTestEnv(t *testing.T, gen *scriptedGen, mutate func(*ManagerConfig)) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("pipeline tests shell out to /bin/sh")
	}

	dir := t.TempDir()
	cfg := ManagerConfig{
		DataRoot:           filepath.Join(dir, "data"),
		MaxConcurrentJobs:  1,
		LogCaptureMaxChars: 12000,
		DownloadTimeoutSec: 60,
		ConvertTimeoutSec:  60,
		SummaryTimeoutSec:  30,
		YtDlpPath:          writeScript(t, dir, "yt-dlp", fakeYtDlpBody),
		FFmpegPath:         writeScript(t, dir, "ffmpeg", fakeFFmpegBody),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store := NewStore(3600, 100)
	transcribe := func(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error) {
		return "hello world", nil
	}
	newGen := func(GenerationConfig) Generator { return gen }
	mgr := NewManager(store, cfg, transcribe, newGen, DependencyPaths{})
	return &testEnv{mgr: mgr, store: store, gen: gen, dataRoot: cfg.DataRoot}
}

func waitTerminal(t *testing.T, mgr *Manager, id string, within time.Duration) View {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		view, ok := mgr.GetJob(id)
		require.True(t, ok)
		if view.Status.Terminal() {
			return view
		}
		time.Sleep(20 * time.Millisecond)
	}
	view, _ := mgr.GetJob(id)
	t.Fatalf("job %s did not reach a terminal status in %s (status=%s stage=%s)", id, within, view.Status, view.Stage)
	return View{}
}

func TestStartJobValidation(t *testing.T) {
	env := newTestEnv(t, &scriptedGen{responses: []string{"unused"}}, nil)

	t.Run("InvalidHost", func(t *testing.T) {
		_, err := env.mgr.StartJob(Request{VideoURL: "https://example.com/video", ASRModel: "base"})
		failure, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidURL, failure.FailureCode)
	})

	t.Run("NonHTTPScheme", func(t *testing.T) {
		_, err := env.mgr.StartJob(Request{VideoURL: "ftp://youtube.com/watch?v=x", ASRModel: "base"})
		failure, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidURL, failure.FailureCode)
	})

	t.Run("EmptyModel", func(t *testing.T) {
		_, err := env.mgr.StartJob(Request{VideoURL: "https://youtu.be/AAAAAAAAAAA", ASRModel: "  "})
		failure, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, CodeASRModelUnavailable, failure.FailureCode)
	})

	t.Run("ValidRequestIsQueued", func(t *testing.T) {
		view, err := env.mgr.StartJob(testRequest())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(view.ID, "ytjob-"))
		waitTerminal(t, env.mgr, view.ID, 10*time.Second)
	})
}

func TestHappyPath(t *testing.T) {
	gen := &scriptedGen{responses: []string{testHooksJSON, testDrafts()}}
	env := newTestEnv(t, gen, nil)

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)

	final := waitTerminal(t, env.mgr, view.ID, 15*time.Second)
	require.Equal(t, StatusDone, final.Status, "error: %+v", final.Err)
	assert.Equal(t, 1.0, final.Progress)
	assert.True(t, strings.HasPrefix(final.Summary, "T highlights "))
	assert.Equal(t, "AAAAAAAAAAA", final.Artifacts.VideoID)
	assert.Equal(t, "T", final.Artifacts.Title)
	assert.Equal(t, "U", final.Artifacts.Channel)
	assert.Equal(t, 60, final.Artifacts.DurationSec)

	outDir := filepath.Join(env.dataRoot, "youtube", "AAAAAAAAAAA")
	assert.Equal(t, outDir, final.Artifacts.OutputDir)

	transcript, err := os.ReadFile(filepath.Join(outDir, "transcript.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(transcript))

	var hooks validator.HooksPayload
	hooksRaw, err := os.ReadFile(filepath.Join(outDir, "hooks.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(hooksRaw, &hooks))
	require.Len(t, hooks.Hooks, 3)
	assert.False(t, hooks.HasTimestamps)
	for i, h := range hooks.Hooks {
		assert.Equal(t, i+1, h.Rank)
		assert.GreaterOrEqual(t, len(h.SupportingMoments), 2)
		assert.LessOrEqual(t, len(h.SupportingMoments), 3)
	}
	_, perr := time.Parse(time.RFC3339, hooks.GeneratedAtUTC)
	assert.NoError(t, perr)

	thread, err := os.ReadFile(filepath.Join(outDir, "x_thread.txt"))
	require.NoError(t, err)
	posts := strings.Split(strings.TrimSpace(string(thread)), "\n\n")
	require.Len(t, posts, 5)
	for i, p := range posts {
		assert.True(t, strings.HasPrefix(p, fmt.Sprintf("[%d/5] ", i+1)))
		assert.LessOrEqual(t, len(p), 280)
	}

	carousel, err := os.ReadFile(filepath.Join(outDir, "linkedin_carousel.md"))
	require.NoError(t, err)
	slideCount := strings.Count(string(carousel), "Slide ")
	assert.GreaterOrEqual(t, slideCount, 5)
	assert.LessOrEqual(t, slideCount, 8)

	newsletter, err := os.ReadFile(filepath.Join(outDir, "newsletter_summary.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(newsletter), "===")
	assert.GreaterOrEqual(t, len(newsletter), 320)

	var facts validator.FactsSheet
	factsRaw, err := os.ReadFile(filepath.Join(outDir, "facts_sheet.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(factsRaw, &facts))
	assert.Len(t, facts.KeyPoints, 5)

	_, err = os.ReadFile(filepath.Join(outDir, "metadata.json"))
	assert.NoError(t, err)

	// keepAudio defaults to false, so the work dir is gone.
	_, statErr := os.Stat(filepath.Join(outDir, "work"))
	assert.True(t, os.IsNotExist(statErr))

	// One hooks call plus one drafts call; no repairs were needed.
	assert.Equal(t, 2, gen.callCount())
}

func TestHooksExtractedFromFenceWithoutRepair(t *testing.T) {
	fenced := "Sure, here's the JSON you asked for:\n```json\n" + testHooksJSON + "\n```\nLet me know if you need anything else."
	gen := &scriptedGen{responses: []string{fenced, testDrafts()}}
	env := newTestEnv(t, gen, nil)

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)
	final := waitTerminal(t, env.mgr, view.ID, 15*time.Second)
	require.Equal(t, StatusDone, final.Status, "error: %+v", final.Err)

	// The fence extraction must succeed on the first call: exactly one hooks
	// call and one drafts call.
	assert.Equal(t, 2, gen.callCount())
}

func TestHooksInvalidAfterRepairFailsJob(t *testing.T) {
	gen := &scriptedGen{responses: []string{"not json at all", "still not json"}}
	env := newTestEnv(t, gen, nil)

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)
	final := waitTerminal(t, env.mgr, view.ID, 15*time.Second)

	require.Equal(t, StatusFailed, final.Status)
	require.NotNil(t, final.Err)
	assert.Equal(t, CodeHooksExtractionFailed, final.Err.Code)
	assert.Equal(t, "HOOKS_JSON_INVALID", final.Err.Subcode)
	assert.Equal(t, 2, gen.callCount(), "exactly one repair call is allowed")
}

func TestDownloadTimeout(t *testing.T) {
	gen := &scriptedGen{responses: []string{"unused"}}
	env := newTestEnv(t, gen, func(cfg *ManagerConfig) {
		cfg.DownloadTimeoutSec = 1
	})

	// Replace the fetcher with one that resolves fast but hangs on download.
	dir := t.TempDir()
	slow := writeScript(t, dir, "yt-dlp-slow", `case "$1" in
--dump-single-json)
  printf '{"id":"AAAAAAAAAAA","title":"T","uploader":"U","duration":60}'
  ;;
*)
  sleep 30
  ;;
esac`)
	env.mgr.cfg.YtDlpPath = slow

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)
	final := waitTerminal(t, env.mgr, view.ID, 20*time.Second)

	require.Equal(t, StatusFailed, final.Status)
	require.NotNil(t, final.Err)
	assert.Equal(t, CodeYoutubeDownloadFailed, final.Err.Code)
	assert.Contains(t, final.Err.Message, "Timeout after 1s")
	assert.Equal(t, 1, final.Err.Details["timeoutSec"])
	_, hasStdout := final.Err.Details["stdout"]
	assert.True(t, hasStdout)
	_, hasStderr := final.Err.Details["stderr"]
	assert.True(t, hasStderr)
}

func TestCancelWhileQueued(t *testing.T) {
	gen := &scriptedGen{responses: []string{testHooksJSON, testDrafts()}}
	env := newTestEnv(t, gen, nil)

	// Job A holds the single slot by sleeping inside the fetcher.
	dir := t.TempDir()
	env.mgr.cfg.YtDlpPath = writeScript(t, dir, "yt-dlp-hold", `sleep 30`)

	jobA, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)

	// Wait until A is Running so it owns the semaphore slot.
	require.Eventually(t, func() bool {
		view, _ := env.mgr.GetJob(jobA.ID)
		return view.Status == StatusRunning
	}, 5*time.Second, 20*time.Millisecond)

	jobB, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)

	view, ok := env.mgr.CancelJob(jobB.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, view.Status)
	require.NotNil(t, view.Err)
	assert.Equal(t, CodeJobCancelled, view.Err.Code)
	assert.Contains(t, view.Err.Message, "waiting for execution slot")

	// A is unaffected by B's cancellation.
	viewA, _ := env.mgr.GetJob(jobA.ID)
	assert.Equal(t, StatusRunning, viewA.Status)

	// Cancelling A interrupts the hung fetcher promptly.
	_, ok = env.mgr.CancelJob(jobA.ID)
	require.True(t, ok)
	finalA := waitTerminal(t, env.mgr, jobA.ID, 8*time.Second)
	assert.Equal(t, StatusCancelled, finalA.Status)
	assert.Equal(t, CodeJobCancelled, finalA.Err.Code)
}

func TestCancelIsIdempotentOnTerminalJobs(t *testing.T) {
	gen := &scriptedGen{responses: []string{testHooksJSON, testDrafts()}}
	env := newTestEnv(t, gen, nil)

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)
	final := waitTerminal(t, env.mgr, view.ID, 15*time.Second)
	require.Equal(t, StatusDone, final.Status)

	first, ok := env.mgr.CancelJob(view.ID)
	require.True(t, ok)
	second, ok := env.mgr.CancelJob(view.ID)
	require.True(t, ok)

	assert.Equal(t, StatusDone, first.Status)
	assert.Equal(t, first, second)
}

func TestXThreadTooLongAfterRepair(t *testing.T) {
	longPost := strings.Repeat("x", 300)
	badThread := fmt.Sprintf("[1/5] one\n[2/5] two\n[3/5] %s\n[4/5] four\n[5/5] five", longPost)
	badDrafts := strings.Replace(testDrafts(),
		"[1/5] First post about O1\n[2/5] Second post about O2\n[3/5] Third post about O3\n[4/5] Fourth post with proof\n[5/5] Fifth post wrapping up",
		badThread, 1)

	// Call order: hooks, drafts, x-thread repair (also too long).
	gen := &scriptedGen{responses: []string{testHooksJSON, badDrafts, badThread}}
	env := newTestEnv(t, gen, nil)

	view, err := env.mgr.StartJob(testRequest())
	require.NoError(t, err)
	final := waitTerminal(t, env.mgr, view.ID, 15*time.Second)

	switch final.Status {
	case StatusDone:
		thread, err := os.ReadFile(filepath.Join(env.dataRoot, "youtube", "AAAAAAAAAAA", "x_thread.txt"))
		require.NoError(t, err)
		posts := strings.Split(strings.TrimSpace(string(thread)), "\n\n")
		require.Len(t, posts, 5)
		for i, p := range posts {
			assert.True(t, strings.HasPrefix(p, fmt.Sprintf("[%d/5] ", i+1)))
			assert.LessOrEqual(t, len(p), 280)
		}
	case StatusFailed:
		require.NotNil(t, final.Err)
		assert.Equal(t, CodeDraftsGenerationFailed, final.Err.Code)
		assert.Equal(t, "DRAFTS_VALIDATION_FAILED", final.Err.Subcode)
	default:
		t.Fatalf("unexpected terminal status %s", final.Status)
	}
}

func TestDependencyStatusShape(t *testing.T) {
	env := newTestEnv(t, &scriptedGen{responses: []string{"unused"}}, nil)
	status := env.mgr.DependencyStatus()

	assert.Contains(t, status, "ready")
	assert.Contains(t, status, "ytDlp")
	assert.Contains(t, status, "ffmpeg")
	assert.Equal(t, env.dataRoot, status["dataRoot"])
	assert.Equal(t, 1, status["maxConcurrentJobs"])
}
