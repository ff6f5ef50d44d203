package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"yt-studio/internal/diagnostics"
	"yt-studio/internal/pipeline/process"
	"yt-studio/internal/validator"
	"yt-studio/pkg/logger"
)

// runContext carries the per-job state threaded through the stage sequence.
// It is owned exclusively by the worker goroutine; nothing here is shared
// with the JobStore's locked fields except through the store's own API.
type runContext struct {
	mgr *Manager
	job *Job
	ctx context.Context
	gen Generator

	videoID     string
	title       string
	channel     string
	durationSec int

	workDir    string
	outputDir  string
	sourcePath string
	wavPath    string

	transcript string

	hooks *validator.HooksPayload
	facts *validator.FactsSheet

	linkedinText   string
	xThreadText    string
	newsletterText string

	summary string
}

// execute drives the job through every stage in order, returning the first
// failure encountered. A nil return means the job is ready for Done.
func (rc *runContext) execute() error {
	stages := []struct {
		stage Stage
		fn    func() error
	}{
		{StageResolving, rc.stageResolving},
		{StageDownloadingAudio, rc.stageDownloadingAudio},
		{StageConvertingAudio, rc.stageConvertingAudio},
		{StageTranscribing, rc.stageTranscribing},
		{StageWritingTranscript, rc.stageWritingTranscript},
		{StageExtractingHooks, rc.stageExtractingHooks},
		{StageGeneratingDrafts, rc.stageGeneratingDrafts},
		{StageWritingAssets, rc.stageWritingAssets},
	}

	for _, s := range stages {
		if rc.ctx.Err() != nil {
			return NewFailure(CodeJobCancelled, "Job cancelled.")
		}
		rc.mgr.store.transitionStage(rc.job.ID, s.stage)
		logger.JobStarted(rc.job.ID, string(s.stage))
		if err := s.fn(); err != nil {
			return err
		}
	}
	return nil
}

func (rc *runContext) runCommand(command string, args []string, timeoutSec int, failureCode Code, message string) (string, string, error) {
	stdout, stderr, err := process.Run(rc.ctx, process.Config{
		Command:         command,
		Args:            args,
		TimeoutSec:      timeoutSec,
		CancelCh:        rc.ctx.Done(),
		MaxCaptureBytes: rc.mgr.cfg.LogCaptureMaxChars,
		OnAttach:        rc.job.attachProcess,
		OnDetach:        rc.job.detachProcess,
	})
	if err != nil {
		return "", "", rc.mapProcessError(err, failureCode, message, timeoutSec, append([]string{command}, args...))
	}
	return stdout, stderr, nil
}

func (rc *runContext) mapProcessError(err error, code Code, message string, timeoutSec int, argv []string) error {
	pe, ok := err.(*process.Error)
	if !ok {
		return NewFailure(code, message).WithDetail("reason", err.Error())
	}
	switch pe.Outcome {
	case process.OutcomeCancelled:
		return NewFailure(CodeJobCancelled, "Job cancelled.")
	case process.OutcomeTimeout:
		return NewFailure(code, fmt.Sprintf("%s Timeout after %ds.", message, timeoutSec)).
			WithDetail("timeoutSec", timeoutSec).
			WithDetail("command", argv).
			WithDetail("stdout", pe.Stdout).
			WithDetail("stderr", pe.Stderr).
			WithDetail("outputTruncated", pe.Truncated)
	case process.OutcomeExitError:
		return NewFailure(code, message).
			WithDetail("exitCode", pe.ExitCode).
			WithDetail("command", argv).
			WithDetail("stdout", pe.Stdout).
			WithDetail("stderr", pe.Stderr).
			WithDetail("outputTruncated", pe.Truncated)
	default:
		return NewFailure(CodeDependencyMissing, message).WithDetail("reason", pe.Error())
	}
}

func sanitizeVideoID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if len(s) > 96 {
		s = s[:96]
	}
	return s
}

type ytDlpMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

func (rc *runContext) stageResolving() error {
	timeout := rc.mgr.cfg.DownloadTimeoutSec
	if timeout > 300 {
		timeout = 300
	}
	stdout, _, err := rc.runCommand(rc.mgr.cfg.YtDlpPath, []string{"--dump-single-json", "--no-warnings", "--no-playlist", rc.job.Req.VideoURL}, timeout, CodeYoutubeDownloadFailed, "Failed to resolve video metadata.")
	if err != nil {
		return err
	}

	var meta ytDlpMetadata
	if err := json.Unmarshal([]byte(stdout), &meta); err != nil {
		return NewFailure(CodeYoutubeDownloadFailed, "Video metadata response was not valid JSON.").WithDetail("stdout", truncateForDetail(stdout))
	}

	videoID := sanitizeVideoID(meta.ID)
	if videoID == "" {
		return NewFailure(CodeInvalidURL, "Resolved video id was empty after sanitization.")
	}

	channel := meta.Uploader
	if channel == "" {
		channel = meta.Channel
	}

	rc.videoID = videoID
	rc.title = meta.Title
	rc.channel = channel
	rc.durationSec = int(meta.Duration)
	rc.outputDir = filepath.Join(rc.mgr.cfg.DataRoot, "youtube", videoID)
	rc.workDir = filepath.Join(rc.outputDir, "work")

	if err := os.MkdirAll(rc.workDir, 0o755); err != nil {
		return NewFailure(CodeIOWriteFailed, "Failed to create job work directory.").WithDetail("reason", err.Error())
	}

	rc.mgr.store.withJob(rc.job.ID, func(j *Job) {
		j.Artifacts.VideoID = rc.videoID
		j.Artifacts.Title = rc.title
		j.Artifacts.Channel = rc.channel
		j.Artifacts.DurationSec = rc.durationSec
		j.Artifacts.OutputDir = rc.outputDir
	})
	return nil
}

func (rc *runContext) stageDownloadingAudio() error {
	output := filepath.Join(rc.workDir, "source.%(ext)s")
	_, _, err := rc.runCommand(rc.mgr.cfg.YtDlpPath, []string{"-f", "bestaudio", "--no-playlist", "-o", output, rc.job.Req.VideoURL}, rc.mgr.cfg.DownloadTimeoutSec, CodeYoutubeDownloadFailed, "Failed to download audio.")
	if err != nil {
		return err
	}

	matches, _ := filepath.Glob(filepath.Join(rc.workDir, "source.*"))
	if len(matches) == 0 {
		return NewFailure(CodeYoutubeDownloadFailed, "No downloaded audio file was found.")
	}
	rc.sourcePath = mostRecentlyModified(matches)
	return nil
}

func mostRecentlyModified(paths []string) string {
	best := paths[0]
	var bestTime time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			bestTime = info.ModTime()
			best = p
		}
	}
	return best
}

func (rc *runContext) stageConvertingAudio() error {
	rc.wavPath = filepath.Join(rc.workDir, "audio.wav")
	_, _, err := rc.runCommand(rc.mgr.cfg.FFmpegPath, []string{"-y", "-i", rc.sourcePath, "-ar", "16000", "-ac", "1", rc.wavPath}, rc.mgr.cfg.ConvertTimeoutSec, CodeAudioConvertFailed, "Failed to convert audio to 16kHz mono WAV.")
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(rc.wavPath); statErr != nil {
		return NewFailure(CodeAudioConvertFailed, "Converted audio file was not found after ffmpeg exited cleanly.")
	}
	return nil
}

func (rc *runContext) stageTranscribing() error {
	audio, err := os.ReadFile(rc.wavPath)
	if err != nil {
		return NewFailure(CodeIOWriteFailed, "Failed to read converted audio.").WithDetail("reason", err.Error())
	}

	text, err := rc.mgr.transcribe(rc.ctx, audio, rc.job.Req.ASREngine, rc.job.Req.ASRModel, rc.job.Req.LanguageHint, rc.job.ID)
	if err != nil {
		if Cancelled(err) {
			return NewFailure(CodeJobCancelled, "Job cancelled.")
		}
		return NewFailure(CodeASRTranscribeFailed, "Speech-to-text transcription failed.").WithDetail("reason", err.Error())
	}
	rc.transcript = text
	return nil
}

func (rc *runContext) stageWritingTranscript() error {
	rc.mgr.store.advanceProgress(rc.job.ID, 0.5)
	path := filepath.Join(rc.outputDir, "transcript.txt")
	if err := writeTextFile(path, rc.transcript); err != nil {
		return err
	}
	rc.mgr.store.withJob(rc.job.ID, func(j *Job) { j.Artifacts.TranscriptPath = path })
	return nil
}

func writeTextFile(path, content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return NewFailure(CodeIOWriteFailed, fmt.Sprintf("Failed to write %s.", filepath.Base(path))).WithDetail("reason", err.Error())
	}
	return nil
}

const hooksJSONSchema = `{"hasTimestamps": false, "hooks": [{"rank": 1, "hook": "string", "who": "string", "outcome": "string", "proof": "string", "supporting_moments": [{"quote": "string", "startSec": null, "endSec": null}]}]}`

func (rc *runContext) stageExtractingHooks() error {
	rc.ctx = diagnostics.WithJobID(diagnostics.WithStage(rc.ctx, "ExtractingHooks"), rc.job.ID)
	excerpt := BuildExcerpt(rc.transcript, maxInt(rc.job.Req.Generation.MaxInputChars, 2000))

	systemPrompt := "You extract structured marketing hooks from a video transcript. Respond with raw JSON only, never inside a markdown code fence."
	userPrompt := fmt.Sprintf(
		"Target JSON schema:\n%s\n\nTitle: %s\nChannel: %s\nDurationSec: %d\nDraft tone: %s\n\nTranscript excerpt:\n%s",
		hooksJSONSchema, rc.title, rc.channel, rc.durationSec, rc.job.Req.DraftTone, excerpt,
	)

	raw, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt, userPrompt, 0.2, 2000)
	if err != nil {
		return err
	}

	payload, parseErr := validator.ParseHooks(raw)
	if parseErr != nil {
		repairPrompt := fmt.Sprintf("The following was supposed to be JSON matching this schema but failed to parse:\n%s\n\nSchema:\n%s\n\nRespond with corrected raw JSON only.", raw, hooksJSONSchema)
		repaired, repairErr := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt, repairPrompt, 0.0, 2200)
		if repairErr != nil {
			return repairErr
		}
		payload, parseErr = validator.ParseHooks(repaired)
		if parseErr != nil {
			return NewFailure(CodeHooksExtractionFailed, "Model output could not be parsed as hooks JSON after one repair attempt.").WithSubcode("HOOKS_JSON_INVALID")
		}
	}

	now := time.Now()
	normalized := validator.Normalize(payload, string(rc.job.Req.DraftTone), now)

	if validator.IsPlaceholder(normalized) {
		if derived, ok := validator.DeriveFallbackHooks(rc.transcript, string(rc.job.Req.DraftTone), now); ok {
			normalized = derived
		}
	}
	rc.hooks = normalized

	hooksPath := filepath.Join(rc.outputDir, "hooks.json")
	if err := writeJSONFile(hooksPath, rc.hooks); err != nil {
		return err
	}

	rc.facts = validator.BuildFactsSheet(rc.title, rc.channel, rc.hooks, string(rc.job.Req.DraftTone), now)
	factsPath := filepath.Join(rc.outputDir, "facts_sheet.json")
	if err := writeJSONFile(factsPath, rc.facts); err != nil {
		return err
	}

	rc.mgr.store.withJob(rc.job.ID, func(j *Job) {
		j.Artifacts.HooksPath = hooksPath
		j.Artifacts.FactsSheetPath = factsPath
	})
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return NewFailure(CodeIOWriteFailed, fmt.Sprintf("Failed to encode %s.", filepath.Base(path))).WithDetail("reason", err.Error())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewFailure(CodeIOWriteFailed, fmt.Sprintf("Failed to write %s.", filepath.Base(path))).WithDetail("reason", err.Error())
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// groundingContext composes the hooks JSON plus up to nine deduplicated
// quote cues extracted from supporting_moments, case-insensitive dedup
// preserving first occurrence.
func (rc *runContext) groundingContext() string {
	hooksJSON, _ := json.Marshal(rc.hooks)

	seen := map[string]bool{}
	var quotes []string
	for _, h := range rc.hooks.Hooks {
		for _, m := range h.SupportingMoments {
			q := strings.TrimSpace(m.Quote)
			if q == "" || seen[strings.ToLower(q)] {
				continue
			}
			seen[strings.ToLower(q)] = true
			quotes = append(quotes, q)
			if len(quotes) == 9 {
				break
			}
		}
		if len(quotes) == 9 {
			break
		}
	}

	var b strings.Builder
	b.Write(hooksJSON)
	b.WriteString("\n\nQuote cues:\n")
	for _, q := range quotes {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return b.String()
}

const draftsDelimiterPrompt = "Respond with exactly three sections in this order, each introduced by its own delimiter line with no other text on that line: ===LINKEDIN_CAROUSEL=== then 5 to 8 slides each starting with \"Slide N:\"; ===X_THREAD=== then exactly 5 posts each starting with \"[N/5] \" and at most 280 characters; ===NEWSLETTER_SUMMARY=== then a markdown summary with at least one heading and one bullet list, at least 320 characters, containing no further === delimiters."

func (rc *runContext) stageGeneratingDrafts() error {
	rc.ctx = diagnostics.WithJobID(diagnostics.WithStage(rc.ctx, "GeneratingDrafts"), rc.job.ID)
	systemPrompt := "You write social and newsletter drafts promoting a video, grounded strictly in the supplied hooks and quote cues."
	grounding := rc.groundingContext()
	userPrompt := fmt.Sprintf("%s\n\nDraft tone: %s\n\nGrounding context:\n%s", draftsDelimiterPrompt, rc.job.Req.DraftTone, grounding)

	raw, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt, userPrompt, 0.3, 3000)
	if err != nil {
		return err
	}

	linkedinRaw, xThreadRaw, newsletterRaw, ok := validator.SplitDrafts(raw)
	if !ok {
		repairPrompt := fmt.Sprintf("%s\n\nYour previous response did not contain all three delimiters. Previous response:\n%s", draftsDelimiterPrompt, raw)
		repaired, repairErr := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt, repairPrompt, 0.1, 3200)
		if repairErr != nil {
			return repairErr
		}
		linkedinRaw, xThreadRaw, newsletterRaw, ok = validator.SplitDrafts(repaired)
		if !ok {
			linkedinRaw, xThreadRaw, newsletterRaw, err = rc.generatePerSection(systemPrompt, grounding)
			if err != nil {
				return err
			}
		}
	}

	linkedinSlides, linkedinOK := validator.ValidateLinkedIn(linkedinRaw)
	if !linkedinOK {
		linkedinSlides, linkedinOK = rc.repairLinkedIn(systemPrompt, grounding, linkedinRaw)
	}
	if linkedinOK {
		rc.linkedinText = strings.Join(linkedinSlides, "\n\n")
	} else {
		rc.linkedinText = validator.FallbackLinkedIn(rc.hooks)
	}

	xPosts, xOK := validator.ValidateXThread(xThreadRaw)
	xTruncSource := xThreadRaw
	if !xOK {
		xPosts, xOK, xTruncSource = rc.repairXThread(systemPrompt, grounding, xThreadRaw)
	}
	if !xOK {
		truncated := make([]string, 5)
		lines := firstFiveLines(xTruncSource)
		allFit := len(lines) == 5
		for i := 0; i < 5 && allFit; i++ {
			truncated[i] = validator.TruncateXPost(i+1, lines[i])
		}
		if allFit {
			xPosts, xOK = truncated, true
		}
	}
	if !xOK {
		return NewFailure(CodeDraftsGenerationFailed, "X thread draft could not be produced in a valid 5-post form.").WithSubcode("DRAFTS_VALIDATION_FAILED")
	}
	rc.xThreadText = strings.Join(xPosts, "\n\n")

	if !validator.ValidateNewsletter(newsletterRaw) {
		newsletterRaw = rc.repairNewsletter(systemPrompt, grounding, newsletterRaw)
		if !validator.ValidateNewsletter(newsletterRaw) {
			newsletterRaw = validator.FallbackNewsletter(rc.hooks, rc.facts)
		}
	}
	rc.newsletterText = newsletterRaw

	return nil
}

var xMarkerPrefixRe = regexp.MustCompile(`^\[\d/5\]\s*`)

func firstFiveLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = xMarkerPrefixRe.ReplaceAllString(strings.TrimSpace(l), "")
		if l != "" {
			lines = append(lines, l)
		}
		if len(lines) == 5 {
			break
		}
	}
	return lines
}

func (rc *runContext) generatePerSection(systemPrompt, grounding string) (string, string, string, error) {
	linkedin, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("Write only the LinkedIn carousel section (5 to 8 \"Slide N:\" lines).\n\nGrounding context:\n%s", grounding), 0.25, 1200)
	if err != nil {
		return "", "", "", err
	}
	xThread, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("Write only the X thread section (exactly 5 \"[N/5] \" posts, each at most 280 characters).\n\nGrounding context:\n%s", grounding), 0.25, 800)
	if err != nil {
		return "", "", "", err
	}
	newsletter, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("Write only the newsletter summary section (markdown, at least one heading and bullet list, at least 320 characters).\n\nGrounding context:\n%s", grounding), 0.25, 1000)
	if err != nil {
		return "", "", "", err
	}
	return linkedin, xThread, newsletter, nil
}

func (rc *runContext) repairLinkedIn(systemPrompt, grounding, previous string) ([]string, bool) {
	repaired, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("The LinkedIn carousel below is invalid (needs 5 to 8 sequential \"Slide N:\" entries). Fix it.\n\nGrounding context:\n%s\n\nPrevious:\n%s", grounding, previous), 0.15, 1200)
	if err != nil {
		return nil, false
	}
	return validator.ValidateLinkedIn(repaired)
}

func (rc *runContext) repairXThread(systemPrompt, grounding, previous string) ([]string, bool, string) {
	repaired, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("The X thread below is invalid (needs exactly 5 \"[N/5] \" posts, each at most 280 characters). Fix it.\n\nGrounding context:\n%s\n\nPrevious:\n%s", grounding, previous), 0.15, 800)
	if err != nil {
		return nil, false, previous
	}
	posts, ok := validator.ValidateXThread(repaired)
	return posts, ok, repaired
}

func (rc *runContext) repairNewsletter(systemPrompt, grounding, previous string) string {
	repaired, err := rc.gen.Complete(rc.ctx, rc.job.Req.Generation.Model, systemPrompt,
		fmt.Sprintf("The newsletter summary below is invalid (needs a heading, a bullet list, at least 320 characters, no === markers). Fix it.\n\nGrounding context:\n%s\n\nPrevious:\n%s", grounding, previous), 0.15, 1000)
	if err != nil {
		return previous
	}
	return repaired
}

func (rc *runContext) stageWritingAssets() error {
	linkedinPath := filepath.Join(rc.outputDir, "linkedin_carousel.md")
	xThreadPath := filepath.Join(rc.outputDir, "x_thread.txt")
	newsletterPath := filepath.Join(rc.outputDir, "newsletter_summary.md")

	for _, f := range []struct{ path, content string }{
		{linkedinPath, rc.linkedinText},
		{xThreadPath, rc.xThreadText},
		{newsletterPath, rc.newsletterText},
	} {
		if err := writeTextFile(f.path, f.content); err != nil {
			return err
		}
	}

	rc.summary = buildSummary(rc.title, rc.hooks)
	summaryPath := filepath.Join(rc.outputDir, "summary.txt")
	if err := writeTextFile(summaryPath, rc.summary); err != nil {
		return err
	}

	metadata := map[string]any{
		"videoId":     rc.videoID,
		"title":       rc.title,
		"channel":     rc.channel,
		"durationSec": rc.durationSec,
		"artifacts": map[string]string{
			"transcript":         filepath.Join(rc.outputDir, "transcript.txt"),
			"summary":            summaryPath,
			"hooks":              filepath.Join(rc.outputDir, "hooks.json"),
			"factsSheet":         filepath.Join(rc.outputDir, "facts_sheet.json"),
			"linkedinCarousel":   linkedinPath,
			"xThread":            xThreadPath,
			"newsletterSummary":  newsletterPath,
		},
	}
	if err := writeJSONFile(filepath.Join(rc.outputDir, "metadata.json"), metadata); err != nil {
		return err
	}

	rc.mgr.store.withJob(rc.job.ID, func(j *Job) {
		j.Artifacts.SummaryPath = summaryPath
		j.Artifacts.LinkedInPath = linkedinPath
		j.Artifacts.XThreadPath = xThreadPath
		j.Artifacts.NewsletterPath = newsletterPath
	})

	if !rc.job.Req.KeepAudio {
		_ = os.RemoveAll(rc.workDir)
	}
	return nil
}

func buildSummary(title string, hooks *validator.HooksPayload) string {
	outcomes := make([]string, 0, 3)
	for _, h := range hooks.Hooks {
		if o := strings.TrimSpace(h.Outcome); o != "" {
			outcomes = append(outcomes, o)
		}
	}
	if len(outcomes) == 0 {
		return "This video's highlights could not be summarized from the extracted hooks."
	}
	summary := fmt.Sprintf("%s highlights %s.", title, strings.Join(outcomes, "; "))
	if len(summary) > 800 {
		summary = summary[:797] + "..."
	}
	return summary
}

func truncateForDetail(s string) string {
	if len(s) > 2000 {
		return s[:2000]
	}
	return s
}
