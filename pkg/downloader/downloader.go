// Package downloader fetches model artifacts over HTTP at startup so a
// fresh install can reach readiness without manual file placement. Writes
// go to a temp file first and are renamed into place only on success, so a
// torn download never masquerades as an installed model.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"yt-studio/pkg/logger"
)

// EnsureFile downloads url to dest unless dest already exists. Returns
// (false, nil) when the file was already present, (true, nil) after a
// successful fetch.
func EnsureFile(ctx context.Context, url, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		logger.Debug("Model artifact already present, skipping download", "path", dest)
		return false, nil
	}
	if err := Fetch(ctx, url, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Fetch downloads url to dest, creating parent directories as needed.
func Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("downloader: failed to create directory: %w", err)
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("downloader: failed to create file: %w", err)
	}
	defer out.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("downloader: failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloader: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloader: bad status: %s", resp.Status)
	}

	tracker := &progressTracker{
		total:    resp.ContentLength,
		filename: filepath.Base(dest),
		lastLog:  time.Now(),
	}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, tracker)); err != nil {
		return fmt.Errorf("downloader: failed to save file: %w", err)
	}

	// Close before renaming so the rename sees a flushed file on every OS.
	out.Close()
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("downloader: failed to move file into place: %w", err)
	}

	logger.Info("Downloaded model artifact", "url", url, "path", dest, "bytes", tracker.current)
	return nil
}

type progressTracker struct {
	total       int64
	current     int64
	filename    string
	lastLog     time.Time
	lastPercent int
}

func (pt *progressTracker) Write(p []byte) (int, error) {
	pt.current += int64(len(p))
	if pt.total <= 0 {
		return len(p), nil
	}
	percent := int(float64(pt.current) / float64(pt.total) * 100)
	if percent != pt.lastPercent && (percent%10 == 0 || time.Since(pt.lastLog) > 2*time.Second) {
		pt.lastPercent = percent
		pt.lastLog = time.Now()
		logger.Info("Downloading model artifact", "file", pt.filename, "percent", percent)
	}
	return len(p), nil
}
