// Package binaries resolves the external tool paths the pipeline shells
// out to: an env override always wins, otherwise PATH is searched, and for
// the media fetcher we fall back to invoking it as a Python module.
package binaries

import (
	"os"
	"os/exec"
)

// Dependency describes the resolved location of an external tool.
type Dependency struct {
	Available bool   `json:"available"`
	Path      string `json:"path"`
}

func resolve(envKey, fallback string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return fallback
}

// FFmpeg returns the configured ffmpeg executable path.
func FFmpeg() string {
	return resolve("ST_YOUTUBE_FFMPEG_PATH", "ffmpeg")
}

// YtDLP returns the configured yt-dlp executable path.
func YtDLP() string {
	return resolve("ST_YOUTUBE_YTDLP_PATH", "yt-dlp")
}

// ProbeFFmpeg resolves and checks availability of ffmpeg on PATH.
func ProbeFFmpeg() Dependency {
	return probePath(FFmpeg())
}

// ProbeYtDLP resolves yt-dlp, falling back to "python3 -m yt_dlp --version"
// when the bare binary isn't on PATH (pip-installed as a module only).
func ProbeYtDLP() Dependency {
	bin := YtDLP()
	if dep := probePath(bin); dep.Available {
		return dep
	}
	if path, err := exec.LookPath("python3"); err == nil {
		cmd := exec.Command(path, "-m", "yt_dlp", "--version")
		if err := cmd.Run(); err == nil {
			return Dependency{Available: true, Path: path + " -m yt_dlp"}
		}
	}
	return Dependency{Available: false, Path: bin}
}

func probePath(bin string) Dependency {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Dependency{Available: false, Path: bin}
	}
	return Dependency{Available: true, Path: path}
}
