// Package cli wires the cobra command tree: serve (the default action), the
// OS-service lifecycle commands, and flag/env binding for every runtime
// option the backend accepts.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by GoReleaser-style ldflags).
var (
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:     "yt-studio",
	Short:   "YT Studio backend",
	Long:    `Turns a youtube video URL into a transcript, hook candidates, and drafts, and serves raw STT/TTS passthrough endpoints.`,
	Version: fmt.Sprintf("%s (commit %s)", Version, Commit),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
