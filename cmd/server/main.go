package main

import (
	"yt-studio/internal/cli"

	_ "yt-studio/api-docs" // Import generated Swagger docs
)

// @title YT Studio API
// @version 1.0
// @description Local backend turning a youtube URL into transcript, hooks, and draft artifacts, with raw STT/TTS passthrough endpoints.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	cli.Execute()
}
