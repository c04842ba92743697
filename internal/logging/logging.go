// Package logging configures the shared file-backed logger. The UI owns
// the terminal, so log output goes to a file in the runtime directory or
// nowhere at all.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/LatosProject/muxkit/internal/config"
)

// Setup returns a logger for the given role ("client" or "server"). When
// debug is false the logger discards everything.
func Setup(role string, debug bool) *log.Logger {
	if !debug {
		return log.New(io.Discard)
	}
	path, err := config.LogPath(role)
	if err != nil {
		return log.New(io.Discard)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return log.New(io.Discard)
	}
	logger := log.New(f)
	logger.SetLevel(log.DebugLevel)
	logger.SetReportTimestamp(true)
	logger.SetPrefix(role)
	return logger
}

// Debug reports whether debug logging was requested via the environment.
func Debug() bool {
	return os.Getenv("MUXKIT_DEBUG") != ""
}
