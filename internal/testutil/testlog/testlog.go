package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/stormglass/weemirror/internal/logging"
)

// Start configures test logging and returns a logger tagged with the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	log := logging.Logger("test")
	log.Info().Str("test", t.Name()).Msg("start")
	return log
}
