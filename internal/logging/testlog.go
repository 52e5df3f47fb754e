package logging

import (
	"github.com/rs/zerolog"
)

// ForTest routes log output through t.Log so it only shows for failing or
// verbose tests.
func ForTest(t zerolog.TestingLog) zerolog.Logger {
	ConfigureTests()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
