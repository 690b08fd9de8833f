package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/go2relay/pkg/log"
)

// Logger returns the CLI logger: console output on stderr at level.
func Logger(level string) zerolog.Logger {
	return log.NewConsoleLogger(os.Stderr, log.ParseLevel(level))
}
