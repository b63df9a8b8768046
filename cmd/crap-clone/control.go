// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

// control is the global run context: the logger, the baton, and the
// run-wide switches that used to be scattered across reposurgeon's
// Control struct. One instance per process; the phases (parse, build,
// analyze, schedule) never run concurrently so no locking is needed here
// beyond what baton already does for its own channel.
type control struct {
	logger  *logrus.Logger
	baton   *baton
	verbose bool
}

func newControl(verbose, interactive bool) *control {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return &control{
		logger:  logger,
		baton:   newBaton(interactive),
		verbose: verbose,
	}
}

// croak logs a fatal diagnostic and terminates the process. It is the
// only place in the program that calls os.Exit outside of main.
func (c *control) croak(format string, args ...interface{}) {
	c.logger.Errorf(format, args...)
	c.baton.sync()
	os.Exit(1)
}

// logit is for the structured/leveled side channel; category groups
// messages by subsystem (scheduler, fixup, fetch, transport, ...).
func (c *control) logit(category string, format string, args ...interface{}) {
	c.logger.WithField("category", category).Debugf(format, args...)
}

// respond writes an unlogged, human-facing progress line straight to the
// baton: the per-changeset "COMMIT"/"TAG"/"BRANCH" lines on stderr.
func (c *control) respond(line string) {
	c.baton.printLogString(line)
}
