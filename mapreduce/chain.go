package mapreduce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// A Stage runs one round over input and publishes its output at dest.
// Stages are usually closures around RunRound with a concrete Job.
type Stage func(ctx context.Context, input DocumentSource, dest string) (Location, error)

// RunChain executes init once over corpus and then calc rounds times, each
// calc round reading the output of the round before it. The output of the
// last round is published at outputDir, which must not exist yet.
//
// Intermediate outputs live in a temporary folder below the configured
// TempDir. An intermediate output is removed as soon as the round consuming
// it has published, and the temporary folder is removed on every return path.
func RunChain(
	ctx context.Context,
	runner *Runner,
	corpus DocumentSource,
	init Stage,
	calc Stage,
	rounds int,
	outputDir string,
) (Location, error) {
	if rounds < 0 {
		return Location{}, fmt.Errorf("round count must not be negative, got %v", rounds)
	}
	if _, err := os.Stat(outputDir); err == nil {
		return Location{}, fmt.Errorf("%w: '%v'", ErrOutputExists, outputDir)
	}
	logger := runner.Logger().WithFields(logrus.Fields{
		"rounds": rounds,
		"output": outputDir,
	})
	tempDir, err := os.MkdirTemp(runner.Configuration().TempDir, "mrsearch-chain-")
	if err != nil {
		return Location{}, fmt.Errorf("creating chain folder: %w", err)
	}
	defer os.RemoveAll(tempDir)

	intermediate := func(round int) string {
		return filepath.Join(tempDir, fmt.Sprintf("round-%03d", round))
	}

	logger.Info("Running initialization round")
	previous, err := init(ctx, corpus, intermediate(0))
	if err != nil {
		return Location{}, err
	}
	if rounds == 0 {
		return previous.MoveTo(outputDir)
	}
	for round := 1; round <= rounds; round++ {
		dest := intermediate(round)
		if round == rounds {
			dest = outputDir
		}
		logger.WithField("round", round).Info("Running calculation round")
		next, err := calc(ctx, previous.Input(), dest)
		if err != nil {
			return Location{}, err
		}
		if err := previous.Remove(); err != nil {
			logger.Warnf("Unable to remove intermediate output '%v': %v", previous.Path(), err)
		}
		previous = next
	}
	return previous, nil
}
