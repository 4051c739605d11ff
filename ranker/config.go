package ranker

import (
	"io"

	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	DefaultDampingFactor = 0.85
	DefaultTolerance     = 1e-4
	DefaultMaxIterations = 200
)

// Config encapsulates the settings for the interaction ranker.
type Config struct {
	// DampingFactor is the fraction of a node's score pushed along its
	// edges each round. It must lie in (0, 1); zero selects the default
	// of 0.85.
	DampingFactor float64

	// Tolerance stops the iteration once the mean absolute score change
	// per node drops below it. Defaults to 1e-4.
	Tolerance float64

	// MaxIterations bounds the number of rounds. Zero selects the default
	// of 200.
	MaxIterations int

	// ComputeWorkers is the number of workers for each superstep. More
	// than one worker trades reproducible float summation for speed.
	ComputeWorkers int

	Logger  *logrus.Entry
	Metrics *metrics.Metrics
}

func (cfg *Config) validate() error {
	var err error
	if cfg.DampingFactor == 0 {
		cfg.DampingFactor = DefaultDampingFactor
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ComputeWorkers <= 0 {
		cfg.ComputeWorkers = 1
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = logrus.NewEntry(l)
	}

	if cfg.DampingFactor <= 0 || cfg.DampingFactor >= 1 {
		err = multierror.Append(err, xerrors.Errorf("damping factor must be in (0, 1), got %v", cfg.DampingFactor))
	}
	if cfg.Tolerance < 0 {
		err = multierror.Append(err, xerrors.Errorf("tolerance must not be negative, got %v", cfg.Tolerance))
	}
	if cfg.MaxIterations < 0 {
		err = multierror.Append(err, xerrors.Errorf("max iterations must not be negative, got %d", cfg.MaxIterations))
	}
	return err
}
