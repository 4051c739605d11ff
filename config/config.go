/*
   Process configuration. Values start from Default, are overlaid with an
   optional YAML file and finally with command line flags.
*/
package config

import (
	"io"
	"os"
	"time"

	"github.com/Ahmed-Sermani/motorec/propagation"
	"github.com/Ahmed-Sermani/motorec/ranker"
	"github.com/Ahmed-Sermani/motorec/recommend"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataURI selects the row store: in-memory://, file://fixture.yaml or
	// postgresql://...
	DataURI string `yaml:"data_uri"`

	Log struct {
		Level string `yaml:"level"`
		// Format is either "text" or "json".
		Format string `yaml:"format"`
	} `yaml:"log"`

	Metrics struct {
		// Addr is where /metrics is served. Empty disables the endpoint.
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Ranker struct {
		DampingFactor float64 `yaml:"damping_factor"`
		Tolerance     float64 `yaml:"tolerance"`
		MaxIterations int     `yaml:"max_iterations"`
		Workers       int     `yaml:"workers"`
	} `yaml:"ranker"`

	Propagation struct {
		MaxIterations        int     `yaml:"max_iterations"`
		Retention            float64 `yaml:"retention"`
		ConvergenceThreshold float64 `yaml:"convergence_threshold"`
		ExpansionFanout      int     `yaml:"expansion_fanout"`
	} `yaml:"propagation"`

	Popularity struct {
		UpdateInterval time.Duration `yaml:"update_interval"`
	} `yaml:"popularity"`

	Digest struct {
		UpdateInterval time.Duration `yaml:"update_interval"`
		TopN           int           `yaml:"top_n"`
		Workers        int           `yaml:"workers"`
	} `yaml:"digest"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := new(Config)
	cfg.DataURI = "in-memory://"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Ranker.DampingFactor = ranker.DefaultDampingFactor
	cfg.Ranker.Tolerance = ranker.DefaultTolerance
	cfg.Ranker.MaxIterations = ranker.DefaultMaxIterations
	cfg.Ranker.Workers = 1

	cfg.Propagation.MaxIterations = propagation.DefaultMaxIterations
	cfg.Propagation.Retention = propagation.DefaultRetention
	cfg.Propagation.ExpansionFanout = propagation.DefaultExpansionFanout

	cfg.Popularity.UpdateInterval = time.Hour
	cfg.Digest.UpdateInterval = 6 * time.Hour
	cfg.Digest.TopN = 10
	return cfg
}

// Load overlays the YAML document read from r on the defaults and
// validates the result. An empty document yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !xerrors.Is(err, io.EOF) {
		return nil, xerrors.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load for a file on disk.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("read config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.DataURI == "" {
		err = multierror.Append(err, xerrors.Errorf("data_uri must be set"))
	}
	if _, lErr := logrus.ParseLevel(c.Log.Level); lErr != nil {
		err = multierror.Append(err, xerrors.Errorf("log.level: %w", lErr))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		err = multierror.Append(err, xerrors.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if d := c.Ranker.DampingFactor; d <= 0 || d >= 1 {
		err = multierror.Append(err, xerrors.Errorf("ranker.damping_factor must be in (0, 1), got %v", d))
	}
	if c.Ranker.Tolerance <= 0 {
		err = multierror.Append(err, xerrors.Errorf("ranker.tolerance must be positive, got %v", c.Ranker.Tolerance))
	}
	if c.Ranker.MaxIterations <= 0 {
		err = multierror.Append(err, xerrors.Errorf("ranker.max_iterations must be positive, got %d", c.Ranker.MaxIterations))
	}
	if c.Propagation.MaxIterations < 0 {
		err = multierror.Append(err, xerrors.Errorf("propagation.max_iterations must not be negative, got %d", c.Propagation.MaxIterations))
	}
	if r := c.Propagation.Retention; r < 0 || r > 1 {
		err = multierror.Append(err, xerrors.Errorf("propagation.retention must be in [0, 1], got %v", r))
	}
	if c.Propagation.ConvergenceThreshold < 0 {
		err = multierror.Append(err, xerrors.Errorf("propagation.convergence_threshold must not be negative, got %v", c.Propagation.ConvergenceThreshold))
	}
	if c.Popularity.UpdateInterval <= 0 {
		err = multierror.Append(err, xerrors.Errorf("popularity.update_interval must be positive"))
	}
	if c.Digest.UpdateInterval <= 0 {
		err = multierror.Append(err, xerrors.Errorf("digest.update_interval must be positive"))
	}
	if c.Digest.TopN <= 0 {
		err = multierror.Append(err, xerrors.Errorf("digest.top_n must be positive, got %d", c.Digest.TopN))
	}
	return err
}

// NewLogger builds the root logger described by the log section.
func (c *Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, xerrors.Errorf("log level: %w", err)
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(new(logrus.JSONFormatter))
	}
	return l, nil
}

func (c *Config) RankerConfig() ranker.Config {
	return ranker.Config{
		DampingFactor:  c.Ranker.DampingFactor,
		Tolerance:      c.Ranker.Tolerance,
		MaxIterations:  c.Ranker.MaxIterations,
		ComputeWorkers: c.Ranker.Workers,
	}
}

// SessionConfig returns the engine settings of a recommendation session.
func (c *Config) SessionConfig() recommend.Config {
	retention := c.Propagation.Retention
	maxIterations := c.Propagation.MaxIterations
	return recommend.Config{
		Ranker: c.RankerConfig(),
		Propagation: propagation.Config{
			MaxIterations:        maxIterations,
			Retention:            &retention,
			ConvergenceThreshold: c.Propagation.ConvergenceThreshold,
			ExpansionFanout:      c.Propagation.ExpansionFanout,
		},
		MaxIterations: maxIterations,
		Retention:     &retention,
	}
}
