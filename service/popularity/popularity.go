/*
   Periodic popularity scoring. Every update interval the service ranks the
   items of the interaction graph and pushes the normalized scores to the
   catalog, where they order search results.
*/
package popularity

import (
	"context"
	"io"
	"time"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/Ahmed-Sermani/motorec/ranker"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/Ahmed-Sermani/motorec/service/popularity InteractionSource,ScoreSink

const serviceName = "popularity"

// InteractionSource is implemented by stores that hold actor→item
// interactions.
type InteractionSource interface {
	Interactions() (graph.InteractionIterator, error)
}

// ScoreSink is implemented by catalogs that accept popularity scores.
type ScoreSink interface {
	UpdateScore(itemID string, popularity float64) error

	// Features lists the indexed items.
	Features() ([]graph.ItemFeatures, error)
}

type Config struct {
	Interactions InteractionSource
	Catalog      ScoreSink

	// Ranker tunes the ranking runs. Its logger and metrics are set by the
	// service.
	Ranker ranker.Config

	// Clock drives the update timer. Defaults to the wall clock.
	Clock clock.Clock

	UpdateInterval time.Duration

	Logger  *logrus.Entry
	Metrics *metrics.Metrics
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Interactions == nil {
		err = multierror.Append(err, xerrors.Errorf("interaction source has not been provided"))
	}
	if cfg.Catalog == nil {
		err = multierror.Append(err, xerrors.Errorf("catalog has not been provided"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.UpdateInterval <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for update interval"))
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = logrus.NewEntry(l)
	}
	return err
}

// Service recomputes item popularity on a timer.
type Service struct {
	cfg Config
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("popularity service: config validation failed: %w", err)
	}
	return &Service{cfg: cfg}, nil
}

func (svc *Service) Name() string { return serviceName }

// Run blocks until ctx is cancelled or a pass fails.
func (svc *Service) Run(ctx context.Context) error {
	svc.cfg.Logger.WithField("update_interval", svc.cfg.UpdateInterval.String()).Info("starting service")
	defer svc.cfg.Logger.Info("stopped service")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-svc.cfg.Clock.After(svc.cfg.UpdateInterval):
			start := svc.cfg.Clock.Now()
			scored, err := svc.UpdateScores(ctx)
			took := svc.cfg.Clock.Now().Sub(start)
			svc.cfg.Metrics.ObserveRun(serviceName, took, err)
			if err != nil {
				return err
			}
			svc.cfg.Logger.WithFields(logrus.Fields{
				"items":            scored,
				"processing_time":  took.String(),
				"next_update_time": svc.cfg.Clock.Now().Add(svc.cfg.UpdateInterval).String(),
			}).Info("updated popularity scores")
		}
	}
}

// UpdateScores ranks the current interactions once and writes every score
// to the catalog. It returns the number of items scored.
func (svc *Service) UpdateScores(ctx context.Context) (int, error) {
	it, err := svc.cfg.Interactions.Interactions()
	if err != nil {
		return 0, xerrors.Errorf("popularity: %w", err)
	}
	rows, err := graph.CollectInteractions(it)
	if err != nil {
		return 0, xerrors.Errorf("popularity: %w", err)
	}

	rankCfg := svc.cfg.Ranker
	rankCfg.Logger = svc.cfg.Logger
	rankCfg.Metrics = svc.cfg.Metrics
	r, err := ranker.NewRanker(rankCfg)
	if err != nil {
		return 0, xerrors.Errorf("popularity: %w", err)
	}
	defer func() { _ = r.Close() }()

	built := r.Build(rows)
	if built.Dropped != 0 {
		svc.cfg.Logger.WithField("dropped", built.Dropped).Warn("skipped unusable interactions")
	}
	if _, err = r.Rank(ctx); err != nil {
		return 0, xerrors.Errorf("popularity: %w", err)
	}

	top := r.TopItems(0)
	ranked := make(map[string]struct{}, len(top))
	for _, item := range top {
		ranked[item.ItemID] = struct{}{}
		if err = svc.cfg.Catalog.UpdateScore(item.ItemID, item.Score); err != nil {
			return 0, xerrors.Errorf("popularity: update score of %q: %w", item.ItemID, err)
		}
	}

	// Indexed items nobody interacts with any more drop to the bottom.
	indexed, err := svc.cfg.Catalog.Features()
	if err != nil {
		return 0, xerrors.Errorf("popularity: %w", err)
	}
	var reset int
	for _, item := range indexed {
		if _, ok := ranked[item.ID]; ok {
			continue
		}
		if err = svc.cfg.Catalog.UpdateScore(item.ID, 0); err != nil {
			return 0, xerrors.Errorf("popularity: reset score of %q: %w", item.ID, err)
		}
		reset++
	}
	if reset != 0 {
		svc.cfg.Logger.WithField("items", reset).Debug("reset scores of unranked items")
	}
	return len(top), nil
}
