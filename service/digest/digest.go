/*
   Periodic recommendation digests.

   Every update interval the service opens a recommendation session over
   the store and streams every known actor through a pipeline:

   - compute the actor's recommendations on a fixed pool of workers
   - attach the item names
   - publish the digest to the cache and, when configured, a notifier
*/
package digest

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/Ahmed-Sermani/motorec/pipeline"
	"github.com/Ahmed-Sermani/motorec/pipeline/runners"
	"github.com/Ahmed-Sermani/motorec/recommend"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/Ahmed-Sermani/motorec/service/digest Publisher

const (
	serviceName = "digest"

	DefaultTopN = 10
)

// Publisher is implemented by objects that receive finished digests.
type Publisher interface {
	Publish(ctx context.Context, d Digest) error
}

type Config struct {
	// Store provides the rows each run is computed from.
	Store recommend.RowSource

	// Cache receives every digest.
	Cache Publisher

	// Notifier, when set, receives every digest as well.
	Notifier Publisher

	// Session configures the engines of each run. Its logger and metrics
	// are set by the service.
	Session recommend.Config

	// TopN is the number of entries per digest. Defaults to 10.
	TopN int

	// Workers is the number of actors processed concurrently. Defaults to
	// the number of CPUs.
	Workers int

	// Clock drives the update timer. Defaults to the wall clock.
	Clock clock.Clock

	UpdateInterval time.Duration

	Logger  *logrus.Entry
	Metrics *metrics.Metrics
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Store == nil {
		err = multierror.Append(err, xerrors.Errorf("row store has not been provided"))
	}
	if cfg.Cache == nil {
		err = multierror.Append(err, xerrors.Errorf("digest cache has not been provided"))
	}
	if cfg.TopN == 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.TopN < 0 {
		err = multierror.Append(err, xerrors.Errorf("top n must not be negative, got %d", cfg.TopN))
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
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

// Service rebuilds the digests of all actors on a timer.
type Service struct {
	cfg Config
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("digest service: config validation failed: %w", err)
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
			published, err := svc.RunOnce(ctx)
			took := svc.cfg.Clock.Now().Sub(start)
			svc.cfg.Metrics.ObserveRun(serviceName, took, err)
			if err != nil {
				return err
			}
			svc.cfg.Logger.WithFields(logrus.Fields{
				"actors":           published,
				"processing_time":  took.String(),
				"next_update_time": svc.cfg.Clock.Now().Add(svc.cfg.UpdateInterval).String(),
			}).Info("published digests")
		}
	}
}

// RunOnce computes and publishes the digest of every actor. It returns the
// number of actors that got one.
func (svc *Service) RunOnce(ctx context.Context) (int, error) {
	sessCfg := svc.cfg.Session
	sessCfg.Logger = svc.cfg.Logger
	sessCfg.Metrics = svc.cfg.Metrics
	sess, err := recommend.NewSession(ctx, svc.cfg.Store, sessCfg)
	if err != nil {
		return 0, xerrors.Errorf("digest: %w", err)
	}
	defer func() { _ = sess.Close() }()

	source := &actorSource{actors: sess.Actors()}
	sink := &actorSink{seen: make(map[string]struct{})}
	if err = svc.assemble(sess).Process(ctx, source, sink); err != nil {
		return sink.count(), xerrors.Errorf("digest: %w", err)
	}
	return sink.count(), nil
}

func (svc *Service) assemble(sess *recommend.Session) *pipeline.Pipeline {
	publish := runners.DynamicWorkerPool(newPublisher(svc.cfg.Cache, sess, svc.cfg.Clock), svc.cfg.Workers)
	if svc.cfg.Notifier != nil {
		publish = runners.Broadcast(
			newPublisher(svc.cfg.Cache, sess, svc.cfg.Clock),
			newPublisher(svc.cfg.Notifier, sess, svc.cfg.Clock),
		)
	}

	return pipeline.New(
		runners.FixedWorkerPool(newRecommender(sess, svc.cfg.TopN, svc.cfg.Logger), svc.cfg.Workers),
		runners.FIFO(newNamer(sess)),
		publish,
	)
}
