package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ahmed-Sermani/motorec/catalog"
	catalogmem "github.com/Ahmed-Sermani/motorec/catalog/store/memory"
	"github.com/Ahmed-Sermani/motorec/config"
	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/graph/store/cdb"
	memgraph "github.com/Ahmed-Sermani/motorec/graph/store/memory"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/Ahmed-Sermani/motorec/recommend"
	"github.com/Ahmed-Sermani/motorec/service"
	"github.com/Ahmed-Sermani/motorec/service/digest"
	"github.com/Ahmed-Sermani/motorec/service/popularity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var (
	appName = "motorec"
	appSha  = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands once the persistent
// flags have been applied.
type app struct {
	configPath string
	dataURI    string

	cfg    *config.Config
	logger *logrus.Entry
}

func newRootCmd() *cobra.Command {
	a := new(app)
	root := &cobra.Command{
		Use:   appName,
		Short: "Motorcycle recommendations from interactions, friendships and ratings",
		Long: `motorec ranks motorcycles by how riders interact with them and recommends
bikes to each rider from their own ratings, their friends' ratings and the
similarity between models.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.dataURI, "data-uri", "", "The URI of the row store (supported URIs: in-memory://, file:///path/to/fixture.yaml, postgresql://user@host:26257/motorec?sslmode=disable)")

	root.AddCommand(
		a.newServeCmd(),
		a.newRankCmd(),
		a.newRecommendCmd(),
		a.newSimilarCmd(),
		a.newSearchCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		if a.cfg, err = config.LoadFile(a.configPath); err != nil {
			return err
		}
	} else {
		a.cfg = config.Default()
	}
	if cmd.Flags().Changed("data-uri") {
		a.cfg.DataURI = a.dataURI
	}
	if err = a.cfg.Validate(); err != nil {
		return err
	}

	l, err := a.cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	a.logger = logrus.NewEntry(l).WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})
	return nil
}

// openStore connects to the row store named by the data URI. The returned
// func releases it.
func (a *app) openStore() (graph.Store, func(), error) {
	uri, err := url.Parse(a.cfg.DataURI)
	if err != nil {
		return nil, nil, xerrors.Errorf("could not parse data URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		a.logger.Info("using in-memory store")
		return memgraph.NewInMemoryStore(), func() {}, nil
	case "file":
		path := uri.Path
		if uri.Host != "" {
			path = uri.Host + path
		}
		a.logger.WithField("path", path).Info("using fixture store")
		store, err := memgraph.LoadFixtureFile(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "postgresql":
		a.logger.Info("using CDB store")
		store, err := cdb.NewCockroachDBStore(a.cfg.DataURI)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, xerrors.Errorf("unsupported data URI scheme: %q", uri.Scheme)
	}
}

// openCatalog indexes every item of store in a fresh in-memory catalog.
func (a *app) openCatalog(store graph.Store) (*catalogmem.InMemoryCatalog, error) {
	it, err := store.Items()
	if err != nil {
		return nil, err
	}
	items, err := graph.CollectItems(it)
	if err != nil {
		return nil, err
	}

	cat, err := catalogmem.NewInMemoryBleveCatalog()
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err = cat.Index(catalog.FromFeatures(item)); err != nil {
			_ = cat.Close()
			return nil, err
		}
	}
	return cat, nil
}

func (a *app) newSession(ctx context.Context, store graph.Store, m *metrics.Metrics) (*recommend.Session, error) {
	sessCfg := a.cfg.SessionConfig()
	sessCfg.Logger = a.logger
	sessCfg.Metrics = m
	return recommend.NewSession(ctx, store, sessCfg)
}

func (a *app) newServeCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the popularity and digest services until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Metrics.Addr = metricsAddr
			}
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			cat, err := a.openCatalog(store)
			if err != nil {
				return err
			}
			defer func() { _ = cat.Close() }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			svcGroup, err := a.setupServices(store, cat, reg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGHUP)
			defer cancel()
			return svcGroup.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "The address to serve prometheus metrics on (disabled when empty)")
	return cmd
}

func (a *app) setupServices(store graph.Store, cat catalog.Catalog, reg *prometheus.Registry) (service.Group, error) {
	var (
		svcGroup service.Group
		m        = metrics.New(reg)
	)

	popularitySvc, err := popularity.NewService(popularity.Config{
		Interactions:   store,
		Catalog:        cat,
		Ranker:         a.cfg.RankerConfig(),
		UpdateInterval: a.cfg.Popularity.UpdateInterval,
		Logger:         a.logger.WithField("service", "popularity"),
		Metrics:        m,
	})
	if err != nil {
		return nil, err
	}
	svcGroup = append(svcGroup, popularitySvc)

	digestSvc, err := digest.NewService(digest.Config{
		Store:          store,
		Cache:          digest.NewCache(),
		Session:        a.cfg.SessionConfig(),
		TopN:           a.cfg.Digest.TopN,
		Workers:        a.cfg.Digest.Workers,
		UpdateInterval: a.cfg.Digest.UpdateInterval,
		Logger:         a.logger.WithField("service", "digest"),
		Metrics:        m,
	})
	if err != nil {
		return nil, err
	}
	svcGroup = append(svcGroup, digestSvc)

	if a.cfg.Metrics.Addr != "" {
		svcGroup = append(svcGroup, &metricsServer{
			addr:    a.cfg.Metrics.Addr,
			handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			logger:  a.logger.WithField("service", "metrics"),
		})
	}
	return svcGroup, nil
}

// metricsServer exposes the prometheus registry over HTTP.
type metricsServer struct {
	addr    string
	handler http.Handler
	logger  *logrus.Entry
}

func (s *metricsServer) Name() string { return "metrics" }

func (s *metricsServer) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.handler)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	s.logger.WithField("addr", s.addr).Info("listening for metrics scrapes")
	if err = srv.Serve(l); err != nil && !xerrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
