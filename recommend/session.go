/*
   Request scoped recommendation sessions.

   A Session snapshots the rows of a store, runs both engines over them and
   answers queries until it is closed. Nothing is shared between sessions,
   so concurrent requests each build their own.
*/
package recommend

import (
	"context"
	"io"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/Ahmed-Sermani/motorec/propagation"
	"github.com/Ahmed-Sermani/motorec/ranker"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ReasonPopular tags cold start recommendations taken from the global
// ranking.
const ReasonPopular = "popular with other riders"

// RowSource is the part of graph.Store a session reads from.
type RowSource interface {
	Items() (graph.ItemIterator, error)
	Interactions() (graph.InteractionIterator, error)
	Friendships() (graph.FriendshipIterator, error)
	Ratings() (graph.RatingIterator, error)
}

type Config struct {
	Ranker      ranker.Config
	Propagation propagation.Config

	// MaxIterations and Retention drive the propagation run made when the
	// session is created. They default to 20 and 0.2.
	MaxIterations int
	Retention     *float64

	Logger  *logrus.Entry
	Metrics *metrics.Metrics
}

func (cfg *Config) validate() error {
	var err error
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = propagation.DefaultMaxIterations
	}
	if cfg.Retention == nil {
		r := propagation.DefaultRetention
		cfg.Retention = &r
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = logrus.NewEntry(l)
	}
	if cfg.MaxIterations < 0 {
		err = multierror.Append(err, xerrors.Errorf("max iterations must not be negative, got %d", cfg.MaxIterations))
	}
	if r := *cfg.Retention; r < 0 || r > 1 {
		err = multierror.Append(err, xerrors.Errorf("retention must be in [0, 1], got %v", r))
	}
	return err
}

// Session holds the engines built for one request. Queries are safe for
// concurrent use.
type Session struct {
	id     uuid.UUID
	logger *logrus.Entry

	ranker *ranker.Ranker
	prop   *propagation.Propagator
	items  map[string]graph.ItemFeatures
}

// NewSession loads every row from src and prepares both engines. Callers
// must Close the session.
func NewSession(ctx context.Context, src RowSource, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("session config validation failed: %w", err)
	}

	id := uuid.New()
	logger := cfg.Logger.WithField("session", id.String())
	snap, err := loadRows(src)
	if err != nil {
		return nil, err
	}

	rankCfg := cfg.Ranker
	rankCfg.Logger = logger.WithField("engine", metrics.EngineRanker)
	rankCfg.Metrics = cfg.Metrics
	rnk, err := ranker.NewRanker(rankCfg)
	if err != nil {
		return nil, err
	}

	propCfg := cfg.Propagation
	propCfg.Logger = logger.WithField("engine", metrics.EnginePropagation)
	propCfg.Metrics = cfg.Metrics
	prop, err := propagation.NewPropagator(propCfg)
	if err != nil {
		_ = rnk.Close()
		return nil, err
	}

	s := &Session{
		id:     id,
		logger: logger,
		ranker: rnk,
		prop:   prop,
		items:  make(map[string]graph.ItemFeatures, len(snap.items)),
	}
	for _, it := range snap.items {
		s.items[it.ID] = it
	}

	built := rnk.Build(snap.interactions)
	if _, err = rnk.Rank(ctx); err != nil {
		_ = s.Close()
		return nil, xerrors.Errorf("new session: %w", err)
	}

	prop.BuildSocialGraph(snap.friendships)
	loaded := prop.SetPreferences(snap.ratings)
	prop.SetItemFeatures(snap.items)
	if err = prop.Propagate(ctx, cfg.MaxIterations, *cfg.Retention); err != nil {
		_ = s.Close()
		return nil, xerrors.Errorf("new session: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"items":                len(snap.items),
		"interactions":         built.Accepted,
		"dropped_interactions": built.Dropped,
		"ratings":              loaded.Accepted,
		"dropped_ratings":      loaded.Dropped,
		"friendships":          len(snap.friendships),
	}).Debug("session ready")
	return s, nil
}

type snapshot struct {
	items        []graph.ItemFeatures
	interactions []graph.InteractionRow
	friendships  []graph.FriendshipRow
	ratings      []graph.RatingRow
}

func loadRows(src RowSource) (snapshot, error) {
	var r snapshot

	itemIt, err := src.Items()
	if err == nil {
		r.items, err = graph.CollectItems(itemIt)
	}
	if err != nil {
		return r, xerrors.Errorf("load items: %w", err)
	}

	interactionIt, err := src.Interactions()
	if err == nil {
		r.interactions, err = graph.CollectInteractions(interactionIt)
	}
	if err != nil {
		return r, xerrors.Errorf("load interactions: %w", err)
	}

	friendshipIt, err := src.Friendships()
	if err == nil {
		r.friendships, err = graph.CollectFriendships(friendshipIt)
	}
	if err != nil {
		return r, xerrors.Errorf("load friendships: %w", err)
	}

	ratingIt, err := src.Ratings()
	if err == nil {
		r.ratings, err = graph.CollectRatings(ratingIt)
	}
	if err != nil {
		return r, xerrors.Errorf("load ratings: %w", err)
	}
	return r, nil
}

// ID returns the session id attached to every log entry of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Popular returns the n most popular items, n <= 0 meaning all of them.
func (s *Session) Popular(n int) []graph.ScoredItem {
	return s.ranker.TopItems(n)
}

// PopularityScores returns the normalized popularity of every item.
func (s *Session) PopularityScores(ctx context.Context) (map[string]float64, error) {
	return s.ranker.Rank(ctx)
}

// RecommendFor returns up to n recommendations for actor that satisfy
// profile; a nil profile admits everything. Actors without any data get the
// most popular admitted items as a fallback.
func (s *Session) RecommendFor(ctx context.Context, actor string, n int, profile *graph.Profile) propagation.Result {
	res := s.prop.RecommendFor(ctx, actor, 0)

	switch res.Kind {
	case propagation.KindRanked:
		res.Items = s.admitted(res.Items, profile)
		if len(res.Items) == 0 {
			res = s.popularFor(actor, profile)
		}
	case propagation.KindEmpty:
		if popular := s.popularFor(actor, profile); len(popular.Items) != 0 {
			popular.Err = res.Err
			res = popular
		}
	}

	if n > 0 && len(res.Items) > n {
		res.Items = res.Items[:n]
	}
	s.logger.WithFields(logrus.Fields{
		"actor": actor,
		"kind":  res.Kind.String(),
		"count": len(res.Items),
	}).Debug("recommended")
	return res
}

func (s *Session) admitted(items []graph.Recommendation, profile *graph.Profile) []graph.Recommendation {
	if profile == nil {
		return items
	}
	out := items[:0]
	for _, rec := range items {
		features, known := s.items[rec.ItemID]
		if !known || profile.Admits(features) {
			out = append(out, rec)
		}
	}
	return out
}

// popularFor lists the popular items admitted by profile that actor has not
// rated.
func (s *Session) popularFor(actor string, profile *graph.Profile) propagation.Result {
	rated := s.prop.Preferences(actor)
	var items []graph.Recommendation
	for _, it := range s.ranker.TopItems(0) {
		if _, isRated := rated[it.ItemID]; isRated || it.Score <= 0 {
			continue
		}
		items = append(items, graph.Recommendation{ItemID: it.ItemID, Score: it.Score, Reason: ReasonPopular})
	}
	items = s.admitted(items, profile)
	if len(items) == 0 {
		return propagation.Result{Kind: propagation.KindEmpty}
	}
	return propagation.Result{Kind: propagation.KindFallback, Items: items}
}

// SimilarItems returns up to n items similar to item, starting with item
// itself.
func (s *Session) SimilarItems(item string, n int) []graph.ScoredItem {
	return s.prop.SimilarItems(item, n)
}

// Item returns the features of an item known to the session.
func (s *Session) Item(id string) (graph.ItemFeatures, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Actors returns every actor with ratings or friends.
func (s *Session) Actors() []string {
	return s.prop.Actors()
}

// Close releases the engines of the session.
func (s *Session) Close() error {
	var err error
	if cErr := s.ranker.Close(); cErr != nil {
		err = multierror.Append(err, cErr)
	}
	if cErr := s.prop.Close(); cErr != nil {
		err = multierror.Append(err, cErr)
	}
	return err
}
