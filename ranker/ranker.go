/*
   Popularity ranking of items from weighted actor→item interactions.

   Actors and items are the nodes of one directed graph: every actor points
   to the items it interacted with and items point nowhere. Scores are
   computed by power iteration in the spirit of PageRank
   https://en.wikipedia.org/wiki/PageRank . Every round each node receives
   a base score of (1 - d)/N and every actor pushes d × score/outDegree,
   scaled by the interaction weight, to each of its items. Items that many
   actors interact with heavily end up on top.

   The raw scores are divided by the best item score, so the top item always
   scores 1.0.
*/
package ranker

import (
	"context"
	"sort"

	"github.com/Ahmed-Sermani/motorec/bsp"
	"github.com/Ahmed-Sermani/motorec/bsp/aggregators"
	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	actorPrefix = "actor:"
	itemPrefix  = "item:"
)

// BuildResult summarizes the rows handed to Build.
type BuildResult struct {
	Accepted int
	Dropped  int

	// Fallback is set when no row was usable but some rows still named an
	// item. Every such item is ranked with a uniform 1.0.
	Fallback bool
}

// Ranker ranks the items of an interaction graph. It is not safe for
// concurrent use; build one per request.
type Ranker struct {
	g   *bsp.Graph[float64, float64]
	cfg Config

	executorFactory bsp.ExecutorFactory[float64, float64]

	items      []string
	totals     map[string]float64
	uniform    bool
	scores     map[string]float64
	iterations int
}

// NewRanker returns a new Ranker instance using the provided config
// options. Callers must Close it to release the graph workers.
func NewRanker(cfg Config) (*Ranker, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("ranker config validation failed: %w", err)
	}

	g, err := bsp.NewGraph(bsp.GraphConfig[float64, float64]{
		ComputeWorkers: cfg.ComputeWorkers,
		ComputeFn:      makeComputeFunc(cfg.DampingFactor),
	})
	if err != nil {
		return nil, err
	}

	return &Ranker{
		cfg:             cfg,
		g:               g,
		executorFactory: bsp.NewExecutor[float64, float64],
		totals:          make(map[string]float64),
	}, nil
}

// Close releases any resources allocated by the ranker.
func (r *Ranker) Close() error {
	return r.g.Close()
}

// SetExecutorFactory configures the ranker to use a custom executor
// factory for the next Rank call.
func (r *Ranker) SetExecutorFactory(factory bsp.ExecutorFactory[float64, float64]) {
	r.executorFactory = factory
}

// Build replaces the current graph with one built from rows. Rows without a
// usable actor or item id are dropped; weights that cannot be parsed or are
// not positive count as graph.DefaultWeight. Repeated actor/item pairs add
// up.
func (r *Ranker) Build(rows []graph.InteractionRow) BuildResult {
	if err := r.g.Reset(); err != nil {
		r.cfg.Logger.WithField("err", err).Error("reset ranker graph")
	}
	r.items = r.items[:0]
	r.totals = make(map[string]float64)
	r.uniform = false
	r.scores = nil
	r.iterations = 0

	var (
		res        BuildResult
		actorOrder []string
		actorEdges = make(map[string][]string)
		edgeWeight = make(map[[2]string]float64)
	)
	for i, row := range rows {
		in, ok := row.Interaction()
		if !ok {
			res.Dropped++
			r.cfg.Logger.WithFields(logrus.Fields{
				"row":   i,
				"actor": row.ActorID,
				"item":  row.ItemID,
			}).Debug("dropping interaction without usable ids")
			continue
		}
		res.Accepted++

		if _, seen := actorEdges[in.ActorID]; !seen {
			actorOrder = append(actorOrder, in.ActorID)
			actorEdges[in.ActorID] = nil
			r.g.AddVertex(actorPrefix+in.ActorID, 0)
		}
		if _, seen := r.totals[in.ItemID]; !seen {
			r.items = append(r.items, in.ItemID)
			r.g.AddVertex(itemPrefix+in.ItemID, 0)
		}
		r.totals[in.ItemID] += in.Weight

		key := [2]string{in.ActorID, in.ItemID}
		if _, seen := edgeWeight[key]; !seen {
			actorEdges[in.ActorID] = append(actorEdges[in.ActorID], in.ItemID)
		}
		edgeWeight[key] += in.Weight
	}

	for _, actor := range actorOrder {
		for _, item := range actorEdges[actor] {
			w := edgeWeight[[2]string{actor, item}]
			// Both endpoints were added above.
			_ = r.g.AddEdge(actorPrefix+actor, itemPrefix+item, w)
		}
	}

	if res.Accepted == 0 {
		for _, row := range rows {
			item, ok := graph.ID(row.ItemID)
			if !ok {
				continue
			}
			if _, seen := r.totals[item]; !seen {
				r.items = append(r.items, item)
				r.totals[item] = 0
			}
		}
		res.Fallback = len(r.items) != 0
		r.uniform = res.Fallback
	}

	r.cfg.Metrics.DroppedRows("interaction", res.Dropped)
	r.cfg.Logger.WithFields(logrus.Fields{
		"accepted": res.Accepted,
		"dropped":  res.Dropped,
		"items":    len(r.items),
		"fallback": res.Fallback,
	}).Debug("built interaction graph")
	return res
}

// Rank computes the normalized score of every item. The result is cached
// until the next Build. Malformed or missing data never fails a Rank; only
// a cancelled context or a failing graph run does.
func (r *Ranker) Rank(ctx context.Context) (map[string]float64, error) {
	if r.scores == nil {
		scores, err := r.rank(ctx)
		if err != nil {
			return nil, err
		}
		r.scores = scores
	}

	out := make(map[string]float64, len(r.scores))
	for id, score := range r.scores {
		out[id] = score
	}
	return out, nil
}

func (r *Ranker) rank(ctx context.Context) (map[string]float64, error) {
	scores := make(map[string]float64, len(r.items))
	if len(r.items) == 0 {
		return scores, nil
	}

	if r.uniform || r.g.NumVertices() <= 2 {
		reason := "degenerate-graph"
		if r.uniform {
			reason = "no-valid-rows"
		}
		r.cfg.Metrics.Fallback(metrics.EngineRanker, reason)
		for _, item := range r.items {
			scores[item] = 1.0
		}
		return scores, nil
	}

	if err := r.executor().RunSteps(ctx, r.cfg.MaxIterations+2); err != nil {
		return nil, xerrors.Errorf("rank items: %w", err)
	}
	r.cfg.Metrics.Iterations(metrics.EngineRanker, r.iterations)
	r.cfg.Logger.WithField("iterations", r.iterations).Debug("ranked items")

	var best float64
	for _, item := range r.items {
		score := r.g.Vertex(itemPrefix + item).Value()
		scores[item] = score
		if score > best {
			best = score
		}
	}
	for item, score := range scores {
		if best > 0 {
			scores[item] = score / best
		} else {
			scores[item] = 0
		}
	}
	return scores, nil
}

// executor registers fresh aggregators and returns an executor whose hooks
// stop the run once the mean absolute change per node is below tolerance.
func (r *Ranker) executor() *bsp.Executor[float64, float64] {
	sad := new(aggregators.Float64Aggregator)
	r.g.RegisterAggregator(nodeCountAggr, new(aggregators.IntAggregator))
	r.g.RegisterAggregator(sadAggr, sad)
	r.iterations = 0

	cb := bsp.ExecutorHooks[float64, float64]{
		PostStep: func(_ context.Context, g *bsp.Graph[float64, float64], _ int) error {
			if g.Superstep() > 1 {
				r.iterations++
			}
			return nil
		},
		PostStepKeepRunning: func(_ context.Context, g *bsp.Graph[float64, float64], _ int) (bool, error) {
			change := sad.Delta()
			// Supersteps 0 and 1 initialize the scores.
			if g.Superstep() <= 1 {
				return true, nil
			}
			n := float64(g.Aggregator(nodeCountAggr).Get().(int))
			return change/n >= r.cfg.Tolerance, nil
		},
	}
	return r.executorFactory(r.g, cb)
}

// TopItems returns the n best items of the last Rank, best first. Ties are
// broken by item id. n <= 0 returns every item.
func (r *Ranker) TopItems(n int) []graph.ScoredItem {
	out := make([]graph.ScoredItem, 0, len(r.scores))
	for id, score := range r.scores {
		out = append(out, graph.ScoredItem{ItemID: id, Score: score})
	}
	SortScored(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ScoreFor returns the score of item in the last Rank or 0 if unknown.
func (r *Ranker) ScoreFor(itemID string) float64 {
	return r.scores[itemID]
}

// TotalWeight returns the accumulated interaction weight of item.
func (r *Ranker) TotalWeight(itemID string) float64 {
	return r.totals[itemID]
}

// Iterations returns the number of rounds the last Rank needed.
func (r *Ranker) Iterations() int { return r.iterations }

// SortScored orders items by descending score, then by ascending id.
func SortScored(items []graph.ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ItemID < items[j].ItemID
	})
}
