package propagation

import (
	"context"
	"math"

	"github.com/Ahmed-Sermani/motorec/bsp"
	"github.com/Ahmed-Sermani/motorec/bsp/aggregators"
	"github.com/Ahmed-Sermani/motorec/bsp/message"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const sadAggr = "SAD"

// VectorMessage carries an actor's scores of the previous sweep, indexed
// like the sweep's item list. Receivers must not modify it.
type VectorMessage struct {
	Scores []float64
}

func (VectorMessage) Type() string { return "vector" }

// sweep holds the read-only inputs of one propagation run.
type sweep struct {
	maxIterations int
	retention     float64
	raw           map[string][]float64
}

// compute is the ComputeFunc of the propagation graph. Superstep 0
// publishes the raw vectors and superstep k >= 1 is sweep k. An actor
// without friends settles at retention times its raw vector after the
// first sweep and is frozen from then on.
func (p *Propagator) compute(g *bsp.Graph[[]float64, any], v *bsp.Vertex[[]float64, any], msgIt message.Iterator) error {
	run := p.run
	superstep := g.Superstep()
	raw := run.raw[v.ID()]

	next := make([]float64, len(raw))
	if superstep == 0 {
		copy(next, raw)
	} else {
		var received int
		for msgIt.Next() {
			received++
			for i, s := range msgIt.Message().(VectorMessage).Scores {
				next[i] += s
			}
		}

		for i := range next {
			var fromNeighbors float64
			if received != 0 {
				fromNeighbors = next[i] / float64(received)
			}
			next[i] = run.retention*raw[i] + (1-run.retention)*fromNeighbors
		}

		var delta float64
		for i, s := range v.Value() {
			delta += math.Abs(next[i] - s)
		}
		g.Aggregator(sadAggr).Aggregate(delta)
	}
	v.SetValue(next)

	if superstep > 0 && len(v.Edges()) == 0 {
		v.Freeze()
		return nil
	}
	if superstep == run.maxIterations {
		return nil
	}
	return g.BroadcastToNeighbors(v, VectorMessage{Scores: next})
}

// propagate must be called with the write lock held.
func (p *Propagator) propagate(ctx context.Context, maxIterations int, retention float64) error {
	p.itemIDs = p.knownItems()
	pos := make(map[string]int, len(p.itemIDs))
	for i, id := range p.itemIDs {
		pos[id] = i
	}

	dense := func(prefs map[string]float64) []float64 {
		vec := make([]float64, len(p.itemIDs))
		for item, score := range prefs {
			vec[pos[item]] = score
		}
		return vec
	}

	run := &sweep{
		maxIterations: maxIterations,
		retention:     retention,
		raw:           make(map[string][]float64, len(p.actors)),
	}
	if err := p.g.Reset(); err != nil {
		return xerrors.Errorf("reset propagation graph: %w", err)
	}
	for _, actor := range p.actors {
		run.raw[actor] = dense(p.raw[actor])
		p.g.AddVertex(actor, nil)
	}
	for _, actor := range p.actors {
		for _, n := range p.neighbors[actor] {
			if err := p.g.AddEdge(actor, n, nil); err != nil {
				return xerrors.Errorf("build propagation graph: %w", err)
			}
		}
	}
	p.run = run
	defer func() { p.run = nil }()

	var (
		iterations int
		active     int
		sad        = new(aggregators.Float64Aggregator)
	)
	p.g.RegisterAggregator(sadAggr, sad)
	ex := bsp.NewExecutor(p.g, bsp.ExecutorHooks[[]float64, any]{
		PostStep: func(_ context.Context, g *bsp.Graph[[]float64, any], activeInStep int) error {
			if g.Superstep() > 0 {
				iterations++
				active = activeInStep
			}
			return nil
		},
		PostStepKeepRunning: func(_ context.Context, g *bsp.Graph[[]float64, any], _ int) (bool, error) {
			change := sad.Delta()
			if p.cfg.ConvergenceThreshold <= 0 || g.Superstep() == 0 || g.NumVertices() == 0 {
				return true, nil
			}
			return change/float64(g.NumVertices()) >= p.cfg.ConvergenceThreshold, nil
		},
	})
	if err := ex.RunSteps(ctx, maxIterations+1); err != nil {
		return xerrors.Errorf("propagate preferences: %w", err)
	}

	propagated := make(map[string]map[string]float64, len(p.raw)+len(p.actors))
	for actor, prefs := range p.raw {
		propagated[actor] = copyVector(prefs)
	}
	for _, actor := range p.actors {
		vec := p.g.Vertex(actor).Value()
		scores := make(map[string]float64, len(vec))
		for i, s := range vec {
			scores[p.itemIDs[i]] = s
		}
		propagated[actor] = scores
	}

	p.propagated = propagated
	p.iterations = iterations
	p.cfg.Metrics.Iterations(metrics.EnginePropagation, iterations)
	p.cfg.Logger.WithFields(logrus.Fields{
		"actors":     len(p.actors),
		"items":      len(p.itemIDs),
		"iterations": iterations,
		"active":     active,
		"retention":  retention,
	}).Debug("propagated preferences")
	return nil
}

// knownItems lists every rated item followed by the items only known
// through their features.
func (p *Propagator) knownItems() []string {
	var (
		ids  []string
		seen = make(map[string]struct{})
	)
	add := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, actor := range p.rawOrder {
		for _, item := range sortedKeys(p.raw[actor]) {
			add(item)
		}
	}
	if p.index != nil {
		for _, id := range p.index.IDs() {
			add(id)
		}
	}
	return ids
}
