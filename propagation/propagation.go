/*
   Social label propagation of item preferences.

   Every actor starts from its own ratings. On each sweep an actor in the
   friendship graph keeps a retention share of its raw ratings and takes the
   rest from the mean of its neighbors' scores of the previous sweep, for
   every known item. Sweeps are BSP supersteps so all actors move in
   lockstep. The smoothed vectors, the friends' raw ratings and an item
   similarity index then feed per-actor recommendations.
*/
package propagation

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/Ahmed-Sermani/motorec/bsp"
	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/Ahmed-Sermani/motorec/similarity"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	DefaultMaxIterations = 20
	DefaultRetention     = 0.2

	// DefaultExpansionFanout is the number of similar items considered per
	// seed item when expanding recommendations.
	DefaultExpansionFanout = 10
)

// State tracks how far a Propagator got in loading and processing data.
type State int

const (
	Unbuilt State = iota
	GraphLoaded
	PreferencesLoaded
	Propagated
)

func (s State) String() string {
	switch s {
	case GraphLoaded:
		return "graph-loaded"
	case PreferencesLoaded:
		return "preferences-loaded"
	case Propagated:
		return "propagated"
	default:
		return "unbuilt"
	}
}

type Config struct {
	// MaxIterations and Retention are used when a query triggers an
	// implicit propagation. A zero MaxIterations selects the default of 20
	// sweeps; call Propagate to run without any sweep. Retention defaults
	// to 0.2 when nil.
	MaxIterations int
	Retention     *float64

	// ConvergenceThreshold, when positive, ends a propagation early once
	// the mean absolute change per actor and sweep falls below it.
	ConvergenceThreshold float64

	// ExpansionFanout caps the similar items taken per seed item.
	ExpansionFanout int

	// ComputeWorkers is the number of BSP workers. Defaults to 1.
	ComputeWorkers int

	Logger  *logrus.Entry
	Metrics *metrics.Metrics
}

func (cfg *Config) validate() error {
	var err error
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Retention == nil {
		r := DefaultRetention
		cfg.Retention = &r
	}
	if cfg.ExpansionFanout == 0 {
		cfg.ExpansionFanout = DefaultExpansionFanout
	}
	if cfg.ComputeWorkers <= 0 {
		cfg.ComputeWorkers = 1
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
	if cfg.ConvergenceThreshold < 0 {
		err = multierror.Append(err, xerrors.Errorf("convergence threshold must not be negative, got %v", cfg.ConvergenceThreshold))
	}
	if cfg.ExpansionFanout < 0 {
		err = multierror.Append(err, xerrors.Errorf("expansion fanout must not be negative, got %d", cfg.ExpansionFanout))
	}
	return err
}

// LoadResult counts the rows accepted and dropped by a loader.
type LoadResult struct {
	Accepted int
	Dropped  int
}

// Propagator computes socially smoothed preferences. Queries may run
// concurrently with each other and with loads; a query always sees vectors
// propagated from the data loaded when it started ranking.
type Propagator struct {
	cfg Config

	mu sync.RWMutex
	g  *bsp.Graph[[]float64, any]
	// run holds the parameters of the propagation in flight.
	run *sweep

	graphLoaded bool
	prefsLoaded bool

	neighbors map[string][]string
	actors    []string

	raw      map[string]map[string]float64
	rawOrder []string

	index *similarity.Index

	itemIDs    []string
	propagated map[string]map[string]float64
	iterations int
}

// NewPropagator returns a Propagator in the Unbuilt state. Callers must
// Close it to release the graph workers.
func NewPropagator(cfg Config) (*Propagator, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("propagation config validation failed: %w", err)
	}

	p := &Propagator{
		cfg:       cfg,
		neighbors: make(map[string][]string),
		raw:       make(map[string]map[string]float64),
	}
	g, err := bsp.NewGraph(bsp.GraphConfig[[]float64, any]{
		ComputeWorkers: cfg.ComputeWorkers,
		ComputeFn:      p.compute,
	})
	if err != nil {
		return nil, err
	}
	p.g = g
	return p, nil
}

// Close releases the resources held by the propagator.
func (p *Propagator) Close() error {
	return p.g.Close()
}

// State reports the current lifecycle state.
func (p *Propagator) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state()
}

func (p *Propagator) state() State {
	switch {
	case p.propagated != nil:
		return Propagated
	case p.prefsLoaded:
		return PreferencesLoaded
	case p.graphLoaded:
		return GraphLoaded
	default:
		return Unbuilt
	}
}

// BuildSocialGraph replaces the friendship graph. Each row adds a symmetric
// edge; repeated pairs are idempotent and a self pair registers an actor
// without neighbors. Rows lacking an id are dropped. The returned adjacency
// lists are sorted.
func (p *Propagator) BuildSocialGraph(rows []graph.FriendshipRow) map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		dropped int
		sets    = make(map[string]map[string]struct{})
	)
	p.actors = p.actors[:0]
	register := func(actor string) map[string]struct{} {
		set, ok := sets[actor]
		if !ok {
			set = make(map[string]struct{})
			sets[actor] = set
			p.actors = append(p.actors, actor)
		}
		return set
	}
	for i, row := range rows {
		f, ok := row.Friendship()
		if !ok {
			dropped++
			p.cfg.Logger.WithFields(logrus.Fields{"row": i, "a": row.A, "b": row.B}).Debug("dropping friendship without usable ids")
			continue
		}
		a, b := register(f.A), register(f.B)
		if f.A == f.B {
			continue
		}
		a[f.B] = struct{}{}
		b[f.A] = struct{}{}
	}

	p.neighbors = make(map[string][]string, len(sets))
	for actor, set := range sets {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		p.neighbors[actor] = list
	}

	p.graphLoaded = true
	p.invalidate()
	p.cfg.Metrics.DroppedRows("friendship", dropped)
	return p.adjacency()
}

// SetPreferences replaces the raw ratings. A later row for the same actor
// and item overwrites an earlier one. Rows without usable ids or with a
// score that cannot be parsed are dropped.
func (p *Propagator) SetPreferences(rows []graph.RatingRow) LoadResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res LoadResult
	p.raw = make(map[string]map[string]float64)
	p.rawOrder = p.rawOrder[:0]
	for i, row := range rows {
		r, ok := row.Rating()
		if !ok {
			res.Dropped++
			p.cfg.Logger.WithFields(logrus.Fields{"row": i, "actor": row.ActorID, "item": row.ItemID}).Debug("dropping unusable rating")
			continue
		}
		res.Accepted++

		prefs, ok := p.raw[r.ActorID]
		if !ok {
			prefs = make(map[string]float64)
			p.raw[r.ActorID] = prefs
			p.rawOrder = append(p.rawOrder, r.ActorID)
		}
		prefs[r.ItemID] = r.Score
	}

	p.prefsLoaded = true
	p.invalidate()
	p.cfg.Metrics.DroppedRows("rating", res.Dropped)
	return res
}

// SetItemFeatures builds the similarity index used to expand
// recommendations. Items only known through their features take part in
// propagation with zero scores.
func (p *Propagator) SetItemFeatures(items []graph.ItemFeatures) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.index = similarity.NewIndex(items)
	p.invalidate()
}

func (p *Propagator) invalidate() {
	p.propagated = nil
	p.iterations = 0
}

// Propagate runs maxIterations synchronous sweeps, or fewer when a
// convergence threshold is configured and met. With retention 1 every
// vector stays equal to the raw ratings.
func (p *Propagator) Propagate(ctx context.Context, maxIterations int, retention float64) error {
	if maxIterations < 0 {
		return xerrors.Errorf("max iterations must not be negative, got %d", maxIterations)
	}
	if retention < 0 || retention > 1 {
		return xerrors.Errorf("retention must be in [0, 1], got %v", retention)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.propagate(ctx, maxIterations, retention)
}

// ensurePropagated runs the implicit propagation for queries issued before
// Propagate. It returns with the read lock held and, on success, with
// propagated vectors in place. A load that slips in between the write and
// the read lock triggers another propagation.
func (p *Propagator) ensurePropagated(ctx context.Context) error {
	for {
		p.mu.RLock()
		if p.propagated != nil {
			return nil
		}
		p.mu.RUnlock()

		p.mu.Lock()
		var err error
		if p.propagated == nil {
			p.cfg.Logger.WithField("state", p.state().String()).Debug("propagating on first query")
			err = p.propagate(ctx, p.cfg.MaxIterations, *p.cfg.Retention)
		}
		p.mu.Unlock()

		if err != nil {
			p.mu.RLock()
			return err
		}
	}
}

// Neighbors returns the sorted friends of actor.
func (p *Propagator) Neighbors(actor string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.neighbors[actor]...)
}

// Adjacency returns a copy of the friendship graph.
func (p *Propagator) Adjacency() map[string][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.adjacency()
}

func (p *Propagator) adjacency() map[string][]string {
	out := make(map[string][]string, len(p.neighbors))
	for actor, list := range p.neighbors {
		out[actor] = append([]string{}, list...)
	}
	return out
}

// Preferences returns a copy of the raw ratings of actor.
func (p *Propagator) Preferences(actor string) map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyVector(p.raw[actor])
}

// PropagatedVector returns a copy of the smoothed vector of actor, nil
// before propagation.
func (p *Propagator) PropagatedVector(actor string) map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyVector(p.propagated[actor])
}

// Actors returns every actor with ratings or friends, sorted.
func (p *Propagator) Actors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{}, len(p.raw)+len(p.neighbors))
	out := make([]string, 0, len(p.raw)+len(p.neighbors))
	for _, list := range [][]string{p.rawOrder, p.actors} {
		for _, actor := range list {
			if _, dup := seen[actor]; !dup {
				seen[actor] = struct{}{}
				out = append(out, actor)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Iterations returns the number of sweeps of the last propagation.
func (p *Propagator) Iterations() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.iterations
}

func copyVector(v map[string]float64) map[string]float64 {
	if v == nil {
		return nil
	}
	out := make(map[string]float64, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out
}
