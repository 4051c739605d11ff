package ranker

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Ahmed-Sermani/motorec/bsp"
	"github.com/Ahmed-Sermani/motorec/graph"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(RankerTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

type RankerTestSuite struct {
	r *Ranker
}

func (s *RankerTestSuite) SetUpTest(c *gc.C) {
	r, err := NewRanker(Config{})
	c.Assert(err, gc.IsNil)
	s.r = r
}

func (s *RankerTestSuite) TearDownTest(c *gc.C) {
	c.Assert(s.r.Close(), gc.IsNil)
}

func scenarioRows() []graph.InteractionRow {
	return []graph.InteractionRow{
		{ActorID: "u1", ItemID: "m1", Weight: 5},
		{ActorID: "u1", ItemID: "m4", Weight: 4},
		{ActorID: "u2", ItemID: "m2", Weight: 5},
		{ActorID: "u2", ItemID: "m3", Weight: 3},
		{ActorID: "u3", ItemID: "m2", Weight: 4},
		{ActorID: "u3", ItemID: "m3", Weight: 5},
	}
}

func (s *RankerTestSuite) TestHeavilyInteractedItemsRankFirst(c *gc.C) {
	res := s.r.Build(scenarioRows())
	c.Assert(res, gc.Equals, BuildResult{Accepted: 6})

	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.HasLen, 4)

	top := s.r.TopItems(0)
	c.Assert(ids(top), gc.DeepEquals, []string{"m2", "m3", "m1", "m4"})
	c.Assert(top[0].Score, gc.Equals, 1.0)

	// Actors settle at (1-d)/N so each item ends at a multiple of the base
	// score: 1 + d/2 × total weight.
	expect := map[string]float64{
		"m2": 1.0,
		"m3": 4.4 / 4.825,
		"m1": 3.125 / 4.825,
		"m4": 2.7 / 4.825,
	}
	for id, want := range expect {
		c.Assert(math.Abs(scores[id]-want) < 1e-9, gc.Equals, true, gc.Commentf("item %s: got %v want %v", id, scores[id], want))
		c.Assert(s.r.ScoreFor(id), gc.Equals, scores[id])
	}
	c.Assert(s.r.ScoreFor("unknown"), gc.Equals, 0.0)
	c.Assert(s.r.TotalWeight("m2"), gc.Equals, 9.0)
	c.Assert(s.r.Iterations() > 0 && s.r.Iterations() < DefaultMaxIterations, gc.Equals, true)
}

func (s *RankerTestSuite) TestScoresAreNormalized(c *gc.C) {
	rows := []graph.InteractionRow{
		{ActorID: 1, ItemID: 10, Weight: "2.5"},
		{ActorID: 1, ItemID: 11, Weight: -3},
		{ActorID: 2, ItemID: 11, Weight: "4 stars"},
		{ActorID: 3, ItemID: 12},
		{ActorID: 3, ItemID: 10, Weight: 0.25},
		{ActorID: 4, ItemID: 13, Weight: 100},
	}
	s.r.Build(rows)
	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)

	var best float64
	for id, score := range scores {
		c.Assert(score >= 0 && score <= 1, gc.Equals, true, gc.Commentf("item %s: %v", id, score))
		best = math.Max(best, score)
	}
	c.Assert(best, gc.Equals, 1.0)
	c.Assert(s.r.TopItems(1)[0].ItemID, gc.Equals, "13")
}

func (s *RankerTestSuite) TestDeterministic(c *gc.C) {
	s.r.Build(scenarioRows())
	first, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)

	other, err := NewRanker(Config{})
	c.Assert(err, gc.IsNil)
	defer func() { c.Assert(other.Close(), gc.IsNil) }()
	other.Build(scenarioRows())
	second, err := other.Rank(context.TODO())
	c.Assert(err, gc.IsNil)

	c.Assert(second, gc.DeepEquals, first)
	c.Assert(other.Iterations(), gc.Equals, s.r.Iterations())
}

func (s *RankerTestSuite) TestMalformedRowsAreDropped(c *gc.C) {
	rows := append(scenarioRows(),
		graph.InteractionRow{ActorID: "u4", ItemID: "", Weight: 5},
		graph.InteractionRow{ActorID: "None", ItemID: "m9", Weight: 5},
		graph.InteractionRow{ActorID: "u4", ItemID: nil},
	)
	res := s.r.Build(rows)
	c.Assert(res, gc.Equals, BuildResult{Accepted: 6, Dropped: 3})

	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.HasLen, 4)
	_, found := scores["m9"]
	c.Assert(found, gc.Equals, false)
	_, found = scores[""]
	c.Assert(found, gc.Equals, false)
}

func (s *RankerTestSuite) TestRebuildReplacesGraph(c *gc.C) {
	s.r.Build(scenarioRows())
	_, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)

	s.r.Build([]graph.InteractionRow{
		{ActorID: "u1", ItemID: "x"},
		{ActorID: "u2", ItemID: "x"},
		{ActorID: "u2", ItemID: "y"},
	})
	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.HasLen, 2)
	c.Assert(scores["x"], gc.Equals, 1.0)
	c.Assert(s.r.ScoreFor("m2"), gc.Equals, 0.0)
}

func (s *RankerTestSuite) TestFallbackToUniformScores(c *gc.C) {
	res := s.r.Build([]graph.InteractionRow{
		{ActorID: "", ItemID: "m1"},
		{ActorID: nil, ItemID: "m2", Weight: 3},
		{ActorID: "null", ItemID: "m1"},
	})
	c.Assert(res, gc.Equals, BuildResult{Dropped: 3, Fallback: true})

	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.DeepEquals, map[string]float64{"m1": 1.0, "m2": 1.0})
	c.Assert(ids(s.r.TopItems(5)), gc.DeepEquals, []string{"m1", "m2"})
}

func (s *RankerTestSuite) TestEmptyInput(c *gc.C) {
	res := s.r.Build(nil)
	c.Assert(res, gc.Equals, BuildResult{})

	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.HasLen, 0)
	c.Assert(s.r.TopItems(3), gc.HasLen, 0)
}

func (s *RankerTestSuite) TestTinyGraphGetsUniformScore(c *gc.C) {
	s.r.Build([]graph.InteractionRow{{ActorID: "u1", ItemID: "m1", Weight: 3}})
	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.DeepEquals, map[string]float64{"m1": 1.0})
	c.Assert(s.r.Iterations(), gc.Equals, 0)
}

func (s *RankerTestSuite) TestTiesBrokenByItemID(c *gc.C) {
	s.r.Build([]graph.InteractionRow{
		{ActorID: "u1", ItemID: "b"},
		{ActorID: "u1", ItemID: "c"},
		{ActorID: "u1", ItemID: "a"},
	})
	_, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)

	top := s.r.TopItems(2)
	c.Assert(ids(top), gc.DeepEquals, []string{"a", "b"})
	c.Assert(top[1].Score, gc.Equals, 1.0)
}

func (s *RankerTestSuite) TestRankIsCached(c *gc.C) {
	var runs int
	s.r.SetExecutorFactory(func(g *bsp.Graph[float64, float64], cb bsp.ExecutorHooks[float64, float64]) *bsp.Executor[float64, float64] {
		runs++
		return bsp.NewExecutor(g, cb)
	})
	s.r.Build(scenarioRows())

	first, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	first["m2"] = 42

	second, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(second["m2"], gc.Equals, 1.0)
	c.Assert(runs, gc.Equals, 1)
}

func (s *RankerTestSuite) TestCancelledContext(c *gc.C) {
	s.r.Build(scenarioRows())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.r.Rank(ctx)
	c.Assert(errors.Is(err, context.Canceled), gc.Equals, true)

	// The ranker stays usable.
	scores, err := s.r.Rank(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores["m2"], gc.Equals, 1.0)
}

func (s *RankerTestSuite) TestConfigValidation(c *gc.C) {
	_, err := NewRanker(Config{DampingFactor: 1.5, Tolerance: -1, MaxIterations: -2})
	c.Assert(err, gc.ErrorMatches, "(?s)ranker config validation failed:.*damping factor.*tolerance.*max iterations.*")

	_, err = NewRanker(Config{DampingFactor: -0.1})
	c.Assert(err, gc.ErrorMatches, `(?s).*damping factor must be in \(0, 1\), got -0.1.*`)
}

func (s *RankerTestSuite) TestZeroSettingsSelectDefaults(c *gc.C) {
	c.Assert(s.r.cfg.DampingFactor, gc.Equals, DefaultDampingFactor)
	c.Assert(s.r.cfg.Tolerance, gc.Equals, DefaultTolerance)
	c.Assert(s.r.cfg.MaxIterations, gc.Equals, DefaultMaxIterations)
}

func ids(items []graph.ScoredItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}
