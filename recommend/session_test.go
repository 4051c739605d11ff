package recommend

import (
	"context"
	"strings"
	"testing"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/graph/store/memory"
	"github.com/Ahmed-Sermani/motorec/propagation"
	"github.com/google/uuid"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(SessionTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

const garage = `
items:
  - {id: r3, name: YZF-R3, brand: Yamaha, category: sport, displacement: 321, power: 42, price: 5500}
  - {id: mt07, name: MT-07, brand: Yamaha, category: naked, displacement: 689, power: 73, price: 7500}
  - {id: cb500, name: CB500F, brand: Honda, category: naked, displacement: 471, power: 47, price: 6500}
  - {id: ninja650, name: Ninja 650, brand: Kawasaki, category: sport, displacement: 649, power: 67, price: 7300}
  - {id: gs1250, name: R 1250 GS, brand: BMW, category: adventure, displacement: 1254, power: 136, price: 20000}
interactions:
  - {actor: ana, item: mt07, weight: 2}
  - {actor: ben, item: mt07, weight: 1}
  - {actor: ben, item: r3, weight: 1}
  - {actor: cid, item: ninja650, weight: "1"}
  - {actor: cid, item: mt07}
friendships:
  - {a: ana, b: ben}
  - {a: ben, b: cid}
ratings:
  - {actor: ana, item: r3, score: 0.9}
  - {actor: ben, item: mt07, score: 0.8}
  - {actor: ben, item: cb500, score: 0.7}
  - {actor: cid, item: gs1250, score: 0.9}
`

type SessionTestSuite struct {
	store   *memory.InMemoryStore
	session *Session
}

func (s *SessionTestSuite) SetUpTest(c *gc.C) {
	store, err := memory.LoadFixture(strings.NewReader(garage))
	c.Assert(err, gc.IsNil)
	s.store = store

	s.session, err = NewSession(context.TODO(), store, Config{})
	c.Assert(err, gc.IsNil)
}

func (s *SessionTestSuite) TearDownTest(c *gc.C) {
	c.Assert(s.session.Close(), gc.IsNil)
}

func (s *SessionTestSuite) TestSessionID(c *gc.C) {
	c.Assert(s.session.ID(), gc.Not(gc.Equals), uuid.Nil)

	other, err := NewSession(context.TODO(), s.store, Config{})
	c.Assert(err, gc.IsNil)
	defer func() { c.Assert(other.Close(), gc.IsNil) }()
	c.Assert(other.ID(), gc.Not(gc.Equals), s.session.ID())
}

func (s *SessionTestSuite) TestPopular(c *gc.C) {
	top := s.session.Popular(1)
	c.Assert(top, gc.HasLen, 1)
	c.Assert(top[0].ItemID, gc.Equals, "mt07")
	c.Assert(top[0].Score, gc.Equals, 1.0)

	all := s.session.Popular(0)
	c.Assert(all, gc.HasLen, 3)

	scores, err := s.session.PopularityScores(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(scores, gc.HasLen, 3)
	c.Assert(scores["mt07"], gc.Equals, 1.0)
}

func (s *SessionTestSuite) TestRecommendForKnownActor(c *gc.C) {
	res := s.session.RecommendFor(context.TODO(), "ana", 0, nil)
	c.Assert(res.Err, gc.IsNil)
	c.Assert(res.Kind, gc.Equals, propagation.KindRanked)

	byID := make(map[string]graph.Recommendation)
	for _, rec := range res.Items {
		byID[rec.ItemID] = rec
	}
	_, rated := byID["r3"]
	c.Assert(rated, gc.Equals, false, gc.Commentf("rated items must not be recommended"))
	c.Assert(byID["mt07"].Reason, gc.Equals, propagation.ReasonPropagated)
	c.Assert(byID["mt07"].Score > 0, gc.Equals, true)

	limited := s.session.RecommendFor(context.TODO(), "ana", 1, nil)
	c.Assert(limited.Items, gc.HasLen, 1)
	c.Assert(limited.Items[0], gc.DeepEquals, res.Items[0])
}

func (s *SessionTestSuite) TestRecommendForAppliesProfile(c *gc.C) {
	profile := &graph.Profile{Experience: graph.ExperienceBeginner}
	res := s.session.RecommendFor(context.TODO(), "ana", 0, profile)
	c.Assert(res.Kind, gc.Equals, propagation.KindRanked)
	c.Assert(res.Items, gc.Not(gc.HasLen), 0)

	var sawCB500 bool
	for _, rec := range res.Items {
		item, ok := s.session.Item(rec.ItemID)
		c.Assert(ok, gc.Equals, true)
		c.Assert(item.Displacement <= 500, gc.Equals, true, gc.Commentf("%s is too big for a beginner", rec.ItemID))
		sawCB500 = sawCB500 || rec.ItemID == "cb500"
	}
	c.Assert(sawCB500, gc.Equals, true)
}

func (s *SessionTestSuite) TestRecommendForProfileExcludingEverything(c *gc.C) {
	profile := &graph.Profile{Brands: []string{"Ducati"}}
	res := s.session.RecommendFor(context.TODO(), "ana", 0, profile)
	c.Assert(res.Kind, gc.Equals, propagation.KindEmpty)
	c.Assert(res.Items, gc.HasLen, 0)
}

func (s *SessionTestSuite) TestColdStartServesPopularItems(c *gc.C) {
	res := s.session.RecommendFor(context.TODO(), "zoe", 2, nil)
	c.Assert(res.Err, gc.IsNil)
	c.Assert(res.Kind, gc.Equals, propagation.KindFallback)
	c.Assert(res.Items, gc.HasLen, 2)
	c.Assert(res.Items[0].ItemID, gc.Equals, "mt07")
	for _, rec := range res.Items {
		c.Assert(rec.Reason, gc.Equals, ReasonPopular)
	}

	// The profile also narrows down the popular items.
	res = s.session.RecommendFor(context.TODO(), "zoe", 0, &graph.Profile{Categories: []string{"Sport"}})
	c.Assert(res.Kind, gc.Equals, propagation.KindFallback)
	c.Assert(res.Items, gc.HasLen, 2)
	for _, rec := range res.Items {
		c.Assert(rec.ItemID == "r3" || rec.ItemID == "ninja650", gc.Equals, true)
	}
}

func (s *SessionTestSuite) TestSimilarItems(c *gc.C) {
	similar := s.session.SimilarItems("mt07", 3)
	c.Assert(similar, gc.HasLen, 3)
	c.Assert(similar[0], gc.DeepEquals, graph.ScoredItem{ItemID: "mt07", Score: 1.0})
	c.Assert(similar[1].Score <= 1.0, gc.Equals, true)
	c.Assert(similar[2].Score <= similar[1].Score, gc.Equals, true)

	c.Assert(s.session.SimilarItems("unknown", 3), gc.HasLen, 0)
}

func (s *SessionTestSuite) TestActorsAndItems(c *gc.C) {
	c.Assert(s.session.Actors(), gc.DeepEquals, []string{"ana", "ben", "cid"})

	item, ok := s.session.Item("cb500")
	c.Assert(ok, gc.Equals, true)
	c.Assert(item.Brand, gc.Equals, "Honda")

	_, ok = s.session.Item("unknown")
	c.Assert(ok, gc.Equals, false)
}

func (s *SessionTestSuite) TestInvalidConfig(c *gc.C) {
	retention := 1.5
	_, err := NewSession(context.TODO(), s.store, Config{MaxIterations: -1, Retention: &retention})
	c.Assert(err, gc.ErrorMatches, "(?s)session config validation failed:.*max iterations.*retention.*")
}

func (s *SessionTestSuite) TestSourceFailure(c *gc.C) {
	_, err := NewSession(context.TODO(), failingSource{s.store}, Config{})
	c.Assert(err, gc.ErrorMatches, "load ratings: .*ratings unavailable")
}

type failingSource struct {
	*memory.InMemoryStore
}

func (failingSource) Ratings() (graph.RatingIterator, error) {
	return nil, xerrors.New("ratings unavailable")
}
