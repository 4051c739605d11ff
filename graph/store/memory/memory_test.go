package memory

import (
	"strings"
	"testing"

	"github.com/Ahmed-Sermani/motorec/graph"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(InMemoryStoreTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

type InMemoryStoreTestSuite struct {
	s *InMemoryStore
}

func (s *InMemoryStoreTestSuite) SetUpTest(c *gc.C) {
	s.s = NewInMemoryStore()
}

func (s *InMemoryStoreTestSuite) TestUpsertItem(c *gc.C) {
	item := &graph.ItemFeatures{ID: " m1 ", Brand: "Honda", Price: 7000}
	c.Assert(s.s.UpsertItem(item), gc.IsNil)

	got, err := s.s.FindItem("m1")
	c.Assert(err, gc.IsNil)
	c.Assert(got.Brand, gc.Equals, "Honda")

	// update keeps insertion order and overwrites attributes
	c.Assert(s.s.UpsertItem(&graph.ItemFeatures{ID: "m2"}), gc.IsNil)
	c.Assert(s.s.UpsertItem(&graph.ItemFeatures{ID: "m1", Brand: "Yamaha"}), gc.IsNil)

	it, err := s.s.Items()
	c.Assert(err, gc.IsNil)
	items, err := graph.CollectItems(it)
	c.Assert(err, gc.IsNil)
	c.Assert(items, gc.HasLen, 2)
	c.Assert(items[0].ID, gc.Equals, "m1")
	c.Assert(items[0].Brand, gc.Equals, "Yamaha")
	c.Assert(items[1].ID, gc.Equals, "m2")

	err = s.s.UpsertItem(&graph.ItemFeatures{ID: "None"})
	c.Assert(xerrors.Is(err, graph.ErrMissingID), gc.Equals, true)

	_, err = s.s.FindItem("nope")
	c.Assert(xerrors.Is(err, graph.ErrNotFound), gc.Equals, true)
}

func (s *InMemoryStoreTestSuite) TestIteratorsSnapshotRows(c *gc.C) {
	c.Assert(s.s.AddInteraction(graph.InteractionRow{ActorID: "u1", ItemID: "m1", Weight: 5}), gc.IsNil)
	it, err := s.s.Interactions()
	c.Assert(err, gc.IsNil)

	// rows added after the iterator was created are not visible to it
	c.Assert(s.s.AddInteraction(graph.InteractionRow{ActorID: "u2", ItemID: "m2"}), gc.IsNil)

	rows, err := graph.CollectInteractions(it)
	c.Assert(err, gc.IsNil)
	c.Assert(rows, gc.DeepEquals, []graph.InteractionRow{{ActorID: "u1", ItemID: "m1", Weight: 5}})
}

func (s *InMemoryStoreTestSuite) TestLoadFixture(c *gc.C) {
	doc := `
items:
  - {id: 1, name: CB500F, brand: Honda, category: naked, displacement: 471, power: 47, price: 6800}
  - {id: "", name: ghost}
interactions:
  - {actor: u1, item: 1, weight: "4 stars"}
  - {actor: u2, item: 1}
friendships:
  - {a: u1, b: u2}
ratings:
  - {actor: u1, item: 1, score: 0.9}
`
	st, err := LoadFixture(strings.NewReader(doc))
	c.Assert(err, gc.IsNil)

	it, err := st.Items()
	c.Assert(err, gc.IsNil)
	items, err := graph.CollectItems(it)
	c.Assert(err, gc.IsNil)
	c.Assert(items, gc.HasLen, 1)
	c.Assert(items[0].ID, gc.Equals, "1")
	c.Assert(items[0].Displacement, gc.Equals, 471.0)

	iit, err := st.Interactions()
	c.Assert(err, gc.IsNil)
	rows, err := graph.CollectInteractions(iit)
	c.Assert(err, gc.IsNil)
	c.Assert(rows, gc.HasLen, 2)
	in, ok := rows[0].Interaction()
	c.Assert(ok, gc.Equals, true)
	c.Assert(in.Weight, gc.Equals, 4.0)
	in, ok = rows[1].Interaction()
	c.Assert(ok, gc.Equals, true)
	c.Assert(in.Weight, gc.Equals, graph.DefaultWeight)

	fit, err := st.Friendships()
	c.Assert(err, gc.IsNil)
	friends, err := graph.CollectFriendships(fit)
	c.Assert(err, gc.IsNil)
	c.Assert(friends, gc.HasLen, 1)

	rit, err := st.Ratings()
	c.Assert(err, gc.IsNil)
	ratings, err := graph.CollectRatings(rit)
	c.Assert(err, gc.IsNil)
	r, ok := ratings[0].Rating()
	c.Assert(ok, gc.Equals, true)
	c.Assert(r, gc.DeepEquals, graph.Rating{ActorID: "u1", ItemID: "1", Score: 0.9})
}
