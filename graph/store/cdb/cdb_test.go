package cdb

import (
	"database/sql"
	"os"
	"testing"

	"github.com/Ahmed-Sermani/motorec/graph"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(CockroachDBStoreTestSuite))

type CockroachDBStoreTestSuite struct {
	s  *CockroachDBStore
	db *sql.DB
}

func Test(t *testing.T) {
	gc.TestingT(t)
}

func (s *CockroachDBStoreTestSuite) SetUpSuite(c *gc.C) {
	dsn := os.Getenv("CDB_DSN")
	if dsn == "" {
		c.Skip("missing cdb dsn; skipping cdb test package")
	}

	st, err := NewCockroachDBStore(dsn)
	c.Assert(err, gc.IsNil)
	s.s = st
	s.db = st.db
}

func (s *CockroachDBStoreTestSuite) TearDownSuite(c *gc.C) {
	if s.db != nil {
		s.flushDB(c)
		c.Assert(s.db.Close(), gc.IsNil)
	}
}

func (s *CockroachDBStoreTestSuite) SetUpTest(c *gc.C) {
	s.flushDB(c)
}

func (s *CockroachDBStoreTestSuite) TestItemRoundTrip(c *gc.C) {
	c.Assert(s.s.UpsertItem(&graph.ItemFeatures{ID: "m1", Brand: "Honda", Displacement: 471}), gc.IsNil)

	got, err := s.s.FindItem("m1")
	c.Assert(err, gc.IsNil)
	c.Assert(got.Brand, gc.Equals, "Honda")
	c.Assert(got.Power, gc.Equals, 0.0)

	_, err = s.s.FindItem("missing")
	c.Assert(xerrors.Is(err, graph.ErrNotFound), gc.Equals, true)
}

func (s *CockroachDBStoreTestSuite) TestInteractionWithUnparseableWeight(c *gc.C) {
	c.Assert(s.s.UpsertItem(&graph.ItemFeatures{ID: "m1"}), gc.IsNil)
	c.Assert(s.s.AddInteraction(graph.InteractionRow{ActorID: "u1", ItemID: "m1", Weight: "lots"}), gc.IsNil)

	it, err := s.s.Interactions()
	c.Assert(err, gc.IsNil)
	rows, err := graph.CollectInteractions(it)
	c.Assert(err, gc.IsNil)
	c.Assert(rows, gc.HasLen, 1)

	in, ok := rows[0].Interaction()
	c.Assert(ok, gc.Equals, true)
	c.Assert(in.Weight, gc.Equals, graph.DefaultWeight)
}

func (s *CockroachDBStoreTestSuite) TestFriendshipIsCanonical(c *gc.C) {
	c.Assert(s.s.AddFriendship(graph.FriendshipRow{A: "b", B: "a"}), gc.IsNil)
	c.Assert(s.s.AddFriendship(graph.FriendshipRow{A: "a", B: "b"}), gc.IsNil)

	it, err := s.s.Friendships()
	c.Assert(err, gc.IsNil)
	rows, err := graph.CollectFriendships(it)
	c.Assert(err, gc.IsNil)
	c.Assert(rows, gc.HasLen, 1)
}

func (s *CockroachDBStoreTestSuite) TestRatingRejections(c *gc.C) {
	c.Assert(s.s.UpsertItem(&graph.ItemFeatures{ID: "m1"}), gc.IsNil)

	err := s.s.AddRating(graph.RatingRow{ActorID: "u1", ItemID: "m1", Score: "great"})
	c.Assert(xerrors.Is(err, graph.ErrInvalidScore), gc.Equals, true, gc.Commentf("%v", err))

	err = s.s.AddRating(graph.RatingRow{ActorID: "u1", ItemID: "", Score: 0.5})
	c.Assert(xerrors.Is(err, graph.ErrMissingID), gc.Equals, true, gc.Commentf("%v", err))

	err = s.s.AddRating(graph.RatingRow{ActorID: "u1", ItemID: "ghost", Score: 0.5})
	c.Assert(xerrors.Is(err, graph.ErrNotFound), gc.Equals, true, gc.Commentf("%v", err))
}

func (s *CockroachDBStoreTestSuite) flushDB(c *gc.C) {
	for _, table := range []string{"ratings", "interactions", "friendships", "items"} {
		_, err := s.db.Exec("DELETE FROM " + table)
		c.Assert(err, gc.IsNil)
	}
}
