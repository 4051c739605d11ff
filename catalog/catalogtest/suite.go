/*
   Shared test suite for catalog.Catalog implementations. Backends embed
   SuiteBase in their gocheck suite and call SetCatalog from SetUpTest.
*/
package catalogtest

import (
	"fmt"

	"github.com/Ahmed-Sermani/motorec/catalog"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

type SuiteBase struct {
	c catalog.Catalog
}

func (s *SuiteBase) SetCatalog(c catalog.Catalog) {
	s.c = c
}

func (s *SuiteBase) TestIndexAndFind(c *gc.C) {
	item := &catalog.Item{
		ID:           "mt07",
		Name:         "MT-07",
		Brand:        "Yamaha",
		Category:     "naked",
		Displacement: 689,
		Price:        8000,
	}
	c.Assert(s.c.Index(item), gc.IsNil)
	c.Assert(item.IndexedAt.IsZero(), gc.Equals, false)

	got, err := s.c.FindByID("mt07")
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, item)

	// Changing the returned copy does not affect the catalog.
	got.Name = "changed"
	again, err := s.c.FindByID("mt07")
	c.Assert(err, gc.IsNil)
	c.Assert(again.Name, gc.Equals, "MT-07")

	_, err = s.c.FindByID("missing")
	c.Assert(xerrors.Is(err, catalog.ErrNotFound), gc.Equals, true)

	err = s.c.Index(&catalog.Item{ID: "  "})
	c.Assert(xerrors.Is(err, catalog.ErrMissingID), gc.Equals, true)
}

func (s *SuiteBase) TestMarkupIsStripped(c *gc.C) {
	c.Assert(s.c.Index(&catalog.Item{
		ID:          "cb500",
		Name:        "<b>CB500X</b>",
		Description: `<script>alert("x")</script>An <i>adventure</i> bike`,
	}), gc.IsNil)

	got, err := s.c.FindByID("cb500")
	c.Assert(err, gc.IsNil)
	c.Assert(got.Name, gc.Equals, "CB500X")
	c.Assert(got.Description, gc.Equals, "An adventure bike")
}

func (s *SuiteBase) TestUpdateScore(c *gc.C) {
	c.Assert(s.c.Index(&catalog.Item{ID: "r1", Name: "YZF-R1"}), gc.IsNil)
	c.Assert(s.c.UpdateScore("r1", 0.5), gc.IsNil)

	// Re-indexing keeps the score.
	c.Assert(s.c.Index(&catalog.Item{ID: "r1", Name: "YZF-R1M"}), gc.IsNil)
	got, err := s.c.FindByID("r1")
	c.Assert(err, gc.IsNil)
	c.Assert(got.Popularity, gc.Equals, 0.5)
	c.Assert(got.Name, gc.Equals, "YZF-R1M")

	// Scores of unknown items create placeholders that are not listed as
	// features until indexed.
	c.Assert(s.c.UpdateScore("ghost", 0.9), gc.IsNil)
	got, err = s.c.FindByID("ghost")
	c.Assert(err, gc.IsNil)
	c.Assert(got.Popularity, gc.Equals, 0.9)

	features, err := s.c.Features()
	c.Assert(err, gc.IsNil)
	c.Assert(features, gc.HasLen, 1)
	c.Assert(features[0].ID, gc.Equals, "r1")
}

func (s *SuiteBase) TestSearchOrdersByPopularity(c *gc.C) {
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("naked-%02d", i)
		c.Assert(s.c.Index(&catalog.Item{ID: id, Name: "naked roadster", Category: "naked"}), gc.IsNil)
		c.Assert(s.c.UpdateScore(id, float64(i)/25), gc.IsNil)
	}
	c.Assert(s.c.Index(&catalog.Item{ID: "tourer", Name: "sport tourer", Category: "touring"}), gc.IsNil)

	it, err := s.c.Search(catalog.Query{Expression: "naked"})
	c.Assert(err, gc.IsNil)
	c.Assert(it.TotalCount(), gc.Equals, uint64(25))

	var got []string
	for it.Next() {
		got = append(got, it.Item().ID)
	}
	c.Assert(it.Error(), gc.IsNil)
	c.Assert(it.Close(), gc.IsNil)
	c.Assert(got, gc.HasLen, 25)
	for i, id := range got {
		c.Assert(id, gc.Equals, fmt.Sprintf("naked-%02d", 24-i))
	}
}

func (s *SuiteBase) TestSearchOffsetAndPhrase(c *gc.C) {
	c.Assert(s.c.Index(&catalog.Item{ID: "a", Name: "sport tourer"}), gc.IsNil)
	c.Assert(s.c.Index(&catalog.Item{ID: "b", Name: "tourer sport"}), gc.IsNil)
	c.Assert(s.c.UpdateScore("a", 0.2), gc.IsNil)
	c.Assert(s.c.UpdateScore("b", 0.8), gc.IsNil)

	it, err := s.c.Search(catalog.Query{Type: catalog.QueryTypePhrase, Expression: "sport tourer"})
	c.Assert(err, gc.IsNil)
	c.Assert(iterIDs(it), gc.DeepEquals, []string{"a"})

	it, err = s.c.Search(catalog.Query{Expression: "sport", Offset: 1})
	c.Assert(err, gc.IsNil)
	c.Assert(iterIDs(it), gc.DeepEquals, []string{"a"})

	it, err = s.c.Search(catalog.Query{})
	c.Assert(err, gc.IsNil)
	c.Assert(iterIDs(it), gc.DeepEquals, []string{"b", "a"})
}

func iterIDs(it catalog.Iterator) []string {
	var ids []string
	for it.Next() {
		ids = append(ids, it.Item().ID)
	}
	_ = it.Close()
	return ids
}
