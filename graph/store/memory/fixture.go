package memory

import (
	"io"
	"os"

	"github.com/Ahmed-Sermani/motorec/graph"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// fixture is the YAML layout accepted by LoadFixture. Row values stay
// untyped since fixtures are dumps of real tables.
type fixture struct {
	Items []struct {
		ID           any     `yaml:"id"`
		Name         string  `yaml:"name"`
		Brand        string  `yaml:"brand"`
		Category     string  `yaml:"category"`
		Displacement float64 `yaml:"displacement"`
		Power        float64 `yaml:"power"`
		Price        float64 `yaml:"price"`
	} `yaml:"items"`
	Interactions []struct {
		Actor  any `yaml:"actor"`
		Item   any `yaml:"item"`
		Weight any `yaml:"weight"`
	} `yaml:"interactions"`
	Friendships []struct {
		A any `yaml:"a"`
		B any `yaml:"b"`
	} `yaml:"friendships"`
	Ratings []struct {
		Actor any `yaml:"actor"`
		Item  any `yaml:"item"`
		Score any `yaml:"score"`
	} `yaml:"ratings"`
}

// LoadFixture populates a new in-memory store from a YAML document. Items
// without a usable id are skipped; all other rows are stored as-is.
func LoadFixture(r io.Reader) (*InMemoryStore, error) {
	var f fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !xerrors.Is(err, io.EOF) {
		return nil, xerrors.Errorf("decode fixture: %w", err)
	}

	s := NewInMemoryStore()
	for _, it := range f.Items {
		id, ok := graph.ID(it.ID)
		if !ok {
			continue
		}
		item := &graph.ItemFeatures{
			ID:           id,
			Name:         it.Name,
			Brand:        it.Brand,
			Category:     it.Category,
			Displacement: it.Displacement,
			Power:        it.Power,
			Price:        it.Price,
		}
		if err := s.UpsertItem(item); err != nil {
			return nil, err
		}
	}
	for _, in := range f.Interactions {
		_ = s.AddInteraction(graph.InteractionRow{ActorID: in.Actor, ItemID: in.Item, Weight: in.Weight})
	}
	for _, fr := range f.Friendships {
		_ = s.AddFriendship(graph.FriendshipRow{A: fr.A, B: fr.B})
	}
	for _, r := range f.Ratings {
		_ = s.AddRating(graph.RatingRow{ActorID: r.Actor, ItemID: r.Item, Score: r.Score})
	}
	return s, nil
}

// LoadFixtureFile is a convenience wrapper around LoadFixture.
func LoadFixtureFile(path string) (*InMemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadFixture(f)
}
