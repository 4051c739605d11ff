package cdb

import (
	"database/sql"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/lib/pq"
	"golang.org/x/xerrors"
)

const (
	upsertItemQuery = `
  INSERT INTO items (id, name, brand, category, displacement, power, price)
  VALUES ($1, $2, $3, $4, $5, $6, $7)
  ON CONFLICT (id) DO UPDATE SET
    name=$2, brand=$3, category=$4, displacement=$5, power=$6, price=$7
  `
	findItemQuery = `
  SELECT name, brand, category, displacement, power, price FROM items WHERE id=$1
  `
	insertInteractionQuery = `
  INSERT INTO interactions (actor_id, item_id, weight) VALUES ($1, $2, $3)
  `
	insertFriendshipQuery = `
  INSERT INTO friendships (actor_a, actor_b) VALUES ($1, $2)
  ON CONFLICT (actor_a, actor_b) DO NOTHING
  `
	upsertRatingQuery = `
  INSERT INTO ratings (actor_id, item_id, score) VALUES ($1, $2, $3)
  ON CONFLICT (actor_id, item_id) DO UPDATE SET score=$3, updated_at=NOW()
  `
	iterItemsQuery = `
  SELECT id, name, brand, category, displacement, power, price FROM items ORDER BY id
  `
	iterInteractionsQuery = `
  SELECT actor_id, item_id, weight FROM interactions ORDER BY created_at, id
  `
	iterFriendshipsQuery = `
  SELECT actor_a, actor_b FROM friendships ORDER BY created_at, actor_a, actor_b
  `
	iterRatingsQuery = `
  SELECT actor_id, item_id, score FROM ratings ORDER BY updated_at, actor_id, item_id
  `
)

var _ graph.Store = (*CockroachDBStore)(nil)

// CockroachDBStore is a graph.Store backed by a CockroachDB (or any
// PostgreSQL compatible) database. See schema.sql for the expected tables.
type CockroachDBStore struct {
	db *sql.DB
}

func NewCockroachDBStore(dsn string) (*CockroachDBStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, xerrors.Errorf("open store: %w", err)
	}

	return &CockroachDBStore{db: db}, nil
}

func (c *CockroachDBStore) Close() error {
	return c.db.Close()
}

func (c *CockroachDBStore) UpsertItem(item *graph.ItemFeatures) error {
	id, ok := graph.ID(item.ID)
	if !ok {
		return xerrors.Errorf("upsert item: %w", graph.ErrMissingID)
	}
	_, err := c.db.Exec(upsertItemQuery,
		id, item.Name, item.Brand, item.Category,
		nullIfUnknown(item.Displacement), nullIfUnknown(item.Power), nullIfUnknown(item.Price),
	)
	if err != nil {
		return xerrors.Errorf("upsert item: %w", err)
	}
	item.ID = id
	return nil
}

func (c *CockroachDBStore) FindItem(id string) (*graph.ItemFeatures, error) {
	row := c.db.QueryRow(findItemQuery, id)
	item := &graph.ItemFeatures{ID: id}
	var disp, power, price sql.NullFloat64
	var name, brand, category sql.NullString
	if err := row.Scan(&name, &brand, &category, &disp, &power, &price); err != nil {
		if xerrors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.Errorf("find item: %w", graph.ErrNotFound)
		}
		return nil, xerrors.Errorf("find item: %w", err)
	}
	fillItem(item, name, brand, category, disp, power, price)
	return item, nil
}

// AddInteraction normalizes the ids before writing. Weights that cannot be
// parsed are stored as NULL and default to 1.0 when read back.
func (c *CockroachDBStore) AddInteraction(row graph.InteractionRow) error {
	actor, okA := graph.ID(row.ActorID)
	item, okI := graph.ID(row.ItemID)
	if !okA || !okI {
		return xerrors.Errorf("add interaction: %w", graph.ErrMissingID)
	}
	var weight any
	if w, ok := graph.Number(row.Weight); ok {
		weight = w
	}
	if _, err := c.db.Exec(insertInteractionQuery, actor, item, weight); err != nil {
		if isForeignKeyError(err) {
			err = graph.ErrNotFound
		}
		return xerrors.Errorf("add interaction: %w", err)
	}
	return nil
}

// AddFriendship stores the pair in canonical order so that (a,b) and (b,a)
// map to the same row.
func (c *CockroachDBStore) AddFriendship(row graph.FriendshipRow) error {
	f, ok := row.Friendship()
	if !ok {
		return xerrors.Errorf("add friendship: %w", graph.ErrMissingID)
	}
	a, b := f.A, f.B
	if b < a {
		a, b = b, a
	}
	if _, err := c.db.Exec(insertFriendshipQuery, a, b); err != nil {
		return xerrors.Errorf("add friendship: %w", err)
	}
	return nil
}

func (c *CockroachDBStore) AddRating(row graph.RatingRow) error {
	r, ok := row.Rating()
	if !ok {
		return xerrors.Errorf("add rating: %w", row.Validate())
	}
	if _, err := c.db.Exec(upsertRatingQuery, r.ActorID, r.ItemID, r.Score); err != nil {
		if isForeignKeyError(err) {
			err = graph.ErrNotFound
		}
		return xerrors.Errorf("add rating: %w", err)
	}
	return nil
}

func (c *CockroachDBStore) Items() (graph.ItemIterator, error) {
	rows, err := c.db.Query(iterItemsQuery)
	if err != nil {
		return nil, xerrors.Errorf("items: %w", err)
	}
	return &itemIterator{rowCursor: rowCursor{rows: rows}}, nil
}

func (c *CockroachDBStore) Interactions() (graph.InteractionIterator, error) {
	rows, err := c.db.Query(iterInteractionsQuery)
	if err != nil {
		return nil, xerrors.Errorf("interactions: %w", err)
	}
	return &interactionIterator{rowCursor: rowCursor{rows: rows}}, nil
}

func (c *CockroachDBStore) Friendships() (graph.FriendshipIterator, error) {
	rows, err := c.db.Query(iterFriendshipsQuery)
	if err != nil {
		return nil, xerrors.Errorf("friendships: %w", err)
	}
	return &friendshipIterator{rowCursor: rowCursor{rows: rows}}, nil
}

func (c *CockroachDBStore) Ratings() (graph.RatingIterator, error) {
	rows, err := c.db.Query(iterRatingsQuery)
	if err != nil {
		return nil, xerrors.Errorf("ratings: %w", err)
	}
	return &ratingIterator{rowCursor: rowCursor{rows: rows}}, nil
}

func isForeignKeyError(err error) bool {
	var pqErr *pq.Error
	if !xerrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Name() == "foreign_key_violation"
}

func nullIfUnknown(v float64) any {
	if v <= 0 {
		return nil
	}
	return v
}

func fillItem(item *graph.ItemFeatures, name, brand, category sql.NullString, disp, power, price sql.NullFloat64) {
	item.Name = name.String
	item.Brand = brand.String
	item.Category = category.String
	item.Displacement = disp.Float64
	item.Power = power.Float64
	item.Price = price.Float64
}
