/*
   Domain model shared by the recommendation engines: actors, items, the raw
   rows the data layer hands over and the stores those rows live in.
*/
package graph

import (
	"golang.org/x/xerrors"
)

var (
	// ErrNotFound is returned when looking up an item that does not exist.
	ErrNotFound = xerrors.New("not found")

	// ErrMissingID is returned by stores when a row lacks a usable identifier.
	ErrMissingID = xerrors.New("missing or invalid identifier")

	// ErrInvalidScore is returned by stores for a rating whose score is not
	// a number.
	ErrInvalidScore = xerrors.New("score is not a number")
)

// Interaction is a validated actor→item edge with a positive weight.
type Interaction struct {
	ActorID string
	ItemID  string
	Weight  float64
}

// InteractionRow is an interaction as it comes out of the database or a
// fixture file. Ids must be string-coercible and the weight may be a number,
// a numeric string or missing altogether.
type InteractionRow struct {
	ActorID any
	ItemID  any
	Weight  any
}

// Friendship is an undirected edge between two actors.
type Friendship struct {
	A string
	B string
}

type FriendshipRow struct {
	A any
	B any
}

// Rating is an actor's preference score for an item. Scores are unbounded.
type Rating struct {
	ActorID string
	ItemID  string
	Score   float64
}

type RatingRow struct {
	ActorID any
	ItemID  any
	Score   any
}

// ItemFeatures holds the attributes of a motorcycle used for similarity
// scoring. Numeric attributes that are zero or negative are unknown.
type ItemFeatures struct {
	ID           string
	Name         string
	Brand        string
	Category     string
	Displacement float64
	Power        float64
	Price        float64
}

// ScoredItem is an entry of a ranking.
type ScoredItem struct {
	ItemID string
	Score  float64
}

// Recommendation is an entry of a per-actor recommendation list.
type Recommendation struct {
	ItemID string
	Score  float64
	Reason string
}

type Iterator interface {
	// Next advances the iterator. It returns false when there are no more
	// rows or an error occurred.
	Next() bool
	Error() error
	Close() error
}

type InteractionIterator interface {
	Iterator
	Interaction() InteractionRow
}

type FriendshipIterator interface {
	Iterator
	Friendship() FriendshipRow
}

type RatingIterator interface {
	Iterator
	Rating() RatingRow
}

type ItemIterator interface {
	Iterator
	Item() *ItemFeatures
}

// Store is implemented by the backends that hold the rows the engines are
// built from.
type Store interface {
	UpsertItem(item *ItemFeatures) error
	FindItem(id string) (*ItemFeatures, error)

	AddInteraction(row InteractionRow) error
	AddFriendship(row FriendshipRow) error
	AddRating(row RatingRow) error

	Items() (ItemIterator, error)
	Interactions() (InteractionIterator, error)
	Friendships() (FriendshipIterator, error)
	Ratings() (RatingIterator, error)
}
