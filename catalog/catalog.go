/*
   Searchable catalog of motorcycles. Besides their attributes, items carry
   the popularity score last computed by the ranker, which orders search
   results.
*/
package catalog

import (
	"strings"
	"time"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/xerrors"
)

var (
	// ErrNotFound is returned by the catalog when looking up an item
	// that does not exist.
	ErrNotFound = xerrors.New("not found")

	// ErrMissingID is returned when indexing an item without an id.
	ErrMissingID = xerrors.New("item id missing")
)

// Item is a catalog entry.
type Item struct {
	ID          string
	Name        string
	Brand       string
	Category    string
	Description string

	Displacement float64
	Power        float64
	Price        float64

	// IndexedAt is set by the catalog when the item is (re)indexed.
	IndexedAt time.Time

	// Popularity is the normalized ranker score of the item. Re-indexing
	// an item preserves it.
	Popularity float64
}

// Features returns the attributes the similarity index works on.
func (it *Item) Features() graph.ItemFeatures {
	return graph.ItemFeatures{
		ID:           it.ID,
		Name:         it.Name,
		Brand:        it.Brand,
		Category:     it.Category,
		Displacement: it.Displacement,
		Power:        it.Power,
		Price:        it.Price,
	}
}

// FromFeatures converts store features into a catalog item.
func FromFeatures(f graph.ItemFeatures) *Item {
	return &Item{
		ID:           f.ID,
		Name:         f.Name,
		Brand:        f.Brand,
		Category:     f.Category,
		Displacement: f.Displacement,
		Power:        f.Power,
		Price:        f.Price,
	}
}

// textPolicy strips every tag; the catalog only stores plain text.
var textPolicy = bluemonday.StrictPolicy()

// Sanitize strips markup and surrounding whitespace from the free text
// fields of it.
func Sanitize(it *Item) {
	for _, field := range []*string{&it.ID, &it.Name, &it.Brand, &it.Category, &it.Description} {
		*field = strings.TrimSpace(textPolicy.Sanitize(*field))
	}
}

type QueryType uint8

const (
	// QueryTypeMatch requests items matching any of the query terms.
	QueryTypeMatch QueryType = iota

	// QueryTypePhrase searches for an exact phrase match.
	QueryTypePhrase
)

// Query describes a catalog search. An empty expression matches every item.
type Query struct {
	Type       QueryType
	Expression string
	Offset     uint64
}

// Iterator is implemented by objects that can paginate search results.
type Iterator interface {
	// Next advances the iterator. It returns false when there are no more
	// results or an error occurred.
	Next() bool
	Error() error
	Close() error

	Item() *Item

	// TotalCount returns the approximate number of search results.
	TotalCount() uint64
}

// Catalog is implemented by objects that can index and search items.
type Catalog interface {
	// Index inserts a new item or updates an existing one.
	Index(item *Item) error

	FindByID(id string) (*Item, error)

	// UpdateScore sets the popularity of an item. Unknown items get a
	// placeholder entry that a later Index call completes.
	UpdateScore(id string, popularity float64) error

	// Search returns items ordered by popularity and then by relevance.
	Search(q Query) (Iterator, error)

	// Features lists the features of every indexed item.
	Features() ([]graph.ItemFeatures, error)
}
