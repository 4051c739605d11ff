package memory

import (
	"sync"
	"time"

	"github.com/Ahmed-Sermani/motorec/catalog"
	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
	"golang.org/x/xerrors"
)

const defaultBatchSize = 10

var _ catalog.Catalog = (*InMemoryCatalog)(nil)

// InMemoryCatalog keeps items in memory and indexes their text with an
// in-memory bleve index.
type InMemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]*catalog.Item
	order []string

	idx bleve.Index
}

// memDoc is the document bleve indexes for each item.
type memDoc struct {
	Name        string
	Brand       string
	Category    string
	Description string
	Popularity  float64
}

func NewInMemoryBleveCatalog() (*InMemoryCatalog, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &InMemoryCatalog{
		idx:   idx,
		items: make(map[string]*catalog.Item),
	}, nil
}

func (c *InMemoryCatalog) Index(item *catalog.Item) error {
	catalog.Sanitize(item)
	if item.ID == "" {
		return xerrors.Errorf("index: %w", catalog.ErrMissingID)
	}
	item.IndexedAt = time.Now()
	icopy := cpItem(item)

	c.mu.Lock()
	defer c.mu.Unlock()

	orig, found := c.items[icopy.ID]
	if found {
		icopy.Popularity = orig.Popularity
	}
	if err := c.idx.Index(icopy.ID, makeMemDoc(icopy)); err != nil {
		return xerrors.Errorf("index: %w", err)
	}
	if !found {
		c.order = append(c.order, icopy.ID)
	}
	c.items[icopy.ID] = icopy
	return nil
}

func (c *InMemoryCatalog) FindByID(id string) (*catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findByID(id)
}

func (c *InMemoryCatalog) UpdateScore(id string, popularity float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[id]
	if !found {
		item = &catalog.Item{ID: id}
	}
	updated := cpItem(item)
	updated.Popularity = popularity
	if err := c.idx.Index(id, makeMemDoc(updated)); err != nil {
		return xerrors.Errorf("update score: %w", err)
	}
	if !found {
		c.order = append(c.order, id)
	}
	c.items[id] = updated
	return nil
}

func (c *InMemoryCatalog) Search(q catalog.Query) (catalog.Iterator, error) {
	var bq query.Query
	switch {
	case q.Expression == "":
		bq = bleve.NewMatchAllQuery()
	case q.Type == catalog.QueryTypePhrase:
		bq = bleve.NewMatchPhraseQuery(q.Expression)
	default:
		bq = bleve.NewMatchQuery(q.Expression)
	}

	searchReq := bleve.NewSearchRequest(bq)
	searchReq.SortBy([]string{"-Popularity", "-_score", "_id"})
	searchReq.Size = defaultBatchSize
	searchReq.From = int(q.Offset)
	res, err := c.idx.Search(searchReq)
	if err != nil {
		return nil, xerrors.Errorf("search: %w", err)
	}
	return &itemIterator{c: c, searchReq: searchReq, res: res, cumIdx: q.Offset}, nil
}

// Features returns the features of the indexed items in indexing order.
// Placeholders created by UpdateScore are skipped.
func (c *InMemoryCatalog) Features() ([]graph.ItemFeatures, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]graph.ItemFeatures, 0, len(c.order))
	for _, id := range c.order {
		if item := c.items[id]; !item.IndexedAt.IsZero() {
			out = append(out, item.Features())
		}
	}
	return out, nil
}

func (c *InMemoryCatalog) Close() error {
	return c.idx.Close()
}

func (c *InMemoryCatalog) findByID(id string) (*catalog.Item, error) {
	if item, found := c.items[id]; found {
		return cpItem(item), nil
	}
	return nil, xerrors.Errorf("find by id %q: %w", id, catalog.ErrNotFound)
}

func cpItem(item *catalog.Item) *catalog.Item {
	icopy := new(catalog.Item)
	*icopy = *item
	return icopy
}

func makeMemDoc(item *catalog.Item) memDoc {
	return memDoc{
		Name:        item.Name,
		Brand:       item.Brand,
		Category:    item.Category,
		Description: item.Description,
		Popularity:  item.Popularity,
	}
}
