package memory

import (
	"github.com/Ahmed-Sermani/motorec/catalog"
	"github.com/blevesearch/bleve"
)

// itemIterator pages through bleve search results, fetching the next batch
// once the current one is exhausted.
type itemIterator struct {
	c         *InMemoryCatalog
	searchReq *bleve.SearchRequest

	cumIdx uint64
	resIdx int
	res    *bleve.SearchResult

	latchedItem *catalog.Item
	lastErr     error
}

func (it *itemIterator) Next() bool {
	if it.lastErr != nil || it.res == nil || it.cumIdx >= it.res.Total {
		return false
	}

	if it.resIdx >= it.res.Hits.Len() {
		it.searchReq.From += it.searchReq.Size
		if it.res, it.lastErr = it.c.idx.Search(it.searchReq); it.lastErr != nil {
			return false
		}
		if it.res.Hits.Len() == 0 {
			return false
		}
		it.resIdx = 0
	}

	nextID := it.res.Hits[it.resIdx].ID
	if it.latchedItem, it.lastErr = it.c.FindByID(nextID); it.lastErr != nil {
		return false
	}

	it.cumIdx++
	it.resIdx++
	return true
}

func (it *itemIterator) Close() error {
	it.c = nil
	it.searchReq = nil
	if it.res != nil {
		it.cumIdx = it.res.Total
	}
	return nil
}

func (it *itemIterator) Item() *catalog.Item { return it.latchedItem }

func (it *itemIterator) Error() error { return it.lastErr }

func (it *itemIterator) TotalCount() uint64 {
	if it.res == nil {
		return 0
	}
	return it.res.Total
}
