package memory

import (
	"sync"

	"github.com/Ahmed-Sermani/motorec/graph"
	"golang.org/x/xerrors"
)

var _ graph.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps every row in memory. Rows are stored as received so
// the engines see exactly what a database would hand them.
type InMemoryStore struct {
	mu sync.RWMutex

	items     map[string]*graph.ItemFeatures
	itemOrder []string

	interactions []graph.InteractionRow
	friendships  []graph.FriendshipRow
	ratings      []graph.RatingRow
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]*graph.ItemFeatures),
	}
}

func (s *InMemoryStore) UpsertItem(item *graph.ItemFeatures) error {
	id, ok := graph.ID(item.ID)
	if !ok {
		return xerrors.Errorf("upsert item: %w", graph.ErrMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iCopy := new(graph.ItemFeatures)
	*iCopy = *item
	iCopy.ID = id
	if _, exists := s.items[id]; !exists {
		s.itemOrder = append(s.itemOrder, id)
	}
	s.items[id] = iCopy
	return nil
}

func (s *InMemoryStore) FindItem(id string) (*graph.ItemFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.items[id]
	if item == nil {
		return nil, xerrors.Errorf("find item: %w", graph.ErrNotFound)
	}
	iCopy := new(graph.ItemFeatures)
	*iCopy = *item
	return iCopy, nil
}

// AddInteraction appends the row verbatim; validation is the engines' job.
func (s *InMemoryStore) AddInteraction(row graph.InteractionRow) error {
	s.mu.Lock()
	s.interactions = append(s.interactions, row)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) AddFriendship(row graph.FriendshipRow) error {
	s.mu.Lock()
	s.friendships = append(s.friendships, row)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) AddRating(row graph.RatingRow) error {
	s.mu.Lock()
	s.ratings = append(s.ratings, row)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Items() (graph.ItemIterator, error) {
	s.mu.RLock()
	list := make([]graph.ItemFeatures, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		list = append(list, *s.items[id])
	}
	s.mu.RUnlock()
	return &itemIterator{cursor[graph.ItemFeatures]{rows: list}}, nil
}

func (s *InMemoryStore) Interactions() (graph.InteractionIterator, error) {
	s.mu.RLock()
	list := append([]graph.InteractionRow(nil), s.interactions...)
	s.mu.RUnlock()
	return &interactionIterator{cursor[graph.InteractionRow]{rows: list}}, nil
}

func (s *InMemoryStore) Friendships() (graph.FriendshipIterator, error) {
	s.mu.RLock()
	list := append([]graph.FriendshipRow(nil), s.friendships...)
	s.mu.RUnlock()
	return &friendshipIterator{cursor[graph.FriendshipRow]{rows: list}}, nil
}

func (s *InMemoryStore) Ratings() (graph.RatingIterator, error) {
	s.mu.RLock()
	list := append([]graph.RatingRow(nil), s.ratings...)
	s.mu.RUnlock()
	return &ratingIterator{cursor[graph.RatingRow]{rows: list}}, nil
}
