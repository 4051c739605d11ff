package memory

import "github.com/Ahmed-Sermani/motorec/graph"

// cursor walks over a snapshot of rows taken when the iterator was created,
// so callers never observe concurrent writes.
type cursor[T any] struct {
	rows   []T
	curIdx int
}

func (i *cursor[T]) Next() bool {
	if i.curIdx >= len(i.rows) {
		return false
	}
	i.curIdx++
	return true
}

func (i *cursor[T]) Error() error { return nil }

func (i *cursor[T]) Close() error { return nil }

func (i *cursor[T]) current() T { return i.rows[i.curIdx-1] }

type interactionIterator struct{ cursor[graph.InteractionRow] }

func (i *interactionIterator) Interaction() graph.InteractionRow { return i.current() }

type friendshipIterator struct{ cursor[graph.FriendshipRow] }

func (i *friendshipIterator) Friendship() graph.FriendshipRow { return i.current() }

type ratingIterator struct{ cursor[graph.RatingRow] }

func (i *ratingIterator) Rating() graph.RatingRow { return i.current() }

type itemIterator struct{ cursor[graph.ItemFeatures] }

func (i *itemIterator) Item() *graph.ItemFeatures {
	item := i.current()
	return &item
}
