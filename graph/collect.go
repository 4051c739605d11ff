package graph

import "golang.org/x/xerrors"

// CollectInteractions drains the iterator and closes it.
func CollectInteractions(it InteractionIterator) ([]InteractionRow, error) {
	var rows []InteractionRow
	for it.Next() {
		rows = append(rows, it.Interaction())
	}
	return rows, drain("interactions", it)
}

// CollectFriendships drains the iterator and closes it.
func CollectFriendships(it FriendshipIterator) ([]FriendshipRow, error) {
	var rows []FriendshipRow
	for it.Next() {
		rows = append(rows, it.Friendship())
	}
	return rows, drain("friendships", it)
}

// CollectRatings drains the iterator and closes it.
func CollectRatings(it RatingIterator) ([]RatingRow, error) {
	var rows []RatingRow
	for it.Next() {
		rows = append(rows, it.Rating())
	}
	return rows, drain("ratings", it)
}

// CollectItems drains the iterator and closes it.
func CollectItems(it ItemIterator) ([]ItemFeatures, error) {
	var items []ItemFeatures
	for it.Next() {
		items = append(items, *it.Item())
	}
	return items, drain("items", it)
}

func drain(what string, it Iterator) error {
	if err := it.Error(); err != nil {
		_ = it.Close()
		return xerrors.Errorf("collect %s: %w", what, err)
	}
	if err := it.Close(); err != nil {
		return xerrors.Errorf("collect %s: %w", what, err)
	}
	return nil
}
