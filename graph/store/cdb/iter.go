package cdb

import (
	"database/sql"

	"github.com/Ahmed-Sermani/motorec/graph"
	"golang.org/x/xerrors"
)

// rowCursor holds the bookkeeping shared by all the sql backed iterators.
type rowCursor struct {
	rows    *sql.Rows
	lastErr error
}

func (i *rowCursor) advance(scan func() error) bool {
	if i.lastErr != nil || !i.rows.Next() {
		return false
	}
	i.lastErr = scan()
	return i.lastErr == nil
}

func (i *rowCursor) Error() error {
	if i.lastErr != nil {
		return i.lastErr
	}
	return i.rows.Err()
}

func (i *rowCursor) Close() error {
	if err := i.rows.Close(); err != nil {
		return xerrors.Errorf("row iter: %w", err)
	}
	return nil
}

type itemIterator struct {
	rowCursor
	latched *graph.ItemFeatures
}

func (i *itemIterator) Next() bool {
	return i.advance(func() error {
		item := &graph.ItemFeatures{}
		var disp, power, price sql.NullFloat64
		var name, brand, category sql.NullString
		if err := i.rows.Scan(&item.ID, &name, &brand, &category, &disp, &power, &price); err != nil {
			return err
		}
		fillItem(item, name, brand, category, disp, power, price)
		i.latched = item
		return nil
	})
}

func (i *itemIterator) Item() *graph.ItemFeatures { return i.latched }

// Interaction columns are scanned into untyped values; NULL and oddly typed
// weights are resolved later by graph.Weight.
type interactionIterator struct {
	rowCursor
	latched graph.InteractionRow
}

func (i *interactionIterator) Next() bool {
	return i.advance(func() error {
		var row graph.InteractionRow
		err := i.rows.Scan(&row.ActorID, &row.ItemID, &row.Weight)
		i.latched = row
		return err
	})
}

func (i *interactionIterator) Interaction() graph.InteractionRow { return i.latched }

type friendshipIterator struct {
	rowCursor
	latched graph.FriendshipRow
}

func (i *friendshipIterator) Next() bool {
	return i.advance(func() error {
		var row graph.FriendshipRow
		err := i.rows.Scan(&row.A, &row.B)
		i.latched = row
		return err
	})
}

func (i *friendshipIterator) Friendship() graph.FriendshipRow { return i.latched }

type ratingIterator struct {
	rowCursor
	latched graph.RatingRow
}

func (i *ratingIterator) Next() bool {
	return i.advance(func() error {
		var row graph.RatingRow
		err := i.rows.Scan(&row.ActorID, &row.ItemID, &row.Score)
		i.latched = row
		return err
	})
}

func (i *ratingIterator) Rating() graph.RatingRow { return i.latched }
