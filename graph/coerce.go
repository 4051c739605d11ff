package graph

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// DefaultWeight is assigned to interactions whose weight is missing,
// unparseable or not positive.
const DefaultWeight = 1.0

var (
	embeddedNumber = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

	// placeholder values the upstream layers emit for absent ids
	nullIDs = map[string]struct{}{
		"":          {},
		"none":      {},
		"null":      {},
		"nil":       {},
		"nan":       {},
		"undefined": {},
	}
)

// ID coerces a raw identifier to its string form. It returns false for
// missing ids and for the "None"-like placeholders.
func ID(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if _, null := nullIDs[strings.ToLower(s)]; null {
		return "", false
	}
	return s, true
}

// Number parses numeric values, numeric strings and, as a last resort, the
// first number embedded in a string such as "4.5 stars".
func Number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil, bool:
		return 0, false
	case []byte:
		return parseNumeric(string(v))
	case string:
		return parseNumeric(v)
	}

	f, err := cast.ToFloat64E(raw)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

// Weight coerces a raw interaction weight. The second return value is false
// when DefaultWeight had to be used.
func Weight(raw any) (float64, bool) {
	w, ok := Number(raw)
	if !ok || w <= 0 {
		return DefaultWeight, false
	}
	return w, true
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := cast.ToFloat64E(s); err == nil && finite(f) {
		return f, true
	}

	m := embeddedNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(m)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Interaction validates the row. Rows without a usable actor or item id are
// rejected; the weight always coerces.
func (r InteractionRow) Interaction() (Interaction, bool) {
	actor, ok := ID(r.ActorID)
	if !ok {
		return Interaction{}, false
	}
	item, ok := ID(r.ItemID)
	if !ok {
		return Interaction{}, false
	}
	w, _ := Weight(r.Weight)
	return Interaction{ActorID: actor, ItemID: item, Weight: w}, true
}

// Friendship validates the row. Self pairs are valid and register an actor
// without neighbors.
func (r FriendshipRow) Friendship() (Friendship, bool) {
	a, ok := ID(r.A)
	if !ok {
		return Friendship{}, false
	}
	b, ok := ID(r.B)
	if !ok {
		return Friendship{}, false
	}
	return Friendship{A: a, B: b}, true
}

// Rating validates the row. Unlike interaction weights, a score that cannot
// be parsed invalidates the whole row.
func (r RatingRow) Rating() (Rating, bool) {
	rating, err := r.validate()
	return rating, err == nil
}

// Validate reports why Rating rejects the row: ErrMissingID for an unusable
// actor or item id and ErrInvalidScore for a score that cannot be parsed.
func (r RatingRow) Validate() error {
	_, err := r.validate()
	return err
}

func (r RatingRow) validate() (Rating, error) {
	actor, ok := ID(r.ActorID)
	if !ok {
		return Rating{}, ErrMissingID
	}
	item, ok := ID(r.ItemID)
	if !ok {
		return Rating{}, ErrMissingID
	}
	score, ok := Number(r.Score)
	if !ok {
		return Rating{}, ErrInvalidScore
	}
	return Rating{ActorID: actor, ItemID: item, Score: score}, nil
}
