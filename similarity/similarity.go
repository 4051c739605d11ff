/*
   Pairwise item similarity over motorcycle attributes.

   Brand and category contribute an exact-match bonus while displacement,
   power and price contribute min(a,b)/max(a,b). A term only counts when
   both items carry the attribute, and the result is normalized by the
   weights of the terms that counted, so missing data never lowers a score.
*/
package similarity

import (
	"sort"
	"strings"

	"github.com/Ahmed-Sermani/motorec/graph"
)

// Weights of the similarity terms.
const (
	BrandWeight        = 0.30
	CategoryWeight     = 0.30
	DisplacementWeight = 0.15
	PowerWeight        = 0.15
	PriceWeight        = 0.10
)

// Index holds the precomputed similarity between every pair of items. It
// is read-only after NewIndex and safe for concurrent use.
type Index struct {
	ids   []string
	pos   map[string]int
	items map[string]graph.ItemFeatures
	sim   [][]float64
}

// NewIndex computes the similarity of every pair of items. Items without an
// id are ignored; a repeated id replaces the earlier features.
func NewIndex(items []graph.ItemFeatures) *Index {
	idx := &Index{
		pos:   make(map[string]int),
		items: make(map[string]graph.ItemFeatures),
	}
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			continue
		}
		it.ID = id
		if _, seen := idx.pos[id]; !seen {
			idx.pos[id] = len(idx.ids)
			idx.ids = append(idx.ids, id)
		}
		idx.items[id] = it
	}

	idx.sim = make([][]float64, len(idx.ids))
	for i := range idx.ids {
		idx.sim[i] = make([]float64, len(idx.ids))
		idx.sim[i][i] = 1.0
	}
	for i := 0; i < len(idx.ids); i++ {
		for j := i + 1; j < len(idx.ids); j++ {
			s := Score(idx.items[idx.ids[i]], idx.items[idx.ids[j]])
			idx.sim[i][j], idx.sim[j][i] = s, s
		}
	}
	return idx
}

// Score computes the similarity of two items in [0,1]. It returns 0 when
// the items share no attribute.
func Score(a, b graph.ItemFeatures) float64 {
	var sum, weights float64
	apply := func(score, weight float64) {
		sum += score * weight
		weights += weight
	}

	if ok, match := matchLabel(a.Brand, b.Brand); ok {
		apply(match, BrandWeight)
	}
	if ok, match := matchLabel(a.Category, b.Category); ok {
		apply(match, CategoryWeight)
	}
	if ok, ratio := closeness(a.Displacement, b.Displacement); ok {
		apply(ratio, DisplacementWeight)
	}
	if ok, ratio := closeness(a.Power, b.Power); ok {
		apply(ratio, PowerWeight)
	}
	if ok, ratio := closeness(a.Price, b.Price); ok {
		apply(ratio, PriceWeight)
	}

	if weights == 0 {
		return 0
	}
	return sum / weights
}

func matchLabel(a, b string) (bool, float64) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false, 0
	}
	if strings.EqualFold(a, b) {
		return true, 1
	}
	return true, 0
}

func closeness(a, b float64) (bool, float64) {
	if a <= 0 || b <= 0 {
		return false, 0
	}
	if a > b {
		a, b = b, a
	}
	return true, a / b
}

// Similarity returns the similarity of two items, 0 when either is unknown.
func (idx *Index) Similarity(a, b string) float64 {
	i, ok := idx.pos[a]
	if !ok {
		return 0
	}
	j, ok := idx.pos[b]
	if !ok {
		return 0
	}
	return idx.sim[i][j]
}

// Similar returns up to topN items ordered by descending similarity to id,
// starting with id itself at 1.0. Ties are broken by item id and topN <= 0
// returns every item. Unknown ids yield nil.
func (idx *Index) Similar(id string, topN int) []graph.ScoredItem {
	i, ok := idx.pos[id]
	if !ok {
		return nil
	}

	out := make([]graph.ScoredItem, 0, len(idx.ids))
	for j, other := range idx.ids {
		if j != i {
			out = append(out, graph.ScoredItem{ItemID: other, Score: idx.sim[i][j]})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ItemID < out[b].ItemID
	})
	out = append([]graph.ScoredItem{{ItemID: id, Score: 1.0}}, out...)

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Neighbors returns the items other than id whose similarity is strictly
// above minScore, best first, capped at limit when limit > 0.
func (idx *Index) Neighbors(id string, minScore float64, limit int) []graph.ScoredItem {
	all := idx.Similar(id, 0)
	if len(all) == 0 {
		return nil
	}

	out := make([]graph.ScoredItem, 0, len(all)-1)
	for _, s := range all[1:] {
		if s.Score <= minScore {
			break
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Item returns the features of id.
func (idx *Index) Item(id string) (graph.ItemFeatures, bool) {
	it, ok := idx.items[id]
	return it, ok
}

// IDs returns the indexed item ids in insertion order.
func (idx *Index) IDs() []string {
	return append([]string(nil), idx.ids...)
}

func (idx *Index) Len() int { return len(idx.ids) }
