package propagation

import (
	"context"
	"fmt"
	"sort"

	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Candidate discounts and seed thresholds.
const (
	FriendDiscount = 0.9

	OwnSeedThreshold    = 0.6
	IdealSeedThreshold  = 0.8
	FriendSeedThreshold = 0.7

	IdealDiscount  = 0.95
	LikedDiscount  = 0.85
	FriendExpandBy = 0.75
)

// Recommendation reasons.
const (
	ReasonPropagated = "popular among your friends' circle"
	ReasonFallback   = "one of your top-rated motorcycles"
)

// Kind tells the caller which path produced a Result.
type Kind int

const (
	// KindEmpty means there is nothing to recommend: the actor has no
	// ratings and no candidate was found.
	KindEmpty Kind = iota

	// KindRanked is a regular recommendation of items the actor has not
	// rated.
	KindRanked

	// KindFallback lists the actor's own top-rated items because no
	// candidate was found or assembling them failed.
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindRanked:
		return "ranked"
	case KindFallback:
		return "fallback"
	default:
		return "empty"
	}
}

// Result is returned by RecommendFor. Err is set when an internal failure
// forced the fallback path; Items are still usable in that case.
type Result struct {
	Kind  Kind
	Items []graph.Recommendation
	Err   error
}

type candidate struct {
	score  float64
	reason string
}

// candidates collects the items proposed by one source. Within a source
// the highest score wins.
type candidates map[string]candidate

func (cs candidates) offer(item string, score float64, reason string) {
	if cur, ok := cs[item]; !ok || score > cur.score {
		cs[item] = candidate{score: score, reason: reason}
	}
}

// RecommendFor returns up to topN items for actor, best first, never one
// the actor rated unless the result is a fallback. topN <= 0 returns every
// candidate. It never fails: errors and panics while assembling
// candidates degrade to the fallback with Result.Err set.
func (p *Propagator) RecommendFor(ctx context.Context, actor string, topN int) (res Result) {
	err := p.ensurePropagated(ctx)
	defer p.mu.RUnlock()

	if err != nil {
		return p.fallback(actor, topN, xerrors.Errorf("recommend for %q: %w", actor, err))
	}

	defer func() {
		if r := recover(); r != nil {
			res = p.fallback(actor, topN, xerrors.Errorf("recommend for %q: recovered: %v", actor, r))
		}
	}()

	items := p.rank(actor)
	if len(items) == 0 {
		return p.fallback(actor, topN, nil)
	}
	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}
	return Result{Kind: KindRanked, Items: items}
}

// rank merges the candidate sources in priority order. An item keeps the
// entry of the first source that proposed it.
func (p *Propagator) rank(actor string) []graph.Recommendation {
	rated := p.raw[actor]
	sources := []candidates{
		p.propagatedCandidates(actor),
		p.friendCandidates(actor),
		p.similarCandidates(actor),
	}

	merged := make(map[string]candidate)
	for _, src := range sources {
		for item, c := range src {
			if _, isRated := rated[item]; isRated {
				continue
			}
			if _, claimed := merged[item]; !claimed {
				merged[item] = c
			}
		}
	}

	out := make([]graph.Recommendation, 0, len(merged))
	for item, c := range merged {
		out = append(out, graph.Recommendation{ItemID: item, Score: c.score, Reason: c.reason})
	}
	SortRecommendations(out)
	return out
}

func (p *Propagator) propagatedCandidates(actor string) candidates {
	cs := make(candidates)
	for item, score := range p.propagated[actor] {
		if score > 0 {
			cs.offer(item, score, ReasonPropagated)
		}
	}
	return cs
}

func (p *Propagator) friendCandidates(actor string) candidates {
	cs := make(candidates)
	for _, friend := range p.neighbors[actor] {
		for item, score := range p.raw[friend] {
			if score > 0 {
				cs.offer(item, score*FriendDiscount, fmt.Sprintf("liked by your friend %s", friend))
			}
		}
	}
	return cs
}

// similarCandidates expands the actor's well-rated items and the items its
// friends rated highly through the similarity index.
func (p *Propagator) similarCandidates(actor string) candidates {
	cs := make(candidates)
	if p.index == nil {
		return cs
	}

	expand := func(seed string, discount float64, reason string) {
		for _, n := range p.index.Neighbors(seed, 0, p.cfg.ExpansionFanout) {
			cs.offer(n.ItemID, n.Score*discount, reason)
		}
	}

	own := p.raw[actor]
	for _, item := range sortedKeys(own) {
		score := own[item]
		switch {
		case score > IdealSeedThreshold:
			expand(item, IdealDiscount, fmt.Sprintf("similar to %s, one of your favourites", item))
		case score > OwnSeedThreshold:
			expand(item, LikedDiscount, fmt.Sprintf("similar to %s, which you liked", item))
		}
	}
	for _, friend := range p.neighbors[actor] {
		prefs := p.raw[friend]
		for _, item := range sortedKeys(prefs) {
			if prefs[item] > FriendSeedThreshold {
				expand(item, FriendExpandBy, fmt.Sprintf("similar to %s, liked by your friend %s", item, friend))
			}
		}
	}
	return cs
}

// fallback lists the actor's own top-rated items. Must be called with the
// read lock held.
func (p *Propagator) fallback(actor string, topN int, cause error) Result {
	own := p.raw[actor]
	if len(own) == 0 {
		if cause != nil {
			p.cfg.Logger.WithFields(logrus.Fields{"actor": actor, "err": cause}).Error("recommendation failed")
		}
		return Result{Kind: KindEmpty, Err: cause}
	}

	items := make([]graph.Recommendation, 0, len(own))
	for item, score := range own {
		items = append(items, graph.Recommendation{ItemID: item, Score: score, Reason: ReasonFallback})
	}
	SortRecommendations(items)
	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}

	reason := "no-candidates"
	if cause != nil {
		reason = "error"
		p.cfg.Logger.WithFields(logrus.Fields{"actor": actor, "err": cause}).Error("recommendation failed, serving own ratings")
	}
	p.cfg.Metrics.Fallback(metrics.EnginePropagation, reason)
	return Result{Kind: KindFallback, Items: items, Err: cause}
}

// SimilarItems returns up to topN items most similar to itemID, starting
// with itemID itself. Unknown items and a missing index yield nil.
func (p *Propagator) SimilarItems(itemID string, topN int) []graph.ScoredItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index == nil {
		return nil
	}
	return p.index.Similar(itemID, topN)
}

// SortRecommendations orders by descending score, then by ascending id.
func SortRecommendations(items []graph.Recommendation) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ItemID < items[j].ItemID
	})
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
