package simulation

import (
	"sort"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// PathCache memoizes subtree leaf sets for path-difficulty lookups.
// It is request-scoped: allocate one per aggregation call and pass it
// explicitly, so concurrent analyses of different draws never share
// state.
type PathCache struct {
	leafSets map[int][]int
}

// NewPathCache returns an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{leafSets: make(map[int][]int)}
}

// leafPlayers returns the non-bye player ids in the subtree rooted at
// idx, memoized in the cache.
func (t *BracketTree) leafPlayers(idx int, cache *PathCache) []int {
	if ids, ok := cache.leafSets[idx]; ok {
		return ids
	}
	n := &t.nodes[idx]
	var ids []int
	if n.isLeaf() {
		for _, s := range []leafSlot{n.p1, n.p2} {
			if s.playerID >= 0 {
				ids = append(ids, s.playerID)
			}
		}
	} else {
		ids = append(ids, t.leafPlayers(n.left, cache)...)
		ids = append(ids, t.leafPlayers(n.right, cache)...)
	}
	cache.leafSets[idx] = ids
	return ids
}

// PathMetrics is the structural difficulty of a player's fixed route
// to the title, computed from the draw alone: for every round on the
// path, the average static rating of the opponents who could emerge
// from the sibling subtree. It is independent of simulated outcomes.
type PathMetrics struct {
	Rounds    map[string]float64
	Opponents map[string][]string
	Avg       float64
	Peak      float64
}

// staticElo is the plain overall rating used for path difficulty.
func staticElo(r types.RatingRecord) float64 {
	if r.Elo != nil {
		return *r.Elo
	}
	return defaultElo
}

func (t *BracketTree) averageElo(ids []int, ratings types.RatingTable) float64 {
	if len(ids) == 0 {
		return 0
	}
	sum := 0.0
	for _, id := range ids {
		sum += staticElo(lookupRating(ratings, t.players[id]))
	}
	return sum / float64(len(ids))
}

// PathDifficulty walks from the player's leaf to the root, scoring
// each round by the potential opponents in the sibling subtree. Up to
// four opponent names per round are kept, sorted.
func (t *BracketTree) PathDifficulty(playerID int, ratings types.RatingTable, cache *PathCache) PathMetrics {
	metrics := PathMetrics{
		Rounds:    make(map[string]float64),
		Opponents: make(map[string][]string),
	}
	if playerID < 0 || playerID >= len(t.playerLeaf) {
		return metrics
	}

	leaf := t.playerLeaf[playerID]
	n := &t.nodes[leaf]

	// First-round opponent straight from the leaf, unless it is a bye.
	if n.stage.Valid() {
		opp := -1
		if n.p1.playerID == playerID {
			opp = n.p2.playerID
		} else {
			opp = n.p1.playerID
		}
		if opp >= 0 {
			label := n.stage.String()
			metrics.Rounds[label] = staticElo(lookupRating(ratings, t.players[opp]))
			metrics.Opponents[label] = []string{t.players[opp]}
		}
	}

	for cur := leaf; t.nodes[cur].parent >= 0; cur = t.nodes[cur].parent {
		parent := t.nodes[cur].parent
		pn := &t.nodes[parent]
		sibling := pn.left
		if sibling == cur {
			sibling = pn.right
		}
		if pn.stage.Valid() {
			opps := t.leafPlayers(sibling, cache)
			if len(opps) > 0 {
				label := pn.stage.String()
				metrics.Rounds[label] = t.averageElo(opps, ratings)
				names := make([]string, len(opps))
				for i, id := range opps {
					names[i] = t.players[id]
				}
				sort.Strings(names)
				if len(names) > 4 {
					names = names[:4]
				}
				metrics.Opponents[label] = names
			}
		}
	}

	for _, v := range metrics.Rounds {
		metrics.Avg += v
		if v > metrics.Peak {
			metrics.Peak = v
		}
	}
	if len(metrics.Rounds) > 0 {
		metrics.Avg /= float64(len(metrics.Rounds))
	}
	return metrics
}
