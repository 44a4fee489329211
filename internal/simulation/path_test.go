package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

func gradedRatings(names []string, elos []float64) types.RatingTable {
	table := make(types.RatingTable, len(names))
	for i, name := range names {
		e := elos[i]
		table[name] = types.RatingRecord{Name: name, Tier: types.TierB, Elo: &e}
	}
	return table
}

func TestPathDifficultyKnownDraw(t *testing.T) {
	names := numberedNames(8)
	elos := []float64{1500, 1600, 1700, 1800, 1900, 2000, 2100, 2200}
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)
	ratings := gradedRatings(names, elos)

	cache := NewPathCache()
	metrics := tree.PathDifficulty(0, ratings, cache)

	// P01's route: P02 in the quarterfinal, the P03/P04 winner in the
	// semifinal, one of the bottom half in the final.
	require.Len(t, metrics.Rounds, 3)
	assert.InDelta(t, 1600, metrics.Rounds["QF"], 1e-9)
	assert.InDelta(t, 1750, metrics.Rounds["SF"], 1e-9)
	assert.InDelta(t, 2050, metrics.Rounds["F"], 1e-9)

	assert.InDelta(t, 1800, metrics.Avg, 1e-9)
	assert.InDelta(t, 2050, metrics.Peak, 1e-9)

	assert.Equal(t, []string{"P02"}, metrics.Opponents["QF"])
	assert.Equal(t, []string{"P03", "P04"}, metrics.Opponents["SF"])
	assert.Equal(t, []string{"P05", "P06", "P07", "P08"}, metrics.Opponents["F"])
}

func TestPathDifficultyOpponentListCapped(t *testing.T) {
	names := numberedNames(16)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)
	ratings := uniformRatings(names, 1500)

	metrics := tree.PathDifficulty(0, ratings, NewPathCache())

	// The final sibling subtree holds eight players, the report keeps
	// at most four names.
	require.Contains(t, metrics.Opponents, "F")
	assert.Len(t, metrics.Opponents["F"], 4)
}

func TestPathDifficultyByeFirstRound(t *testing.T) {
	names := numberedNames(8)
	names[1] = "BYE"
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)
	ratings := uniformRatings(names, 1500)

	id, ok := tree.PlayerID("P01")
	require.True(t, ok)
	metrics := tree.PathDifficulty(id, ratings, NewPathCache())

	// No first-round opponent behind a bye.
	assert.NotContains(t, metrics.Rounds, "QF")
	assert.Contains(t, metrics.Rounds, "SF")
	assert.Contains(t, metrics.Rounds, "F")
}

func TestPathDifficultyInvalidPlayer(t *testing.T) {
	names := numberedNames(8)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)

	metrics := tree.PathDifficulty(-1, uniformRatings(names, 1500), NewPathCache())
	assert.Empty(t, metrics.Rounds)
	assert.Zero(t, metrics.Avg)
	assert.Zero(t, metrics.Peak)
}

func TestPathCacheReuse(t *testing.T) {
	names := numberedNames(16)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)
	ratings := uniformRatings(names, 1500)

	cache := NewPathCache()
	first := tree.PathDifficulty(0, ratings, cache)
	warm := len(cache.leafSets)
	assert.Greater(t, warm, 0)

	// A second player on the same cache reuses memoized subtrees and
	// produces consistent numbers.
	second := tree.PathDifficulty(1, ratings, cache)
	assert.InDelta(t, first.Rounds["F"], second.Rounds["F"], 1e-9)
}
