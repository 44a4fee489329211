package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

func uniformRatings(names []string, elo float64) types.RatingTable {
	table := make(types.RatingTable, len(names))
	for _, name := range names {
		if name == "BYE" {
			continue
		}
		e := elo
		table[name] = types.RatingRecord{Name: name, Tier: types.TierD, Elo: &e}
	}
	return table
}

func TestResolveFullDraw(t *testing.T) {
	names := numberedNames(16)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)

	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	ratings := uniformRatings(names, 1500)
	rng := rand.New(rand.NewSource(7))
	result := tree.Resolve(ratings, model, types.GenderWomen, rng)

	// A full 16 draw decides every one of its 15 matches.
	assert.Len(t, result.Log, 15)
	require.GreaterOrEqual(t, result.ChampionID, 0)
	assert.Equal(t, tree.players[result.ChampionID], result.Champion)
	assert.Equal(t, types.StageF, result.Reached[result.ChampionID])

	for id, stage := range result.Reached {
		assert.True(t, stage.Valid(), "player %d has invalid stage", id)
	}

	// Exactly two players appear in the final.
	finalists := 0
	for _, stage := range result.Reached {
		if stage >= types.StageF {
			finalists++
		}
	}
	assert.Equal(t, 2, finalists)
}

func TestResolveByeWalkover(t *testing.T) {
	names := numberedNames(8)
	names[1] = "BYE"
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)

	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	ratings := uniformRatings(names, 1500)
	rng := rand.New(rand.NewSource(7))
	result := tree.Resolve(ratings, model, types.GenderWomen, rng)

	// The walkover is not a match: 7 nodes minus one bye pairing.
	assert.Len(t, result.Log, 6)
	for _, rec := range result.Log {
		assert.NotEqual(t, "BYE", rec.Winner)
		assert.NotEqual(t, "BYE", rec.Loser)
	}

	// P01 advances past the bye without playing, so the quarterfinal
	// is already credited.
	id, ok := tree.PlayerID("P01")
	require.True(t, ok)
	assert.GreaterOrEqual(t, result.Reached[id], types.StageQF)
}

func TestResolveStagesUpgradeOnly(t *testing.T) {
	names := numberedNames(8)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)

	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	ratings := uniformRatings(names, 1500)
	rng := rand.New(rand.NewSource(11))
	result := tree.Resolve(ratings, model, types.GenderWomen, rng)

	// An 8 draw starts at the quarterfinal, so every player is at
	// least a quarterfinalist.
	for id, stage := range result.Reached {
		assert.GreaterOrEqual(t, stage, types.StageQF, "player %d", id)
	}
}

func TestResolveDeterministicWithSeed(t *testing.T) {
	names := numberedNames(16)
	tree, err := NewBracketTree(makeEntries(names...))
	require.NoError(t, err)

	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)
	ratings := uniformRatings(names, 1500)

	first := tree.Resolve(ratings, model, types.GenderWomen, rand.New(rand.NewSource(99)))
	second := tree.Resolve(ratings, model, types.GenderWomen, rand.New(rand.NewSource(99)))

	assert.Equal(t, first.Champion, second.Champion)
	assert.Equal(t, first.Log, second.Log)
	assert.Equal(t, first.Reached, second.Reached)
}
