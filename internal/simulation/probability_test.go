package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

func fp(v float64) *float64 {
	return &v
}

func TestFiveSetProbabilityEndpoints(t *testing.T) {
	assert.InDelta(t, 0.0, FiveSetProbability(0.0), 1e-6)
	assert.InDelta(t, 1.0, FiveSetProbability(1.0), 1e-6)
	// The even matchup is a fixed point of the conversion.
	assert.InDelta(t, 0.5, FiveSetProbability(0.5), 1e-6)
}

func TestFiveSetProbabilityMonotonic(t *testing.T) {
	prev := FiveSetProbability(0.0)
	for p := 0.01; p <= 1.0; p += 0.01 {
		cur := FiveSetProbability(p)
		assert.GreaterOrEqual(t, cur+1e-9, prev, "not monotonic at p=%v", p)
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, 1.0)
		prev = cur
	}
}

func TestFiveSetProbabilityAmplifiesFavorite(t *testing.T) {
	// The longer format favors the stronger player.
	assert.Greater(t, FiveSetProbability(0.75), 0.75)
	assert.Less(t, FiveSetProbability(0.25), 0.25)
}

func TestFiveSetProbabilityOutOfRangePassthrough(t *testing.T) {
	assert.Equal(t, -0.5, FiveSetProbability(-0.5))
	assert.Equal(t, 1.5, FiveSetProbability(1.5))
}

func TestWinProbabilityEloGap(t *testing.T) {
	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	a := types.RatingRecord{Name: "A", Tier: types.TierA, Elo: fp(1800)}
	b := types.RatingRecord{Name: "B", Tier: types.TierB, Elo: fp(1400)}

	// A 400 point gap in a best-of-3 is the textbook 1/(1+10^-1).
	p := model.WinProbability(a, b, types.GenderWomen)
	assert.InDelta(t, 1.0/1.1, p, 1e-9)

	// Complementary from the other side.
	assert.InDelta(t, 1.0-p, model.WinProbability(b, a, types.GenderWomen), 1e-9)

	// Men's conversion pushes the favorite further up.
	assert.Greater(t, model.WinProbability(a, b, types.GenderMen), p)
}

func TestSimulateMatchObservedRate(t *testing.T) {
	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	a := types.RatingRecord{Name: "A", Tier: types.TierA, Elo: fp(1800)}
	b := types.RatingRecord{Name: "B", Tier: types.TierB, Elo: fp(1400)}

	rng := rand.New(rand.NewSource(42))
	const runs = 10000
	won := 0
	for i := 0; i < runs; i++ {
		if model.SimulateMatch(a, b, types.GenderWomen, rng) {
			won++
		}
	}
	rate := float64(won) / runs
	assert.InDelta(t, 1.0/1.1, rate, 0.015)
}

func TestWeightedRatingFallbacks(t *testing.T) {
	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	// Only the overall elo: every surface falls back to it.
	full := types.RatingRecord{Elo: fp(2000)}
	assert.InDelta(t, 2000, model.WeightedRating(full), 1e-9)

	// No overall elo: the first surface rating becomes the base.
	hardOnly := types.RatingRecord{HardElo: fp(1900)}
	assert.InDelta(t, 1900, model.WeightedRating(hardOnly), 1e-9)

	// Nothing at all: neutral default.
	assert.InDelta(t, 1500, model.WeightedRating(types.RatingRecord{}), 1e-9)
}

func TestFormAdjustmentCap(t *testing.T) {
	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	assert.InDelta(t, 50, model.FormAdjustment(types.RatingRecord{Form: fp(50)}), 1e-9)
	assert.InDelta(t, 80, model.FormAdjustment(types.RatingRecord{Form: fp(200)}), 1e-9)
	assert.InDelta(t, -80, model.FormAdjustment(types.RatingRecord{Form: fp(-200)}), 1e-9)
	assert.InDelta(t, 0, model.FormAdjustment(types.RatingRecord{}), 1e-9)

	// A zero cap clamps the adjustment to zero rather than disabling
	// the clamp.
	zeroCap := types.DefaultEloWeights()
	zeroCap.FormCap = 0
	capped, err := NewMatchModel(zeroCap)
	require.NoError(t, err)
	assert.InDelta(t, 0, capped.FormAdjustment(types.RatingRecord{Form: fp(50)}), 1e-9)
	assert.InDelta(t, 0, capped.FormAdjustment(types.RatingRecord{Form: fp(-50)}), 1e-9)
}

func TestStrengthCombinesRatingAndForm(t *testing.T) {
	model, err := NewMatchModel(types.DefaultEloWeights())
	require.NoError(t, err)

	p := types.RatingRecord{Elo: fp(1800), Form: fp(120)}
	assert.InDelta(t, 1880, model.Strength(p), 1e-9)
}

func TestNewMatchModelRejectsNegativeWeights(t *testing.T) {
	w := types.DefaultEloWeights()
	w.CeloWeight = -0.1
	_, err := NewMatchModel(w)
	assert.Error(t, err)

	w = types.DefaultEloWeights()
	w.FormCap = -1
	_, err = NewMatchModel(w)
	assert.Error(t, err)
}

func TestStrictWeightsValidation(t *testing.T) {
	_, err := NewStrictMatchModel(types.StrictEloWeights{
		EloWeight: 0.5, HeloWeight: 0.3, CeloWeight: 0.3, GeloWeight: 0.1,
	})
	assert.Error(t, err)

	model, err := NewStrictMatchModel(types.StrictEloWeights{
		EloWeight: 0.45, HeloWeight: 0.25, CeloWeight: 0.20, GeloWeight: 0.10,
		FormScale: 1.0, FormCap: 80.0,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.45, model.Weights().EloWeight, 1e-9)
}

func TestLookupRatingMissingPlayer(t *testing.T) {
	table := types.RatingTable{
		"Known": {Name: "Known", Tier: types.TierA, Elo: fp(1900)},
	}

	known := lookupRating(table, "Known")
	assert.Equal(t, types.TierA, known.Tier)

	missing := lookupRating(table, "Unknown")
	assert.Equal(t, types.TierD, missing.Tier)
	require.NotNil(t, missing.Elo)
	assert.InDelta(t, 1500, *missing.Elo, 1e-9)
}
