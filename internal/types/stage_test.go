package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageOrderAndLabels(t *testing.T) {
	labels := []string{"R1", "R2", "R3", "R4", "QF", "SF", "F"}
	stages := Stages()
	require.Len(t, stages, NumStages)
	for i, s := range stages {
		assert.Equal(t, labels[i], s.String())
		assert.True(t, s.Valid())
	}
	assert.True(t, StageQF > StageR4)
	assert.True(t, StageF > StageSF)
}

func TestStageInvalid(t *testing.T) {
	assert.False(t, StageNone.Valid())
	assert.False(t, Stage(7).Valid())
	assert.Equal(t, "Stage(-1)", StageNone.String())
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage("QF")
	require.NoError(t, err)
	assert.Equal(t, StageQF, s)

	_, err = ParseStage("R128")
	assert.Error(t, err)
	_, err = ParseStage("")
	assert.Error(t, err)
}

func TestGenderValid(t *testing.T) {
	assert.True(t, GenderMen.Valid())
	assert.True(t, GenderWomen.Valid())
	assert.False(t, Gender("mixed").Valid())
}

func TestEloWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultEloWeights().Validate())

	w := DefaultEloWeights()
	w.HeloWeight = -0.2
	assert.Error(t, w.Validate())

	w = DefaultEloWeights()
	w.FormCap = -5
	assert.Error(t, w.Validate())

	// The tolerant form accepts sums other than 1.0.
	loose := EloWeights{EloWeight: 2.0, FormScale: 1.0}
	assert.NoError(t, loose.Validate())
}

func TestStrictEloWeightsValidate(t *testing.T) {
	ok := StrictEloWeights{EloWeight: 0.45, HeloWeight: 0.25, CeloWeight: 0.20, GeloWeight: 0.10}
	assert.NoError(t, ok.Validate())

	off := StrictEloWeights{EloWeight: 0.5, HeloWeight: 0.5, CeloWeight: 0.1}
	assert.Error(t, off.Validate())
}

func TestScoringTableValidate(t *testing.T) {
	assert.NoError(t, DefaultScoringTable().Validate())

	short := ScoringTable{TierA: {10, 20}}
	assert.Error(t, short.Validate())

	negative := DefaultScoringTable()
	negative[TierB] = []int{20, 40, -60, 80, 100, 120, 140}
	assert.Error(t, negative.Validate())
}
