package simulation

import (
	"fmt"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// ScoringPolicy turns a tier and a reached stage into cumulative
// fantasy points: the sum of the tier's per-stage increments up to
// and including that stage.
type ScoringPolicy struct {
	cumulative map[types.Tier][types.NumStages]int
}

// NewScoringPolicy validates the table and precomputes prefix sums.
// Tiers A..D must all be present.
func NewScoringPolicy(table types.ScoringTable) (*ScoringPolicy, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	p := &ScoringPolicy{cumulative: make(map[types.Tier][types.NumStages]int, len(table))}
	for _, tier := range []types.Tier{types.TierA, types.TierB, types.TierC, types.TierD} {
		increments, ok := table[tier]
		if !ok {
			return nil, fmt.Errorf("scoring table is missing tier %s", tier)
		}
		var sums [types.NumStages]int
		total := 0
		for i, v := range increments {
			total += v
			sums[i] = total
		}
		p.cumulative[tier] = sums
	}
	return p, nil
}

// DefaultScoringPolicy returns the policy over the standard table.
func DefaultScoringPolicy() *ScoringPolicy {
	p, err := NewScoringPolicy(types.DefaultScoringTable())
	if err != nil {
		panic(err) // the default table is statically valid
	}
	return p
}

// CumulativePoints returns the points a player of the given tier
// earns for reaching the given stage. Unknown tiers score as tier D;
// an invalid stage scores zero.
func (p *ScoringPolicy) CumulativePoints(tier types.Tier, stage types.Stage) int {
	if !stage.Valid() {
		return 0
	}
	sums, ok := p.cumulative[tier]
	if !ok {
		sums = p.cumulative[types.TierD]
	}
	return sums[stage]
}
