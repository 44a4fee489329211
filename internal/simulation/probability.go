package simulation

import (
	"math"
	"math/rand"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// defaultElo is the neutral rating substituted when a player carries
// no usable rating at all.
const defaultElo = 1500.0

// MatchModel computes head-to-head win probabilities from weighted
// surface ratings and a capped form adjustment. The model is pure:
// given the same ratings and a seeded RNG it is fully deterministic.
type MatchModel struct {
	weights types.EloWeights
}

// NewMatchModel builds a model from a tolerant weight configuration.
func NewMatchModel(weights types.EloWeights) (*MatchModel, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &MatchModel{weights: weights}, nil
}

// NewStrictMatchModel builds a model from the strict configuration,
// rejecting surface weights that do not sum to 1.0 within ±0.001.
func NewStrictMatchModel(weights types.StrictEloWeights) (*MatchModel, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &MatchModel{weights: weights.Tolerant()}, nil
}

// Weights returns the active weight configuration.
func (m *MatchModel) Weights() types.EloWeights {
	return m.weights
}

// baseRating is the fallback used for any missing surface rating:
// the overall elo if present, otherwise the first available surface
// rating, otherwise the neutral default.
func baseRating(p types.RatingRecord) float64 {
	for _, v := range []*float64{p.Elo, p.HardElo, p.ClayElo, p.GrassElo} {
		if v != nil {
			return *v
		}
	}
	return defaultElo
}

// WeightedRating combines the player's overall and surface ratings
// using the configured weights. Missing ratings fall back to the
// player's base rating.
func (m *MatchModel) WeightedRating(p types.RatingRecord) float64 {
	base := baseRating(p)
	pick := func(v *float64) float64 {
		if v != nil {
			return *v
		}
		return base
	}
	return m.weights.EloWeight*pick(p.Elo) +
		m.weights.HeloWeight*pick(p.HardElo) +
		m.weights.CeloWeight*pick(p.ClayElo) +
		m.weights.GeloWeight*pick(p.GrassElo)
}

// FormAdjustment scales the player's form and clamps it to
// [-FormCap, FormCap]. A zero cap therefore zeroes the adjustment.
func (m *MatchModel) FormAdjustment(p types.RatingRecord) float64 {
	form := 0.0
	if p.Form != nil {
		form = *p.Form
	}
	adj := form * m.weights.FormScale
	cap := m.weights.FormCap
	return math.Max(-cap, math.Min(cap, adj))
}

// Strength is the static rating composite used for path metrics:
// weighted rating plus the capped form adjustment.
func (m *MatchModel) Strength(p types.RatingRecord) float64 {
	return m.WeightedRating(p) + m.FormAdjustment(p)
}

// WinProbability returns the probability that p1 beats p2. Men's
// matches convert the best-of-3 probability to best-of-5.
func (m *MatchModel) WinProbability(p1, p2 types.RatingRecord, gender types.Gender) float64 {
	rating1 := m.WeightedRating(p1) + m.FormAdjustment(p1)
	rating2 := m.WeightedRating(p2) + m.FormAdjustment(p2)
	ratingDiff := rating2 - rating1
	p := 1 / (1 + math.Pow(10, ratingDiff/400))
	if gender == types.GenderMen {
		p = FiveSetProbability(p)
	}
	return p
}

// SimulateMatch draws one uniform random value against the win
// probability and reports whether p1 won.
func (m *MatchModel) SimulateMatch(p1, p2 types.RatingRecord, gender types.Gender, rng *rand.Rand) bool {
	return rng.Float64() < m.WinProbability(p1, p2, gender)
}

// FiveSetProbability converts a best-of-3 win probability into a
// best-of-5 one. The single-set probability x is the real root of
// -2x³ + 3x² - p3 = 0 in [0,1]; the cubic 3x² - 2x³ is monotone
// non-decreasing there, so the root is found by bisection. Then
// p5 = x³·(4 - 3x + 6(1-x)²), clamped to [0,1]. If no root exists in
// range the input is returned unchanged.
func FiveSetProbability(p3 float64) float64 {
	if p3 < 0 || p3 > 1 {
		return p3
	}
	f := func(x float64) float64 { return 3*x*x - 2*x*x*x - p3 }
	lo, hi := 0.0, 1.0
	if f(lo) > 0 || f(hi) < 0 {
		return p3
	}
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < 1e-12 {
			break
		}
	}
	x := (lo + hi) / 2
	p5 := x * x * x * (4 - 3*x + 6*(1-x)*(1-x))
	return math.Max(0.0, math.Min(1.0, p5))
}

// neutralRating is the substitute record for a draw player missing
// from the ratings table: tier D, neutral elo, no form. One missing
// row must not fail a whole aggregation.
func neutralRating(name string) types.RatingRecord {
	elo := defaultElo
	return types.RatingRecord{Name: name, Tier: types.TierD, Elo: &elo}
}

// lookupRating resolves a player name against the shared table,
// substituting the neutral default when absent.
func lookupRating(ratings types.RatingTable, name string) types.RatingRecord {
	if r, ok := ratings[name]; ok {
		if r.Name == "" {
			r.Name = name
		}
		return r
	}
	return neutralRating(name)
}
