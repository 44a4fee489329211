package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// ReachProbabilities plays the draw through N times and reports, per
// player, the probability of winning the title and of reaching the
// final, semifinal and quarterfinal. It reuses the same resolver as
// the full aggregation but keeps only round-reach counters.
func (a *Aggregator) ReachProbabilities(ctx context.Context, cfg AggregatorConfig) ([]types.RoundProbability, error) {
	if cfg.NumSimulations < 1 {
		return nil, fmt.Errorf("num_simulations must be at least 1, got %d", cfg.NumSimulations)
	}
	if !cfg.Gender.Valid() {
		return nil, fmt.Errorf("gender must be %q or %q, got %q", types.GenderMen, types.GenderWomen, cfg.Gender)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	numPlayers := a.tree.NumPlayers()
	wins := make([]int, numPlayers)
	finals := make([]int, numPlayers)
	semis := make([]int, numPlayers)
	quarters := make([]int, numPlayers)

	for i := 0; i < cfg.NumSimulations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		result := a.tree.Resolve(a.ratings, a.model, cfg.Gender, rng)
		for id := 0; id < numPlayers; id++ {
			stage := result.Reached[id]
			if stage >= types.StageQF {
				quarters[id]++
			}
			if stage >= types.StageSF {
				semis[id]++
			}
			if stage >= types.StageF {
				finals[id]++
			}
		}
		if result.ChampionID >= 0 {
			wins[result.ChampionID]++
		}
	}

	total := float64(cfg.NumSimulations)
	out := make([]types.RoundProbability, 0, numPlayers)
	for id := 0; id < numPlayers; id++ {
		out = append(out, types.RoundProbability{
			PlayerName: a.tree.players[id],
			WinProb:    float64(wins[id]) / total,
			FinalProb:  float64(finals[id]) / total,
			SemiProb:   float64(semis[id]) / total,
			QFProb:     float64(quarters[id]) / total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WinProb > out[j].WinProb
	})
	return out, nil
}
