package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// meetProbThreshold filters the per-stage opponent report to matchups
// seen in at least this share of runs.
const meetProbThreshold = 0.10

// seedStride separates the RNG sub-streams handed to workers.
const seedStride = 1_000_003

// AggregatorConfig holds the per-call run parameters.
type AggregatorConfig struct {
	SimulationID   string
	NumSimulations int
	Workers        int
	Seed           int64 // 0 means time-based
	Gender         types.Gender
}

// Aggregator runs the draw simulator N times and reduces the runs
// into per-player statistics. The tree, ratings, model and scoring
// policy are shared read-only; all mutable state is per run or per
// worker.
type Aggregator struct {
	tree    *BracketTree
	ratings types.RatingTable
	model   *MatchModel
	scoring *ScoringPolicy
	logger  *logrus.Logger
}

// NewAggregator wires an aggregator over a prepared draw snapshot.
func NewAggregator(tree *BracketTree, ratings types.RatingTable, model *MatchModel, scoring *ScoringPolicy, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		tree:    tree,
		ratings: ratings,
		model:   model,
		scoring: scoring,
		logger:  logger,
	}
}

type elimKey struct {
	stage  types.Stage
	winner int
}

type matchupKey struct {
	stage    types.Stage
	opponent int
}

// accumulator collects per-worker counters. Counters are associative,
// so worker-local accumulators merge into one reduction after the
// pool drains.
type accumulator struct {
	points   [][]float64
	elimIdx  [][]int
	elimPair []map[elimKey]int
	faced    []map[matchupKey]int
	won      []map[matchupKey]int
	wins     []int
	failed   int
}

func newAccumulator(numPlayers int) *accumulator {
	a := &accumulator{
		points:   make([][]float64, numPlayers),
		elimIdx:  make([][]int, numPlayers),
		elimPair: make([]map[elimKey]int, numPlayers),
		faced:    make([]map[matchupKey]int, numPlayers),
		won:      make([]map[matchupKey]int, numPlayers),
		wins:     make([]int, numPlayers),
	}
	for i := 0; i < numPlayers; i++ {
		a.elimPair[i] = make(map[elimKey]int)
		a.faced[i] = make(map[matchupKey]int)
		a.won[i] = make(map[matchupKey]int)
	}
	return a
}

func (a *accumulator) merge(other *accumulator) {
	for i := range a.points {
		a.points[i] = append(a.points[i], other.points[i]...)
		a.elimIdx[i] = append(a.elimIdx[i], other.elimIdx[i]...)
		a.wins[i] += other.wins[i]
		for k, v := range other.elimPair[i] {
			a.elimPair[i][k] += v
		}
		for k, v := range other.faced[i] {
			a.faced[i][k] += v
		}
		for k, v := range other.won[i] {
			a.won[i][k] += v
		}
	}
	a.failed += other.failed
}

// Run executes cfg.NumSimulations independent playthroughs and
// reduces them into the per-player report. A failure inside a single
// run is isolated and counted instead of aborting the aggregation;
// cancellation is honored between runs.
func (a *Aggregator) Run(ctx context.Context, cfg AggregatorConfig, progress chan<- types.ProgressUpdate) (*types.AggregationReport, error) {
	if cfg.NumSimulations < 1 {
		return nil, fmt.Errorf("num_simulations must be at least 1, got %d", cfg.NumSimulations)
	}
	if !cfg.Gender.Valid() {
		return nil, fmt.Errorf("gender must be %q or %q, got %q", types.GenderMen, types.GenderWomen, cfg.Gender)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.NumSimulations {
		workers = cfg.NumSimulations
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	startTime := time.Now()
	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"simulation_id":   cfg.SimulationID,
			"num_simulations": cfg.NumSimulations,
			"workers":         workers,
			"gender":          cfg.Gender,
			"draw_size":       a.tree.Size(),
		}).Info("Starting Monte Carlo aggregation")
	}

	var completed int64
	done := make(chan struct{})
	if progress != nil {
		go a.reportProgress(cfg, &completed, progress, done)
	}

	locals := make([]*accumulator, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		local := newAccumulator(a.tree.NumPlayers())
		locals[w] = local
		// Each worker owns an independent RNG sub-stream and a fixed
		// stride partition of the runs (w, w+W, w+2W, ...), so the
		// sample set per sub-stream never depends on scheduling and
		// seeded calls reproduce at any worker count.
		rng := rand.New(rand.NewSource(seed + int64(w)*seedStride))
		go func(w int) {
			defer wg.Done()
			for i := w; i < cfg.NumSimulations; i += workers {
				select {
				case <-ctx.Done():
					return
				default:
				}
				a.runOnce(local, cfg.Gender, rng)
				atomic.AddInt64(&completed, 1)
			}
		}(w)
	}
	wg.Wait()
	close(done)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := locals[0]
	for _, local := range locals[1:] {
		acc.merge(local)
	}

	report := a.finalize(acc, cfg)
	report.ExecutionTime = time.Since(startTime)

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"simulation_id":  cfg.SimulationID,
			"players":        len(report.Results),
			"failed_runs":    report.FailedRuns,
			"execution_time": report.ExecutionTime,
		}).Info("Monte Carlo aggregation completed")
	}
	return report, nil
}

// runOnce plays the bracket through once and folds the outcome into
// the worker-local accumulator. A panic inside the run is contained
// so one corrupted run cannot poison counters from other runs.
func (a *Aggregator) runOnce(acc *accumulator, gender types.Gender, rng *rand.Rand) {
	defer func() {
		if r := recover(); r != nil {
			acc.failed++
			if a.logger != nil {
				a.logger.WithField("panic", r).Warn("Simulation run failed, skipping")
			}
		}
	}()

	result := a.tree.Resolve(a.ratings, a.model, gender, rng)
	a.accumulate(acc, result)
}

func (a *Aggregator) accumulate(acc *accumulator, result *RunResult) {
	numPlayers := a.tree.NumPlayers()

	for id := 0; id < numPlayers; id++ {
		record := lookupRating(a.ratings, a.tree.players[id])
		pts := a.scoring.CumulativePoints(record.Tier, result.Reached[id])
		acc.points[id] = append(acc.points[id], float64(pts))
	}

	elimStage := make([]types.Stage, numPlayers)
	for i := range elimStage {
		elimStage[i] = types.StageNone
	}
	for _, rec := range result.Log {
		if !rec.Stage.Valid() {
			continue
		}
		winner, ok1 := a.tree.PlayerID(rec.Winner)
		loser, ok2 := a.tree.PlayerID(rec.Loser)
		if !ok1 || !ok2 {
			continue
		}
		elimStage[loser] = rec.Stage
		acc.elimPair[loser][elimKey{stage: rec.Stage, winner: winner}]++
		acc.faced[winner][matchupKey{stage: rec.Stage, opponent: loser}]++
		acc.faced[loser][matchupKey{stage: rec.Stage, opponent: winner}]++
		acc.won[winner][matchupKey{stage: rec.Stage, opponent: loser}]++
	}

	for id := 0; id < numPlayers; id++ {
		stage := elimStage[id]
		if id == result.ChampionID {
			stage = types.StageF
		} else if !stage.Valid() {
			stage = result.Reached[id]
			if !stage.Valid() {
				stage = types.StageR1
			}
		}
		acc.elimIdx[id] = append(acc.elimIdx[id], int(stage))
	}

	if result.ChampionID >= 0 {
		acc.wins[result.ChampionID]++
	}
}

func (a *Aggregator) reportProgress(cfg AggregatorConfig, completed *int64, progress chan<- types.ProgressUpdate, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			a.sendProgress(cfg, int(atomic.LoadInt64(completed)), progress)
			return
		case <-ticker.C:
			a.sendProgress(cfg, int(atomic.LoadInt64(completed)), progress)
		}
	}
}

func (a *Aggregator) sendProgress(cfg AggregatorConfig, completed int, progress chan<- types.ProgressUpdate) {
	update := types.ProgressUpdate{
		SimulationID: cfg.SimulationID,
		Type:         "aggregation",
		Progress:     float64(completed) / float64(cfg.NumSimulations),
		Message:      fmt.Sprintf("Simulated %d/%d tournaments", completed, cfg.NumSimulations),
		Completed:    completed,
		TotalRuns:    cfg.NumSimulations,
		Timestamp:    time.Now(),
	}
	select {
	case progress <- update:
	default:
		// Never block the aggregation on a slow consumer.
	}
}

// percentileIndex implements the fixed nearest-rank rule:
// index = round((len-1) * pct).
func percentileIndex(n int, pct float64) int {
	idx := int(math.Round(float64(n-1) * pct))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// popStdDev is the population standard deviation of xs.
func popStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	variance := stat.Variance(xs, nil) * float64(n-1) / float64(n)
	return math.Sqrt(variance)
}

// modeIndex returns the most frequent value, ties broken by the
// first-seen order in the sample list.
func modeIndex(samples []int) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, v := range samples {
		counts[v]++
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// finalize reduces the merged accumulator into the sorted report.
func (a *Aggregator) finalize(acc *accumulator, cfg AggregatorConfig) *types.AggregationReport {
	numPlayers := a.tree.NumPlayers()
	totalRuns := float64(cfg.NumSimulations)
	pathCache := NewPathCache()

	results := make([]types.PlayerReport, 0, numPlayers)
	for id := 0; id < numPlayers; id++ {
		name := a.tree.players[id]
		record := lookupRating(a.ratings, name)
		tier := record.Tier
		switch tier {
		case types.TierA, types.TierB, types.TierC, types.TierD:
		default:
			tier = types.TierD
		}

		points := acc.points[id]
		sorted := make([]float64, len(points))
		copy(sorted, points)
		sort.Float64s(sorted)

		mean := 0.0
		if len(points) > 0 {
			mean = stat.Mean(points, nil)
		}
		std := popStdDev(points)

		var p10, p50, p90 float64
		if len(sorted) > 0 {
			p10 = sorted[percentileIndex(len(sorted), 0.10)]
			p50 = sorted[percentileIndex(len(sorted), 0.50)]
			p90 = sorted[percentileIndex(len(sorted), 0.90)]
		}

		report := types.PlayerReport{
			PlayerName:     name,
			Tier:           tier,
			ExpectedPoints: mean,
			WinProbability: float64(acc.wins[id]) / totalRuns,
			PointsStd:      std,
			PointsP10:      p10,
			PointsP50:      p50,
			PointsP90:      p90,
		}
		if mean != 0 {
			report.ValueScore = mean / 100.0
			report.RiskAdjValue = mean / math.Max(std, 1.0)
		}

		elim := acc.elimIdx[id]
		if len(elim) > 0 {
			sum := 0
			for _, v := range elim {
				sum += v
			}
			sortedElim := make([]int, len(elim))
			copy(sortedElim, elim)
			sort.Ints(sortedElim)

			report.AvgRound = float64(sum)/float64(len(elim)) + 1
			report.MedianRound = float64(sortedElim[len(sortedElim)/2])
			report.ModeRound = types.Stage(modeIndex(elim)).String()

			probs := make(map[string]float64)
			for _, v := range elim {
				probs[types.Stage(v).String()] += 1
			}
			for k := range probs {
				probs[k] /= float64(len(elim))
			}
			report.ElimRoundProbs = probs
		}

		if eliminator, count, ok := topEliminator(acc.elimPair[id]); ok {
			report.Eliminator = a.tree.players[eliminator]
			report.ElimRate = float64(count) / totalRuns
		}

		report.PathRoundOpponents = a.pathRoundOpponents(acc, id, totalRuns)
		report.PathStrength = a.pathStrength(report.PathRoundOpponents)
		report.SimulationStrength = a.model.Strength(record)

		path := a.tree.PathDifficulty(id, a.ratings, pathCache)
		report.PathDifficultyAvg = path.Avg
		report.PathDifficultyPeak = path.Peak
		report.PathRounds = path.Rounds

		results = append(results, report)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ExpectedPoints > results[j].ExpectedPoints
	})

	return &types.AggregationReport{
		Results:        results,
		NumSimulations: cfg.NumSimulations,
		FailedRuns:     acc.failed,
	}
}

// topEliminator picks the most frequent (stage, winner) elimination
// pair; ties break toward the earlier stage, then the lower winner id
// so the report is deterministic.
func topEliminator(pairs map[elimKey]int) (winner int, count int, ok bool) {
	var stage types.Stage
	for k, v := range pairs {
		if !ok || v > count ||
			(v == count && (k.stage < stage || (k.stage == stage && k.winner < winner))) {
			winner, stage, count, ok = k.winner, k.stage, v, true
		}
	}
	return winner, count, ok
}

// pathRoundOpponents keeps the matchups met in at least 10% of runs,
// grouped per stage label and sorted by meet probability.
func (a *Aggregator) pathRoundOpponents(acc *accumulator, id int, totalRuns float64) map[string][]types.PathOpponent {
	byStage := make(map[string][]types.PathOpponent)
	for key, facedCount := range acc.faced[id] {
		meetProb := float64(facedCount) / totalRuns
		if meetProb < meetProbThreshold {
			continue
		}
		winProb := float64(acc.won[id][key]) / float64(facedCount)
		label := key.stage.String()
		byStage[label] = append(byStage[label], types.PathOpponent{
			Opponent: a.tree.players[key.opponent],
			MeetProb: meetProb,
			WinProb:  winProb,
		})
	}
	for label := range byStage {
		opps := byStage[label]
		sort.Slice(opps, func(i, j int) bool {
			if opps[i].MeetProb != opps[j].MeetProb {
				return opps[i].MeetProb > opps[j].MeetProb
			}
			return opps[i].Opponent < opps[j].Opponent
		})
	}
	return byStage
}

// pathStrength is the meet-probability-weighted average static
// strength of the opponents actually encountered across the runs.
// It is empirical, unlike PathDifficulty which scores potential
// opponents from the draw structure alone.
func (a *Aggregator) pathStrength(byStage map[string][]types.PathOpponent) float64 {
	num, den := 0.0, 0.0
	for _, opps := range byStage {
		for _, o := range opps {
			strength := a.model.Strength(lookupRating(a.ratings, o.Opponent))
			num += strength * o.MeetProb
			den += o.MeetProb
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}
