package types

import "time"

// PathOpponent is an opponent a player met at a given stage in at
// least 10% of the simulated runs.
type PathOpponent struct {
	Opponent string  `json:"opponent"`
	MeetProb float64 `json:"meet_prob"`
	WinProb  float64 `json:"win_prob"`
}

// PlayerReport is the per-player statistics record produced by the
// Monte Carlo aggregation. It is the sole contract with the API and
// dashboard layers.
type PlayerReport struct {
	PlayerName     string  `json:"player_name"`
	Tier           Tier    `json:"tier"`
	ExpectedPoints float64 `json:"expected_points"`
	AvgRound       float64 `json:"avg_round"`
	WinProbability float64 `json:"win_probability"`
	ValueScore     float64 `json:"value_score"`

	MedianRound float64 `json:"median_round"`
	ModeRound   string  `json:"mode_round"`
	Eliminator  string  `json:"eliminator,omitempty"`
	ElimRate    float64 `json:"elim_rate"`

	PointsStd    float64 `json:"points_std"`
	PointsP10    float64 `json:"points_p10"`
	PointsP50    float64 `json:"points_p50"`
	PointsP90    float64 `json:"points_p90"`
	RiskAdjValue float64 `json:"risk_adj_value"`

	PathDifficultyAvg  float64                   `json:"path_difficulty_avg"`
	PathDifficultyPeak float64                   `json:"path_difficulty_peak"`
	PathRounds         map[string]float64        `json:"path_rounds"`
	PathRoundOpponents map[string][]PathOpponent `json:"path_round_opponents"`

	ElimRoundProbs     map[string]float64 `json:"elim_round_probs"`
	SimulationStrength float64            `json:"simulation_strength"`
	PathStrength       float64            `json:"path_strength"`
}

// AggregationReport is the result of one aggregation call.
type AggregationReport struct {
	Results        []PlayerReport `json:"results"`
	NumSimulations int            `json:"num_simulations"`
	FailedRuns     int            `json:"failed_runs"`
	ExecutionTime  time.Duration  `json:"execution_time"`
}

// RoundProbability is the reach-probability summary for one player,
// produced by the draw probabilities endpoint.
type RoundProbability struct {
	PlayerName string  `json:"player_name"`
	WinProb    float64 `json:"win_prob"`
	FinalProb  float64 `json:"final_prob"`
	SemiProb   float64 `json:"semi_prob"`
	QFProb     float64 `json:"qf_prob"`
}
