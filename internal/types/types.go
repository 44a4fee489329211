package types

import (
	"fmt"
	"time"
)

// Tier is the fantasy scoring bracket a player is assigned to.
// Tier A holds the strongest players (fewest points per round),
// tier D the weakest (most points per round).
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Gender selects the match format: men play best-of-5, women best-of-3.
type Gender string

const (
	GenderMen   Gender = "men"
	GenderWomen Gender = "women"
)

// Valid reports whether g is a supported tour.
func (g Gender) Valid() bool {
	return g == GenderMen || g == GenderWomen
}

// RatingRecord is an immutable rating snapshot for one player.
// Surface ratings and form are optional; readers fall back to the
// overall elo (or a neutral 1500) when absent. The record is shared
// read-only across all simulation runs and is never written to.
type RatingRecord struct {
	Name     string   `json:"name"`
	Tier     Tier     `json:"tier"`
	Elo      *float64 `json:"elo,omitempty"`
	HardElo  *float64 `json:"helo,omitempty"`
	ClayElo  *float64 `json:"celo,omitempty"`
	GrassElo *float64 `json:"gelo,omitempty"`
	Form     *float64 `json:"form,omitempty"`
}

// RatingTable maps player names to their rating snapshots.
type RatingTable map[string]RatingRecord

// DrawEntry is one slot of a draw snapshot: the draw is an ordered
// list of parts of eight slots each.
type DrawEntry struct {
	PartIndex  int    `json:"part_index"` // 1-based group of 8
	SlotIndex  int    `json:"slot_index"` // 1..8 within the part
	PlayerName string `json:"player_name"`
	IsBye      bool   `json:"is_bye"`
	SeedText   string `json:"seed_text,omitempty"` // display only
}

// EloWeights is the tolerant weight configuration: any non-negative
// surface weights are accepted and combined as a weighted sum, with a
// separately configured form scale and cap.
type EloWeights struct {
	EloWeight  float64 `json:"elo_weight"`
	HeloWeight float64 `json:"helo_weight"`
	CeloWeight float64 `json:"celo_weight"`
	GeloWeight float64 `json:"gelo_weight"`
	FormScale  float64 `json:"form_scale"`
	FormCap    float64 `json:"form_cap"`
}

// DefaultEloWeights returns the weight configuration used when a
// request does not supply one.
func DefaultEloWeights() EloWeights {
	return EloWeights{
		EloWeight:  0.45,
		HeloWeight: 0.25,
		CeloWeight: 0.20,
		GeloWeight: 0.10,
		FormScale:  1.0,
		FormCap:    80.0,
	}
}

// Validate rejects negative weights and a negative form cap. The
// tolerant variant places no constraint on the sum.
func (w EloWeights) Validate() error {
	for _, v := range []float64{w.EloWeight, w.HeloWeight, w.CeloWeight, w.GeloWeight} {
		if v < 0 {
			return fmt.Errorf("elo weights must be non-negative, got %v", v)
		}
	}
	if w.FormCap < 0 {
		return fmt.Errorf("form cap must be non-negative, got %v", w.FormCap)
	}
	return nil
}

// StrictEloWeights is the strict weight configuration: the four
// surface weights must sum to 1.0 within ±0.001.
type StrictEloWeights struct {
	EloWeight  float64 `json:"elo_weight"`
	HeloWeight float64 `json:"helo_weight"`
	CeloWeight float64 `json:"celo_weight"`
	GeloWeight float64 `json:"gelo_weight"`
	FormScale  float64 `json:"form_scale"`
	FormCap    float64 `json:"form_cap"`
}

// Validate enforces the sum-to-one constraint and a non-negative
// form cap.
func (w StrictEloWeights) Validate() error {
	total := w.EloWeight + w.HeloWeight + w.CeloWeight + w.GeloWeight
	if diff := total - 1.0; diff > 0.001 || diff < -0.001 {
		return fmt.Errorf("strict elo weights must sum to 1.0, got %v", total)
	}
	if w.FormCap < 0 {
		return fmt.Errorf("form cap must be non-negative, got %v", w.FormCap)
	}
	return nil
}

// Tolerant converts a validated strict configuration into the
// tolerant form consumed by the match model.
func (w StrictEloWeights) Tolerant() EloWeights {
	return EloWeights{
		EloWeight:  w.EloWeight,
		HeloWeight: w.HeloWeight,
		CeloWeight: w.CeloWeight,
		GeloWeight: w.GeloWeight,
		FormScale:  w.FormScale,
		FormCap:    w.FormCap,
	}
}

// ScoringTable maps a tier to its seven per-stage point increments
// (R1, R2, R3, R4, QF, SF, F).
type ScoringTable map[Tier][]int

// DefaultScoringTable returns the standard Scorito point increments.
func DefaultScoringTable() ScoringTable {
	return ScoringTable{
		TierA: {10, 20, 30, 40, 60, 80, 100},
		TierB: {20, 40, 60, 80, 100, 120, 140},
		TierC: {30, 60, 90, 120, 140, 160, 180},
		TierD: {60, 90, 120, 160, 180, 200, 200},
	}
}

// Validate checks that every tier carries exactly seven non-negative
// increments.
func (t ScoringTable) Validate() error {
	for tier, increments := range t {
		if len(increments) != NumStages {
			return fmt.Errorf("tier %s: expected %d increments, got %d", tier, NumStages, len(increments))
		}
		for i, v := range increments {
			if v < 0 {
				return fmt.Errorf("tier %s: increment %d is negative (%d)", tier, i, v)
			}
		}
	}
	return nil
}

// ProgressUpdate reports aggregation progress over the WebSocket hub.
type ProgressUpdate struct {
	SimulationID string    `json:"simulation_id"`
	Type         string    `json:"type"`     // "aggregation"
	Progress     float64   `json:"progress"` // 0.0 to 1.0
	Message      string    `json:"message"`
	Completed    int       `json:"completed"`
	TotalRuns    int       `json:"total_runs"`
	Timestamp    time.Time `json:"timestamp"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthStatus represents a health check response
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
