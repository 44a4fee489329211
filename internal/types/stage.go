package types

import "fmt"

// Stage is a normalized tournament round in the fixed seven-stage
// Scorito order. Comparisons and "next stage" arithmetic are plain
// integer operations on this type.
type Stage int

const (
	StageR1 Stage = iota
	StageR2
	StageR3
	StageR4
	StageQF
	StageSF
	StageF
)

// StageNone marks a round that has no normalized stage (e.g. the
// deepest rounds of an oversized draw).
const StageNone Stage = -1

// NumStages is the length of the normalized stage sequence.
const NumStages = 7

var stageLabels = [NumStages]string{"R1", "R2", "R3", "R4", "QF", "SF", "F"}

// String returns the canonical label (R1..R4, QF, SF, F).
func (s Stage) String() string {
	if s < 0 || int(s) >= NumStages {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageLabels[s]
}

// Valid reports whether s is one of the seven normalized stages.
func (s Stage) Valid() bool {
	return s >= StageR1 && s <= StageF
}

// ParseStage converts a canonical label into a Stage.
func ParseStage(label string) (Stage, error) {
	for i, l := range stageLabels {
		if l == label {
			return Stage(i), nil
		}
	}
	return StageNone, fmt.Errorf("unknown stage label %q", label)
}

// Stages returns the normalized stage sequence in order.
func Stages() []Stage {
	out := make([]Stage, NumStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}
