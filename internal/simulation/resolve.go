package simulation

import (
	"math/rand"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// MatchRecord is one resolved match in a run's log. Bye walkovers do
// not produce a record.
type MatchRecord struct {
	Winner string      `json:"winner"`
	Loser  string      `json:"loser"`
	Stage  types.Stage `json:"stage"`
}

// RunResult is the outcome of a single bracket playthrough. Reached
// is indexed by player id and records the highest stage each player
// appeared in; the champion is forced to the Final stage.
type RunResult struct {
	Champion   string
	ChampionID int
	Reached    []types.Stage
	Log        []MatchRecord
}

// runContext holds the mutable per-run state. It is allocated fresh
// for every run and discarded afterward; the shared tree and ratings
// are never written to.
type runContext struct {
	tree    *BracketTree
	ratings types.RatingTable
	model   *MatchModel
	gender  types.Gender
	rng     *rand.Rand
	reached []types.Stage
	log     []MatchRecord
}

// Resolve plays the bracket through once. Every draw player is
// pre-seeded at R1 so a first-match loser still appears in the
// result; stages are only ever upgraded.
func (t *BracketTree) Resolve(ratings types.RatingTable, model *MatchModel, gender types.Gender, rng *rand.Rand) *RunResult {
	ctx := &runContext{
		tree:    t,
		ratings: ratings,
		model:   model,
		gender:  gender,
		rng:     rng,
		reached: make([]types.Stage, len(t.players)),
		log:     make([]MatchRecord, 0, len(t.nodes)),
	}
	for i := range ctx.reached {
		ctx.reached[i] = types.StageR1
	}

	champion := ctx.resolveNode(t.root)
	result := &RunResult{
		ChampionID: champion,
		Reached:    ctx.reached,
		Log:        ctx.log,
	}
	if champion >= 0 {
		ctx.reached[champion] = types.StageF
		result.Champion = t.players[champion]
	}
	return result
}

// noteReached upgrades a player's highest stage. Rounds without a
// normalized stage contribute no progress.
func (c *runContext) noteReached(playerID int, stage types.Stage) {
	if playerID < 0 || !stage.Valid() {
		return
	}
	if stage > c.reached[playerID] {
		c.reached[playerID] = stage
	}
}

// playMatch simulates one match between two real players and records
// it in the log.
func (c *runContext) playMatch(a, b int, stage types.Stage) int {
	pa := lookupRating(c.ratings, c.tree.players[a])
	pb := lookupRating(c.ratings, c.tree.players[b])
	winner, loser := a, b
	if !c.model.SimulateMatch(pa, pb, c.gender, c.rng) {
		winner, loser = b, a
	}
	c.log = append(c.log, MatchRecord{
		Winner: c.tree.players[winner],
		Loser:  c.tree.players[loser],
		Stage:  stage,
	})
	return winner
}

// resolveNode resolves the subtree rooted at idx post-order and
// returns the advancing player id, or -1 when the subtree holds only
// byes. A bye side advances its opponent without consulting the
// probability model and without a log entry.
func (c *runContext) resolveNode(idx int) int {
	n := &c.tree.nodes[idx]

	var a, b int
	if n.isLeaf() {
		a, b = n.p1.playerID, n.p2.playerID
	} else {
		a = c.resolveNode(n.left)
		b = c.resolveNode(n.right)
	}

	switch {
	case a < 0 && b < 0:
		return -1
	case a < 0:
		c.noteReached(b, n.stage)
		return b
	case b < 0:
		c.noteReached(a, n.stage)
		return a
	}

	c.noteReached(a, n.stage)
	c.noteReached(b, n.stage)
	return c.playMatch(a, b, n.stage)
}
