package simulation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

const partSize = 8

// leafSlot is one side of a first-round match. playerID is -1 for a
// bye slot.
type leafSlot struct {
	entry    types.DrawEntry
	playerID int
}

// node is one match in the bracket arena. Leaf nodes carry two draw
// slots; internal nodes carry exactly two child indices. The arena is
// immutable after construction: per-run winners live in a run context,
// never on the node.
type node struct {
	round  string      // raw label: R128..R16, QF, SF, F
	stage  types.Stage // normalized stage, StageNone if unmapped
	left   int         // child node index, -1 for leaves
	right  int
	parent int // parent node index, -1 for the root
	p1, p2 leafSlot
}

func (n *node) isLeaf() bool {
	return n.left < 0 && n.right < 0
}

// BracketTree is the single-elimination draw as a vector of match
// nodes addressed by index. It is built once per draw snapshot and
// shared read-only across all simulation runs and concurrent
// aggregation requests.
type BracketTree struct {
	nodes   []node
	root    int
	entries []types.DrawEntry

	players    []string       // player id -> name, in draw order
	playerIDs  map[string]int // name -> player id
	playerLeaf []int          // player id -> leaf node index
}

// roundLabel names the round played when n players remain.
func roundLabel(n int) string {
	switch n {
	case 2:
		return "F"
	case 4:
		return "SF"
	case 8:
		return "QF"
	default:
		return fmt.Sprintf("R%d", n)
	}
}

// isPowerOfTwo reports whether n is a power of two >= 2.
func isPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// NewBracketTree builds the arena from an ordered draw snapshot.
// Entries are grouped into parts of eight slots; within each part the
// slots pair (1,2)(3,4)(5,6)(7,8) into first-round matches, and
// adjacent matches pair upward until a single Final remains.
func NewBracketTree(entries []types.DrawEntry) (*BracketTree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("draw snapshot is empty")
	}

	ordered := make([]types.DrawEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PartIndex != ordered[j].PartIndex {
			return ordered[i].PartIndex < ordered[j].PartIndex
		}
		return ordered[i].SlotIndex < ordered[j].SlotIndex
	})

	partCounts := make(map[int]int)
	for _, e := range ordered {
		partCounts[e.PartIndex]++
	}
	for part, count := range partCounts {
		if count != partSize {
			return nil, fmt.Errorf("draw part %d has %d entries, expected %d", part, count, partSize)
		}
	}
	if !isPowerOfTwo(len(ordered)) {
		return nil, fmt.Errorf("draw has %d slots, expected a power of two", len(ordered))
	}

	t := &BracketTree{
		entries:   ordered,
		playerIDs: make(map[string]int),
	}

	slots := make([]leafSlot, len(ordered))
	for i, e := range ordered {
		slots[i] = leafSlot{entry: e, playerID: -1}
		if e.IsBye || strings.EqualFold(e.PlayerName, "BYE") {
			continue
		}
		if _, dup := t.playerIDs[e.PlayerName]; dup {
			return nil, fmt.Errorf("player %q appears in more than one draw slot", e.PlayerName)
		}
		id := len(t.players)
		t.playerIDs[e.PlayerName] = id
		t.players = append(t.players, e.PlayerName)
		t.playerLeaf = append(t.playerLeaf, -1)
		slots[i].playerID = id
	}

	// First-round leaves.
	label := roundLabel(len(ordered))
	level := make([]int, 0, len(ordered)/2)
	for i := 0; i < len(slots); i += 2 {
		idx := len(t.nodes)
		t.nodes = append(t.nodes, node{
			round:  label,
			stage:  types.StageNone,
			left:   -1,
			right:  -1,
			parent: -1,
			p1:     slots[i],
			p2:     slots[i+1],
		})
		for _, s := range []leafSlot{slots[i], slots[i+1]} {
			if s.playerID >= 0 {
				t.playerLeaf[s.playerID] = idx
			}
		}
		level = append(level, idx)
	}

	// Pair adjacent matches upward until a single Final remains.
	remaining := len(ordered) / 2
	for len(level) > 1 {
		label = roundLabel(remaining)
		next := make([]int, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			idx := len(t.nodes)
			t.nodes = append(t.nodes, node{
				round:  label,
				stage:  types.StageNone,
				left:   level[i],
				right:  level[i+1],
				parent: -1,
			})
			t.nodes[level[i]].parent = idx
			t.nodes[level[i+1]].parent = idx
			next = append(next, idx)
		}
		level = next
		remaining /= 2
	}

	t.root = level[0]
	if t.nodes[t.root].round != "F" {
		return nil, fmt.Errorf("no final match found, root round is %q", t.nodes[t.root].round)
	}

	t.assignStages()
	return t, nil
}

// assignStages normalizes the raw round labels onto the fixed
// seven-stage order: the largest numeric rounds map to R1..R4 and
// QF/SF/F map to themselves. Deeper numeric rounds of an oversized
// draw keep StageNone and contribute no stage progress.
func (t *BracketTree) assignStages() {
	numeric := make(map[int]bool)
	for i := range t.nodes {
		r := t.nodes[i].round
		if strings.HasPrefix(r, "R") {
			if n, err := strconv.Atoi(r[1:]); err == nil {
				numeric[n] = true
			}
		}
	}
	sizes := make([]int, 0, len(numeric))
	for n := range numeric {
		sizes = append(sizes, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	stageByLabel := map[string]types.Stage{
		"QF": types.StageQF,
		"SF": types.StageSF,
		"F":  types.StageF,
	}
	for i, n := range sizes {
		if i >= 4 {
			break
		}
		stageByLabel[fmt.Sprintf("R%d", n)] = types.Stage(i)
	}

	for i := range t.nodes {
		if s, ok := stageByLabel[t.nodes[i].round]; ok {
			t.nodes[i].stage = s
		}
	}
}

// Entries re-derives the ordered draw snapshot from the tree's
// leaves. The result reproduces the source tuples exactly.
func (t *BracketTree) Entries() []types.DrawEntry {
	out := make([]types.DrawEntry, 0, len(t.entries))
	for i := range t.nodes {
		if !t.nodes[i].isLeaf() {
			continue
		}
		out = append(out, t.nodes[i].p1.entry, t.nodes[i].p2.entry)
	}
	return out
}

// Players returns the non-bye player names in draw order.
func (t *BracketTree) Players() []string {
	out := make([]string, len(t.players))
	copy(out, t.players)
	return out
}

// PlayerID resolves a draw player name to its dense id.
func (t *BracketTree) PlayerID(name string) (int, bool) {
	id, ok := t.playerIDs[name]
	return id, ok
}

// NumPlayers returns the number of non-bye players in the draw.
func (t *BracketTree) NumPlayers() int {
	return len(t.players)
}

// Size returns the number of draw slots (including byes).
func (t *BracketTree) Size() int {
	return len(t.entries)
}

// NumMatches returns the number of match nodes in the arena.
func (t *BracketTree) NumMatches() int {
	return len(t.nodes)
}
