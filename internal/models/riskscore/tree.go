package riskscore

import (
	"math/rand"
	"sort"
)

// node is one entry of a flattened regression tree. Leaves carry the
// already-shrunk output; internal nodes route x[Feature] < Threshold left.
type node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on second-order gradient statistics
type treeBuilder struct {
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int
	params   Params
	gains    []float64
	nodes    []node
}

func (b *treeBuilder) build(rows []int) tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return tree{Nodes: append([]node(nil), b.nodes...)}
}

func (b *treeBuilder) leafValue(g, h float64) float64 {
	return -g / (h + b.params.Lambda) * b.params.LearningRate
}

func (b *treeBuilder) score(g, h float64) float64 {
	return g * g / (h + b.params.Lambda)
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Leaf: true, Value: b.leafValue(g, h)})
	if depth >= b.params.MaxDepth || len(rows) < 2 {
		return idx
	}

	best := split{gain: minSplitGain}
	parent := b.score(g, h)
	for _, f := range b.features {
		if s, ok := b.bestSplit(rows, f, g, h, parent); ok && s.gain > best.gain {
			best = s
		}
	}
	if best.left == nil {
		return idx
	}

	b.gains[best.feature] += best.gain
	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	b.nodes[idx] = node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
	}
	return idx
}

// minSplitGain keeps floating point noise from producing splits
const minSplitGain = 1e-9

type split struct {
	feature     int
	threshold   float64
	gain        float64
	left, right []int
}

func (b *treeBuilder) bestSplit(rows []int, f int, g, h, parent float64) (split, bool) {
	sorted := append([]int(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.x[sorted[i]][f] < b.x[sorted[j]][f]
	})

	var best split
	found := false
	var gl, hl float64
	for i := 0; i < len(sorted)-1; i++ {
		r := sorted[i]
		gl += b.grad[r]
		hl += b.hess[r]

		cur, next := b.x[r][f], b.x[sorted[i+1]][f]
		if cur == next {
			continue
		}
		gr, hr := g-gl, h-hl
		if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
			continue
		}

		gain := 0.5 * (b.score(gl, hl) + b.score(gr, hr) - parent)
		if !found || gain > best.gain {
			best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
			best.left = sorted[:i+1]
			best.right = sorted[i+1:]
			found = true
		}
	}
	if found {
		best.left = append([]int(nil), best.left...)
		best.right = append([]int(nil), best.right...)
	}
	return best, found
}

// sampleRows draws each row with probability frac, never returning an empty set
func sampleRows(n int, frac float64, rng *rand.Rand) []int {
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if frac >= 1 || rng.Float64() < frac {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
	}
	return rows
}

// sampleColumns picks max(1, floor(p*frac)) distinct columns in ascending order
func sampleColumns(p int, frac float64, rng *rand.Rand) []int {
	k := int(float64(p) * frac)
	if k < 1 {
		k = 1
	}
	if k > p {
		k = p
	}
	cols := rng.Perm(p)[:k]
	sort.Ints(cols)
	return cols
}
