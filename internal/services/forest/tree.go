package forest

import (
	"math"
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one split or leaf of a regression tree. Children are indexes into
// Tree.Nodes; Left == -1 marks a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Samples   int     `json:"n"`
}

// Tree is a CART regression tree stored as a flat node slice, root first.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x down to a leaf: x[f] <= threshold goes left.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// grower fits one tree on a bootstrap sample.
type grower struct {
	x          [][]float64
	y          []float64
	maxDepth   int
	minLeaf    int
	nodes      []Node
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	sse       float64
}

func fitTree(x [][]float64, y []float64, nFeatures int, p Params, rng *rand.Rand) (Tree, []float64) {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	// sorted sample indexes make the split search independent of draw order
	sort.Ints(idx)

	g := &grower{
		x:          x,
		y:          y,
		maxDepth:   p.MaxDepth,
		minLeaf:    max(p.MinSamplesLeaf, 1),
		importance: make([]float64, nFeatures),
	}
	g.grow(idx, 0)
	return Tree{Nodes: g.nodes}, g.importance
}

func (g *grower) grow(idx []int, depth int) int {
	self := len(g.nodes)
	g.nodes = append(g.nodes, Node{Left: leaf, Right: leaf})

	n := float64(len(idx))
	var sum, sq float64
	for _, i := range idx {
		v := g.y[i]
		sum += v
		sq += v * v
	}
	mean := sum / n
	sse := math.Max(sq-sum*sum/n, 0)

	g.nodes[self].Value = mean
	g.nodes[self].Samples = len(idx)

	if (g.maxDepth > 0 && depth >= g.maxDepth) || len(idx) < 2*g.minLeaf || sse <= 1e-12 {
		return self
	}

	best, ok := g.bestSplit(idx, sum, sq)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if g.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	g.importance[best.feature] += sse - best.sse
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)

	node := &g.nodes[self]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return self
}

// bestSplit scans every feature for the threshold with the lowest summed
// squared error of both children. Ties keep the first feature found.
func (g *grower) bestSplit(idx []int, sum, sq float64) (split, bool) {
	n := len(idx)
	best := split{sse: math.Inf(1)}
	found := false
	order := make([]int, n)

	for f := range g.x[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return g.x[order[a]][f] < g.x[order[b]][f]
		})

		var lSum, lSq float64
		for i := 0; i < n-1; i++ {
			v := g.y[order[i]]
			lSum += v
			lSq += v * v

			cur, next := g.x[order[i]][f], g.x[order[i+1]][f]
			if cur == next {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < g.minLeaf || nr < g.minLeaf {
				continue
			}
			rSum, rSq := sum-lSum, sq-lSq
			total := math.Max(lSq-lSum*lSum/float64(nl), 0) + math.Max(rSq-rSum*rSum/float64(nr), 0)
			if total < best.sse-1e-12 {
				best = split{feature: f, threshold: (cur + next) / 2, sse: total}
				found = true
			}
		}
	}
	return best, found
}
