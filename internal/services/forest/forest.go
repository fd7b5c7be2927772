// Package forest implements a bagged ensemble of CART regression trees.
package forest

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Params controls fitting.
type Params struct {
	NEstimators    int   `json:"n_estimators"`
	MaxDepth       int   `json:"max_depth"` // <= 0 means unlimited
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Seed           int64 `json:"seed"`
	Workers        int   `json:"-"` // defaults to runtime.NumCPU()
}

// seedStride spaces per-tree seeds so neighbouring trees do not share streams.
const seedStride = 7919

var ErrEmptyTrainingSet = errors.New("forest: empty training set")

// Forest is a fitted ensemble. It is immutable after Fit and safe for
// concurrent Predict calls.
type Forest struct {
	Trees       []Tree    `json:"trees"`
	NFeatures   int       `json:"n_features"`
	Importances []float64 `json:"importances"`
	Params      Params    `json:"params"`
}

// Fit grows p.NEstimators trees, each on its own bootstrap sample drawn from
// a seed derived from p.Seed, so the result does not depend on scheduling.
func Fit(x [][]float64, y []float64, p Params) (*Forest, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d targets", len(x), len(y))
	}
	nFeatures := len(x[0])
	if nFeatures == 0 {
		return nil, fmt.Errorf("forest: rows have no features")
	}
	for i, row := range x {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("forest: n_estimators must be >= 1, got %d", p.NEstimators)
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]Tree, p.NEstimators)
	imps := make([][]float64, p.NEstimators)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < p.NEstimators; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(p.Seed + int64(i)*seedStride))
			trees[i], imps[i] = fitTree(x, y, nFeatures, p, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{
		Trees:       trees,
		NFeatures:   nFeatures,
		Importances: averageImportances(imps, nFeatures),
		Params:      p,
	}, nil
}

// averageImportances normalises each tree's impurity decrease to sum 1,
// averages over trees and normalises again. Trees without splits add
// nothing; a forest without any split reports all zeros.
func averageImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total <= 0 {
			continue
		}
		for f, v := range imp {
			out[f] += v / total
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for f := range out {
			out[f] /= total
		}
	}
	return out
}

// Predict returns the mean of the tree predictions for x.
func (f *Forest) Predict(x []float64) float64 {
	mean, _ := f.PredictSpread(x)
	return mean
}

// PredictSpread returns the mean and population variance of the tree
// predictions for x.
func (f *Forest) PredictSpread(x []float64) (mean, variance float64) {
	n := float64(len(f.Trees))
	for i := range f.Trees {
		mean += f.Trees[i].Predict(x)
	}
	mean /= n
	for i := range f.Trees {
		d := f.Trees[i].Predict(x) - mean
		variance += d * d
	}
	return mean, variance / n
}

// PredictBatch applies Predict to every row.
func (f *Forest) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = f.Predict(row)
	}
	return out
}

// Validate checks a decoded forest before use.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest: no trees")
	}
	if len(f.Importances) != f.NFeatures {
		return fmt.Errorf("forest: %d importances for %d features", len(f.Importances), f.NFeatures)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures ||
				n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("forest: tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}
