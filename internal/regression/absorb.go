package regression

import (
	"math"
)

const (
	absorbTolerance = 1e-12
	absorbMaxSweeps = 10000
)

// absorber sweeps categorical fixed effects out of a vector by group
// demeaning. With more than one dimension it alternates projections until
// every group mean is numerically zero.
type absorber struct {
	groups [][]int // per dimension: level index of each observation
	counts [][]float64
}

func newAbsorber(labels [][]string) *absorber {
	a := &absorber{
		groups: make([][]int, len(labels)),
		counts: make([][]float64, len(labels)),
	}
	for d, dim := range labels {
		index := make(map[string]int)
		g := make([]int, len(dim))
		for i, label := range dim {
			level, ok := index[label]
			if !ok {
				level = len(index)
				index[label] = level
				a.counts[d] = append(a.counts[d], 0)
			}
			g[i] = level
			a.counts[d][level]++
		}
		a.groups[d] = g
	}
	return a
}

// parameters is the number of coefficients the fixed effects stand in for,
// intercept included: one per level, minus one reference per extra dimension.
func (a *absorber) parameters() int {
	k := 0
	for _, c := range a.counts {
		k += len(c)
	}
	return k - (len(a.counts) - 1)
}

func (a *absorber) levels() []int {
	out := make([]int, len(a.counts))
	for d, c := range a.counts {
		out[d] = len(c)
	}
	return out
}

// demean removes the fixed effects from v in place.
func (a *absorber) demean(v []float64) {
	scale := 0.0
	for _, x := range v {
		scale = math.Max(scale, math.Abs(x))
	}
	tol := absorbTolerance * (1 + scale)

	for sweep := 0; sweep < absorbMaxSweeps; sweep++ {
		maxMean := 0.0
		for d, g := range a.groups {
			means := make([]float64, len(a.counts[d]))
			for i, level := range g {
				means[level] += v[i]
			}
			for level := range means {
				means[level] /= a.counts[d][level]
				maxMean = math.Max(maxMean, math.Abs(means[level]))
			}
			for i, level := range g {
				v[i] -= means[level]
			}
		}
		if len(a.groups) == 1 || maxMean < tol {
			return
		}
	}
}
