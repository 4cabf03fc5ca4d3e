package diagnostics

import (
	"math"
	"sort"
)

// BenjaminiHochberg returns false-discovery-rate adjusted q-values in the
// input order. NaN p-values stay NaN and do not count towards m.
func BenjaminiHochberg(p []float64) []float64 {
	q := make([]float64, len(p))
	idx := make([]int, 0, len(p))
	for i, v := range p {
		if math.IsNaN(v) {
			q[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	m := float64(len(idx))
	running := 1.0
	for r := len(idx) - 1; r >= 0; r-- {
		i := idx[r]
		adj := p[i] * m / float64(r+1)
		running = math.Min(running, adj)
		q[i] = math.Max(0, math.Min(1, running))
	}
	return q
}
