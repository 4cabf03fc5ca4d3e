package robustness

import (
	"gocausal/domain/estimate"

	"github.com/montanaflynn/stats"
)

// Spread summarises values; nil when there are none.
func Spread(values []float64) *estimate.EstimateSpread {
	if len(values) == 0 {
		return nil
	}
	data := stats.Float64Data(values)
	lo, _ := data.Min()
	hi, _ := data.Max()
	med, _ := data.Median()
	return &estimate.EstimateSpread{N: len(values), Min: lo, Median: med, Max: hi}
}

// DiscontinuitySpread summarises the discontinuities of a bandwidth sweep.
func DiscontinuitySpread(trials []estimate.BandwidthTrial) *estimate.EstimateSpread {
	var v []float64
	for _, t := range trials {
		if t.Discontinuity != nil {
			v = append(v, *t.Discontinuity)
		}
	}
	return Spread(v)
}

// LevelChangeSpread summarises the level changes of a placebo-cutoff sweep.
func LevelChangeSpread(trials []estimate.CutoffTrial) *estimate.EstimateSpread {
	var v []float64
	for _, t := range trials {
		if t.LevelChange != nil {
			v = append(v, *t.LevelChange)
		}
	}
	return Spread(v)
}
