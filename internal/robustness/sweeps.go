// Package robustness reruns estimators across bandwidths, placebo cutoffs and
// placebo treated units. Every sweep returns one record per input in input
// order; a failing input becomes an error record instead of aborting the
// sweep.
package robustness

import (
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/estimators"

	"golang.org/x/sync/errgroup"
)

// Options controls sweep execution. Workers <= 1 runs sequentially; larger
// values bound the number of concurrent fits. Output order is the same
// either way.
type Options struct {
	Workers int `json:"workers"`
}

// mapOrdered evaluates fn for 0..n-1 and returns the results by index.
func mapOrdered[T any](n int, opts Options, fn func(i int) T) []T {
	out := make([]T, n)
	if opts.Workers <= 1 {
		for i := 0; i < n; i++ {
			out[i] = fn(i)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			out[i] = fn(i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RDDBandwidthSweep fits the discontinuity at each bandwidth.
func RDDBandwidthSweep(f *panel.Frame, cfg estimators.RDDConfig, bandwidths []float64, opts Options) []estimate.BandwidthTrial {
	return mapOrdered(len(bandwidths), opts, func(i int) estimate.BandwidthTrial {
		c := cfg
		c.Bandwidth = bandwidths[i]
		trial := estimate.BandwidthTrial{Bandwidth: bandwidths[i]}
		res, err := estimators.RegressionDiscontinuity(f, c)
		if err != nil {
			trial.Error = err.Error()
			trial.ErrorCode = apperrors.Classify(err)
			return trial
		}
		trial.Discontinuity = estimate.Ptr(res.Discontinuity)
		trial.PValue = estimate.Ptr(res.PValue)
		trial.N = res.Summary.N
		return trial
	})
}

// ITSPlaceboSweep refits the interrupted time series with each cutoff as the
// intervention. Lags come from cfg.
func ITSPlaceboSweep(f *panel.Frame, cfg estimators.ITSConfig, cutoffs []string, opts Options) []estimate.CutoffTrial {
	return mapOrdered(len(cutoffs), opts, func(i int) estimate.CutoffTrial {
		c := cfg
		c.InterventionTime = cutoffs[i]
		trial := estimate.CutoffTrial{Cutoff: cutoffs[i]}
		res, err := estimators.InterruptedTimeSeries(f, c)
		if err != nil {
			trial.Error = err.Error()
			trial.ErrorCode = apperrors.Classify(err)
			return trial
		}
		trial.LevelChange = estimate.Ptr(res.LevelChange)
		trial.PLevel = estimate.Ptr(res.PLevel)
		trial.SlopeChange = estimate.Ptr(res.SlopeChange)
		trial.PSlope = estimate.Ptr(res.PSlope)
		return trial
	})
}

// DefaultPlaceboOffsets are the positions, relative to the series midpoint,
// of the placebo cutoffs.
var DefaultPlaceboOffsets = []int{-4, -2, 2, 4}

// PlaceboCutoffs picks placebo intervention periods at the given offsets from
// the midpoint of an ordered period axis, clamped to the axis. Clamping can
// repeat a period.
func PlaceboCutoffs(periods []string, offsets []int) []string {
	if len(periods) == 0 {
		return nil
	}
	if len(offsets) == 0 {
		offsets = DefaultPlaceboOffsets
	}
	mid := len(periods) / 2
	out := make([]string, len(offsets))
	for i, o := range offsets {
		k := mid + o
		if k < 0 {
			k = 0
		}
		if k > len(periods)-1 {
			k = len(periods) - 1
		}
		out[i] = periods[k]
	}
	return out
}
