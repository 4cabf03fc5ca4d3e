package panel

import (
	"math"
	"sort"

	"gocausal/domain/core"
)

// Default derived column names.
const (
	TreatedCol   = "treated"
	PostCol      = "post"
	EventTimeCol = "event_k"
)

// InterventionIndex returns the position of the first period not earlier than
// the intervention in an ordered period axis.
func InterventionIndex(periods []string, intervention string) (int, error) {
	i := sort.SearchStrings(periods, intervention)
	if i >= len(periods) {
		return 0, core.NewInterventionError(intervention, "is after every observed period")
	}
	return i, nil
}

// SplitPeriods splits an ordered period axis at the intervention:
// pre holds periods strictly before it, post the rest.
func SplitPeriods(periods []string, intervention string) (pre, post []string) {
	for _, p := range periods {
		if p < intervention {
			pre = append(pre, p)
		} else {
			post = append(post, p)
		}
	}
	return pre, post
}

// WithTreatment derives the 0/1 treated flag (unit == treatedUnit) and post
// flag (period >= intervention) as numeric columns.
func (f *Frame) WithTreatment(treatedUnit, intervention, treatedCol, postCol string) (*Frame, error) {
	if !f.hasUnit(treatedUnit) {
		return nil, core.NewUnknownUnitError(treatedUnit)
	}

	treated := make([]float64, f.Len())
	post := make([]float64, f.Len())
	for i := 0; i < f.Len(); i++ {
		if f.units[i] == treatedUnit {
			treated[i] = 1
		}
		if f.periods[i] >= intervention {
			post[i] = 1
		}
	}

	out, err := f.WithColumn(treatedCol, treated)
	if err != nil {
		return nil, err
	}
	return out.WithColumn(postCol, post)
}

// WithEventTime derives the integer offset of every row's period from the
// intervention period on the global ordered period set.
func (f *Frame) WithEventTime(intervention, col string) (*Frame, error) {
	periods := f.Periods()
	t0, err := InterventionIndex(periods, intervention)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(periods))
	for i, p := range periods {
		index[p] = i
	}

	k := make([]float64, f.Len())
	for i := 0; i < f.Len(); i++ {
		k[i] = float64(index[f.periods[i]] - t0)
	}
	return f.WithColumn(col, k)
}

// Series aligns one unit's column on the given period axis. Missing entries
// are forward-filled from the unit's own earlier values, then zero-filled.
func (f *Frame) Series(unit, col string, periods []string) ([]float64, error) {
	values, ok := f.columns[col]
	if !ok {
		return nil, core.NewMissingColumnError(col)
	}
	if !f.hasUnit(unit) {
		return nil, core.NewUnknownUnitError(unit)
	}

	byPeriod := make(map[string]float64)
	for i := 0; i < f.Len(); i++ {
		if f.units[i] == unit {
			byPeriod[f.periods[i]] = values[i]
		}
	}

	out := make([]float64, len(periods))
	last := math.NaN()
	for i, p := range periods {
		v, ok := byPeriod[p]
		if !ok || math.IsNaN(v) {
			v = last
		}
		last = v
		if math.IsNaN(v) {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}

// AggregateByPeriod sums columns across units per period (NaN skipped) and
// labels every aggregated row with unitLabel.
func (f *Frame) AggregateByPeriod(cols []string, unitLabel string) (*Frame, error) {
	for _, c := range cols {
		if _, ok := f.columns[c]; !ok {
			return nil, core.NewMissingColumnError(c)
		}
	}

	periods := f.Periods()
	pos := make(map[string]int, len(periods))
	for i, p := range periods {
		pos[p] = i
	}

	rows := make([]Row, len(periods))
	for i, p := range periods {
		rows[i] = Row{Unit: unitLabel, Period: p, Values: make(map[string]float64, len(cols))}
		for _, c := range cols {
			rows[i].Values[c] = 0
		}
	}
	for i := 0; i < f.Len(); i++ {
		r := rows[pos[f.periods[i]]]
		for _, c := range cols {
			if v := f.columns[c][i]; !math.IsNaN(v) {
				r.Values[c] += v
			}
		}
	}
	return New(f.unitCol, f.periodCol, rows)
}

// ForUnit keeps the rows of a single unit.
func (f *Frame) ForUnit(unit string) (*Frame, error) {
	if !f.hasUnit(unit) {
		return nil, core.NewUnknownUnitError(unit)
	}
	return f.Filter(func(i int) bool { return f.units[i] == unit }), nil
}

func (f *Frame) hasUnit(unit string) bool {
	for _, u := range f.units {
		if u == unit {
			return true
		}
	}
	return false
}
