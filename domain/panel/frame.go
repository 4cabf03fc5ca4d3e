// Package panel holds the immutable unit-by-period table every estimator reads.
package panel

import (
	"math"
	"sort"
	"strconv"

	"gocausal/domain/core"
)

// Row is one (unit, period) observation. Absent values are treated as missing.
type Row struct {
	Unit   string
	Period string
	Values map[string]float64
}

// Frame is an immutable panel keyed by (unit, period) with named numeric
// columns. Missing numeric values are NaN. Transforms return new frames that
// share unchanged column storage, so nothing reachable from a Frame is ever
// written after construction.
type Frame struct {
	unitCol   string
	periodCol string
	units     []string
	periods   []string
	names     []string
	columns   map[string][]float64
}

// New builds a frame from rows. Column names are the sorted union of all row
// value keys; a row lacking a column gets NaN there.
func New(unitCol, periodCol string, rows []Row) (*Frame, error) {
	if unitCol == "" || periodCol == "" || unitCol == periodCol {
		return nil, core.NewInvalidInputError("key columns", "unit and period column names must be distinct and non-empty")
	}

	nameSet := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Values {
			nameSet[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(nameSet))
	for k := range nameSet {
		if k == unitCol || k == periodCol {
			return nil, core.NewInvalidInputError("column "+k, "collides with a key column")
		}
		names = append(names, k)
	}
	sort.Strings(names)

	units := make([]string, len(rows))
	periods := make([]string, len(rows))
	columns := make(map[string][]float64, len(names))
	for _, name := range names {
		columns[name] = make([]float64, len(rows))
	}

	for i, r := range rows {
		if r.Unit == "" {
			return nil, core.NewInvalidInputError(unitCol, "row "+strconv.Itoa(i)+" has an empty unit")
		}
		if r.Period == "" {
			return nil, core.NewInvalidInputError(periodCol, "row "+strconv.Itoa(i)+" has an empty period")
		}
		units[i] = r.Unit
		periods[i] = r.Period
		for _, name := range names {
			v, ok := r.Values[name]
			if !ok {
				v = math.NaN()
			}
			columns[name][i] = v
		}
	}

	return &Frame{
		unitCol:   unitCol,
		periodCol: periodCol,
		units:     units,
		periods:   periods,
		names:     names,
		columns:   columns,
	}, nil
}

// FromColumns builds a frame from column-oriented data. Slices are copied.
func FromColumns(unitCol, periodCol string, units, periods []string, columns map[string][]float64) (*Frame, error) {
	if len(units) != len(periods) {
		return nil, core.NewInvalidInputError("key columns", "unit and period lengths differ")
	}
	rows := make([]Row, len(units))
	for i := range units {
		rows[i] = Row{Unit: units[i], Period: periods[i], Values: make(map[string]float64, len(columns))}
	}
	for name, values := range columns {
		if len(values) != len(units) {
			return nil, core.NewInvalidInputError("column "+name, "length does not match key columns")
		}
		for i, v := range values {
			rows[i].Values[name] = v
		}
	}
	return New(unitCol, periodCol, rows)
}

func (f *Frame) UnitCol() string   { return f.unitCol }
func (f *Frame) PeriodCol() string { return f.periodCol }
func (f *Frame) Len() int          { return len(f.units) }
func (f *Frame) Unit(i int) string { return f.units[i] }

func (f *Frame) Period(i int) string { return f.periods[i] }

// ColumnNames returns the numeric column names in sorted order.
func (f *Frame) ColumnNames() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// HasColumn reports whether a numeric column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns a copy of a numeric column.
func (f *Frame) Column(name string) ([]float64, error) {
	col, ok := f.columns[name]
	if !ok {
		return nil, core.NewMissingColumnError(name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Labels returns a column as group labels. The unit and period key columns
// are returned verbatim; numeric columns are formatted, with NaN as "".
func (f *Frame) Labels(name string) ([]string, error) {
	switch name {
	case f.unitCol:
		return append([]string(nil), f.units...), nil
	case f.periodCol:
		return append([]string(nil), f.periods...), nil
	}
	col, ok := f.columns[name]
	if !ok {
		return nil, core.NewMissingColumnError(name)
	}
	out := make([]string, len(col))
	for i, v := range col {
		if !math.IsNaN(v) {
			out[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return out, nil
}

// Units returns the sorted distinct unit labels.
func (f *Frame) Units() []string { return distinctSorted(f.units) }

// Periods returns the sorted distinct period labels.
func (f *Frame) Periods() []string { return distinctSorted(f.periods) }

// Rows exports the frame back to row form.
func (f *Frame) Rows() []Row {
	rows := make([]Row, f.Len())
	for i := range rows {
		values := make(map[string]float64, len(f.names))
		for _, name := range f.names {
			values[name] = f.columns[name][i]
		}
		rows[i] = Row{Unit: f.units[i], Period: f.periods[i], Values: values}
	}
	return rows
}

// Filter returns the rows for which keep returns true, in original order.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	idx := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.take(idx)
}

// SortedByPeriod returns the rows ordered by period, then unit.
func (f *Frame) SortedByPeriod() *Frame {
	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if f.periods[idx[a]] != f.periods[idx[b]] {
			return f.periods[idx[a]] < f.periods[idx[b]]
		}
		return f.units[idx[a]] < f.units[idx[b]]
	})
	return f.take(idx)
}

// WithColumn returns a frame with a numeric column added or replaced.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	if name == f.unitCol || name == f.periodCol {
		return nil, core.NewInvalidInputError("column "+name, "collides with a key column")
	}
	if len(values) != f.Len() {
		return nil, core.NewInvalidInputError("column "+name, "length does not match frame")
	}
	col := make([]float64, len(values))
	copy(col, values)

	columns := make(map[string][]float64, len(f.columns)+1)
	for k, v := range f.columns {
		columns[k] = v
	}
	columns[name] = col

	names := f.names
	if _, exists := f.columns[name]; !exists {
		names = append(append([]string(nil), f.names...), name)
		sort.Strings(names)
	}

	return &Frame{
		unitCol:   f.unitCol,
		periodCol: f.periodCol,
		units:     f.units,
		periods:   f.periods,
		names:     names,
		columns:   columns,
	}, nil
}

func (f *Frame) take(idx []int) *Frame {
	units := make([]string, len(idx))
	periods := make([]string, len(idx))
	columns := make(map[string][]float64, len(f.columns))
	for name, col := range f.columns {
		out := make([]float64, len(idx))
		for j, i := range idx {
			out[j] = col[i]
		}
		columns[name] = out
	}
	for j, i := range idx {
		units[j] = f.units[i]
		periods[j] = f.periods[i]
	}
	return &Frame{
		unitCol:   f.unitCol,
		periodCol: f.periodCol,
		units:     units,
		periods:   periods,
		names:     f.names,
		columns:   columns,
	}
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
