package panel

import (
	"math"
	"testing"

	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New("country_iso3", "month", []Row{
		{Unit: "RUS", Period: "2022-01", Values: map[string]float64{"y": 1, "x": 10}},
		{Unit: "RUS", Period: "2022-03", Values: map[string]float64{"y": 3}},
		{Unit: "UKR", Period: "2022-01", Values: map[string]float64{"y": 5, "x": 20}},
		{Unit: "UKR", Period: "2022-02", Values: map[string]float64{"y": math.NaN(), "x": 21}},
		{Unit: "UKR", Period: "2022-03", Values: map[string]float64{"y": 7, "x": 22}},
	})
	require.NoError(t, err)
	return f
}

func TestNew_MissingValuesBecomeNaN(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, 5, f.Len())
	assert.Equal(t, []string{"x", "y"}, f.ColumnNames())

	x, err := f.Column("x")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(x[1]))
}

func TestNew_RejectsEmptyKeys(t *testing.T) {
	_, err := New("unit", "month", []Row{{Unit: "", Period: "2022-01"}})
	assert.True(t, core.IsDataShape(err))

	_, err = New("unit", "month", []Row{{Unit: "A", Period: ""}})
	assert.True(t, core.IsDataShape(err))

	_, err = New("unit", "unit", nil)
	assert.True(t, core.IsDataShape(err))
}

func TestColumn_ReturnsCopy(t *testing.T) {
	f := sampleFrame(t)
	y, err := f.Column("y")
	require.NoError(t, err)
	y[0] = 999

	again, _ := f.Column("y")
	assert.Equal(t, 1.0, again[0])

	_, err = f.Column("nope")
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestUnitsAndPeriodsSorted(t *testing.T) {
	f := sampleFrame(t)
	assert.Equal(t, []string{"RUS", "UKR"}, f.Units())
	assert.Equal(t, []string{"2022-01", "2022-02", "2022-03"}, f.Periods())
}

func TestWithTreatment(t *testing.T) {
	f := sampleFrame(t)
	d, err := f.WithTreatment("RUS", "2022-02", TreatedCol, PostCol)
	require.NoError(t, err)

	treated, _ := d.Column(TreatedCol)
	post, _ := d.Column(PostCol)
	assert.Equal(t, []float64{1, 1, 0, 0, 0}, treated)
	assert.Equal(t, []float64{0, 1, 0, 1, 1}, post)

	assert.False(t, f.HasColumn(TreatedCol), "source frame must not change")

	_, err = f.WithTreatment("FRA", "2022-02", TreatedCol, PostCol)
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
}

func TestWithEventTime(t *testing.T) {
	f := sampleFrame(t)
	d, err := f.WithEventTime("2022-02", EventTimeCol)
	require.NoError(t, err)

	k, _ := d.Column(EventTimeCol)
	assert.Equal(t, []float64{-1, 1, -1, 0, 1}, k)

	// Intervention between labels maps to the first later period.
	d, err = f.WithEventTime("2022-01-15", EventTimeCol)
	require.NoError(t, err)
	k, _ = d.Column(EventTimeCol)
	assert.Equal(t, []float64{-1, 1, -1, 0, 1}, k)

	_, err = f.WithEventTime("2023-01", EventTimeCol)
	assert.ErrorIs(t, err, core.ErrInterventionOutOfRange)
}

func TestSeries_ForwardFillThenZero(t *testing.T) {
	f := sampleFrame(t)
	periods := f.Periods()

	rus, err := f.Series("RUS", "x", periods)
	require.NoError(t, err)
	// 2022-02 absent, 2022-03 NaN: both carry 10 forward.
	assert.Equal(t, []float64{10, 10, 10}, rus)

	ukr, err := f.Series("UKR", "y", append([]string{"2021-12"}, periods...))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 5, 7}, ukr)

	_, err = f.Series("FRA", "y", periods)
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
}

func TestAggregateByPeriod(t *testing.T) {
	f := sampleFrame(t)
	agg, err := f.AggregateByPeriod([]string{"y"}, "GLOBAL")
	require.NoError(t, err)

	assert.Equal(t, 3, agg.Len())
	y, _ := agg.Column("y")
	assert.Equal(t, []float64{6, 0, 10}, y)
	assert.Equal(t, []string{"GLOBAL"}, agg.Units())
}

func TestLabels(t *testing.T) {
	f := sampleFrame(t)
	units, err := f.Labels("country_iso3")
	require.NoError(t, err)
	assert.Equal(t, "UKR", units[4])

	x, err := f.Labels("x")
	require.NoError(t, err)
	assert.Equal(t, "", x[1])
	assert.Equal(t, "20", x[2])
}

func TestSortedByPeriodAndFilter(t *testing.T) {
	f := sampleFrame(t)
	s := f.SortedByPeriod()
	assert.Equal(t, "2022-01", s.Period(0))
	assert.Equal(t, "RUS", s.Unit(0))
	assert.Equal(t, "2022-03", s.Period(4))

	ukr, err := f.ForUnit("UKR")
	require.NoError(t, err)
	assert.Equal(t, 3, ukr.Len())
}

func TestSplitPeriods(t *testing.T) {
	pre, post := SplitPeriods([]string{"2022-01", "2022-02", "2022-03"}, "2022-02")
	assert.Equal(t, []string{"2022-01"}, pre)
	assert.Equal(t, []string{"2022-02", "2022-03"}, post)
}
