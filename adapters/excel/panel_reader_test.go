package excel

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const panelCSV = "country_iso3,month,cyber_incidents,gdp_growth\n" +
	"USA,2021-01,10,2.5\n" +
	"USA,2021-02,12,n/a\n" +
	"\n" +
	"FRA,2021-01,\"1,200\",1.1\n" +
	"FRA,2021-02,,0.9\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPanelReader_CSV(t *testing.T) {
	reader := NewPanelReader(DefaultExcelConfig(writeCSV(t, panelCSV)), nil)

	f, err := reader.ReadPanel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, f.Len(), "blank lines are skipped")
	assert.Equal(t, "country_iso3", f.UnitCol())
	assert.Equal(t, "month", f.PeriodCol())
	assert.Equal(t, []string{"FRA", "USA"}, f.Units())
	assert.Equal(t, []string{"2021-01", "2021-02"}, f.Periods())
	assert.Equal(t, []string{"cyber_incidents", "gdp_growth"}, f.ColumnNames())

	incidents, err := f.Column("cyber_incidents")
	require.NoError(t, err)
	assert.Equal(t, 10.0, incidents[0])
	assert.Equal(t, 1200.0, incidents[2])
	assert.True(t, math.IsNaN(incidents[3]))

	gdp, err := f.Column("gdp_growth")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(gdp[1]))
}

func TestPanelReader_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := "Panel"
	wb.SetSheetName(wb.GetSheetName(0), sheet)
	rows := [][]interface{}{
		{"country_iso3", "month", "cyber_incidents"},
		{"USA", "2021-01-01", 3},
		{"USA", "2021-02-01", 4.5},
		{"DEU", "2021-01", 7},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "panel.xlsx")
	require.NoError(t, wb.SaveAs(path))

	t.Run("first sheet by default", func(t *testing.T) {
		f, err := NewPanelReader(DefaultExcelConfig(path), nil).ReadPanel(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, f.Len())
		assert.Equal(t, []string{"2021-01", "2021-02"}, f.Periods())

		incidents, err := f.Column("cyber_incidents")
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 4.5, 7}, incidents)
	})

	t.Run("unknown sheet", func(t *testing.T) {
		cfg := DefaultExcelConfig(path)
		cfg.Sheet = "Missing"
		_, err := NewPanelReader(cfg, nil).ReadPanel(context.Background())
		assert.Error(t, err)
	})
}

func TestPanelReader_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPanelReader(DefaultExcelConfig(filepath.Join(t.TempDir(), "nope.csv")), nil).ReadPanel(ctx)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("header only", func(t *testing.T) {
		path := writeCSV(t, "country_iso3,month,y\n")
		_, err := NewPanelReader(DefaultExcelConfig(path), nil).ReadPanel(ctx)
		assert.ErrorIs(t, err, core.ErrInsufficientData)
	})

	t.Run("missing unit column", func(t *testing.T) {
		path := writeCSV(t, "iso,month,y\nUSA,2021-01,1\n")
		_, err := NewPanelReader(DefaultExcelConfig(path), nil).ReadPanel(ctx)
		assert.ErrorIs(t, err, core.ErrMissingColumn)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewPanelReader(DefaultExcelConfig(writeCSV(t, panelCSV)), nil).ReadPanel(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 1234.5, ParseNumber(" 1,234.5 "))
	assert.Equal(t, -2.0, ParseNumber("-2"))
	assert.True(t, math.IsNaN(ParseNumber("")))
	assert.True(t, math.IsNaN(ParseNumber("abc")))
}

func TestNormalizePeriod(t *testing.T) {
	assert.Equal(t, "2021-03", NormalizePeriod("2021-03-15"))
	assert.Equal(t, "2021-03", NormalizePeriod("2021-03-15 00:00:00"))
	assert.Equal(t, "2021-03", NormalizePeriod("2021-03"))
	assert.Equal(t, "Q1", NormalizePeriod(" Q1 "))
}
