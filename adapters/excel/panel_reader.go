package excel

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"gocausal/domain/core"
	"gocausal/domain/panel"
	"gocausal/internal"
	"gocausal/ports"
)

var _ ports.PanelReader = (*PanelReader)(nil)

// PanelReader loads a unit-by-period panel from a .csv or .xlsx file. Every
// column other than the key columns is parsed as a number; empty or
// non-numeric cells become NaN.
type PanelReader struct {
	config ExcelConfig
	reader *DataReader
	logger *internal.Logger
}

// NewPanelReader creates a panel reader for the configured file
func NewPanelReader(config ExcelConfig, logger *internal.Logger) *PanelReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &PanelReader{
		config: config,
		reader: NewDataReader(config.FilePath, config.Sheet, logger),
		logger: logger,
	}
}

// ReadPanel implements ports.PanelReader
func (p *PanelReader) ReadPanel(ctx context.Context) (*panel.Frame, error) {
	data, err := p.reader.ReadData(ctx)
	if err != nil {
		return nil, err
	}
	return ToFrame(data, p.config.UnitCol, p.config.TimeCol)
}

// ToFrame converts raw string rows into a panel frame. Period cells that are
// dates (YYYY-MM-DD, with or without a time) are truncated to YYYY-MM.
func ToFrame(data *ExcelData, unitCol, timeCol string) (*panel.Frame, error) {
	if !hasHeader(data.Headers, unitCol) {
		return nil, core.NewMissingColumnError(unitCol)
	}
	if !hasHeader(data.Headers, timeCol) {
		return nil, core.NewMissingColumnError(timeCol)
	}

	rows := make([]panel.Row, 0, len(data.Rows))
	for _, raw := range data.Rows {
		row := panel.Row{
			Unit:   raw[unitCol],
			Period: NormalizePeriod(raw[timeCol]),
			Values: make(map[string]float64, len(data.Headers)),
		}
		for _, h := range data.Headers {
			if h == unitCol || h == timeCol || h == "" {
				continue
			}
			row.Values[h] = ParseNumber(raw[h])
		}
		rows = append(rows, row)
	}
	return panel.New(unitCol, timeCol, rows)
}

// ParseNumber parses a cell as float64. Thousands separators are ignored;
// anything unparseable is NaN.
func ParseNumber(cell string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006/01/02"}

// NormalizePeriod maps full dates onto their month label and leaves any
// other label unchanged.
func NormalizePeriod(cell string) string {
	s := strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(core.MonthLayout)
		}
	}
	return s
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
