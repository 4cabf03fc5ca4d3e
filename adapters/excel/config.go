package excel

// ExcelConfig holds configuration for a panel file data source
type ExcelConfig struct {
	FilePath string `json:"file_path"`
	Sheet    string `json:"sheet,omitempty"`
	UnitCol  string `json:"unit_col"`
	TimeCol  string `json:"time_col"`
}

// DefaultExcelConfig returns the column layout of the country-month panel
func DefaultExcelConfig(filePath string) ExcelConfig {
	return ExcelConfig{
		FilePath: filePath,
		UnitCol:  "country_iso3",
		TimeCol:  "month",
	}
}
