package core

import (
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// MarshalJSON encodes the timestamp as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// MonthLayout is the period label layout used by monthly panels.
const MonthLayout = "2006-01"

// IsMonthLabel reports whether a period label is a YYYY-MM month.
func IsMonthLabel(label string) bool {
	_, err := time.Parse(MonthLayout, label)
	return err == nil
}

// AddMonths shifts a YYYY-MM label by n months.
func AddMonths(label string, n int) (string, error) {
	t, err := time.Parse(MonthLayout, label)
	if err != nil {
		return "", NewInvalidInputError("period", "expected YYYY-MM, got "+label)
	}
	return t.AddDate(0, n, 0).Format(MonthLayout), nil
}
