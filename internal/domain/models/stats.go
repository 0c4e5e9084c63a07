package models

// SummaryStats is a read-only summary of one sliced column. Fields are
// Missing when the slice holds no value for the column.
type SummaryStats struct {
	Count  int
	Latest float64
	Mean   float64
	Min    float64
	Max    float64
	Change float64
}

// MissingStats is the summary of a column with no observations.
func MissingStats() SummaryStats {
	return SummaryStats{Latest: Missing, Mean: Missing, Min: Missing, Max: Missing, Change: Missing}
}

// RawSeries is one indicator as read from a source, before cleaning.
type RawSeries struct {
	Name    string
	Unit    string
	Records [][2]string // date text, value text
}
