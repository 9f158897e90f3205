package models

// Query is one row of the input list.
type Query struct {
	Text         string
	RequestCount int64

	// Prior-period metrics; nil when the input has no such column or the cell is empty.
	PrevPeriodCount *float64
	AvgPerDay       *float64
	AvgPerDayPrev   *float64
}

// Result is what a fetch produced for a single query. Nil fields mean "no data",
// which is distinct from a measured zero.
type Result struct {
	Query    string
	Total    *int
	AvgPrice *float64
}

// Absent reports whether neither value was obtained.
func (r Result) Absent() bool {
	return r.Total == nil && r.AvgPrice == nil
}

// AbsentResult is the degraded result for a query whose fetch failed.
func AbsentResult(query string) Result {
	return Result{Query: query}
}

// Results maps query text to its result. Last write wins for duplicate queries.
type Results map[string]Result

// Merge copies every entry of other into r.
func (r Results) Merge(other Results) {
	for q, res := range other {
		r[q] = res
	}
}

// OutputRow is one assembled line of the final spreadsheet.
type OutputRow struct {
	Query           string
	RequestCount    int64
	Total           *int
	AvgPrice        *float64
	PrevPeriodCount float64
	AvgPerDay       float64
	AvgPerDayPrev   float64
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
