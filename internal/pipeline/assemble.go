package pipeline

import (
	"github.com/slava225678/parsing-count/internal/filter"
	"github.com/slava225678/parsing-count/internal/models"
)

// Assemble walks the unfiltered input in order and emits one row per valid
// record. Queries missing from results get absent values; missing historical
// metrics become 0.
func Assemble(records []models.Query, results models.Results, bounds filter.Bounds) []models.OutputRow {
	rows := make([]models.OutputRow, 0, len(records))
	for _, q := range records {
		if !filter.Valid(q, bounds) {
			continue
		}

		row := models.OutputRow{
			Query:           q.Text,
			RequestCount:    q.RequestCount,
			PrevPeriodCount: orZero(q.PrevPeriodCount),
			AvgPerDay:       orZero(q.AvgPerDay),
			AvgPerDayPrev:   orZero(q.AvgPerDayPrev),
		}
		if res, ok := results[q.Text]; ok {
			row.Total = res.Total
			row.AvgPrice = res.AvgPrice
		}
		rows = append(rows, row)
	}
	return rows
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
