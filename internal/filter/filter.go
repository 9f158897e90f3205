package filter

import (
	"strings"
	"unicode"

	"github.com/slava225678/parsing-count/internal/models"
)

const (
	DefaultMinCount = 10
	DefaultMaxCount = 1_000_000
)

// Bounds is the inclusive range a query's historical request count must fall in.
type Bounds struct {
	Min int64
	Max int64
}

func DefaultBounds() Bounds {
	return Bounds{Min: DefaultMinCount, Max: DefaultMaxCount}
}

// Valid reports whether q should be fetched and reported.
func Valid(q models.Query, b Bounds) bool {
	if strings.TrimSpace(q.Text) == "" {
		return false
	}

	if q.RequestCount < b.Min || q.RequestCount > b.Max {
		return false
	}

	return !isProductCode(q.Text)
}

// Apply returns the valid records of qs in input order.
func Apply(qs []models.Query, b Bounds) []models.Query {
	out := make([]models.Query, 0, len(qs))
	for _, q := range qs {
		if Valid(q, b) {
			out = append(out, q)
		}
	}
	return out
}

// isProductCode matches queries that are only digits once spaces are removed,
// e.g. article-number lookups like "12 345".
func isProductCode(text string) bool {
	stripped := strings.ReplaceAll(text, " ", "")
	if stripped == "" {
		return false
	}

	for _, r := range stripped {
		if !unicode.Is(unicode.Nd, r) {
			return false
		}
	}
	return true
}
