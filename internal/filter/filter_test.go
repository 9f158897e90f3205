package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slava225678/parsing-count/internal/models"
)

func TestValid_Counts(t *testing.T) {
	tests := []struct {
		name     string
		count    int64
		expected bool
	}{
		{"Below min", 9, false},
		{"At min", 10, true},
		{"At max", 1000000, true},
		{"Above max", 1000001, false},
		{"Zero", 0, false},
		{"Negative", -5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.Query{Text: "phone case", RequestCount: tt.count}
			assert.Equal(t, tt.expected, Valid(q, DefaultBounds()))
		})
	}
}

func TestValid_Text(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"Empty", "", false},
		{"Spaces only", "  ", false},
		{"Digits", "12345", false},
		{"Digits with space", "12 345", false},
		{"Regular query", "phone case", true},
		{"Digits and letters", "iphone 15", true},
		{"Cyrillic", "чехол для телефона", true},
		{"Arabic-Indic digits", "١٢٣", false},
		{"Digits with dash", "12-345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.Query{Text: tt.text, RequestCount: 100}
			assert.Equal(t, tt.expected, Valid(q, DefaultBounds()))
		})
	}
}

func TestValid_CustomBounds(t *testing.T) {
	b := Bounds{Min: 1, Max: 5}
	assert.True(t, Valid(models.Query{Text: "a", RequestCount: 1}, b))
	assert.True(t, Valid(models.Query{Text: "a", RequestCount: 5}, b))
	assert.False(t, Valid(models.Query{Text: "a", RequestCount: 6}, b))
}

func TestApply_PreservesOrder(t *testing.T) {
	in := []models.Query{
		{Text: "b", RequestCount: 50},
		{Text: "", RequestCount: 50},
		{Text: "a", RequestCount: 50},
		{Text: "777", RequestCount: 50},
		{Text: "c", RequestCount: 5},
		{Text: "d", RequestCount: 500},
	}

	out := Apply(in, DefaultBounds())

	texts := make([]string, 0, len(out))
	for _, q := range out {
		texts = append(texts, q.Text)
	}
	assert.Equal(t, []string{"b", "a", "d"}, texts)
}
