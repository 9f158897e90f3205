package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxPricedProducts is how many leading products feed the average price.
const MaxPricedProducts = 10

var ErrDecode = errors.New("search payload is not a JSON object")

// SearchStats is what a search response tells us about one query.
type SearchStats struct {
	Total    *int
	AvgPrice *float64
}

// BodyText returns the visible text of an HTML document's body. A browser
// rendering a JSON response wraps it in <pre>, so this yields the raw payload.
func BodyText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page html: %w", err)
	}

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}
	return text, nil
}

// ParseSearch decodes a search response. The payload is either the catalog object
// itself or the catalog wrapped in "data". Missing fields are not errors.
func ParseSearch(raw []byte) (SearchStats, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &top); err != nil {
		return SearchStats{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if data, ok := top["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err == nil && inner != nil {
			top = inner
		}
	}

	stats := SearchStats{Total: decodeInt(top["total"])}

	var products []json.RawMessage
	if raw, ok := top["products"]; ok {
		_ = json.Unmarshal(raw, &products)
	}
	if len(products) > MaxPricedProducts {
		products = products[:MaxPricedProducts]
	}

	cents := make([]*float64, 0, len(products))
	for _, p := range products {
		cents = append(cents, productPrice(p))
	}
	stats.AvgPrice = AverageCents(cents)

	return stats, nil
}

// AverageCents averages prices given in cents and returns currency units.
// Nil and non-positive entries are skipped; nil is returned when nothing is left.
func AverageCents(cents []*float64) *float64 {
	var sum float64
	var n int
	for _, c := range cents {
		if c == nil || *c <= 0 {
			continue
		}
		sum += *c / 100
		n++
	}
	if n == 0 {
		return nil
	}

	avg := sum / float64(n)
	return &avg
}

// productPrice returns sizes[i].price.product of the first size carrying a price.
func productPrice(raw json.RawMessage) *float64 {
	var product struct {
		Sizes []json.RawMessage `json:"sizes"`
	}
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil
	}

	for _, s := range product.Sizes {
		var size map[string]json.RawMessage
		if err := json.Unmarshal(s, &size); err != nil {
			continue
		}
		priceRaw, ok := size["price"]
		if !ok {
			continue
		}

		var price map[string]json.RawMessage
		if err := json.Unmarshal(priceRaw, &price); err != nil || len(price) == 0 {
			return nil
		}
		return decodeFloat(price["product"])
	}

	return nil
}

func decodeFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func decodeInt(raw json.RawMessage) *int {
	f := decodeFloat(raw)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}

	v := int(*f)
	return &v
}
