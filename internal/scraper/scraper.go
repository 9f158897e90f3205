package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/slava225678/parsing-count/internal/models"
)

var (
	ErrInvalidPoolSize = errors.New("browser pool size out of range")
	ErrInvalidTemplate = errors.New("search url template must contain one %s")
)

// Fetcher turns a batch of search queries into results. Implementations never
// fail a batch: a query that could not be fetched maps to an absent result.
type Fetcher interface {
	FetchBatch(ctx context.Context, queries []string) models.Results
	Close() error
}

// SearchURL fills the query into a search endpoint template.
func SearchURL(template, query string) string {
	return fmt.Sprintf(template, url.QueryEscape(query))
}

func validateTemplate(template string) error {
	if strings.Count(template, "%s") != 1 {
		return ErrInvalidTemplate
	}
	return nil
}
