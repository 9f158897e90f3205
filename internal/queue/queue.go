package queue

import (
	"errors"

	"github.com/slava225678/parsing-count/internal/models"
)

var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// BatchQueue hands out queries in input order, batchSize at a time.
// The final batch holds the remainder and may be smaller.
type BatchQueue struct {
	items     []models.Query
	batchSize int
	pos       int
}

func NewBatchQueue(items []models.Query, batchSize int) (*BatchQueue, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	return &BatchQueue{
		items:     items,
		batchSize: batchSize,
	}, nil
}

// Next returns the next batch, or false once the queue is drained.
func (b *BatchQueue) Next() ([]models.Query, bool) {
	if b.pos >= len(b.items) {
		return nil, false
	}

	end := b.pos + b.batchSize
	if end > len(b.items) {
		end = len(b.items)
	}

	batch := b.items[b.pos:end:end]
	b.pos = end
	return batch, true
}

// HasNext reports whether another batch is pending.
func (b *BatchQueue) HasNext() bool {
	return b.pos < len(b.items)
}

// Remaining is the number of queries not yet handed out.
func (b *BatchQueue) Remaining() int {
	return len(b.items) - b.pos
}

// Batches is the total number of batches the queue produces.
func (b *BatchQueue) Batches() int {
	return (len(b.items) + b.batchSize - 1) / b.batchSize
}

// Texts extracts the query strings of a batch.
func Texts(batch []models.Query) []string {
	out := make([]string, len(batch))
	for i, q := range batch {
		out[i] = q.Text
	}
	return out
}
