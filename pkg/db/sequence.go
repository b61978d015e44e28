package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Document sequence names and the prefixes rendered in front of them.
const (
	SequenceQuote   = "quote"
	SequenceOrder   = "order"
	SequenceInvoice = "invoice"
)

var sequencePrefixes = map[string]string{
	SequenceQuote:   "Q",
	SequenceOrder:   "ORD",
	SequenceInvoice: "INV",
}

const nextSequenceSQL = `INSERT INTO document_sequences (name, value, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (name) DO UPDATE SET value = document_sequences.value + 1, updated_at = excluded.updated_at
RETURNING value`

// NextDocumentNumber increments the named sequence inside tx and formats the
// result as PREFIX-000001. The row lock taken by the upsert serializes
// concurrent callers until tx commits.
func NextDocumentNumber(tx *gorm.DB, name string) (string, error) {
	prefix, ok := sequencePrefixes[name]
	if !ok {
		return "", fmt.Errorf("unknown document sequence %q", name)
	}
	var value int64
	if err := tx.Raw(nextSequenceSQL, name, time.Now().UTC()).Scan(&value).Error; err != nil {
		return "", fmt.Errorf("advance %s sequence: %w", name, err)
	}
	if value <= 0 {
		return "", fmt.Errorf("advance %s sequence: no value returned", name)
	}
	return fmt.Sprintf("%s-%06d", prefix, value), nil
}
