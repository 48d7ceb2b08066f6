package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one persisted record of the cheapest qualifying offer found
// in a poll cycle. Records are insert-only; history is never rewritten.
type Observation struct {
	ID             int64
	ObservedAt     time.Time
	Price          decimal.Decimal
	Currency       string
	OutboundDate   string
	ReturnDate     *string
	GoogleLink     *string
	SkyscannerLink *string
	CreatedAt      time.Time
}
