package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the exchange_rates row as stored.
// Note: Rate should use a precise decimal type like github.com/shopspring/decimal.
type Rate struct {
	RateID           string          `json:"rateID" db:"rate_id"` // Primary Key (e.g., UUID)
	OwnerID          string          `json:"ownerID" db:"owner_id"`
	FromCurrencyCode string          `json:"fromCurrencyCode" db:"from_currency_code"`
	ToCurrencyCode   string          `json:"toCurrencyCode" db:"to_currency_code"`
	Rate             decimal.Decimal `json:"rate" db:"rate"`
	DateEffective    time.Time       `json:"dateEffective" db:"date_effective"`
	Source           string          `json:"source" db:"source"` // USER | EXTERNAL | DERIVED
	Note             string          `json:"note,omitempty" db:"note"`
	AuditFields
}
