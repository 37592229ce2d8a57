package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource identifies where an exchange rate came from.
// It is a closed set: USER and EXTERNAL rates are authoritative inputs,
// DERIVED rates are computed by the derivation engine and never written
// by anything else.
type RateSource string

const (
	// RateSourceUser is a rate entered manually by the owner.
	RateSourceUser RateSource = "USER"
	// RateSourceExternal is a rate fetched from an external feed.
	RateSourceExternal RateSource = "EXTERNAL"
	// RateSourceDerived is a rate computed by the derivation engine.
	RateSourceDerived RateSource = "DERIVED"
)

// IsAuthoritative reports whether rates of this source feed the derivation
// engine. Derived rates are outputs, never inputs.
func (s RateSource) IsAuthoritative() bool {
	return s == RateSourceUser || s == RateSourceExternal
}

// Valid checks that the source is one of the known values.
func (s RateSource) Valid() error {
	switch s {
	case RateSourceUser, RateSourceExternal, RateSourceDerived:
		return nil
	}
	return fmt.Errorf("unknown rate source %q", s)
}

// Rate stores the conversion rate between two currencies for a specific
// date, scoped to a single owner. Rate is "1 unit of from = Rate units of to".
// Note: Rate uses a precise decimal type (github.com/shopspring/decimal).
type Rate struct {
	RateID           string          `json:"rateID"` // Primary Key (e.g., UUID)
	OwnerID          string          `json:"ownerID"`
	FromCurrencyCode string          `json:"fromCurrencyCode"` // FK -> Currency.currencyCode
	ToCurrencyCode   string          `json:"toCurrencyCode"`   // FK -> Currency.currencyCode
	Rate             decimal.Decimal `json:"rate"`
	DateEffective    time.Time       `json:"dateEffective"` // date granularity, truncated to midnight UTC
	Source           RateSource      `json:"source"`
	Note             string          `json:"note,omitempty"`
	AuditFields
}

// PairKey returns the ordered currency pair as a single map key.
func (r Rate) PairKey() string {
	return r.FromCurrencyCode + "/" + r.ToCurrencyCode
}
