package models

// Currency represents a supported currency row.
// owner_id is NULL for globally shared currencies.
type Currency struct {
	CurrencyCode string  `json:"currencyCode" db:"currency_code"` // Primary Key (e.g., "USD")
	Symbol       string  `json:"symbol" db:"symbol"`              // e.g., "$"
	Name         string  `json:"name" db:"name"`                  // e.g., "US Dollar"
	OwnerID      *string `json:"ownerID,omitempty" db:"owner_id"`
	AuditFields
}
