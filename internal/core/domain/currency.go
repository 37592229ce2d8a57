package domain

// Currency represents a supported currency in the domain.
// OwnerID is nil for globally shared currencies and set for user-defined ones.
// A currency must not change once it is referenced by an exchange rate.
type Currency struct {
	CurrencyCode string  `json:"currencyCode"` // Primary Key (e.g., "USD")
	Symbol       string  `json:"symbol"`       // e.g., "$"
	Name         string  `json:"name"`         // e.g., "US Dollar"
	OwnerID      *string `json:"ownerID,omitempty"`
	AuditFields
}
