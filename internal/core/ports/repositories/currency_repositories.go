package repositories

import (
	"context"

	"github.com/fxledger/fxledger/internal/core/domain"
)

// CurrencyReader defines read operations for currency data
type CurrencyReader interface {
	// FindCurrencyByCode retrieves a specific currency by its code.
	// Shared currencies (nil owner) are visible to everyone; user-defined
	// ones only to their owner.
	FindCurrencyByCode(ctx context.Context, ownerID, currencyCode string) (*domain.Currency, error)

	// ListCurrencies retrieves all currencies visible to the owner.
	ListCurrencies(ctx context.Context, ownerID string) ([]domain.Currency, error)
}

// CurrencyWriter defines write operations for currency data
type CurrencyWriter interface {
	// SaveCurrency persists a new currency.
	SaveCurrency(ctx context.Context, currency domain.Currency) error
}

// CurrencyRepositoryFacade combines all currency-related repository interfaces
// This is a facade for clients that need access to all operations
type CurrencyRepositoryFacade interface {
	CurrencyReader
	CurrencyWriter
}
