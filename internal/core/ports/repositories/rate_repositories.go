package repositories

import (
	"context"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
)

// RateListFilter narrows ListRates results. Nil fields are ignored.
type RateListFilter struct {
	FromCurrencyCode *string
	ToCurrencyCode   *string
	DateEffective    *time.Time
	Source           *domain.RateSource
	Limit            int
	NextToken        string
}

// RateReader defines read operations for exchange rate data
type RateReader interface {
	// FindRateByID retrieves a rate by its ID, scoped to the owner.
	FindRateByID(ctx context.Context, ownerID, rateID string) (*domain.Rate, error)

	// ListAuthoritativeRates retrieves all USER and EXTERNAL rates for the
	// owner effective on the given date. Derived rows are never returned.
	ListAuthoritativeRates(ctx context.Context, ownerID string, dateEffective time.Time) ([]domain.Rate, error)

	// ListRates retrieves a filtered, token-paginated page of the owner's rates.
	ListRates(ctx context.Context, ownerID string, filter RateListFilter) ([]domain.Rate, string, error)

	// FindBestRate retrieves the rate for a pair on a date, preferring
	// authoritative rows over derived ones.
	FindBestRate(ctx context.Context, ownerID, fromCurrencyCode, toCurrencyCode string, dateEffective time.Time) (*domain.Rate, error)
}

// RateWriter defines write operations for authoritative (USER/EXTERNAL)
// rate rows. Implementations must refuse to touch DERIVED rows.
type RateWriter interface {
	// SaveRate persists a new authoritative rate.
	SaveRate(ctx context.Context, rate domain.Rate) error

	// UpdateRate updates the value and note of an existing authoritative rate.
	UpdateRate(ctx context.Context, rate domain.Rate) error

	// DeleteRate removes an authoritative rate by ID.
	DeleteRate(ctx context.Context, ownerID, rateID string) error
}

// DerivedRateWriter is the persistence surface reserved for the derivation
// engine. It carries no source parameter: implementations stamp every
// inserted row DERIVED, so nothing else can create derived rows.
type DerivedRateWriter interface {
	// ReplaceDerivedRates atomically deletes all DERIVED rows for
	// (ownerID, dateEffective) and bulk-inserts the candidates in a single
	// transaction. Returns the number of rows deleted.
	ReplaceDerivedRates(ctx context.Context, ownerID string, dateEffective time.Time, candidates []domain.Rate) (int64, error)

	// DeleteDerivedRates removes DERIVED rows for the owner. A nil date
	// clears the owner's derived rows across all dates.
	DeleteDerivedRates(ctx context.Context, ownerID string, dateEffective *time.Time) (int64, error)
}

// RateRepositoryFacade combines all rate-related repository interfaces
// This is a facade for clients that need access to all operations
type RateRepositoryFacade interface {
	RateReader
	RateWriter
	DerivedRateWriter
}

// RateRepositoryWithTx extends RateRepositoryFacade with transaction capabilities
type RateRepositoryWithTx interface {
	RateRepositoryFacade
	TransactionManager
}
