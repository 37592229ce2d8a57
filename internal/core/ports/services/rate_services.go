package services

import (
	"context"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/fxledger/fxledger/internal/dto"
)

// RateReaderSvc defines read operations for exchange rate data
type RateReaderSvc interface {
	// GetRateByID retrieves a rate owned by the user.
	GetRateByID(ctx context.Context, ownerID, rateID string) (*domain.Rate, error)

	// ListRates retrieves a filtered, token-paginated page of the owner's rates.
	ListRates(ctx context.Context, ownerID string, req dto.ListRatesRequest) ([]domain.Rate, string, error)

	// Convert converts an amount between two currencies on a date, preferring
	// authoritative rates over derived ones.
	Convert(ctx context.Context, ownerID string, req dto.ConvertRequest) (*dto.ConvertResponse, error)
}

// RateWriterSvc defines write operations for authoritative rate data.
// Every successful mutation triggers a synchronous regeneration of the
// owner's derived rates for the affected effective date.
type RateWriterSvc interface {
	// CreateRate persists a new authoritative rate.
	CreateRate(ctx context.Context, req dto.CreateRateRequest, creatorUserID string) (*domain.Rate, *domain.RegenerationResult, error)

	// UpdateRate updates an existing authoritative rate's value and note.
	UpdateRate(ctx context.Context, ownerID, rateID string, req dto.UpdateRateRequest) (*domain.Rate, *domain.RegenerationResult, error)

	// DeleteRate removes an authoritative rate.
	DeleteRate(ctx context.Context, ownerID, rateID string) (*domain.RegenerationResult, error)
}

// RateDeriverSvc is the derivation engine's trigger contract. The caller
// invokes Regenerate after every successful authoritative mutation; it may
// also be called directly to rebuild a date on demand.
type RateDeriverSvc interface {
	// Regenerate discards and rebuilds all derived rates for the owner on
	// the given effective date. The returned result is non-nil even when
	// err is non-nil.
	Regenerate(ctx context.Context, ownerID string, dateEffective time.Time) (*domain.RegenerationResult, error)
}

// RateSvcFacade combines all rate-related service interfaces
type RateSvcFacade interface {
	RateReaderSvc
	RateWriterSvc
	RateDeriverSvc
}
