package dto

import (
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateRateRequest defines the structure for creating a new authoritative rate.
// Source is restricted to USER or EXTERNAL; DERIVED rows are engine-owned.
type CreateRateRequest struct {
	FromCurrencyCode string          `json:"fromCurrencyCode" binding:"required,len=3,uppercase"`
	ToCurrencyCode   string          `json:"toCurrencyCode" binding:"required,len=3,uppercase"`
	Rate             decimal.Decimal `json:"rate" binding:"required"`
	DateEffective    time.Time       `json:"dateEffective" binding:"required"`
	Source           string          `json:"source" binding:"required,oneof=USER EXTERNAL"`
	Note             string          `json:"note"`
}

// UpdateRateRequest defines the updatable fields of an authoritative rate.
// Pointers differentiate omitted fields from zero values.
type UpdateRateRequest struct {
	Rate *decimal.Decimal `json:"rate"`
	Note *string          `json:"note"`
}

// ListRatesRequest defines query parameters for listing rates.
type ListRatesRequest struct {
	FromCurrencyCode string `form:"from"`
	ToCurrencyCode   string `form:"to"`
	DateEffective    string `form:"date"` // YYYY-MM-DD
	Source           string `form:"source" binding:"omitempty,oneof=USER EXTERNAL DERIVED"`
	Limit            int    `form:"limit,default=50"`
	NextToken        string `form:"nextToken"`
}

// ConvertRequest defines query parameters for amount conversion.
type ConvertRequest struct {
	FromCurrencyCode string          `form:"from" binding:"required,len=3,uppercase"`
	ToCurrencyCode   string          `form:"to" binding:"required,len=3,uppercase"`
	Amount           decimal.Decimal `form:"amount" binding:"required"`
	Date             string          `form:"date"` // YYYY-MM-DD, defaults to today
}

// RateSourceIdentity labels a same-currency conversion in ConvertResponse.
// No stored rate backs it, so none of the domain sources apply.
const RateSourceIdentity = "IDENTITY"

// ConvertResponse is the result of an amount conversion.
type ConvertResponse struct {
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Amount           decimal.Decimal `json:"amount"`
	Converted        decimal.Decimal `json:"converted"`
	Rate             decimal.Decimal `json:"rate"`
	RateSource       string          `json:"rateSource"`
	DateEffective    time.Time       `json:"dateEffective"`
}

// RegenerateRequest triggers a manual regeneration for one effective date.
// A zero date means today.
type RegenerateRequest struct {
	DateEffective time.Time `json:"dateEffective"`
}

// RateResponse defines the structure for API responses containing rate details.
type RateResponse struct {
	RateID           string          `json:"rateID"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"`
	DateEffective    time.Time       `json:"dateEffective"`
	Source           string          `json:"source"`
	Note             string          `json:"note,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	CreatedBy        string          `json:"createdBy"`
	LastUpdatedAt    time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy    string          `json:"lastUpdatedBy"`
}

// RegenerationResponse reports the outcome of the derivation pass that ran
// alongside a rate mutation.
type RegenerationResponse struct {
	Succeeded       bool     `json:"succeeded"`
	DerivedCount    int      `json:"derivedCount"`
	ReverseCount    int      `json:"reverseCount"`
	TransitiveCount int      `json:"transitiveCount"`
	Errors          []string `json:"errors,omitempty"`
}

// RateMutationResponse bundles the mutated rate with the regeneration outcome.
type RateMutationResponse struct {
	Rate         RateResponse         `json:"rate"`
	Regeneration RegenerationResponse `json:"regeneration"`
}

// ListRatesResponse wraps a page of rates with the continuation token.
type ListRatesResponse struct {
	Rates     []RateResponse `json:"rates"`
	NextToken string         `json:"nextToken,omitempty"`
}

// ToRateResponse converts a domain.Rate to RateResponse DTO
func ToRateResponse(rate *domain.Rate) RateResponse {
	return RateResponse{
		RateID:           rate.RateID,
		FromCurrencyCode: rate.FromCurrencyCode,
		ToCurrencyCode:   rate.ToCurrencyCode,
		Rate:             rate.Rate,
		DateEffective:    rate.DateEffective,
		Source:           string(rate.Source),
		Note:             rate.Note,
		CreatedAt:        rate.CreatedAt,
		CreatedBy:        rate.CreatedBy,
		LastUpdatedAt:    rate.LastUpdatedAt,
		LastUpdatedBy:    rate.LastUpdatedBy,
	}
}

// ToListRateResponse converts a slice of domain.Rate to a slice of RateResponse DTOs.
func ToListRateResponse(rates []domain.Rate) []RateResponse {
	responses := make([]RateResponse, len(rates))
	for i := range rates {
		responses[i] = ToRateResponse(&rates[i])
	}
	return responses
}

// ToRegenerationResponse converts a domain.RegenerationResult to its DTO.
func ToRegenerationResponse(result *domain.RegenerationResult) RegenerationResponse {
	if result == nil {
		return RegenerationResponse{}
	}
	return RegenerationResponse{
		Succeeded:       result.Succeeded,
		DerivedCount:    result.DerivedCount,
		ReverseCount:    result.ReverseCount,
		TransitiveCount: result.TransitiveCount,
		Errors:          result.Errors,
	}
}
