package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxledger/fxledger/internal/apperrors"
	"github.com/fxledger/fxledger/internal/core/domain"
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	portssvc "github.com/fxledger/fxledger/internal/core/ports/services"
	"github.com/fxledger/fxledger/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RateService provides business logic for authoritative exchange rates.
// Every successful mutation hands off to the derivation service, so the
// owner's derived rates are rebuilt before the request returns.
type RateService struct {
	rateRepo        portsrepo.RateRepositoryFacade
	currencyService portssvc.CurrencySvcFacade
	deriver         portssvc.RateDeriverSvc
}

// NewRateService creates a new RateService.
func NewRateService(rateRepo portsrepo.RateRepositoryFacade, currencyService portssvc.CurrencySvcFacade, deriver portssvc.RateDeriverSvc) *RateService {
	return &RateService{
		rateRepo:        rateRepo,
		currencyService: currencyService,
		deriver:         deriver,
	}
}

// CreateRate handles the creation of a new authoritative rate.
func (s *RateService) CreateRate(ctx context.Context, req dto.CreateRateRequest, creatorUserID string) (*domain.Rate, *domain.RegenerationResult, error) {
	// Input validation (basic format) is handled by DTO binding tags.
	if req.Rate.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
	}
	if req.FromCurrencyCode == req.ToCurrencyCode {
		return nil, nil, fmt.Errorf("%w: from and to currency codes cannot be the same", apperrors.ErrValidation)
	}

	source := domain.RateSource(req.Source)
	if !source.IsAuthoritative() {
		return nil, nil, fmt.Errorf("%w: source must be USER or EXTERNAL, derived rates are engine-managed", apperrors.ErrValidation)
	}

	if err := s.checkCurrencyExists(ctx, creatorUserID, req.FromCurrencyCode, "from"); err != nil {
		return nil, nil, err
	}
	if err := s.checkCurrencyExists(ctx, creatorUserID, req.ToCurrencyCode, "to"); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	rate := domain.Rate{
		RateID:           uuid.NewString(),
		OwnerID:          creatorUserID,
		FromCurrencyCode: req.FromCurrencyCode,
		ToCurrencyCode:   req.ToCurrencyCode,
		Rate:             req.Rate,
		DateEffective:    effectiveDay(req.DateEffective),
		Source:           source,
		Note:             req.Note,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}

	if err := s.rateRepo.SaveRate(ctx, rate); err != nil {
		return nil, nil, fmt.Errorf("failed to create rate in service: %w", err)
	}

	regen, err := s.deriver.Regenerate(ctx, creatorUserID, rate.DateEffective)
	if err != nil {
		// The authoritative row is saved; report the stale derived set
		// through the result rather than failing the create.
		return &rate, regen, nil
	}
	return &rate, regen, nil
}

// UpdateRate updates the value and note of an existing authoritative rate.
// Derived rows cannot be edited by anyone.
func (s *RateService) UpdateRate(ctx context.Context, ownerID, rateID string, req dto.UpdateRateRequest) (*domain.Rate, *domain.RegenerationResult, error) {
	existing, err := s.rateRepo.FindRateByID(ctx, ownerID, rateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rate for update: %w", err)
	}
	if !existing.Source.IsAuthoritative() {
		return nil, nil, fmt.Errorf("%w: derived rates cannot be edited", apperrors.ErrForbidden)
	}

	if req.Rate != nil {
		if req.Rate.LessThanOrEqual(decimal.Zero) {
			return nil, nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
		}
		existing.Rate = *req.Rate
	}
	if req.Note != nil {
		existing.Note = *req.Note
	}
	existing.LastUpdatedAt = time.Now()
	existing.LastUpdatedBy = ownerID

	if err := s.rateRepo.UpdateRate(ctx, *existing); err != nil {
		return nil, nil, fmt.Errorf("failed to update rate in service: %w", err)
	}

	regen, _ := s.deriver.Regenerate(ctx, ownerID, existing.DateEffective)
	return existing, regen, nil
}

// DeleteRate removes an authoritative rate and rebuilds the derived set,
// so anything derived solely from the deleted edge disappears with it.
func (s *RateService) DeleteRate(ctx context.Context, ownerID, rateID string) (*domain.RegenerationResult, error) {
	existing, err := s.rateRepo.FindRateByID(ctx, ownerID, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate for delete: %w", err)
	}
	if !existing.Source.IsAuthoritative() {
		return nil, fmt.Errorf("%w: derived rates cannot be deleted directly", apperrors.ErrForbidden)
	}

	if err := s.rateRepo.DeleteRate(ctx, ownerID, rateID); err != nil {
		return nil, fmt.Errorf("failed to delete rate in service: %w", err)
	}

	regen, _ := s.deriver.Regenerate(ctx, ownerID, existing.DateEffective)
	return regen, nil
}

// GetRateByID retrieves a single rate owned by the user.
func (s *RateService) GetRateByID(ctx context.Context, ownerID, rateID string) (*domain.Rate, error) {
	rate, err := s.rateRepo.FindRateByID(ctx, ownerID, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate in service: %w", err)
	}
	return rate, nil
}

// ListRates retrieves a filtered page of the owner's rates.
func (s *RateService) ListRates(ctx context.Context, ownerID string, req dto.ListRatesRequest) ([]domain.Rate, string, error) {
	filter := portsrepo.RateListFilter{
		Limit:     req.Limit,
		NextToken: req.NextToken,
	}
	if req.FromCurrencyCode != "" {
		from := strings.ToUpper(req.FromCurrencyCode)
		filter.FromCurrencyCode = &from
	}
	if req.ToCurrencyCode != "" {
		to := strings.ToUpper(req.ToCurrencyCode)
		filter.ToCurrencyCode = &to
	}
	if req.Source != "" {
		src := domain.RateSource(req.Source)
		filter.Source = &src
	}
	if req.DateEffective != "" {
		day, err := time.Parse(dateLayout, req.DateEffective)
		if err != nil {
			return nil, "", fmt.Errorf("%w: date must be YYYY-MM-DD", apperrors.ErrValidation)
		}
		filter.DateEffective = &day
	}

	rates, next, err := s.rateRepo.ListRates(ctx, ownerID, filter)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list rates in service: %w", err)
	}
	return rates, next, nil
}

// Convert converts an amount between two currencies for a date.
// Authoritative rates are preferred; derived rates fill the gaps.
func (s *RateService) Convert(ctx context.Context, ownerID string, req dto.ConvertRequest) (*dto.ConvertResponse, error) {
	fromCode := strings.ToUpper(req.FromCurrencyCode)
	toCode := strings.ToUpper(req.ToCurrencyCode)

	day := effectiveDay(time.Time{})
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", apperrors.ErrValidation)
		}
		day = effectiveDay(parsed)
	}

	if fromCode == toCode {
		return &dto.ConvertResponse{
			FromCurrencyCode: fromCode,
			ToCurrencyCode:   toCode,
			Amount:           req.Amount,
			Converted:        req.Amount,
			Rate:             decimalOne,
			RateSource:       dto.RateSourceIdentity,
			DateEffective:    day,
		}, nil
	}

	rate, err := s.rateRepo.FindBestRate(ctx, ownerID, fromCode, toCode, day)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no rate for %s/%s on %s", apperrors.ErrNotFound, fromCode, toCode, day.Format(dateLayout))
		}
		return nil, fmt.Errorf("failed to find rate for conversion: %w", err)
	}

	return &dto.ConvertResponse{
		FromCurrencyCode: fromCode,
		ToCurrencyCode:   toCode,
		Amount:           req.Amount,
		Converted:        req.Amount.Mul(rate.Rate),
		Rate:             rate.Rate,
		RateSource:       string(rate.Source),
		DateEffective:    rate.DateEffective,
	}, nil
}

// Regenerate re-runs the derivation pass on demand.
func (s *RateService) Regenerate(ctx context.Context, ownerID string, dateEffective time.Time) (*domain.RegenerationResult, error) {
	return s.deriver.Regenerate(ctx, ownerID, dateEffective)
}

func (s *RateService) checkCurrencyExists(ctx context.Context, ownerID, code, side string) error {
	_, err := s.currencyService.GetCurrencyByCode(ctx, ownerID, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: '%s' currency code '%s' not found", apperrors.ErrValidation, side, code)
		}
		return fmt.Errorf("failed to validate '%s' currency '%s': %w", side, code, err)
	}
	return nil
}
