package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/fxledger/fxledger/internal/apperrors"
	"github.com/fxledger/fxledger/internal/core/domain"
	portssvc "github.com/fxledger/fxledger/internal/core/ports/services"
	"github.com/fxledger/fxledger/internal/core/services"
	"github.com/fxledger/fxledger/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock CurrencySvc ---
type MockCurrencySvc struct {
	mock.Mock
}

func (m *MockCurrencySvc) CreateCurrency(ctx context.Context, req dto.CreateCurrencyRequest, creatorUserID string) (*domain.Currency, error) {
	args := m.Called(ctx, req, creatorUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Currency), args.Error(1)
}

func (m *MockCurrencySvc) GetCurrencyByCode(ctx context.Context, ownerID, currencyCode string) (*domain.Currency, error) {
	args := m.Called(ctx, ownerID, currencyCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Currency), args.Error(1)
}

func (m *MockCurrencySvc) ListCurrencies(ctx context.Context, ownerID string) ([]domain.Currency, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Currency), args.Error(1)
}

// --- Mock Deriver ---
type MockDeriver struct {
	mock.Mock
}

func (m *MockDeriver) Regenerate(ctx context.Context, ownerID string, dateEffective time.Time) (*domain.RegenerationResult, error) {
	args := m.Called(ctx, ownerID, dateEffective)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegenerationResult), args.Error(1)
}

// --- Test Suite ---
type RateServiceTestSuite struct {
	suite.Suite
	mockRepo     *MockRateRepository
	mockCurrency *MockCurrencySvc
	mockDeriver  *MockDeriver
	service      portssvc.RateSvcFacade
	ownerID      string
	day          time.Time
}

func (suite *RateServiceTestSuite) SetupTest() {
	suite.mockRepo = new(MockRateRepository)
	suite.mockCurrency = new(MockCurrencySvc)
	suite.mockDeriver = new(MockDeriver)
	suite.service = services.NewRateService(suite.mockRepo, suite.mockCurrency, suite.mockDeriver)
	suite.ownerID = uuid.NewString()
	suite.day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
}

func (suite *RateServiceTestSuite) expectCurrencies(codes ...string) {
	for _, code := range codes {
		suite.mockCurrency.On("GetCurrencyByCode", mock.Anything, suite.ownerID, code).
			Return(&domain.Currency{CurrencyCode: code}, nil)
	}
}

// --- Test Cases ---

func (suite *RateServiceTestSuite) TestCreateRate_SuccessTriggersRegeneration() {
	ctx := context.Background()
	req := dto.CreateRateRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("1.08"),
		DateEffective:    suite.day,
		Source:           "USER",
	}

	suite.expectCurrencies("EUR", "USD")
	suite.mockRepo.On("SaveRate", ctx, mock.MatchedBy(func(r domain.Rate) bool {
		return r.FromCurrencyCode == "EUR" && r.ToCurrencyCode == "USD" &&
			r.Source == domain.RateSourceUser && r.OwnerID == suite.ownerID &&
			r.DateEffective.Equal(suite.day)
	})).Return(nil).Once()
	suite.mockDeriver.On("Regenerate", ctx, suite.ownerID, suite.day).
		Return(&domain.RegenerationResult{Succeeded: true, DerivedCount: 1}, nil).Once()

	rate, regen, err := suite.service.CreateRate(ctx, req, suite.ownerID)

	suite.Require().NoError(err)
	suite.Require().NotNil(rate)
	suite.Require().NotNil(regen)
	suite.True(regen.Succeeded)
	suite.Equal(domain.RateSourceUser, rate.Source)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockDeriver.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestCreateRate_RejectsDerivedSource() {
	req := dto.CreateRateRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("1.08"),
		DateEffective:    suite.day,
		Source:           "DERIVED",
	}

	rate, _, err := suite.service.CreateRate(context.Background(), req, suite.ownerID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.Nil(rate)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveRate")
	suite.mockDeriver.AssertNotCalled(suite.T(), "Regenerate")
}

func (suite *RateServiceTestSuite) TestCreateRate_RejectsNonPositiveRate() {
	req := dto.CreateRateRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.Zero,
		DateEffective:    suite.day,
		Source:           "USER",
	}

	_, _, err := suite.service.CreateRate(context.Background(), req, suite.ownerID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *RateServiceTestSuite) TestCreateRate_RejectsSamePair() {
	req := dto.CreateRateRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "EUR",
		Rate:             decimal.RequireFromString("1"),
		DateEffective:    suite.day,
		Source:           "USER",
	}

	_, _, err := suite.service.CreateRate(context.Background(), req, suite.ownerID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *RateServiceTestSuite) TestCreateRate_UnknownCurrency() {
	ctx := context.Background()
	req := dto.CreateRateRequest{
		FromCurrencyCode: "XXX",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("2"),
		DateEffective:    suite.day,
		Source:           "EXTERNAL",
	}

	suite.mockCurrency.On("GetCurrencyByCode", mock.Anything, suite.ownerID, "XXX").
		Return(nil, apperrors.ErrNotFound).Once()

	_, _, err := suite.service.CreateRate(ctx, req, suite.ownerID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveRate")
}

func (suite *RateServiceTestSuite) TestCreateRate_RegenFailureDoesNotFailCreate() {
	ctx := context.Background()
	req := dto.CreateRateRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("1.08"),
		DateEffective:    suite.day,
		Source:           "USER",
	}

	suite.expectCurrencies("EUR", "USD")
	suite.mockRepo.On("SaveRate", ctx, mock.AnythingOfType("domain.Rate")).Return(nil).Once()
	failed := &domain.RegenerationResult{Succeeded: false, Errors: []string{"store write failed"}}
	suite.mockDeriver.On("Regenerate", ctx, suite.ownerID, suite.day).
		Return(failed, assert.AnError).Once()

	rate, regen, err := suite.service.CreateRate(ctx, req, suite.ownerID)

	suite.Require().NoError(err)
	suite.Require().NotNil(rate)
	suite.Require().NotNil(regen)
	suite.False(regen.Succeeded)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestUpdateRate_DerivedForbidden() {
	ctx := context.Background()
	rateID := uuid.NewString()
	existing := &domain.Rate{
		RateID:  rateID,
		OwnerID: suite.ownerID,
		Source:  domain.RateSourceDerived,
	}

	suite.mockRepo.On("FindRateByID", ctx, suite.ownerID, rateID).Return(existing, nil).Once()

	newRate := decimal.RequireFromString("2")
	_, _, err := suite.service.UpdateRate(ctx, suite.ownerID, rateID, dto.UpdateRateRequest{Rate: &newRate})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrForbidden)
	suite.mockRepo.AssertNotCalled(suite.T(), "UpdateRate")
	suite.mockDeriver.AssertNotCalled(suite.T(), "Regenerate")
}

func (suite *RateServiceTestSuite) TestUpdateRate_SuccessTriggersRegeneration() {
	ctx := context.Background()
	rateID := uuid.NewString()
	existing := &domain.Rate{
		RateID:           rateID,
		OwnerID:          suite.ownerID,
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("1.05"),
		DateEffective:    suite.day,
		Source:           domain.RateSourceUser,
	}

	suite.mockRepo.On("FindRateByID", ctx, suite.ownerID, rateID).Return(existing, nil).Once()
	suite.mockRepo.On("UpdateRate", ctx, mock.MatchedBy(func(r domain.Rate) bool {
		return r.RateID == rateID && r.Rate.Equal(decimal.RequireFromString("1.10"))
	})).Return(nil).Once()
	suite.mockDeriver.On("Regenerate", ctx, suite.ownerID, suite.day).
		Return(&domain.RegenerationResult{Succeeded: true}, nil).Once()

	newRate := decimal.RequireFromString("1.10")
	updated, regen, err := suite.service.UpdateRate(ctx, suite.ownerID, rateID, dto.UpdateRateRequest{Rate: &newRate})

	suite.Require().NoError(err)
	suite.True(updated.Rate.Equal(newRate))
	suite.True(regen.Succeeded)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockDeriver.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestDeleteRate_SuccessTriggersRegeneration() {
	ctx := context.Background()
	rateID := uuid.NewString()
	existing := &domain.Rate{
		RateID:        rateID,
		OwnerID:       suite.ownerID,
		DateEffective: suite.day,
		Source:        domain.RateSourceExternal,
	}

	suite.mockRepo.On("FindRateByID", ctx, suite.ownerID, rateID).Return(existing, nil).Once()
	suite.mockRepo.On("DeleteRate", ctx, suite.ownerID, rateID).Return(nil).Once()
	suite.mockDeriver.On("Regenerate", ctx, suite.ownerID, suite.day).
		Return(&domain.RegenerationResult{Succeeded: true, DerivedCount: 0}, nil).Once()

	regen, err := suite.service.DeleteRate(ctx, suite.ownerID, rateID)

	suite.Require().NoError(err)
	suite.True(regen.Succeeded)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockDeriver.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestConvert_SameCurrencyShortcut() {
	resp, err := suite.service.Convert(context.Background(), suite.ownerID, dto.ConvertRequest{
		FromCurrencyCode: "usd",
		ToCurrencyCode:   "USD",
		Amount:           decimal.RequireFromString("42.50"),
	})

	suite.Require().NoError(err)
	suite.True(resp.Converted.Equal(resp.Amount))
	suite.True(resp.Rate.Equal(decimal.NewFromInt(1)))
	// No stored rate backs a same-currency conversion.
	suite.Equal(dto.RateSourceIdentity, resp.RateSource)
	suite.mockRepo.AssertNotCalled(suite.T(), "FindBestRate")
}

func (suite *RateServiceTestSuite) TestConvert_UsesBestRate() {
	ctx := context.Background()
	best := &domain.Rate{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             decimal.RequireFromString("1.08"),
		DateEffective:    suite.day,
		Source:           domain.RateSourceDerived,
	}

	suite.mockRepo.On("FindBestRate", ctx, suite.ownerID, "EUR", "USD", suite.day).Return(best, nil).Once()

	resp, err := suite.service.Convert(ctx, suite.ownerID, dto.ConvertRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Amount:           decimal.RequireFromString("100"),
		Date:             "2024-03-15",
	})

	suite.Require().NoError(err)
	suite.True(resp.Converted.Equal(decimal.RequireFromString("108")))
	suite.Equal(string(domain.RateSourceDerived), resp.RateSource)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestConvert_NoRateAvailable() {
	ctx := context.Background()

	suite.mockRepo.On("FindBestRate", ctx, suite.ownerID, "EUR", "KRW", suite.day).
		Return(nil, apperrors.ErrNotFound).Once()

	_, err := suite.service.Convert(ctx, suite.ownerID, dto.ConvertRequest{
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "KRW",
		Amount:           decimal.RequireFromString("9"),
		Date:             "2024-03-15",
	})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *RateServiceTestSuite) TestListRates_InvalidDate() {
	_, _, err := suite.service.ListRates(context.Background(), suite.ownerID, dto.ListRatesRequest{
		DateEffective: "15-03-2024",
	})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRepo.AssertNotCalled(suite.T(), "ListRates")
}

func TestRateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RateServiceTestSuite))
}
