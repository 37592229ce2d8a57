package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	"github.com/fxledger/fxledger/internal/core/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock RateRepository ---
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) FindRateByID(ctx context.Context, ownerID, rateID string) (*domain.Rate, error) {
	args := m.Called(ctx, ownerID, rateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rate), args.Error(1)
}

func (m *MockRateRepository) ListAuthoritativeRates(ctx context.Context, ownerID string, dateEffective time.Time) ([]domain.Rate, error) {
	args := m.Called(ctx, ownerID, dateEffective)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rate), args.Error(1)
}

func (m *MockRateRepository) ListRates(ctx context.Context, ownerID string, filter portsrepo.RateListFilter) ([]domain.Rate, string, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]domain.Rate), args.String(1), args.Error(2)
}

func (m *MockRateRepository) FindBestRate(ctx context.Context, ownerID, fromCurrencyCode, toCurrencyCode string, dateEffective time.Time) (*domain.Rate, error) {
	args := m.Called(ctx, ownerID, fromCurrencyCode, toCurrencyCode, dateEffective)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rate), args.Error(1)
}

func (m *MockRateRepository) SaveRate(ctx context.Context, rate domain.Rate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRateRepository) UpdateRate(ctx context.Context, rate domain.Rate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRateRepository) DeleteRate(ctx context.Context, ownerID, rateID string) error {
	args := m.Called(ctx, ownerID, rateID)
	return args.Error(0)
}

func (m *MockRateRepository) ReplaceDerivedRates(ctx context.Context, ownerID string, dateEffective time.Time, candidates []domain.Rate) (int64, error) {
	args := m.Called(ctx, ownerID, dateEffective, candidates)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateRepository) DeleteDerivedRates(ctx context.Context, ownerID string, dateEffective *time.Time) (int64, error) {
	args := m.Called(ctx, ownerID, dateEffective)
	return args.Get(0).(int64), args.Error(1)
}

// --- Test Suite ---
type RateDerivationServiceTestSuite struct {
	suite.Suite
	mockRepo *MockRateRepository
	service  *services.RateDerivationService
	ownerID  string
	day      time.Time
}

func (suite *RateDerivationServiceTestSuite) SetupTest() {
	suite.mockRepo = new(MockRateRepository)
	suite.service = services.NewRateDerivationService(suite.mockRepo)
	suite.ownerID = uuid.NewString()
	suite.day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
}

func (suite *RateDerivationServiceTestSuite) authoritativeRate(from, to, value string) domain.Rate {
	return domain.Rate{
		RateID:           uuid.NewString(),
		OwnerID:          suite.ownerID,
		FromCurrencyCode: from,
		ToCurrencyCode:   to,
		Rate:             decimal.RequireFromString(value),
		DateEffective:    suite.day,
		Source:           domain.RateSourceUser,
	}
}

// captureReplace wires ReplaceDerivedRates to record the candidate rows it
// was called with.
func (suite *RateDerivationServiceTestSuite) captureReplace(captured *[]domain.Rate) {
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Run(func(args mock.Arguments) {
			*captured = args.Get(3).([]domain.Rate)
		}).
		Return(int64(0), nil)
}

func ratesByPair(rows []domain.Rate) map[string]domain.Rate {
	byPair := make(map[string]domain.Rate, len(rows))
	for _, r := range rows {
		byPair[r.PairKey()] = r
	}
	return byPair
}

// --- Test Cases ---

func (suite *RateDerivationServiceTestSuite) TestRegenerate_ReverseAndTransitive() {
	ctx := context.Background()
	authoritative := []domain.Rate{
		suite.authoritativeRate("CNY", "USD", "0.14"),
		suite.authoritativeRate("EUR", "USD", "1.08"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Once()
	var captured []domain.Rate
	suite.captureReplace(&captured)

	result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.True(result.Succeeded)
	suite.Empty(result.Errors)
	suite.Equal(4, result.DerivedCount)
	suite.Equal(2, result.ReverseCount)
	suite.Equal(2, result.TransitiveCount)

	suite.Require().Len(captured, 4)
	byPair := ratesByPair(captured)

	tolerance := decimal.RequireFromString("0.000001")
	expected := map[string]string{
		"USD/CNY": "7.142857142857",  // 1 / 0.14
		"USD/EUR": "0.925925925926",  // 1 / 1.08
		"CNY/EUR": "0.1296296296",    // 0.14 * (1 / 1.08)
		"EUR/CNY": "7.7142857142857", // 1.08 * (1 / 0.14)
	}
	for pair, want := range expected {
		row, ok := byPair[pair]
		suite.Require().True(ok, "missing derived pair %s", pair)
		diff := row.Rate.Sub(decimal.RequireFromString(want)).Abs()
		suite.True(diff.LessThan(tolerance), "pair %s: got %s, want %s", pair, row.Rate, want)
	}

	for _, row := range captured {
		suite.Equal(domain.RateSourceDerived, row.Source)
		suite.Equal(suite.ownerID, row.OwnerID)
		suite.Equal(suite.day, row.DateEffective)
	}
	suite.Equal("reverse derivation", byPair["USD/CNY"].Note)
	suite.Equal("transitive derivation", byPair["CNY/EUR"].Note)

	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_NeverOverridesAuthoritative() {
	ctx := context.Background()
	// Both directions entered by the owner, deliberately inconsistent.
	authoritative := []domain.Rate{
		suite.authoritativeRate("EUR", "USD", "1.10"),
		suite.authoritativeRate("USD", "EUR", "0.95"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Once()
	var captured []domain.Rate
	suite.captureReplace(&captured)

	result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().NoError(err)
	suite.True(result.Succeeded)
	suite.Empty(captured)
	suite.Equal(0, result.DerivedCount)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_SmallestIntermediateWins() {
	ctx := context.Background()
	// CHF/JPY is reachable via both EUR and USD with different products.
	authoritative := []domain.Rate{
		suite.authoritativeRate("CHF", "EUR", "0.95"),
		suite.authoritativeRate("EUR", "JPY", "160"),
		suite.authoritativeRate("CHF", "USD", "1.1"),
		suite.authoritativeRate("USD", "JPY", "150"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Once()
	var captured []domain.Rate
	suite.captureReplace(&captured)

	_, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)
	suite.Require().NoError(err)

	byPair := ratesByPair(captured)
	row, ok := byPair["CHF/JPY"]
	suite.Require().True(ok)
	// EUR sorts before USD, so the EUR path must be chosen.
	suite.True(row.Rate.Equal(decimal.RequireFromString("152")), "got %s", row.Rate)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_Idempotent() {
	ctx := context.Background()
	authoritative := []domain.Rate{
		suite.authoritativeRate("CNY", "USD", "0.14"),
		suite.authoritativeRate("EUR", "USD", "1.08"),
		suite.authoritativeRate("GBP", "EUR", "1.17"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Twice()
	var captured []domain.Rate
	suite.captureReplace(&captured)

	first, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)
	suite.Require().NoError(err)
	firstByPair := ratesByPair(captured)

	second, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)
	suite.Require().NoError(err)
	secondByPair := ratesByPair(captured)

	suite.Equal(first.DerivedCount, second.DerivedCount)
	suite.Equal(first.ReverseCount, second.ReverseCount)
	suite.Equal(first.TransitiveCount, second.TransitiveCount)

	suite.Require().Equal(len(firstByPair), len(secondByPair))
	for pair, row := range firstByPair {
		again, ok := secondByPair[pair]
		suite.Require().True(ok, "pair %s missing on second pass", pair)
		suite.True(row.Rate.Equal(again.Rate), "pair %s drifted: %s vs %s", pair, row.Rate, again.Rate)
	}
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_EmptyGraphClearsDerived() {
	ctx := context.Background()

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return([]domain.Rate{}, nil).Once()
	// Replace still runs so stale derived rows from a previous pass are removed.
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Return(int64(3), nil).Once()

	result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().NoError(err)
	suite.True(result.Succeeded)
	suite.Equal(0, result.DerivedCount)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_SkipsBadRowsAndContinues() {
	ctx := context.Background()
	bad := suite.authoritativeRate("GBP", "USD", "1.27")
	bad.Rate = decimal.Zero
	authoritative := []domain.Rate{
		bad,
		suite.authoritativeRate("EUR", "USD", "1.08"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Once()
	var captured []domain.Rate
	suite.captureReplace(&captured)

	result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().NoError(err)
	suite.True(result.Succeeded)
	suite.Len(result.Errors, 1)
	// Only the good edge contributes: USD/EUR reverse.
	suite.Equal(1, result.DerivedCount)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_PairErrorToleranceExceeded() {
	ctx := context.Background()
	strict := services.NewRateDerivationService(suite.mockRepo, services.WithMaxPairErrors(0))

	bad := suite.authoritativeRate("GBP", "USD", "1.27")
	bad.Rate = decimal.Zero

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return([]domain.Rate{bad}, nil).Once()
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Return(int64(0), nil).Once()

	result, err := strict.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().NoError(err)
	suite.False(result.Succeeded)
	suite.NotEmpty(result.Errors)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_StoreFailureReturnsError() {
	ctx := context.Background()
	authoritative := []domain.Rate{
		suite.authoritativeRate("EUR", "USD", "1.08"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Once()
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Return(int64(0), assert.AnError).Once()

	result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)

	suite.Require().Error(err)
	suite.ErrorIs(err, assert.AnError)
	suite.Require().NotNil(result)
	suite.False(result.Succeeded)
	suite.NotEmpty(result.Errors)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_EmptyOwnerID() {
	result, err := suite.service.Regenerate(context.Background(), "", suite.day)

	suite.Require().Error(err)
	suite.Require().NotNil(result)
	suite.NotEmpty(result.Errors)
	suite.mockRepo.AssertNotCalled(suite.T(), "ListAuthoritativeRates")
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_TruncatesToDay() {
	ctx := context.Background()
	noon := time.Date(2024, 3, 15, 12, 34, 56, 0, time.UTC)

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return([]domain.Rate{}, nil).Once()
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Return(int64(0), nil).Once()

	_, err := suite.service.Regenerate(ctx, suite.ownerID, noon)

	suite.Require().NoError(err)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_ZeroDateDefaultsToToday() {
	ctx := context.Background()
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, today).Return([]domain.Rate{}, nil).Once()
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, today, mock.AnythingOfType("[]domain.Rate")).
		Return(int64(0), nil).Once()

	_, err := suite.service.Regenerate(ctx, suite.ownerID, time.Time{})

	suite.Require().NoError(err)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *RateDerivationServiceTestSuite) TestRegenerate_ConcurrentSameOwnerSerializes() {
	ctx := context.Background()
	authoritative := []domain.Rate{
		suite.authoritativeRate("EUR", "USD", "1.08"),
	}

	suite.mockRepo.On("ListAuthoritativeRates", ctx, suite.ownerID, suite.day).Return(authoritative, nil).Times(2)

	var inFlight, maxInFlight int32
	suite.mockRepo.On("ReplaceDerivedRates", mock.Anything, suite.ownerID, suite.day, mock.AnythingOfType("[]domain.Rate")).
		Run(func(args mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if n <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}).
		Return(int64(0), nil).Times(2)

	var wg sync.WaitGroup
	results := make([]*domain.RegenerationResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := suite.service.Regenerate(ctx, suite.ownerID, suite.day)
			suite.NoError(err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	// The per-owner lock keeps the delete+rebuild passes from overlapping.
	suite.Equal(int32(1), atomic.LoadInt32(&maxInFlight))
	for _, result := range results {
		suite.Require().NotNil(result)
		suite.True(result.Succeeded)
		suite.Equal(1, result.DerivedCount)
	}
	suite.mockRepo.AssertExpectations(suite.T())
}

func TestRateDerivationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RateDerivationServiceTestSuite))
}
