package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	"github.com/fxledger/fxledger/internal/middleware"
	"github.com/google/uuid"
)

// regenState tracks where a regeneration pass is, mostly so store failures
// can say which phase they happened in.
type regenState string

const (
	regenBuilding   regenState = "BUILDING"
	regenPersisting regenState = "PERSISTING"
)

// derivationActor is the audit identity stamped on engine-written rows.
const derivationActor = "rate-derivation-engine"

// RateDerivationService rebuilds an owner's derived rates whenever an
// authoritative rate changes. Each pass discards the previous derived set
// for the (owner, effective date) and recomputes it from scratch; nothing
// is patched incrementally, so stale derived edges cannot survive.
type RateDerivationService struct {
	rateRepo portsrepo.RateRepositoryFacade

	// maxPairErrors fails the pass once per-pair errors exceed it.
	// Negative means per-pair errors never fail the pass.
	maxPairErrors int

	// ownerLocks serializes regeneration per owner. Two concurrent passes
	// for one owner would race delete against insert; different owners
	// share nothing and run in parallel.
	ownerLocks sync.Map // ownerID -> *sync.Mutex
}

// RateDerivationOption configures a RateDerivationService.
type RateDerivationOption func(*RateDerivationService)

// WithMaxPairErrors sets the per-pair error tolerance. Negative disables it.
func WithMaxPairErrors(n int) RateDerivationOption {
	return func(s *RateDerivationService) {
		s.maxPairErrors = n
	}
}

// NewRateDerivationService creates a new RateDerivationService.
func NewRateDerivationService(rateRepo portsrepo.RateRepositoryFacade, opts ...RateDerivationOption) *RateDerivationService {
	s := &RateDerivationService{
		rateRepo:      rateRepo,
		maxPairErrors: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Regenerate runs one full derivation pass for the owner and effective date.
//
// The returned result is always non-nil. A non-nil error means the store
// could not be read or written and the derived set may be stale; per-pair
// problems only show up in result.Errors.
func (s *RateDerivationService) Regenerate(ctx context.Context, ownerID string, dateEffective time.Time) (*domain.RegenerationResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	result := &domain.RegenerationResult{}

	if ownerID == "" {
		result.Errors = append(result.Errors, "owner ID is required")
		return result, fmt.Errorf("regenerate: owner ID is required")
	}

	day := effectiveDay(dateEffective)

	mu := s.lockFor(ownerID)
	mu.Lock()
	defer mu.Unlock()

	state := regenBuilding
	authoritative, err := s.rateRepo.ListAuthoritativeRates(ctx, ownerID, day)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, fmt.Errorf("regeneration failed in %s: %w", state, err)
	}

	graph, buildErrs := buildRateGraph(authoritative)
	reverse, reverseErrs := deriveReverseRates(graph)
	transitive, transitiveErrs := deriveTransitiveRates(graph, reverse)
	candidates, mergeErrs := mergeCandidates(reverse, transitive)

	result.Errors = append(result.Errors, buildErrs...)
	result.Errors = append(result.Errors, reverseErrs...)
	result.Errors = append(result.Errors, transitiveErrs...)
	result.Errors = append(result.Errors, mergeErrs...)
	result.ReverseCount = edgeCount(reverse)
	result.TransitiveCount = edgeCount(candidates) - result.ReverseCount

	rows := s.materialize(ownerID, day, candidates, reverse)

	state = regenPersisting
	deleted, err := s.rateRepo.ReplaceDerivedRates(ctx, ownerID, day, rows)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, fmt.Errorf("regeneration failed in %s: %w", state, err)
	}

	result.DerivedCount = len(rows)
	result.Succeeded = s.maxPairErrors < 0 || len(result.Errors) <= s.maxPairErrors

	logger.Info("Derived rates regenerated",
		slog.String("owner_id", ownerID),
		slog.Time("date_effective", day),
		slog.Int64("deleted", deleted),
		slog.Int("derived", result.DerivedCount),
		slog.Int("reverse", result.ReverseCount),
		slog.Int("transitive", result.TransitiveCount),
		slog.Int("pair_errors", len(result.Errors)),
	)

	return result, nil
}

// materialize turns the candidate edge set into insertable DERIVED rows,
// sorted by ordered pair for a deterministic insert order.
func (s *RateDerivationService) materialize(ownerID string, day time.Time, candidates, reverse rateGraph) []domain.Rate {
	now := time.Now()
	rows := make([]domain.Rate, 0, edgeCount(candidates))

	for _, from := range candidates.currencies() {
		edges := candidates[from]
		for _, to := range sortedKeys(edges) {
			note := "transitive derivation"
			if reverse.has(from, to) {
				note = "reverse derivation"
			}
			rows = append(rows, domain.Rate{
				RateID:           uuid.NewString(),
				OwnerID:          ownerID,
				FromCurrencyCode: from,
				ToCurrencyCode:   to,
				Rate:             edges[to],
				DateEffective:    day,
				Source:           domain.RateSourceDerived,
				Note:             note,
				AuditFields: domain.AuditFields{
					CreatedAt:     now,
					CreatedBy:     derivationActor,
					LastUpdatedAt: now,
					LastUpdatedBy: derivationActor,
				},
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].PairKey() < rows[j].PairKey()
	})
	return rows
}

func (s *RateDerivationService) lockFor(ownerID string) *sync.Mutex {
	mu, _ := s.ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// effectiveDay truncates to date granularity in UTC; the zero time means today.
func effectiveDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
