package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// rateGraph is the in-memory view of one owner's rates for a single
// effective date: fromCurrencyCode -> toCurrencyCode -> rate.
type rateGraph map[string]map[string]decimal.Decimal

// buildRateGraph loads authoritative rates into a rateGraph. Rows whose
// source is not authoritative, whose value is not positive, or whose
// currencies coincide are skipped and reported; they never abort the build.
//
// The store's uniqueness constraint should prevent two rows for the same
// ordered pair on one date. If duplicates show up anyway, the most recently
// updated row wins.
func buildRateGraph(rates []domain.Rate) (rateGraph, []string) {
	graph := make(rateGraph)
	lastUpdated := make(map[string]time.Time)
	var errs []string

	for _, r := range rates {
		if !r.Source.IsAuthoritative() {
			errs = append(errs, fmt.Sprintf("rate %s: source %s is not authoritative, skipped", r.RateID, r.Source))
			continue
		}
		if r.FromCurrencyCode == r.ToCurrencyCode {
			errs = append(errs, fmt.Sprintf("rate %s: %s to itself, skipped", r.RateID, r.FromCurrencyCode))
			continue
		}
		if !r.Rate.IsPositive() {
			errs = append(errs, fmt.Sprintf("rate %s (%s): non-positive value %s, skipped", r.RateID, r.PairKey(), r.Rate))
			continue
		}

		key := r.PairKey()
		if prev, ok := lastUpdated[key]; ok {
			errs = append(errs, fmt.Sprintf("duplicate authoritative rate for %s, keeping most recent", key))
			if !r.LastUpdatedAt.After(prev) {
				continue
			}
		}
		lastUpdated[key] = r.LastUpdatedAt

		if graph[r.FromCurrencyCode] == nil {
			graph[r.FromCurrencyCode] = make(map[string]decimal.Decimal)
		}
		graph[r.FromCurrencyCode][r.ToCurrencyCode] = r.Rate
	}

	return graph, errs
}

// has reports whether the graph contains an edge from -> to.
func (g rateGraph) has(from, to string) bool {
	_, ok := g[from][to]
	return ok
}

// currencies returns every currency code appearing in the graph, sorted.
// Sorted order keeps derivation deterministic across passes.
func (g rateGraph) currencies() []string {
	seen := make(map[string]struct{})
	for from, edges := range g {
		seen[from] = struct{}{}
		for to := range edges {
			seen[to] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// union overlays other on top of g into a new graph. Edges in g win.
func (g rateGraph) union(other rateGraph) rateGraph {
	merged := make(rateGraph, len(g)+len(other))
	for from, edges := range other {
		merged[from] = make(map[string]decimal.Decimal, len(edges))
		for to, v := range edges {
			merged[from][to] = v
		}
	}
	for from, edges := range g {
		if merged[from] == nil {
			merged[from] = make(map[string]decimal.Decimal, len(edges))
		}
		for to, v := range edges {
			merged[from][to] = v
		}
	}
	return merged
}
