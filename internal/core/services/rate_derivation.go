package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var decimalOne = decimal.NewFromInt(1)

// deriveReverseRates emits the inverse edge for every authoritative edge
// whose opposite direction has no authoritative rate. Authoritative data is
// never overridden: B->A is only derived when the owner has not entered it.
//
// Iteration is over sorted currency codes so repeated passes emit identical
// candidate sets.
func deriveReverseRates(authoritative rateGraph) (rateGraph, []string) {
	reverse := make(rateGraph)
	var errs []string

	for _, from := range authoritative.currencies() {
		edges := authoritative[from]
		for _, to := range sortedKeys(edges) {
			if authoritative.has(to, from) {
				continue
			}
			value := edges[to]
			if !value.IsPositive() {
				errs = append(errs, fmt.Sprintf("cannot invert %s/%s: non-positive rate %s", from, to, value))
				continue
			}
			if reverse[to] == nil {
				reverse[to] = make(map[string]decimal.Decimal)
			}
			reverse[to][from] = decimalOne.Div(value)
		}
	}

	return reverse, errs
}

// deriveTransitiveRates fills ordered pairs that neither the authoritative
// set nor the reverse candidates cover, by composing through a single shared
// intermediate currency. Only 2-hop composition is performed.
//
// When several intermediates connect the same pair, the lexicographically
// smallest currency code wins. The choice is arbitrary but must be stable,
// otherwise regeneration would not be idempotent.
func deriveTransitiveRates(authoritative, reverse rateGraph) (rateGraph, []string) {
	combined := authoritative.union(reverse)
	codes := combined.currencies()
	transitive := make(rateGraph)
	var errs []string

	for _, from := range codes {
		for _, to := range codes {
			if from == to || combined.has(from, to) {
				continue
			}
			for _, via := range codes {
				if via == from || via == to {
					continue
				}
				first, ok := combined[from][via]
				if !ok {
					continue
				}
				second, ok := combined[via][to]
				if !ok {
					continue
				}
				value := first.Mul(second)
				if !value.IsPositive() {
					errs = append(errs, fmt.Sprintf("cannot compose %s/%s via %s: non-positive rate %s", from, to, via, value))
					break
				}
				if transitive[from] == nil {
					transitive[from] = make(map[string]decimal.Decimal)
				}
				transitive[from][to] = value
				break
			}
		}
	}

	return transitive, errs
}

// mergeCandidates combines the reverse and transitive candidate sets into
// the final set of derived edges. The derivers' preconditions make their
// outputs disjoint; should a pair appear in both anyway, the reverse value
// wins since it involves less composition.
func mergeCandidates(reverse, transitive rateGraph) (rateGraph, []string) {
	var errs []string
	merged := make(rateGraph)

	for from, edges := range transitive {
		merged[from] = make(map[string]decimal.Decimal, len(edges))
		for to, v := range edges {
			merged[from][to] = v
		}
	}
	for from, edges := range reverse {
		if merged[from] == nil {
			merged[from] = make(map[string]decimal.Decimal, len(edges))
		}
		for to, v := range edges {
			if _, clash := transitive[from][to]; clash {
				errs = append(errs, fmt.Sprintf("conflicting candidates for %s/%s, keeping reverse derivation", from, to))
			}
			merged[from][to] = v
		}
	}

	return merged, errs
}

// edgeCount returns the total number of edges in the graph.
func edgeCount(g rateGraph) int {
	n := 0
	for _, edges := range g {
		n += len(edges)
	}
	return n
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
