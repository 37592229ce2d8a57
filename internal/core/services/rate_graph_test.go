package services

import (
	"testing"
	"time"

	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRate(from, to, value string) domain.Rate {
	return domain.Rate{
		RateID:           from + to,
		FromCurrencyCode: from,
		ToCurrencyCode:   to,
		Rate:             decimal.RequireFromString(value),
		Source:           domain.RateSourceUser,
	}
}

func TestBuildRateGraph_SkipsInvalidRows(t *testing.T) {
	derived := authRate("EUR", "USD", "1.08")
	derived.Source = domain.RateSourceDerived
	selfEdge := authRate("USD", "USD", "1")
	zero := authRate("GBP", "USD", "0")

	graph, errs := buildRateGraph([]domain.Rate{
		derived,
		selfEdge,
		zero,
		authRate("CNY", "USD", "0.14"),
	})

	assert.Len(t, errs, 3)
	assert.Equal(t, 1, edgeCount(graph))
	assert.True(t, graph.has("CNY", "USD"))
}

func TestBuildRateGraph_DuplicateKeepsMostRecent(t *testing.T) {
	older := authRate("EUR", "USD", "1.05")
	older.LastUpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := authRate("EUR", "USD", "1.10")
	newer.LastUpdatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	graph, errs := buildRateGraph([]domain.Rate{newer, older})

	assert.Len(t, errs, 1)
	require.True(t, graph.has("EUR", "USD"))
	assert.True(t, graph["EUR"]["USD"].Equal(newer.Rate))
}

func TestDeriveReverseRates_SkipsAuthoritativeOpposite(t *testing.T) {
	graph, errs := buildRateGraph([]domain.Rate{
		authRate("EUR", "USD", "1.08"),
		authRate("USD", "EUR", "0.93"),
		authRate("CNY", "USD", "0.14"),
	})
	require.Empty(t, errs)

	reverse, errs := deriveReverseRates(graph)

	assert.Empty(t, errs)
	assert.Equal(t, 1, edgeCount(reverse))
	require.True(t, reverse.has("USD", "CNY"))
	expected := decimalOne.Div(decimal.RequireFromString("0.14"))
	assert.True(t, reverse["USD"]["CNY"].Equal(expected))
}

func TestDeriveTransitiveRates_OnlyTwoHops(t *testing.T) {
	// A chain of three edges: AUD -> EUR -> JPY -> KRW. AUD/KRW needs three
	// hops and must stay underivable.
	graph, errs := buildRateGraph([]domain.Rate{
		authRate("AUD", "EUR", "0.6"),
		authRate("EUR", "JPY", "160"),
		authRate("JPY", "KRW", "9"),
	})
	require.Empty(t, errs)

	reverse, _ := deriveReverseRates(graph)
	transitive, errs := deriveTransitiveRates(graph, reverse)
	require.Empty(t, errs)

	assert.True(t, transitive.has("AUD", "JPY"))
	assert.True(t, transitive.has("EUR", "KRW"))
	assert.False(t, transitive.has("AUD", "KRW"))
}

func TestMergeCandidates_ReverseWins(t *testing.T) {
	reverse := rateGraph{
		"USD": {"EUR": decimal.RequireFromString("0.93")},
	}
	transitive := rateGraph{
		"USD": {"EUR": decimal.RequireFromString("0.91")},
		"CHF": {"JPY": decimal.RequireFromString("170")},
	}

	merged, errs := mergeCandidates(reverse, transitive)

	assert.Len(t, errs, 1)
	assert.Equal(t, 2, edgeCount(merged))
	assert.True(t, merged["USD"]["EUR"].Equal(decimal.RequireFromString("0.93")))
	assert.True(t, merged.has("CHF", "JPY"))
}

func TestEffectiveDay(t *testing.T) {
	// 23:59 IST is still the 15th in UTC.
	late := time.Date(2024, 3, 15, 23, 59, 59, 0, time.FixedZone("IST", 5*3600+1800))
	day := effectiveDay(late)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, time.UTC, day.Location())

	assert.False(t, effectiveDay(time.Time{}).IsZero())
}
