package mapping

import (
	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/fxledger/fxledger/internal/models"
)

// ToModelRate converts a domain Rate to a model Rate
func ToModelRate(d domain.Rate) models.Rate {
	return models.Rate{
		RateID:           d.RateID,
		OwnerID:          d.OwnerID,
		FromCurrencyCode: d.FromCurrencyCode,
		ToCurrencyCode:   d.ToCurrencyCode,
		Rate:             d.Rate,
		DateEffective:    d.DateEffective,
		Source:           string(d.Source),
		Note:             d.Note,
		AuditFields:      ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainRate converts a model Rate to a domain Rate
func ToDomainRate(m models.Rate) domain.Rate {
	return domain.Rate{
		RateID:           m.RateID,
		OwnerID:          m.OwnerID,
		FromCurrencyCode: m.FromCurrencyCode,
		ToCurrencyCode:   m.ToCurrencyCode,
		Rate:             m.Rate,
		DateEffective:    m.DateEffective,
		Source:           domain.RateSource(m.Source),
		Note:             m.Note,
		AuditFields:      ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainRateSlice converts a slice of model Rates to a slice of domain Rates
func ToDomainRateSlice(ms []models.Rate) []domain.Rate {
	ds := make([]domain.Rate, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainRate(m)
	}
	return ds
}
