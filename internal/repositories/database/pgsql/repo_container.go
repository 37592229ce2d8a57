package pgsql

import (
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires all pgx repositories into a provider struct.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CurrencyRepo: NewPgxCurrencyRepository(dbPool),
		RateRepo:     NewPgxRateRepository(dbPool),
		UserRepo:     NewPgxUserRepository(dbPool),
	}
}
