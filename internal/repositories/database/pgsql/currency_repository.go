package pgsql

import (
	"context"
	"errors"
	"strings"

	"github.com/fxledger/fxledger/internal/apperrors"
	"github.com/fxledger/fxledger/internal/core/domain"
	"github.com/fxledger/fxledger/internal/models"
	"github.com/fxledger/fxledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const currencyColumns = `
	currency_code, symbol, name, owner_id,
	created_at, created_by, last_updated_at, last_updated_by`

// PgxCurrencyRepository implements the currency repository ports using pgxpool.
type PgxCurrencyRepository struct {
	BaseRepository
}

// NewPgxCurrencyRepository creates a new PgxCurrencyRepository.
func NewPgxCurrencyRepository(db *pgxpool.Pool) *PgxCurrencyRepository {
	return &PgxCurrencyRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// SaveCurrency inserts a new currency.
func (r *PgxCurrencyRepository) SaveCurrency(ctx context.Context, currency domain.Currency) error {
	modelCurrency := mapping.ToModelCurrency(currency)
	modelCurrency.CurrencyCode = strings.ToUpper(modelCurrency.CurrencyCode)

	_, err := r.Pool.Exec(ctx, `
		INSERT INTO currencies (`+currencyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		modelCurrency.CurrencyCode, modelCurrency.Symbol, modelCurrency.Name, modelCurrency.OwnerID,
		modelCurrency.CreatedAt, modelCurrency.CreatedBy, modelCurrency.LastUpdatedAt, modelCurrency.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperrors.NewDuplicateError("currency " + modelCurrency.CurrencyCode + " already exists")
		}
		return apperrors.NewAppError(500, "failed to save currency", err)
	}
	return nil
}

// FindCurrencyByCode retrieves a currency by code. Shared currencies
// (owner_id IS NULL) are visible to everyone.
func (r *PgxCurrencyRepository) FindCurrencyByCode(ctx context.Context, ownerID, currencyCode string) (*domain.Currency, error) {
	query := `
		SELECT ` + currencyColumns + `
		FROM currencies
		WHERE currency_code = $1 AND (owner_id IS NULL OR owner_id = $2)`

	var m models.Currency
	err := r.Pool.QueryRow(ctx, query, strings.ToUpper(currencyCode), ownerID).Scan(
		&m.CurrencyCode, &m.Symbol, &m.Name, &m.OwnerID,
		&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("currency " + currencyCode + " not found")
		}
		return nil, apperrors.NewAppError(500, "failed to find currency", err)
	}

	domainCurrency := mapping.ToDomainCurrency(m)
	return &domainCurrency, nil
}

// ListCurrencies retrieves all currencies visible to the owner.
func (r *PgxCurrencyRepository) ListCurrencies(ctx context.Context, ownerID string) ([]domain.Currency, error) {
	query := `
		SELECT ` + currencyColumns + `
		FROM currencies
		WHERE owner_id IS NULL OR owner_id = $1
		ORDER BY currency_code`

	rows, err := r.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list currencies", err)
	}
	defer rows.Close()

	var modelCurrencies []models.Currency
	for rows.Next() {
		var m models.Currency
		err := rows.Scan(
			&m.CurrencyCode, &m.Symbol, &m.Name, &m.OwnerID,
			&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan currency", err)
		}
		modelCurrencies = append(modelCurrencies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating currencies", err)
	}

	return mapping.ToDomainCurrencySlice(modelCurrencies), nil
}
