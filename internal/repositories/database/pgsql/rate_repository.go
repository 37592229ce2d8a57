package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxledger/fxledger/internal/apperrors"
	"github.com/fxledger/fxledger/internal/core/domain"
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	"github.com/fxledger/fxledger/internal/models"
	"github.com/fxledger/fxledger/internal/utils/mapping"
	"github.com/fxledger/fxledger/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

const rateColumns = `
	rate_id, owner_id, from_currency_code, to_currency_code, rate, date_effective,
	source, note, created_at, created_by, last_updated_at, last_updated_by`

// PgxRateRepository implements the rate repository ports using pgxpool.
type PgxRateRepository struct {
	BaseRepository
}

// NewPgxRateRepository creates a new PgxRateRepository.
func NewPgxRateRepository(db *pgxpool.Pool) *PgxRateRepository {
	return &PgxRateRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// SaveRate inserts a new authoritative rate.
func (r *PgxRateRepository) SaveRate(ctx context.Context, rate domain.Rate) error {
	fromCurrency := strings.ToUpper(rate.FromCurrencyCode)
	toCurrency := strings.ToUpper(rate.ToCurrencyCode)
	if fromCurrency == toCurrency {
		return apperrors.NewValidationError("from and to currencies cannot be the same")
	}
	if !rate.Source.IsAuthoritative() {
		return apperrors.NewValidationError("only USER or EXTERNAL rates can be saved directly")
	}

	modelRate := mapping.ToModelRate(rate)
	modelRate.FromCurrencyCode = fromCurrency
	modelRate.ToCurrencyCode = toCurrency

	_, err := r.Pool.Exec(ctx, `
		INSERT INTO exchange_rates (`+rateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		modelRate.RateID, modelRate.OwnerID, modelRate.FromCurrencyCode, modelRate.ToCurrencyCode,
		modelRate.Rate, modelRate.DateEffective, modelRate.Source, modelRate.Note,
		modelRate.CreatedAt, modelRate.CreatedBy, modelRate.LastUpdatedAt, modelRate.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperrors.NewDuplicateError(fmt.Sprintf("rate for %s/%s on %s already exists",
				fromCurrency, toCurrency, modelRate.DateEffective.Format("2006-01-02")))
		}
		return apperrors.NewAppError(500, "failed to save rate", err)
	}
	return nil
}

// UpdateRate updates the value and note of an authoritative rate.
// Derived rows are excluded by the statement itself.
func (r *PgxRateRepository) UpdateRate(ctx context.Context, rate domain.Rate) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE exchange_rates
		SET rate = $1, note = $2, last_updated_at = $3, last_updated_by = $4
		WHERE rate_id = $5 AND owner_id = $6 AND source IN ('USER', 'EXTERNAL')`,
		rate.Rate, rate.Note, rate.LastUpdatedAt, rate.LastUpdatedBy,
		rate.RateID, rate.OwnerID,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update rate", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("authoritative rate with ID " + rate.RateID + " not found")
	}
	return nil
}

// DeleteRate removes an authoritative rate by ID.
func (r *PgxRateRepository) DeleteRate(ctx context.Context, ownerID, rateID string) error {
	tag, err := r.Pool.Exec(ctx, `
		DELETE FROM exchange_rates
		WHERE rate_id = $1 AND owner_id = $2 AND source IN ('USER', 'EXTERNAL')`,
		rateID, ownerID,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to delete rate", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("authoritative rate with ID " + rateID + " not found")
	}
	return nil
}

// FindRateByID retrieves a rate by its ID, scoped to the owner.
func (r *PgxRateRepository) FindRateByID(ctx context.Context, ownerID, rateID string) (*domain.Rate, error) {
	query := `SELECT ` + rateColumns + ` FROM exchange_rates WHERE rate_id = $1 AND owner_id = $2`

	modelRate, err := r.scanRateRow(r.Pool.QueryRow(ctx, query, rateID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("rate with ID " + rateID + " not found")
		}
		return nil, apperrors.NewAppError(500, "failed to get rate by ID", err)
	}

	domainRate := mapping.ToDomainRate(*modelRate)
	return &domainRate, nil
}

// ListAuthoritativeRates retrieves all USER and EXTERNAL rates for the owner
// effective on the given date.
func (r *PgxRateRepository) ListAuthoritativeRates(ctx context.Context, ownerID string, dateEffective time.Time) ([]domain.Rate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE owner_id = $1 AND date_effective = $2 AND source IN ('USER', 'EXTERNAL')
		ORDER BY from_currency_code, to_currency_code`

	rows, err := r.Pool.Query(ctx, query, ownerID, dateEffective)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list authoritative rates", err)
	}
	defer rows.Close()

	modelRates, err := r.collectRates(rows)
	if err != nil {
		return nil, err
	}
	return mapping.ToDomainRateSlice(modelRates), nil
}

// ListRates retrieves a filtered, token-paginated page of the owner's rates.
// Pagination is keyset-based over (from, to, rate_id).
func (r *PgxRateRepository) ListRates(ctx context.Context, ownerID string, filter portsrepo.RateListFilter) ([]domain.Rate, string, error) {
	baseQuery := `FROM exchange_rates WHERE owner_id = $1`
	args := []interface{}{ownerID}
	argNum := 2

	if filter.FromCurrencyCode != nil {
		baseQuery += fmt.Sprintf(" AND from_currency_code = $%d", argNum)
		args = append(args, strings.ToUpper(*filter.FromCurrencyCode))
		argNum++
	}
	if filter.ToCurrencyCode != nil {
		baseQuery += fmt.Sprintf(" AND to_currency_code = $%d", argNum)
		args = append(args, strings.ToUpper(*filter.ToCurrencyCode))
		argNum++
	}
	if filter.DateEffective != nil {
		baseQuery += fmt.Sprintf(" AND date_effective = $%d", argNum)
		args = append(args, filter.DateEffective.Truncate(24*time.Hour))
		argNum++
	}
	if filter.Source != nil {
		baseQuery += fmt.Sprintf(" AND source = $%d", argNum)
		args = append(args, string(*filter.Source))
		argNum++
	}

	if filter.NextToken != "" {
		fields, err := pagination.DecodeMultiFieldToken(filter.NextToken)
		if err != nil || len(fields) != 3 {
			return nil, "", apperrors.NewValidationError("invalid pagination token")
		}
		baseQuery += fmt.Sprintf(" AND (from_currency_code, to_currency_code, rate_id) > ($%d, $%d, $%d)", argNum, argNum+1, argNum+2)
		args = append(args, fields[0], fields[1], fields[2])
		argNum += 3
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + rateColumns + ` ` + baseQuery +
		` ORDER BY from_currency_code, to_currency_code, rate_id` +
		fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit+1)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", apperrors.NewAppError(500, "failed to list rates", err)
	}
	defer rows.Close()

	modelRates, err := r.collectRates(rows)
	if err != nil {
		return nil, "", err
	}

	nextToken := ""
	if len(modelRates) > limit {
		modelRates = modelRates[:limit]
		last := modelRates[limit-1]
		nextToken = pagination.EncodeMultiFieldToken(last.FromCurrencyCode, last.ToCurrencyCode, last.RateID)
	}

	return mapping.ToDomainRateSlice(modelRates), nextToken, nil
}

// FindBestRate retrieves the rate for a pair on a date, preferring
// authoritative rows over derived ones.
func (r *PgxRateRepository) FindBestRate(ctx context.Context, ownerID, fromCurrencyCode, toCurrencyCode string, dateEffective time.Time) (*domain.Rate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE owner_id = $1 AND from_currency_code = $2 AND to_currency_code = $3 AND date_effective = $4
		ORDER BY CASE WHEN source IN ('USER', 'EXTERNAL') THEN 0 ELSE 1 END
		LIMIT 1`

	modelRate, err := r.scanRateRow(r.Pool.QueryRow(ctx, query,
		ownerID, strings.ToUpper(fromCurrencyCode), strings.ToUpper(toCurrencyCode), dateEffective))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("no rate found for currency pair " + fromCurrencyCode + " to " + toCurrencyCode)
		}
		return nil, apperrors.NewAppError(500, "failed to find rate", err)
	}

	domainRate := mapping.ToDomainRate(*modelRate)
	return &domainRate, nil
}

// ReplaceDerivedRates atomically swaps the owner's derived rows for one
// effective date: delete-all then bulk-insert, in a single transaction.
// The source column is forced to DERIVED regardless of the input rows.
func (r *PgxRateRepository) ReplaceDerivedRates(ctx context.Context, ownerID string, dateEffective time.Time, candidates []domain.Rate) (int64, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM exchange_rates
		WHERE owner_id = $1 AND date_effective = $2 AND source = 'DERIVED'`,
		ownerID, dateEffective,
	)
	if err != nil {
		_ = r.Rollback(ctx, tx)
		return 0, apperrors.NewAppError(500, "failed to delete derived rates", err)
	}
	deleted := tag.RowsAffected()

	if len(candidates) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"exchange_rates"},
			[]string{
				"rate_id", "owner_id", "from_currency_code", "to_currency_code", "rate",
				"date_effective", "source", "note", "created_at", "created_by",
				"last_updated_at", "last_updated_by",
			},
			pgx.CopyFromSlice(len(candidates), func(i int) ([]interface{}, error) {
				c := candidates[i]
				return []interface{}{
					c.RateID, ownerID, strings.ToUpper(c.FromCurrencyCode), strings.ToUpper(c.ToCurrencyCode), c.Rate,
					dateEffective, string(domain.RateSourceDerived), c.Note, c.CreatedAt, c.CreatedBy,
					c.LastUpdatedAt, c.LastUpdatedBy,
				}, nil
			}),
		)
		if err != nil {
			_ = r.Rollback(ctx, tx)
			return 0, apperrors.NewAppError(500, "failed to insert derived rates", err)
		}
	}

	if err := r.Commit(ctx, tx); err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteDerivedRates removes DERIVED rows for the owner. A nil date clears
// them across all dates.
func (r *PgxRateRepository) DeleteDerivedRates(ctx context.Context, ownerID string, dateEffective *time.Time) (int64, error) {
	query := `DELETE FROM exchange_rates WHERE owner_id = $1 AND source = 'DERIVED'`
	args := []interface{}{ownerID}
	if dateEffective != nil {
		query += ` AND date_effective = $2`
		args = append(args, *dateEffective)
	}

	tag, err := r.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewAppError(500, "failed to delete derived rates", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgxRateRepository) scanRateRow(row pgx.Row) (*models.Rate, error) {
	var m models.Rate
	err := row.Scan(
		&m.RateID, &m.OwnerID, &m.FromCurrencyCode, &m.ToCurrencyCode,
		&m.Rate, &m.DateEffective, &m.Source, &m.Note,
		&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgxRateRepository) collectRates(rows pgx.Rows) ([]models.Rate, error) {
	var modelRates []models.Rate
	for rows.Next() {
		var m models.Rate
		err := rows.Scan(
			&m.RateID, &m.OwnerID, &m.FromCurrencyCode, &m.ToCurrencyCode,
			&m.Rate, &m.DateEffective, &m.Source, &m.Note,
			&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan rate", err)
		}
		modelRates = append(modelRates, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating rates", err)
	}
	return modelRates, nil
}
