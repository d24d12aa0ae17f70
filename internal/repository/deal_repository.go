package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zhirschtritt/deals/internal/domain"
)

// SQLSTATE for unique_violation. The only caller-writable unique column on
// deals is email.
const pgUniqueViolation = "23505"

var _ domain.DealRepository = new(DBDealRepository)

type DBDealRepository struct {
	db *sql.DB
}

func NewDBDealRepository(db *sql.DB) *DBDealRepository {
	return &DBDealRepository{
		db: db,
	}
}

func (r *DBDealRepository) Create(ctx context.Context, input domain.DealInput) (*domain.Deal, error) {
	query := `
		INSERT INTO deals (name, email, amount)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, toRow(input).writeArgs()...).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCreationFailed
		}
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	if id <= 0 {
		return nil, domain.ErrCreationFailed
	}

	return r.GetByID(ctx, id)
}

func (r *DBDealRepository) GetByID(ctx context.Context, id int64) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	var row dealRow
	err := r.db.QueryRowContext(ctx, query, id).Scan(row.scanDest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to get deal by ID: %w", err)
	}

	return fromRow(row), nil
}

func (r *DBDealRepository) List(ctx context.Context) ([]*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]*domain.Deal, 0)
	for rows.Next() {
		var row dealRow
		if err := rows.Scan(row.scanDest()...); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, fromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during deals iteration: %w", err)
	}

	return deals, nil
}

// Update replaces name, email and amount. An input without an amount clears
// the stored one.
func (r *DBDealRepository) Update(ctx context.Context, id int64, input domain.DealInput) (*domain.Deal, error) {
	query := `
		UPDATE deals
		SET name = $1, email = $2, amount = $3
		WHERE id = $4
	`

	args := append(toRow(input).writeArgs(), id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *DBDealRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM deals WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
