package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/bankledger/internal/domain"
)

// BankRepository implements usecase.BankDirectory on the banks table.
type BankRepository struct {
	db querier
}

// NewBankRepository creates a new BankRepository.
func NewBankRepository(pool *pgxpool.Pool) *BankRepository {
	return &BankRepository{db: pool}
}

func newBankRepository(db querier) *BankRepository {
	return &BankRepository{db: db}
}

// List returns every bank ordered by name.
func (r *BankRepository) List(ctx context.Context) ([]*domain.Bank, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM banks ORDER BY name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	banks := make([]*domain.Bank, 0)
	for rows.Next() {
		var b domain.Bank
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		banks = append(banks, &b)
	}
	return banks, rows.Err()
}

// GetByID retrieves a bank by ID.
func (r *BankRepository) GetByID(ctx context.Context, id string) (*domain.Bank, error) {
	var b domain.Bank
	err := r.db.QueryRow(ctx, `SELECT id, name FROM banks WHERE id = $1`, id).Scan(&b.ID, &b.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBankNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

// Upsert creates or renames a bank. Used to seed the directory.
func (r *BankRepository) Upsert(ctx context.Context, bank *domain.Bank) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO banks (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, bank.ID, bank.Name)
	return mapError(err)
}
