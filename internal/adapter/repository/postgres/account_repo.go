package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const accountColumns = `id, owner_id, bank_id, holder_name, account_number, balance,
	status, version, decided_by, decided_at, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: pool}
}

func newAccountRepository(db querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a pending account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := pgxTx(tx).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID,
		account.OwnerID,
		account.BankID,
		account.HolderName,
		account.AccountNumber,
		decimalToNumeric(account.Balance),
		string(account.Status),
		account.Version,
		account.DecidedBy,
		timestamptz(account.DecidedAt),
		account.CreatedAt,
		account.UpdatedAt,
	)
	return mapError(err)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByNumber retrieves an account by its account number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	return scanAccount(row)
}

// GetByIDForUpdate retrieves an account by ID with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	row := pgxTx(tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

// GetByIDsForUpdate locks accounts in id order so concurrent callers queue
// up the same way.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	rows, err := pgxTx(tx).Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	return collectAccounts(rows)
}

// ApplyBalanceDelta changes the balance in one guarded statement. When no
// row matches, the account either does not exist or would go negative.
func (r *AccountRepository) ApplyBalanceDelta(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time) (*domain.Account, error) {
	q := pgxTx(tx)
	row := q.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND status = 'approved' AND balance + $2 >= 0
		RETURNING `+accountColumns,
		id, decimalToNumeric(delta), updatedAt)

	account, err := scanAccount(row)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return account, err
	}

	var status string
	err = q.QueryRow(ctx, `SELECT status FROM accounts WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, domain.ErrAccountNotFound
	case err != nil:
		return nil, mapError(err)
	case status != string(domain.AccountStatusApproved):
		return nil, domain.ErrAccountNotApproved
	default:
		return nil, domain.ErrInsufficientFunds
	}
}

// UpdateStatus writes the decision on an account.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	tag, err := pgxTx(tx).Exec(ctx, `
		UPDATE accounts
		SET status = $2, account_number = $3, decided_by = $4, decided_at = $5,
		    version = version + 1, updated_at = $6
		WHERE id = $1`,
		account.ID,
		string(account.Status),
		account.AccountNumber,
		account.DecidedBy,
		timestamptz(account.DecidedAt),
		account.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// List lists accounts matching filter, newest first.
func (r *AccountRepository) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.OwnerID != "" {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.BankID != "" {
		add("bank_id = $%d", filter.BankID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectAccounts(rows)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a         domain.Account
		balance   pgtype.Numeric
		status    string
		decidedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.BankID,
		&a.HolderName,
		&a.AccountNumber,
		&balance,
		&status,
		&a.Version,
		&a.DecidedBy,
		&decidedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, mapError(err)
	}

	a.Balance = numericToDecimal(balance)
	a.Status = domain.AccountStatus(status)
	a.DecidedAt = timePtr(decidedAt)
	return &a, nil
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
