package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const transactionColumns = `t.id, t.account_id, t.type, t.amount, t.status, t.transfer_id,
	t.reject_reason, t.fault, t.fault_reason, t.decided_by, t.decided_at, t.created_at, t.updated_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db querier
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: pool}
}

func newTransactionRepository(db querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const insertTransaction = `
	INSERT INTO transactions (id, account_id, type, amount, status, transfer_id,
		reject_reason, fault, fault_reason, decided_by, decided_at, created_at, updated_at)
	VALUES `

func transactionArgs(t *domain.Transaction) []any {
	return []any{
		t.ID,
		t.AccountID,
		string(t.Type),
		decimalToNumeric(t.Amount),
		string(t.Status),
		t.TransferID,
		string(t.RejectReason),
		t.Fault,
		t.FaultReason,
		t.DecidedBy,
		timestamptz(t.DecidedAt),
		t.CreatedAt,
		t.UpdatedAt,
	}
}

func placeholders(offset, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", offset+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Create inserts a plain transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	args := transactionArgs(txn)
	_, err := pgxTx(tx).Exec(ctx, insertTransaction+placeholders(0, len(args)), args...)
	return mapError(err)
}

// CreatePair inserts both legs of a transfer in a single statement.
func (r *TransactionRepository) CreatePair(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	debit := transactionArgs(pair.Debit)
	credit := transactionArgs(pair.Credit)
	query := insertTransaction + placeholders(0, len(debit)) + ", " + placeholders(len(debit), len(credit))
	_, err := pgxTx(tx).Exec(ctx, query, append(debit, credit...)...)
	return mapError(err)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, id)
	return scanTransaction(row)
}

// GetByIDForUpdate retrieves a transaction by ID with a FOR UPDATE lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	row := pgxTx(tx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

// GetByTransferID returns the legs sharing transferID.
func (r *TransactionRepository) GetByTransferID(ctx context.Context, transferID string) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.transfer_id = $1
		ORDER BY t.id`, transferID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectTransactions(rows)
}

// GetByTransferIDForUpdate locks both legs of a transfer.
func (r *TransactionRepository) GetByTransferIDForUpdate(ctx context.Context, tx usecase.Transaction, transferID string) ([]*domain.Transaction, error) {
	rows, err := pgxTx(tx).Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.transfer_id = $1
		ORDER BY t.id
		FOR UPDATE`, transferID)
	if err != nil {
		return nil, mapError(err)
	}
	legs, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, domain.ErrTransferNotFound
	}
	return legs, nil
}

const updateDecision = `
	UPDATE transactions
	SET status = $2, reject_reason = $3, fault = $4, fault_reason = $5,
	    decided_by = $6, decided_at = $7, updated_at = $8
	WHERE id = $1`

func decisionArgs(t *domain.Transaction) []any {
	return []any{
		t.ID,
		string(t.Status),
		string(t.RejectReason),
		t.Fault,
		t.FaultReason,
		t.DecidedBy,
		timestamptz(t.DecidedAt),
		t.UpdatedAt,
	}
}

// UpdateStatus writes the decision on a plain transaction.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	tag, err := pgxTx(tx).Exec(ctx, updateDecision, decisionArgs(txn)...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// UpdatePairStatus writes both legs in one statement.
func (r *TransactionRepository) UpdatePairStatus(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	tag, err := pgxTx(tx).Exec(ctx, `
		UPDATE transactions t
		SET status = v.status, reject_reason = v.reject_reason, fault = v.fault,
		    fault_reason = v.fault_reason, decided_by = v.decided_by,
		    decided_at = v.decided_at, updated_at = v.updated_at
		FROM (VALUES
			($1::text, $2::text, $3::text, $4::boolean, $5::text, $6::text, $7::timestamptz, $8::timestamptz),
			($9, $10, $11, $12, $13, $14, $15, $16)
		) AS v(id, status, reject_reason, fault, fault_reason, decided_by, decided_at, updated_at)
		WHERE t.id = v.id AND t.transfer_id = $17`,
		append(append(decisionArgs(pair.Debit), decisionArgs(pair.Credit)...), pair.ID)...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() != 2 {
		return fmt.Errorf("%w: updated %d legs of transfer %s", domain.ErrInconsistentTransferState, tag.RowsAffected(), pair.ID)
	}
	return nil
}

// SetPairFault writes the fault flag of both legs.
func (r *TransactionRepository) SetPairFault(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	tag, err := pgxTx(tx).Exec(ctx, `
		UPDATE transactions
		SET fault = $2, fault_reason = $3, updated_at = $4
		WHERE transfer_id = $1 AND status = 'pending'`,
		pair.ID, pair.Debit.Fault, pair.Debit.FaultReason, pair.Debit.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() != 2 {
		return fmt.Errorf("%w: flagged %d legs of transfer %s", domain.ErrInconsistentTransferState, tag.RowsAffected(), pair.ID)
	}
	return nil
}

// List lists transactions matching filter, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	from := `FROM transactions t`
	if len(filter.AccountIDs) > 0 {
		add("t.account_id = ANY($%d)", filter.AccountIDs)
	}
	if filter.BankID != "" {
		from += ` JOIN accounts a ON a.id = t.account_id`
		add("a.bank_id = $%d", filter.BankID)
	}
	if filter.Type != "" {
		add("t.type = $%d", string(filter.Type))
	}
	if filter.Status != "" {
		add("t.status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("t.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("t.created_at <= $%d", *filter.To)
	}
	switch filter.Kind {
	case domain.FilterKindPlain:
		where = append(where, "t.transfer_id IS NULL")
	case domain.FilterKindTransfer:
		where = append(where, "t.transfer_id IS NOT NULL")
	case domain.FilterKindTransferSent:
		where = append(where, "t.transfer_id IS NOT NULL", "t.type = 'withdrawal'")
	case domain.FilterKindTransferReceived:
		where = append(where, "t.transfer_id IS NOT NULL", "t.type = 'deposit'")
	}

	query := `SELECT ` + transactionColumns + ` ` + from
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY t.created_at DESC, t.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectTransactions(rows)
}

// ListFaulted lists pending legs carrying a fault flag.
func (r *TransactionRepository) ListFaulted(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.fault AND t.status = 'pending'
		ORDER BY t.updated_at, t.transfer_id, t.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	return collectTransactions(rows)
}

// CountFaultedTransfers counts transfers held with a fault flag.
func (r *TransactionRepository) CountFaultedTransfers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT transfer_id) FROM transactions
		WHERE fault AND status = 'pending'`).Scan(&n)
	return n, mapError(err)
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t            domain.Transaction
		amount       pgtype.Numeric
		txType       string
		status       string
		rejectReason string
		decidedAt    pgtype.Timestamptz
	)
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&txType,
		&amount,
		&status,
		&t.TransferID,
		&rejectReason,
		&t.Fault,
		&t.FaultReason,
		&t.DecidedBy,
		&decidedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, mapError(err)
	}

	t.Type = domain.TransactionType(txType)
	t.Amount = numericToDecimal(amount)
	t.Status = domain.TransactionStatus(status)
	t.RejectReason = domain.RejectReason(rejectReason)
	t.DecidedAt = timePtr(decidedAt)
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	txns := make([]*domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
