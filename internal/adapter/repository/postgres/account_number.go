package postgres

import (
	"context"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// SequenceNumberGenerator hands out account numbers from account_number_seq.
// Sequence values are never reused, so a rolled back approval leaves a gap
// but never a duplicate.
type SequenceNumberGenerator struct{}

// NewSequenceNumberGenerator creates a new SequenceNumberGenerator.
func NewSequenceNumberGenerator() *SequenceNumberGenerator {
	return &SequenceNumberGenerator{}
}

// Next draws the next number inside tx.
func (g *SequenceNumberGenerator) Next(ctx context.Context, tx usecase.Transaction) (string, error) {
	var seq int64
	if err := pgxTx(tx).QueryRow(ctx, `SELECT nextval('account_number_seq')`).Scan(&seq); err != nil {
		return "", mapError(err)
	}
	return domain.FormatAccountNumber(seq)
}
