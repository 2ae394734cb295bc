package usecase

import (
	"context"
	"time"

	"github.com/iho/bankledger/internal/domain"
)

// QueryUseCase serves the read projections dashboards consume. Every
// listing is scoped to what the caller may see.
type QueryUseCase struct {
	accountRepo AccountRepository
	txRepo      TransactionRepository
	banks       BankDirectory
}

// NewQueryUseCase creates a new QueryUseCase.
func NewQueryUseCase(accountRepo AccountRepository, txRepo TransactionRepository, banks BankDirectory) *QueryUseCase {
	return &QueryUseCase{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		banks:       banks,
	}
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	OwnerID string
	BankID  string
	Status  domain.AccountStatus
	Limit   int
	Offset  int
}

// ListTransactionsInput represents input for listing transactions.
type ListTransactionsInput struct {
	AccountID string
	From      *time.Time
	To        *time.Time
	Type      domain.TransactionType
	Status    domain.TransactionStatus
	Kind      domain.FilterKind
	Limit     int
	Offset    int
}

// Dashboard is the combined view of accounts and their transactions.
type Dashboard struct {
	Accounts     []*domain.Account
	Transactions []*domain.Transaction
}

// ListBanks returns the bank directory.
func (uc *QueryUseCase) ListBanks(ctx context.Context) ([]*domain.Bank, error) {
	return uc.banks.List(ctx)
}

// ListAccounts lists accounts by owner and status. Customers only see their
// own accounts and managers only those of their bank.
func (uc *QueryUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.ErrInvalidFilter
	}

	filter := domain.AccountFilter{
		OwnerID: input.OwnerID,
		BankID:  input.BankID,
		Status:  input.Status,
	}
	filter.Limit, filter.Offset = domain.ValidatePagination(input.Limit, input.Offset)

	if id, ok := domain.IdentityFromContext(ctx); ok {
		if id.IsManager() {
			if id.BankID != "" {
				filter.BankID = id.BankID
			}
		} else {
			filter.OwnerID = id.UserID
		}
	}

	return uc.accountRepo.List(ctx, filter)
}

// GetTransaction returns a single transaction the caller may see.
func (uc *QueryUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := uc.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account, err := uc.accountRepo.GetByID(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}
	return txn, nil
}

// GetTransfer returns both legs of a transfer.
func (uc *QueryUseCase) GetTransfer(ctx context.Context, transferID string) (*domain.TransferPair, error) {
	legs, err := uc.txRepo.GetByTransferID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, domain.ErrTransferNotFound
	}
	pair, err := domain.PairFromLegs(legs)
	if err != nil {
		return nil, err
	}

	// Either side of a transfer may look at it.
	var lastErr error
	for _, leg := range pair.Legs() {
		account, err := uc.accountRepo.GetByID(ctx, leg.AccountID)
		if err != nil {
			return nil, err
		}
		if lastErr = authorize(ctx, account); lastErr == nil {
			return pair, nil
		}
	}
	return nil, lastErr
}

// ListTransactions lists transactions by account, date range, type, status
// and kind.
func (uc *QueryUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	if input.Type != "" && !input.Type.IsValid() {
		return nil, domain.ErrInvalidFilter
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.ErrInvalidFilter
	}
	if !input.Kind.IsValid() {
		return nil, domain.ErrInvalidFilter
	}
	if err := domain.ValidateDateRange(input.From, input.To); err != nil {
		return nil, err
	}

	filter := domain.TransactionFilter{
		Type:   input.Type,
		Status: input.Status,
		Kind:   input.Kind,
		From:   input.From,
		To:     input.To,
	}
	filter.Limit, filter.Offset = domain.ValidatePagination(input.Limit, input.Offset)

	if input.AccountID != "" {
		account, err := uc.accountRepo.GetByID(ctx, input.AccountID)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, account); err != nil {
			return nil, err
		}
		filter.AccountIDs = []string{account.ID}
		return uc.txRepo.List(ctx, filter)
	}

	id, ok := domain.IdentityFromContext(ctx)
	switch {
	case !ok:
	case id.IsManager():
		filter.BankID = id.BankID
	default:
		ids, err := uc.ownedAccountIDs(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []*domain.Transaction{}, nil
		}
		filter.AccountIDs = ids
	}

	return uc.txRepo.List(ctx, filter)
}

// Dashboard returns the caller's accounts and the transactions on them.
func (uc *QueryUseCase) Dashboard(ctx context.Context, limit int) (*Dashboard, error) {
	if _, ok := domain.IdentityFromContext(ctx); !ok {
		return nil, domain.ErrUnauthorized
	}

	accounts, err := uc.ListAccounts(ctx, ListAccountsInput{Limit: limit})
	if err != nil {
		return nil, err
	}
	txns, err := uc.ListTransactions(ctx, ListTransactionsInput{Limit: limit})
	if err != nil {
		return nil, err
	}

	return &Dashboard{Accounts: accounts, Transactions: txns}, nil
}

func (uc *QueryUseCase) ownedAccountIDs(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	offset := 0
	for {
		page, err := uc.accountRepo.List(ctx, domain.AccountFilter{OwnerID: ownerID, Limit: 500, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, a := range page {
			ids = append(ids, a.ID)
		}
		if len(page) < 500 {
			return ids, nil
		}
		offset += len(page)
	}
}
