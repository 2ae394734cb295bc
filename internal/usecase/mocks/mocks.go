package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// MockTransaction records undo steps so Rollback restores the in-memory
// repositories the way a database rollback would.
type MockTransaction struct {
	mu         sync.Mutex
	parent     *MockTransaction
	undo       []func()
	Committed  bool
	RolledBack bool

	CommitFunc    func(ctx context.Context) error
	RollbackFunc  func(ctx context.Context) error
	SavepointFunc func(ctx context.Context) (usecase.Transaction, error)
}

// OnRollback registers fn to run if the transaction is rolled back.
func (m *MockTransaction) OnRollback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, fn)
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Committed || m.RolledBack {
		return fmt.Errorf("tx is closed")
	}
	m.Committed = true
	if m.parent != nil {
		for _, fn := range m.undo {
			m.parent.OnRollback(fn)
		}
	}
	m.undo = nil
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Committed || m.RolledBack {
		return nil
	}
	m.RolledBack = true
	for i := len(m.undo) - 1; i >= 0; i-- {
		m.undo[i]()
	}
	m.undo = nil
	return nil
}

func (m *MockTransaction) Savepoint(ctx context.Context) (usecase.Transaction, error) {
	if m.SavepointFunc != nil {
		return m.SavepointFunc(ctx)
	}
	return &MockTransaction{parent: m}, nil
}

func onRollback(tx usecase.Transaction, fn func()) {
	if mt, ok := tx.(*MockTransaction); ok {
		mt.OnRollback(fn)
	}
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	mu     sync.Mutex
	Begins int

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.mu.Lock()
	m.Begins++
	m.mu.Unlock()
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockAccountRepository is an in-memory AccountRepository. Stored accounts
// are copied in and out so callers never share state with the store.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc            func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	ApplyBalanceDeltaFunc func(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time) (*domain.Account, error)
	UpdateStatusFunc      func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error

	// BeforeApply runs ahead of every balance change; a non-nil error is
	// returned instead of applying the delta.
	BeforeApply func(id string, delta decimal.Decimal) error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.AccountNumber != nil {
		n := *a.AccountNumber
		c.AccountNumber = &n
	}
	return &c
}

// Seed stores an account directly, bypassing transactions.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = copyAccount(account)
}

// Balance returns the stored balance of id.
func (m *MockAccountRepository) Balance(id string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc.Balance
	}
	return decimal.Zero
}

func (m *MockAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = copyAccount(account)
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.accounts, account.ID)
	})
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return copyAccount(acc), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.AccountNumber != nil && *acc.AccountNumber == number {
			return copyAccount(acc), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range sorted {
		if acc, ok := m.accounts[id]; ok {
			accounts = append(accounts, copyAccount(acc))
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) ApplyBalanceDelta(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time) (*domain.Account, error) {
	if m.ApplyBalanceDeltaFunc != nil {
		return m.ApplyBalanceDeltaFunc(ctx, tx, id, delta, updatedAt)
	}
	if m.BeforeApply != nil {
		if err := m.BeforeApply(id, delta); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if err := acc.CanApplyDelta(delta); err != nil {
		return nil, err
	}
	prev := acc.Balance
	acc.Balance = acc.Balance.Add(delta)
	acc.Version++
	acc.UpdatedAt = updatedAt
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		acc.Balance = prev
		acc.Version--
	})
	return copyAccount(acc), nil
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	for _, other := range m.accounts {
		if other.ID != account.ID && other.AccountNumber != nil && account.AccountNumber != nil &&
			*other.AccountNumber == *account.AccountNumber {
			return fmt.Errorf("duplicate account number %s", *account.AccountNumber)
		}
	}
	m.accounts[account.ID] = copyAccount(account)
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.accounts[account.ID] = prev
	})
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		if filter.OwnerID != "" && acc.OwnerID != filter.OwnerID {
			continue
		}
		if filter.BankID != "" && acc.BankID != filter.BankID {
			continue
		}
		if filter.Status != "" && acc.Status != filter.Status {
			continue
		}
		accounts = append(accounts, copyAccount(acc))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return page(accounts, filter.Limit, filter.Offset), nil
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu   sync.RWMutex
	txns map[string]*domain.Transaction

	// AccountBank resolves an account's bank for BankID filters.
	AccountBank func(accountID string) string

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
	CreatePairFunc       func(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Transaction, error)
	UpdatePairStatusFunc func(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error
	SetPairFaultFunc     func(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		txns: make(map[string]*domain.Transaction),
	}
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.TransferID != nil {
		id := *t.TransferID
		c.TransferID = &id
	}
	return &c
}

// Seed stores a transaction directly, bypassing transactions.
func (m *MockTransactionRepository) Seed(txns ...*domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txns {
		m.txns[t.ID] = copyTransaction(t)
	}
}

// Get returns the stored copy of id or nil.
func (m *MockTransactionRepository) Get(id string) *domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.txns[id]; ok {
		return copyTransaction(t)
	}
	return nil
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txns)
}

func (m *MockTransactionRepository) put(tx usecase.Transaction, txns ...*domain.Transaction) {
	prev := make(map[string]*domain.Transaction, len(txns))
	for _, t := range txns {
		prev[t.ID] = m.txns[t.ID]
		m.txns[t.ID] = copyTransaction(t)
	}
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for id, p := range prev {
			if p == nil {
				delete(m.txns, id)
			} else {
				m.txns[id] = p
			}
		}
	})
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(tx, txn)
	return nil
}

func (m *MockTransactionRepository) CreatePair(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	if m.CreatePairFunc != nil {
		return m.CreatePairFunc(ctx, tx, pair)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(tx, pair.Debit, pair.Credit)
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if t := m.Get(id); t != nil {
		return t, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRepository) GetByTransferID(ctx context.Context, transferID string) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var legs []*domain.Transaction
	for _, t := range m.txns {
		if t.TransferID != nil && *t.TransferID == transferID {
			legs = append(legs, copyTransaction(t))
		}
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })
	return legs, nil
}

func (m *MockTransactionRepository) GetByTransferIDForUpdate(ctx context.Context, tx usecase.Transaction, transferID string) ([]*domain.Transaction, error) {
	legs, err := m.GetByTransferID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, domain.ErrTransferNotFound
	}
	return legs, nil
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txn.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	m.put(tx, txn)
	return nil
}

func (m *MockTransactionRepository) UpdatePairStatus(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	if m.UpdatePairStatusFunc != nil {
		return m.UpdatePairStatusFunc(ctx, tx, pair)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(tx, pair.Debit, pair.Credit)
	return nil
}

func (m *MockTransactionRepository) SetPairFault(ctx context.Context, tx usecase.Transaction, pair *domain.TransferPair) error {
	if m.SetPairFaultFunc != nil {
		return m.SetPairFaultFunc(ctx, tx, pair)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(tx, pair.Debit, pair.Credit)
	return nil
}

func (m *MockTransactionRepository) matches(t *domain.Transaction, f domain.TransactionFilter) bool {
	if len(f.AccountIDs) > 0 {
		found := false
		for _, id := range f.AccountIDs {
			if t.AccountID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.BankID != "" && m.AccountBank != nil && m.AccountBank(t.AccountID) != f.BankID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	switch f.Kind {
	case domain.FilterKindPlain:
		return t.Kind() == domain.KindPlain
	case domain.FilterKindTransfer:
		return t.Kind() == domain.KindTransferLeg
	case domain.FilterKindTransferSent:
		return t.Kind() == domain.KindTransferLeg && t.Type == domain.TransactionTypeWithdrawal
	case domain.FilterKindTransferReceived:
		return t.Kind() == domain.KindTransferLeg && t.Type == domain.TransactionTypeDeposit
	}
	return true
}

func (m *MockTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.Transaction
	for _, t := range m.txns {
		if m.matches(t, filter) {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID < txns[j].ID
	})
	return page(txns, filter.Limit, filter.Offset), nil
}

func (m *MockTransactionRepository) ListFaulted(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.Transaction
	for _, t := range m.txns {
		if t.Fault && t.Status == domain.TransactionStatusPending {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return page(txns, limit, offset), nil
}

func (m *MockTransactionRepository) CountFaultedTransfers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	for _, t := range m.txns {
		if t.Fault && t.Status == domain.TransactionStatusPending && t.TransferID != nil {
			seen[*t.TransferID] = true
		}
	}
	return len(seen), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// Events returns event types in the order they were written.
func (m *MockOutboxRepository) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.EventType)
	}
	return types
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.events {
			if e.ID == event.ID {
				m.events = append(m.events[:i], m.events[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			out = append(out, e)
		}
	}
	return page(out, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.OutboxEvent
	var deleted int64
	for _, e := range m.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.Mutex
	logs []*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

// Logs returns every audit entry written.
func (m *MockAuditRepository) Logs() []*domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditLog(nil), m.logs...)
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.logs {
			if l.ID == log.ID {
				m.logs = append(m.logs[:i], m.logs[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%06d", m.counter)
}

// MockAccountNumbers hands out sequential account numbers.
type MockAccountNumbers struct {
	mu   sync.Mutex
	next int64
}

func NewMockAccountNumbers(start int64) *MockAccountNumbers {
	return &MockAccountNumbers{next: start}
}

func (m *MockAccountNumbers) Next(ctx context.Context, tx usecase.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := domain.FormatAccountNumber(m.next)
	if err != nil {
		return "", err
	}
	m.next++
	return n, nil
}

// MockRetrier runs the operation once and counts calls.
type MockRetrier struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return operation()
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
