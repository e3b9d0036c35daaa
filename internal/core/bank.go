package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omarelbidi/bankcore/internal/store"
	"github.com/shopspring/decimal"
)

// Bank is the ledger facade. It orchestrates the customer and account
// lifecycle through the gateways, delegates balance mutations to the
// TransactionService, and keeps an in-memory snapshot cache of both
// entity sets. The store stays the single source of truth: the cache is
// populated eagerly at construction, refreshed read-through on misses,
// and written only after a confirmed store write.
type Bank struct {
	pool      *store.Pool
	customers *CustomerGateway
	accounts  *AccountGateway
	svc       *TransactionService
	ids       IDSupplier

	customerCache *cache[Customer]
	accountCache  *cache[Account]
}

// NewBank wires the facade over pool and eagerly loads every customer
// and account into the caches. Startup cost is traded for read latency,
// which holds up only while the dataset stays small.
func NewBank(ctx context.Context, pool *store.Pool, ids IDSupplier) (*Bank, error) {
	b := &Bank{
		pool:          pool,
		customers:     NewCustomerGateway(pool),
		accounts:      NewAccountGateway(pool),
		svc:           NewTransactionService(pool),
		ids:           ids,
		customerCache: newCache[Customer](),
		accountCache:  newCache[Account](),
	}

	allCustomers, err := b.customers.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm customer cache: %w", err)
	}
	for _, c := range allCustomers {
		b.customerCache.put(c.ID, c)
	}
	allAccounts, err := b.accounts.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm account cache: %w", err)
	}
	for _, a := range allAccounts {
		b.accountCache.put(a.ID, a)
	}
	return b, nil
}

// RegisterCustomer stores a new customer and returns the generated ID.
func (b *Bank) RegisterCustomer(ctx context.Context, firstName, lastName string, birthDay time.Time) (string, error) {
	if firstName == "" || lastName == "" {
		return "", errors.New("register customer: first and last name required")
	}
	c := Customer{
		ID:        b.ids.CustomerID(firstName, lastName),
		FirstName: firstName,
		LastName:  lastName,
		BirthDay:  birthDay,
	}
	if err := b.customers.Save(ctx, c); err != nil {
		return "", err
	}
	b.customerCache.put(c.ID, c)
	return c.ID, nil
}

// GetCustomers returns the IDs of every customer matching the exact
// name and birth date.
func (b *Bank) GetCustomers(ctx context.Context, firstName, lastName string, birthDay time.Time) ([]string, error) {
	return b.customers.FindByNameAndBirthDay(ctx, firstName, lastName, birthDay)
}

// UpdateCustomer replaces the stored fields of an existing customer.
// It reports false when the customer does not exist.
func (b *Bank) UpdateCustomer(ctx context.Context, c Customer) (bool, error) {
	err := b.customers.Update(ctx, c)
	if errors.Is(err, ErrCustomerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.customerCache.put(c.ID, c)
	return true, nil
}

// RegisterPersonalAccount opens a personal account with a zero balance
// for the customer. It reports false when the customer is unknown.
func (b *Bank) RegisterPersonalAccount(ctx context.Context, customerID string) (string, bool, error) {
	known, err := b.customerExists(ctx, customerID)
	if err != nil || !known {
		return "", false, err
	}
	a := Account{
		ID:         b.ids.AccountID(KindPersonal),
		Balance:    decimal.Zero,
		CustomerID: customerID,
		Kind:       KindPersonal,
	}
	if err := b.accounts.Save(ctx, a); err != nil {
		return "", false, err
	}
	b.accountCache.put(a.ID, a)
	return a.ID, true, nil
}

// RegisterCorporateAccount opens a corporate account owned by every
// listed customer, with the first as the primary owner. It fails fast,
// before any write, if the list is empty or any customer is unknown.
func (b *Bank) RegisterCorporateAccount(ctx context.Context, customerIDs []string) (string, bool, error) {
	if len(customerIDs) == 0 {
		return "", false, nil
	}
	for _, id := range customerIDs {
		known, err := b.customerExists(ctx, id)
		if err != nil {
			return "", false, err
		}
		if !known {
			return "", false, nil
		}
	}
	a := Account{
		ID:         b.ids.AccountID(KindCorporate),
		Balance:    decimal.Zero,
		CustomerID: customerIDs[0],
		Kind:       KindCorporate,
	}
	if err := b.accounts.Save(ctx, a); err != nil {
		return "", false, err
	}
	ok, err := b.svc.RecordAccountOwnership(ctx, a.ID, customerIDs)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	b.accountCache.put(a.ID, a)
	return a.ID, true, nil
}

// RemoveAccount deletes the account and reports whether it existed.
func (b *Bank) RemoveAccount(ctx context.Context, accountID string) (bool, error) {
	removed, err := b.accounts.DeleteByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if removed {
		b.accountCache.remove(accountID)
	}
	return removed, nil
}

// GetBalance returns the account balance, from the cache when present.
// The second result is false for an unknown account.
func (b *Bank) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, bool, error) {
	a, ok, err := b.lookupAccount(ctx, accountID)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return a.Balance, true, nil
}

// GetAccounts returns the IDs of every account whose primary owner is
// the customer. The second result is false for an unknown customer.
func (b *Bank) GetAccounts(ctx context.Context, customerID string) ([]string, bool, error) {
	known, err := b.customerExists(ctx, customerID)
	if err != nil || !known {
		return nil, false, err
	}
	ids := make([]string, 0)
	for _, a := range b.accountCache.snapshot() {
		if a.CustomerID == customerID {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) > 0 {
		return ids, true, nil
	}
	// Cache may be cold for this customer; confirm against the store.
	ids, err = b.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// GetTotalBalance sums the balances of the customer's accounts, zero
// when they have none. The second result is false for an unknown
// customer.
func (b *Bank) GetTotalBalance(ctx context.Context, customerID string) (decimal.Decimal, bool, error) {
	known, err := b.customerExists(ctx, customerID)
	if err != nil || !known {
		return decimal.Zero, false, err
	}
	total, err := b.accounts.TotalBalanceByCustomerID(ctx, customerID)
	if err != nil {
		return decimal.Zero, false, err
	}
	return total, true, nil
}

// Deposit credits amount to the account, reconciling the cached balance
// on success. A non-positive amount or unknown account reports false
// with nothing written.
func (b *Bank) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	ok, err := b.svc.Deposit(ctx, accountID, amount)
	if err != nil || !ok {
		return false, err
	}
	b.applyBalanceDelta(ctx, accountID, amount)
	return true, nil
}

// Withdraw debits amount from the account. Personal accounts reject a
// withdrawal that would drive the balance negative; corporate accounts
// do not.
func (b *Bank) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	a, known, err := b.lookupAccount(ctx, accountID)
	if err != nil || !known {
		return false, err
	}
	ok, err := b.svc.Withdraw(ctx, accountID, amount, a.Kind.AllowsNegative())
	if err != nil || !ok {
		return false, err
	}
	b.applyBalanceDelta(ctx, accountID, amount.Neg())
	return true, nil
}

// Transfer moves amount between two accounts atomically. The
// negative-balance policy of the source account applies; the
// destination only needs to exist.
func (b *Bank) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	from, known, err := b.lookupAccount(ctx, fromID)
	if err != nil || !known {
		return false, err
	}
	ok, err := b.svc.Transfer(ctx, fromID, toID, amount, from.Kind.AllowsNegative())
	if err != nil || !ok {
		return false, err
	}
	b.applyBalanceDelta(ctx, fromID, amount.Neg())
	b.applyBalanceDelta(ctx, toID, amount)
	return true, nil
}

// GetTransactionHistory returns the account's ledger records, newest
// first.
func (b *Bank) GetTransactionHistory(ctx context.Context, accountID string) ([]Transaction, error) {
	return b.svc.GetTransactionHistory(ctx, accountID)
}

// GetAccountStatement builds the statement for [start, end], reading
// the balance fresh from the store. It returns nil for an unknown
// account.
func (b *Bank) GetAccountStatement(ctx context.Context, accountID string, start, end time.Time) (*Statement, error) {
	return b.svc.GetAccountStatement(ctx, accountID, start, end)
}

// Shutdown closes every pooled connection. The Bank must not be used
// afterward.
func (b *Bank) Shutdown(ctx context.Context) error {
	return b.pool.CloseAll(ctx)
}

// lookupAccount resolves an account cache-first, populating the cache
// from the store on a miss.
func (b *Bank) lookupAccount(ctx context.Context, accountID string) (Account, bool, error) {
	if a, ok := b.accountCache.get(accountID); ok {
		return a, true, nil
	}
	a, err := b.accounts.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, false, err
	}
	if a == nil {
		return Account{}, false, nil
	}
	b.accountCache.put(a.ID, *a)
	return *a, true, nil
}

// customerExists resolves a customer cache-first, populating the cache
// from the store on a miss.
func (b *Bank) customerExists(ctx context.Context, customerID string) (bool, error) {
	if _, ok := b.customerCache.get(customerID); ok {
		return true, nil
	}
	c, err := b.customers.FindByID(ctx, customerID)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}
	b.customerCache.put(c.ID, *c)
	return true, nil
}

// applyBalanceDelta reconciles the cached balance after a committed
// mutation. A cached entry gets the delta applied under the cache lock,
// keeping concurrent mutations of the same account from losing each
// other's delta; a missing entry is refreshed from the store so the
// next read is consistent.
func (b *Bank) applyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) {
	updated := b.accountCache.update(accountID, func(a Account) Account {
		a.Balance = a.Balance.Add(delta)
		return a
	})
	if updated {
		return
	}
	if a, err := b.accounts.FindByID(ctx, accountID); err == nil && a != nil {
		b.accountCache.put(a.ID, *a)
	}
}
