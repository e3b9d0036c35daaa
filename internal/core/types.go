// Package core implements the account-ledger engine: entity gateways
// over the store, the atomic transaction service, and the Bank facade
// with its read-through cache.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind discriminates the two account variants. The kind decides
// the negative-balance policy: personal accounts may never go below
// zero, corporate accounts are unconstrained.
type AccountKind string

const (
	KindPersonal  AccountKind = "PERSONAL"
	KindCorporate AccountKind = "CORPORATE"
)

// AllowsNegative reports whether withdrawals may drive the balance
// below zero for this kind.
func (k AccountKind) AllowsNegative() bool { return k == KindCorporate }

// Customer is a registered customer. The ID is immutable after
// creation; updates replace the remaining fields wholesale.
type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	BirthDay  time.Time `json:"birthDay"`
}

// Account is a ledger account. Balance is an exact decimal; it is only
// ever mutated through the TransactionService. CustomerID is the
// primary owner used for lookups; corporate accounts may carry
// additional owners in the account_owners association.
type Account struct {
	ID         string          `json:"id"`
	Balance    decimal.Decimal `json:"balance"`
	CustomerID string          `json:"customerId"`
	Kind       AccountKind     `json:"kind"`
}

// TransactionKind labels one leg of a balance mutation.
type TransactionKind string

const (
	TxDeposit     TransactionKind = "DEPOSIT"
	TxWithdrawal  TransactionKind = "WITHDRAWAL"
	TxTransferOut TransactionKind = "TRANSFER_OUT"
	TxTransferIn  TransactionKind = "TRANSFER_IN"
)

// Transaction is one append-only ledger record. RelatedAccountID is set
// for transfer legs and names the account on the other side.
type Transaction struct {
	ID               int64           `json:"id"`
	AccountID        string          `json:"accountId"`
	Kind             TransactionKind `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	RelatedAccountID string          `json:"relatedAccountId,omitempty"`
	Date             time.Time       `json:"date"`
}

// AuditEntry records a state-changing action, independent of the
// transaction log. Entries are append-only.
type AuditEntry struct {
	ID          int64     `json:"id"`
	ActionType  string    `json:"actionType"`
	EntityType  string    `json:"entityType"`
	EntityID    string    `json:"entityId"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Statement is an account statement over [Start, End]: the fresh
// balance, the period's transactions in chronological order, and the
// derived totals. TransferIn counts toward deposits, TransferOut toward
// withdrawals.
type Statement struct {
	AccountID        string          `json:"accountId"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	Transactions     []Transaction   `json:"transactions"`
	TotalDeposits    decimal.Decimal `json:"totalDeposits"`
	TotalWithdrawals decimal.Decimal `json:"totalWithdrawals"`
	NetChange        decimal.Decimal `json:"netChange"`
}
