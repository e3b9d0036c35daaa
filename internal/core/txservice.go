package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omarelbidi/bankcore/internal/store"
	"github.com/shopspring/decimal"
)

const (
	sqlAddToBalance   = `UPDATE accounts SET balance = balance + $1 WHERE id = $2`
	sqlSubFromBalance = `UPDATE accounts SET balance = balance - $1 WHERE id = $2`

	// The row lock taken here is what keeps the sufficiency check and
	// the decrement atomic under concurrent withdrawals.
	sqlSelectBalanceForUpdate = `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`

	sqlSelectBalance = `SELECT balance FROM accounts WHERE id = $1`

	sqlInsertTransaction = `INSERT INTO transactions (account_id, transaction_type, amount, related_account_id) VALUES ($1, $2, $3, $4)`

	sqlSelectTransactionsByAccount = `SELECT id, account_id, transaction_type, amount, related_account_id, transaction_date FROM transactions WHERE account_id = $1 ORDER BY transaction_date DESC, id DESC`

	sqlSelectTransactionsInRange = `SELECT id, account_id, transaction_type, amount, related_account_id, transaction_date FROM transactions WHERE account_id = $1 AND transaction_date BETWEEN $2 AND $3 ORDER BY transaction_date, id`

	sqlInsertAudit = `INSERT INTO audit_log (action_type, entity_type, entity_id, description) VALUES ($1, $2, $3, $4)`

	sqlDeleteOwners = `DELETE FROM account_owners WHERE account_id = $1`
	sqlInsertOwner  = `INSERT INTO account_owners (account_id, customer_id) VALUES ($1, $2)`
)

// Audit action types, matching the stored action_type column.
const (
	auditDeposit         = "DEPOSIT"
	auditWithdrawal      = "WITHDRAWAL"
	auditTransfer        = "TRANSFER"
	auditUpdateOwnership = "UPDATE_OWNERSHIP"

	auditEntityAccount = "ACCOUNT"
)

// TransactionService executes balance-affecting operations as atomic
// units: the balance mutation, the transaction-log insert, and the
// audit-log insert either all commit or all roll back. Each operation
// runs on a single pooled connection.
type TransactionService struct {
	pool *store.Pool
}

func NewTransactionService(pool *store.Pool) *TransactionService {
	return &TransactionService{pool: pool}
}

// Deposit credits amount to the account. It returns false without
// touching the store for a non-positive amount, and false after a full
// rollback when the account does not exist.
func (s *TransactionService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	err := store.WithTx(ctx, s.pool, func(tx store.Tx) error {
		n, err := tx.Exec(ctx, sqlAddToBalance, amount, accountID)
		if err != nil {
			return fmt.Errorf("credit account %s: %w", accountID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		if _, err := tx.Exec(ctx, sqlInsertTransaction, accountID, string(TxDeposit), amount, nil); err != nil {
			return fmt.Errorf("record deposit: %w", err)
		}
		return insertAudit(ctx, tx, auditDeposit, auditEntityAccount, accountID, "Deposit of "+amount.String())
	})
	return outcome(err)
}

// Withdraw debits amount from the account. When allowNegative is false
// the current balance is read under a row lock first and the operation
// rolls back with a false result if it cannot cover the amount.
func (s *TransactionService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, allowNegative bool) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	err := store.WithTx(ctx, s.pool, func(tx store.Tx) error {
		if !allowNegative {
			if err := checkSufficientBalance(ctx, tx, accountID, amount); err != nil {
				return err
			}
		}
		n, err := tx.Exec(ctx, sqlSubFromBalance, amount, accountID)
		if err != nil {
			return fmt.Errorf("debit account %s: %w", accountID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		if _, err := tx.Exec(ctx, sqlInsertTransaction, accountID, string(TxWithdrawal), amount, nil); err != nil {
			return fmt.Errorf("record withdrawal: %w", err)
		}
		return insertAudit(ctx, tx, auditWithdrawal, auditEntityAccount, accountID, "Withdrawal of "+amount.String())
	})
	return outcome(err)
}

// Transfer moves amount from one account to the other, logging a
// TransferOut leg on the source and a TransferIn leg on the
// destination. The sufficiency check applies to the source only. If
// either account is missing, the whole operation rolls back and no
// records survive.
func (s *TransactionService) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, allowNegativeSource bool) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}
	err := store.WithTx(ctx, s.pool, func(tx store.Tx) error {
		if !allowNegativeSource {
			if err := checkSufficientBalance(ctx, tx, fromID, amount); err != nil {
				return err
			}
		}
		n, err := tx.Exec(ctx, sqlSubFromBalance, amount, fromID)
		if err != nil {
			return fmt.Errorf("debit account %s: %w", fromID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, fromID)
		}
		n, err = tx.Exec(ctx, sqlAddToBalance, amount, toID)
		if err != nil {
			return fmt.Errorf("credit account %s: %w", toID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, toID)
		}
		if _, err := tx.Exec(ctx, sqlInsertTransaction, fromID, string(TxTransferOut), amount, toID); err != nil {
			return fmt.Errorf("record transfer-out: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlInsertTransaction, toID, string(TxTransferIn), amount, fromID); err != nil {
			return fmt.Errorf("record transfer-in: %w", err)
		}
		desc := fmt.Sprintf("Transfer of %s from %s to %s", amount.String(), fromID, toID)
		return insertAudit(ctx, tx, auditTransfer, auditEntityAccount, fromID+","+toID, desc)
	})
	return outcome(err)
}

// RecordAccountOwnership replaces the full owner set of a corporate
// account: prior rows are deleted, the new set inserted, never merged.
func (s *TransactionService) RecordAccountOwnership(ctx context.Context, accountID string, customerIDs []string) (bool, error) {
	err := store.WithTx(ctx, s.pool, func(tx store.Tx) error {
		if _, err := tx.Exec(ctx, sqlDeleteOwners, accountID); err != nil {
			return fmt.Errorf("clear owners of %s: %w", accountID, err)
		}
		for _, customerID := range customerIDs {
			if _, err := tx.Exec(ctx, sqlInsertOwner, accountID, customerID); err != nil {
				return fmt.Errorf("insert owner %s: %w", customerID, err)
			}
		}
		return insertAudit(ctx, tx, auditUpdateOwnership, auditEntityAccount, accountID, "Updated account ownership")
	})
	return outcome(err)
}

// GetTransactionHistory returns all transaction records for the
// account, newest first.
func (s *TransactionService) GetTransactionHistory(ctx context.Context, accountID string) ([]Transaction, error) {
	var txns []Transaction
	err := store.WithConn(ctx, s.pool, func(conn store.Conn) error {
		rows, err := conn.Query(ctx, sqlSelectTransactionsByAccount, accountID)
		if err != nil {
			return err
		}
		defer rows.Close()
		txns, err = collectTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transaction history for %s: %w", accountID, err)
	}
	return txns, nil
}

// GetAccountStatement builds the statement for [start, end]: the fresh
// balance (never from a cache), the period's transactions in
// chronological order, and the derived totals. It returns nil when the
// account does not exist.
func (s *TransactionService) GetAccountStatement(ctx context.Context, accountID string, start, end time.Time) (*Statement, error) {
	stmt := &Statement{
		AccountID:        accountID,
		Start:            start,
		End:              end,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		NetChange:        decimal.Zero,
	}
	err := store.WithConn(ctx, s.pool, func(conn store.Conn) error {
		if err := conn.QueryRow(ctx, sqlSelectBalance, accountID).Scan(&stmt.CurrentBalance); err != nil {
			if errors.Is(err, store.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
			}
			return err
		}
		rows, err := conn.Query(ctx, sqlSelectTransactionsInRange, accountID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()
		stmt.Transactions, err = collectTransactions(rows)
		return err
	})
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statement for %s: %w", accountID, err)
	}

	for _, t := range stmt.Transactions {
		switch t.Kind {
		case TxDeposit, TxTransferIn:
			stmt.TotalDeposits = stmt.TotalDeposits.Add(t.Amount)
		case TxWithdrawal, TxTransferOut:
			stmt.TotalWithdrawals = stmt.TotalWithdrawals.Add(t.Amount)
		}
	}
	stmt.NetChange = stmt.TotalDeposits.Sub(stmt.TotalWithdrawals)
	return stmt, nil
}

// checkSufficientBalance locks the account row and verifies it can
// cover amount. The lock is held until the surrounding transaction
// ends.
func checkSufficientBalance(ctx context.Context, tx store.Tx, accountID string, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, sqlSelectBalanceForUpdate, accountID).Scan(&balance)
	if errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("read balance of %s: %w", accountID, err)
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientFunds, accountID, balance, amount)
	}
	return nil
}

func insertAudit(ctx context.Context, tx store.Tx, action, entityType, entityID, description string) error {
	if _, err := tx.Exec(ctx, sqlInsertAudit, action, entityType, entityID, description); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func collectTransactions(rows store.Rows) ([]Transaction, error) {
	var txns []Transaction
	for rows.Next() {
		var (
			t       Transaction
			kind    string
			related *string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &kind, &t.Amount, &related, &t.Date); err != nil {
			return nil, err
		}
		t.Kind = TransactionKind(kind)
		if related != nil {
			t.RelatedAccountID = *related
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// outcome classifies a transaction result: business-rule failures
// surface as a false result, infrastructure faults (including rollback
// failures, which may wrap a business cause) stay hard errors.
func outcome(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrRollbackFailed) {
		return false, err
	}
	if isBusinessErr(err) {
		return false, nil
	}
	return false, err
}
