package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/omarelbidi/bankcore/internal/store"
	"github.com/shopspring/decimal"
)

const (
	sqlInsertAccount = `INSERT INTO accounts (id, balance, customer_id, account_type) VALUES ($1, $2, $3, $4)`

	sqlSelectAccountByID = `SELECT id, balance, customer_id, account_type FROM accounts WHERE id = $1`

	sqlSelectAllAccounts = `SELECT id, balance, customer_id, account_type FROM accounts`

	sqlUpdateAccount = `UPDATE accounts SET balance = $1, customer_id = $2 WHERE id = $3`

	sqlDeleteAccount = `DELETE FROM accounts WHERE id = $1`

	sqlSelectAccountIDsByCustomer = `SELECT id FROM accounts WHERE customer_id = $1`

	sqlSumBalanceByCustomer = `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE customer_id = $1`

	sqlSetAccountBalance = `UPDATE accounts SET balance = $1 WHERE id = $2`
)

// AccountGateway maps accounts to and from store rows, reconstructing
// the kind from the stored discriminator. Every operation acquires
// exactly one pooled connection and releases it on all exit paths.
type AccountGateway struct {
	pool *store.Pool
}

func NewAccountGateway(pool *store.Pool) *AccountGateway {
	return &AccountGateway{pool: pool}
}

// Save inserts a new account. A colliding identifier is reported as
// ErrDuplicateID.
func (g *AccountGateway) Save(ctx context.Context, a Account) error {
	return store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlInsertAccount, a.ID, a.Balance, a.CustomerID, string(a.Kind))
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("%w: account %s", ErrDuplicateID, a.ID)
		}
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("insert account %s: no rows affected", a.ID)
		}
		return nil
	})
}

// FindByID returns the account or nil when absent.
func (g *AccountGateway) FindByID(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		return scanAccount(conn.QueryRow(ctx, sqlSelectAccountByID, id), &a)
	})
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}
	return &a, nil
}

// FindAll returns every account.
func (g *AccountGateway) FindAll(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		rows, err := conn.Query(ctx, sqlSelectAllAccounts)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				a    Account
				kind string
			)
			if err := rows.Scan(&a.ID, &a.Balance, &a.CustomerID, &kind); err != nil {
				return err
			}
			a.Kind = kindFromDiscriminator(kind)
			accounts = append(accounts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return accounts, nil
}

// Update replaces the balance and owning customer of an existing
// account. A missing account is reported as ErrAccountNotFound.
func (g *AccountGateway) Update(ctx context.Context, a Account) error {
	return store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlUpdateAccount, a.Balance, a.CustomerID, a.ID)
		if err != nil {
			return fmt.Errorf("update account %s: %w", a.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, a.ID)
		}
		return nil
	})
}

// DeleteByID removes an account, reporting whether a row existed.
func (g *AccountGateway) DeleteByID(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlDeleteAccount, id)
		if err != nil {
			return fmt.Errorf("delete account %s: %w", id, err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// FindByCustomerID returns the IDs of all accounts whose primary owner
// is the given customer.
func (g *AccountGateway) FindByCustomerID(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		rows, err := conn.Query(ctx, sqlSelectAccountIDsByCustomer, customerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find accounts for customer %s: %w", customerID, err)
	}
	return ids, nil
}

// TotalBalanceByCustomerID sums the balances of the customer's
// accounts, returning zero when none exist.
func (g *AccountGateway) TotalBalanceByCustomerID(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		return conn.QueryRow(ctx, sqlSumBalanceByCustomer, customerID).Scan(&total)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("total balance for customer %s: %w", customerID, err)
	}
	return total, nil
}

// UpdateBalance sets an absolute balance, reporting whether the account
// existed.
func (g *AccountGateway) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (bool, error) {
	var updated bool
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlSetAccountBalance, balance, id)
		if err != nil {
			return fmt.Errorf("set balance for account %s: %w", id, err)
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

func scanAccount(row store.Row, a *Account) error {
	var kind string
	if err := row.Scan(&a.ID, &a.Balance, &a.CustomerID, &kind); err != nil {
		return err
	}
	a.Kind = kindFromDiscriminator(kind)
	return nil
}

// kindFromDiscriminator rebuilds the account kind from the stored
// discriminator, defaulting to corporate for unknown values the same
// way the row was written.
func kindFromDiscriminator(s string) AccountKind {
	if s == string(KindPersonal) {
		return KindPersonal
	}
	return KindCorporate
}
