package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/omarelbidi/bankcore/internal/store"
	"github.com/shopspring/decimal"
)

// fakeDB is an in-memory stand-in for the persistent store. Its
// connections dispatch on the package's SQL constants, so the gateways
// and the transaction service run unmodified against it. Transactions
// work on a deep copy of the dataset and swap it in on commit, which
// gives real all-or-nothing semantics for the rollback tests.
type fakeDB struct {
	mu   sync.Mutex
	data dataset

	// failOn injects an error for a specific statement, at both
	// connection and transaction level.
	failOn map[string]error
}

type dataset struct {
	customers map[string]Customer
	accounts  map[string]Account
	txns      []Transaction
	audits    []AuditEntry
	owners    map[string][]string
	nextTxnID int64
}

var fakeEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// errTestBoom is the generic injected store failure.
var errTestBoom = errors.New("boom")

func newFakeDB() *fakeDB {
	return &fakeDB{
		data: dataset{
			customers: make(map[string]Customer),
			accounts:  make(map[string]Account),
			owners:    make(map[string][]string),
		},
		failOn: make(map[string]error),
	}
}

func (db *fakeDB) dialer() store.Dialer {
	return func(ctx context.Context) (store.Conn, error) {
		return &fakeConn{db: db}, nil
	}
}

func (db *fakeDB) pool(t *testing.T, size int) *store.Pool {
	t.Helper()
	p, err := store.NewPool(context.Background(), size, db.dialer())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func (d *dataset) clone() dataset {
	out := dataset{
		customers: make(map[string]Customer, len(d.customers)),
		accounts:  make(map[string]Account, len(d.accounts)),
		txns:      append([]Transaction(nil), d.txns...),
		audits:    append([]AuditEntry(nil), d.audits...),
		owners:    make(map[string][]string, len(d.owners)),
		nextTxnID: d.nextTxnID,
	}
	for k, v := range d.customers {
		out.customers[k] = v
	}
	for k, v := range d.accounts {
		out.accounts[k] = v
	}
	for k, v := range d.owners {
		out.owners[k] = append([]string(nil), v...)
	}
	return out
}

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.failOn[sql]; err != nil {
		return 0, err
	}
	return c.db.data.exec(sql, args)
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.failOn[sql]; err != nil {
		return nil, err
	}
	return c.db.data.query(sql, args)
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.failOn[sql]; err != nil {
		return fakeRow{err: err}
	}
	return c.db.data.queryRow(sql, args)
}

func (c *fakeConn) Begin(ctx context.Context) (store.Tx, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return &fakeTx{db: c.db, work: c.db.data.clone()}, nil
}

func (c *fakeConn) Ping(ctx context.Context) error  { return nil }
func (c *fakeConn) Close(ctx context.Context) error { return nil }

type fakeTx struct {
	db   *fakeDB
	work dataset
	done bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := t.db.failOn[sql]; err != nil {
		return 0, err
	}
	return t.work.exec(sql, args)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	if err := t.db.failOn[sql]; err != nil {
		return nil, err
	}
	return t.work.query(sql, args)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	if err := t.db.failOn[sql]; err != nil {
		return fakeRow{err: err}
	}
	return t.work.queryRow(sql, args)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	t.db.mu.Lock()
	t.db.data = t.work
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	return nil
}

func (d *dataset) exec(sql string, args []any) (int64, error) {
	switch sql {
	case sqlInsertCustomer:
		id := args[0].(string)
		if _, ok := d.customers[id]; ok {
			return 0, store.ErrDuplicateKey
		}
		d.customers[id] = Customer{
			ID:        id,
			FirstName: args[1].(string),
			LastName:  args[2].(string),
			BirthDay:  args[3].(time.Time),
		}
		return 1, nil

	case sqlUpdateCustomer:
		id := args[3].(string)
		c, ok := d.customers[id]
		if !ok {
			return 0, nil
		}
		c.FirstName = args[0].(string)
		c.LastName = args[1].(string)
		c.BirthDay = args[2].(time.Time)
		d.customers[id] = c
		return 1, nil

	case sqlDeleteCustomer:
		id := args[0].(string)
		if _, ok := d.customers[id]; !ok {
			return 0, nil
		}
		delete(d.customers, id)
		return 1, nil

	case sqlInsertAccount:
		id := args[0].(string)
		if _, ok := d.accounts[id]; ok {
			return 0, store.ErrDuplicateKey
		}
		d.accounts[id] = Account{
			ID:         id,
			Balance:    args[1].(decimal.Decimal),
			CustomerID: args[2].(string),
			Kind:       kindFromDiscriminator(args[3].(string)),
		}
		return 1, nil

	case sqlUpdateAccount:
		id := args[2].(string)
		a, ok := d.accounts[id]
		if !ok {
			return 0, nil
		}
		a.Balance = args[0].(decimal.Decimal)
		a.CustomerID = args[1].(string)
		d.accounts[id] = a
		return 1, nil

	case sqlDeleteAccount:
		id := args[0].(string)
		if _, ok := d.accounts[id]; !ok {
			return 0, nil
		}
		delete(d.accounts, id)
		return 1, nil

	case sqlSetAccountBalance:
		id := args[1].(string)
		a, ok := d.accounts[id]
		if !ok {
			return 0, nil
		}
		a.Balance = args[0].(decimal.Decimal)
		d.accounts[id] = a
		return 1, nil

	case sqlAddToBalance, sqlSubFromBalance:
		amount := args[0].(decimal.Decimal)
		id := args[1].(string)
		a, ok := d.accounts[id]
		if !ok {
			return 0, nil
		}
		if sql == sqlAddToBalance {
			a.Balance = a.Balance.Add(amount)
		} else {
			a.Balance = a.Balance.Sub(amount)
		}
		d.accounts[id] = a
		return 1, nil

	case sqlInsertTransaction:
		d.nextTxnID++
		t := Transaction{
			ID:        d.nextTxnID,
			AccountID: args[0].(string),
			Kind:      TransactionKind(args[1].(string)),
			Amount:    args[2].(decimal.Decimal),
			Date:      fakeEpoch.Add(time.Duration(d.nextTxnID) * time.Second),
		}
		if related, ok := args[3].(string); ok {
			t.RelatedAccountID = related
		}
		d.txns = append(d.txns, t)
		return 1, nil

	case sqlInsertAudit:
		d.audits = append(d.audits, AuditEntry{
			ID:          int64(len(d.audits) + 1),
			ActionType:  args[0].(string),
			EntityType:  args[1].(string),
			EntityID:    args[2].(string),
			Description: args[3].(string),
			CreatedAt:   fakeEpoch,
		})
		return 1, nil

	case sqlDeleteOwners:
		id := args[0].(string)
		n := int64(len(d.owners[id]))
		delete(d.owners, id)
		return n, nil

	case sqlInsertOwner:
		id := args[0].(string)
		d.owners[id] = append(d.owners[id], args[1].(string))
		return 1, nil
	}
	return 0, fmt.Errorf("fake store: unhandled exec %q", sql)
}

func (d *dataset) query(sql string, args []any) (store.Rows, error) {
	switch sql {
	case sqlSelectAllCustomers:
		var out [][]any
		for _, id := range sortedKeys(d.customers) {
			c := d.customers[id]
			out = append(out, []any{c.ID, c.FirstName, c.LastName, c.BirthDay})
		}
		return &fakeRows{rows: out}, nil

	case sqlSelectCustomerIDsByNameBirth:
		var out [][]any
		for _, id := range sortedKeys(d.customers) {
			c := d.customers[id]
			if c.FirstName == args[0].(string) && c.LastName == args[1].(string) && c.BirthDay.Equal(args[2].(time.Time)) {
				out = append(out, []any{c.ID})
			}
		}
		return &fakeRows{rows: out}, nil

	case sqlSelectAllAccounts:
		var out [][]any
		for _, id := range sortedKeys(d.accounts) {
			a := d.accounts[id]
			out = append(out, []any{a.ID, a.Balance, a.CustomerID, string(a.Kind)})
		}
		return &fakeRows{rows: out}, nil

	case sqlSelectAccountIDsByCustomer:
		var out [][]any
		for _, id := range sortedKeys(d.accounts) {
			if d.accounts[id].CustomerID == args[0].(string) {
				out = append(out, []any{id})
			}
		}
		return &fakeRows{rows: out}, nil

	case sqlSelectTransactionsByAccount:
		matched := d.transactionsFor(args[0].(string), nil, nil)
		// newest first
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
		return transactionRows(matched), nil

	case sqlSelectTransactionsInRange:
		start := args[1].(time.Time)
		end := args[2].(time.Time)
		matched := d.transactionsFor(args[0].(string), &start, &end)
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
		return transactionRows(matched), nil
	}
	return nil, fmt.Errorf("fake store: unhandled query %q", sql)
}

func (d *dataset) queryRow(sql string, args []any) store.Row {
	switch sql {
	case sqlSelectCustomerByID:
		c, ok := d.customers[args[0].(string)]
		if !ok {
			return fakeRow{err: store.ErrNoRows}
		}
		return fakeRow{vals: []any{c.ID, c.FirstName, c.LastName, c.BirthDay}}

	case sqlCountCustomersByID:
		var n int64
		if _, ok := d.customers[args[0].(string)]; ok {
			n = 1
		}
		return fakeRow{vals: []any{n}}

	case sqlSelectAccountByID:
		a, ok := d.accounts[args[0].(string)]
		if !ok {
			return fakeRow{err: store.ErrNoRows}
		}
		return fakeRow{vals: []any{a.ID, a.Balance, a.CustomerID, string(a.Kind)}}

	case sqlSelectBalance, sqlSelectBalanceForUpdate:
		a, ok := d.accounts[args[0].(string)]
		if !ok {
			return fakeRow{err: store.ErrNoRows}
		}
		return fakeRow{vals: []any{a.Balance}}

	case sqlSumBalanceByCustomer:
		total := decimal.Zero
		for _, a := range d.accounts {
			if a.CustomerID == args[0].(string) {
				total = total.Add(a.Balance)
			}
		}
		return fakeRow{vals: []any{total}}
	}
	return fakeRow{err: fmt.Errorf("fake store: unhandled queryRow %q", sql)}
}

func (d *dataset) transactionsFor(accountID string, start, end *time.Time) []Transaction {
	var out []Transaction
	for _, t := range d.txns {
		if t.AccountID != accountID {
			continue
		}
		if start != nil && (t.Date.Before(*start) || t.Date.After(*end)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func transactionRows(txns []Transaction) *fakeRows {
	var out [][]any
	for _, t := range txns {
		var related *string
		if t.RelatedAccountID != "" {
			r := t.RelatedAccountID
			related = &r
		}
		out = append(out, []any{t.ID, t.AccountID, string(t.Kind), t.Amount, related, t.Date})
	}
	return &fakeRows{rows: out}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.vals)
}

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(dest, r.rows[r.pos-1])
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

func scanInto(dest, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("fake store: scan %d values into %d targets", len(src), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = src[i].(string)
		case *int64:
			*d = src[i].(int64)
		case *time.Time:
			*d = src[i].(time.Time)
		case *decimal.Decimal:
			*d = src[i].(decimal.Decimal)
		case **string:
			if src[i] == nil {
				*d = nil
			} else {
				*d = src[i].(*string)
			}
		default:
			return fmt.Errorf("fake store: unsupported scan target %T", d)
		}
	}
	return nil
}
