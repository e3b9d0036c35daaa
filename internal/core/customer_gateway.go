package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omarelbidi/bankcore/internal/store"
)

const (
	sqlInsertCustomer = `INSERT INTO customers (id, first_name, last_name, birth_day) VALUES ($1, $2, $3, $4)`

	sqlSelectCustomerByID = `SELECT id, first_name, last_name, birth_day FROM customers WHERE id = $1`

	sqlSelectAllCustomers = `SELECT id, first_name, last_name, birth_day FROM customers`

	sqlUpdateCustomer = `UPDATE customers SET first_name = $1, last_name = $2, birth_day = $3 WHERE id = $4`

	sqlDeleteCustomer = `DELETE FROM customers WHERE id = $1`

	sqlSelectCustomerIDsByNameBirth = `SELECT id FROM customers WHERE first_name = $1 AND last_name = $2 AND birth_day = $3`

	sqlCountCustomersByID = `SELECT COUNT(*) FROM customers WHERE id = $1`
)

// CustomerGateway maps customers to and from store rows. Every
// operation acquires exactly one pooled connection and releases it on
// all exit paths.
type CustomerGateway struct {
	pool *store.Pool
}

func NewCustomerGateway(pool *store.Pool) *CustomerGateway {
	return &CustomerGateway{pool: pool}
}

// Save inserts a new customer. A colliding identifier is reported as
// ErrDuplicateID.
func (g *CustomerGateway) Save(ctx context.Context, c Customer) error {
	return store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlInsertCustomer, c.ID, c.FirstName, c.LastName, c.BirthDay)
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("%w: customer %s", ErrDuplicateID, c.ID)
		}
		if err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("insert customer %s: no rows affected", c.ID)
		}
		return nil
	})
}

// FindByID returns the customer or nil when absent.
func (g *CustomerGateway) FindByID(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		return scanCustomer(conn.QueryRow(ctx, sqlSelectCustomerByID, id), &c)
	})
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer %s: %w", id, err)
	}
	return &c, nil
}

// FindAll returns every customer.
func (g *CustomerGateway) FindAll(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		rows, err := conn.Query(ctx, sqlSelectAllCustomers)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Customer
			if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.BirthDay); err != nil {
				return err
			}
			customers = append(customers, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	return customers, nil
}

// Update replaces the mutable fields of an existing customer. A missing
// customer is reported as ErrCustomerNotFound.
func (g *CustomerGateway) Update(ctx context.Context, c Customer) error {
	return store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlUpdateCustomer, c.FirstName, c.LastName, c.BirthDay, c.ID)
		if err != nil {
			return fmt.Errorf("update customer %s: %w", c.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, c.ID)
		}
		return nil
	})
}

// DeleteByID removes a customer, reporting whether a row existed.
func (g *CustomerGateway) DeleteByID(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		n, err := conn.Exec(ctx, sqlDeleteCustomer, id)
		if err != nil {
			return fmt.Errorf("delete customer %s: %w", id, err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// FindByNameAndBirthDay returns the IDs of customers matching all three
// fields exactly.
func (g *CustomerGateway) FindByNameAndBirthDay(ctx context.Context, firstName, lastName string, birthDay time.Time) ([]string, error) {
	var ids []string
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		rows, err := conn.Query(ctx, sqlSelectCustomerIDsByNameBirth, firstName, lastName, birthDay)
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
		return nil, fmt.Errorf("find customers by name: %w", err)
	}
	return ids, nil
}

// Exists reports whether a customer with the given ID is stored.
func (g *CustomerGateway) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := store.WithConn(ctx, g.pool, func(conn store.Conn) error {
		return conn.QueryRow(ctx, sqlCountCustomersByID, id).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("check customer %s: %w", id, err)
	}
	return count > 0, nil
}

func scanCustomer(row store.Row, c *Customer) error {
	return row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.BirthDay)
}
