package core

import (
	"strings"

	"github.com/google/uuid"
)

// IDSupplier produces fresh, collision-resistant identifiers. Account
// identifiers encode the kind in a prefix so an ID alone reveals the
// negative-balance policy.
type IDSupplier interface {
	CustomerID(firstName, lastName string) string
	AccountID(kind AccountKind) string
}

// UUIDSupplier derives identifiers from random UUIDs. Customer IDs keep
// a human-readable name stem for operator convenience.
type UUIDSupplier struct{}

func (UUIDSupplier) CustomerID(firstName, lastName string) string {
	stem := ""
	if firstName != "" {
		stem = strings.ToLower(firstName[:1])
	}
	stem += strings.ToLower(strings.ReplaceAll(lastName, " ", ""))
	return stem + "-" + uuid.NewString()
}

func (UUIDSupplier) AccountID(kind AccountKind) string {
	prefix := "P-"
	if kind == KindCorporate {
		prefix = "C-"
	}
	return prefix + uuid.NewString()
}
