package tables

import (
	"context"
	"errors"
)

// OwnerColumn holds the id of the user a row belongs to.
const OwnerColumn = "user_id"

// ErrNotOwner is returned when a write targets a row owned by another user.
var ErrNotOwner = errors.New("row belongs to another user")

// OwnerScoper is implemented by clients that enforce row ownership locally.
// Backends with their own access policies, like the REST backend, do not
// implement it.
type OwnerScoper interface {
	// OwnedTable returns a table that, whenever ctx carries an identity,
	// only reads and deletes rows whose column equals the caller's user id
	// and stamps that id on every written row.
	OwnedTable(name, column string) Table
}

// OwnedTable returns c's table scoped to the caller on column when c can
// scope rows itself, and the plain table otherwise.
func OwnedTable(c Client, name, column string) Table {
	if o, ok := c.(OwnerScoper); ok {
		return o.OwnedTable(name, column)
	}
	return c.Table(name)
}

// Owner returns the user id rows must be scoped to. Without an identity in
// ctx nothing is scoped; that is the operator and worker path.
func Owner(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// OwnedBy reports whether r's column holds user.
func (r Row) OwnedBy(column, user string) bool {
	return text(r[column]) == user
}

// NotOwned builds the error adapters return for a write on a foreign row.
func NotOwned(op, table, id string) error {
	return &RemoteError{Op: op, Table: table, Message: "row " + id + " belongs to another user", Err: ErrNotOwner}
}
