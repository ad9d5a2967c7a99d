package txn

import "errors"

var (
	// ErrUnknownTransaction is returned when a command names a transaction
	// id the manager has no record of.
	ErrUnknownTransaction = errors.New("txn: unknown transaction")
	// ErrUnknownSite is returned when a command names a site id outside
	// 1..10.
	ErrUnknownSite = errors.New("txn: unknown site")
)
