package storage

import "errors"

// ErrInvalidDsn is returned when a DSN cannot be parsed or lacks a host.
var ErrInvalidDsn = errors.New("invalid dsn")

// ErrUnsupportedStorageDsn is returned when a DSN's scheme has no backend.
var ErrUnsupportedStorageDsn = errors.New("unsupported storage dsn")

// ErrNotFound is returned by the Manager's group-membership operations
// when the group (or, on removal, the identity) is absent. Backend lookups
// and the Manager's GetIdentity/GetGroup/GetPolicy never return it: a miss
// there is reported as a nil pointer, per the "missing identity is DENIED,
// not an error" rule.
var ErrNotFound = errors.New("not found")
