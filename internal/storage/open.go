package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// startupRetryInterval is the fixed backoff between connection attempts
// while the backend is unavailable at startup.
const startupRetryInterval = 5 * time.Second

// Closer is implemented by backends that hold a connection pool.
type Closer interface {
	Close() error
}

// OpenFunc connects a Backend for a DSN. Backend packages register one per
// scheme via RegisterBackend, the same way database/sql drivers register
// themselves; callers then blank-import the backend package they want.
type OpenFunc func(ctx context.Context, dsn string) (Backend, error)

var backends = map[string]OpenFunc{}

// RegisterBackend associates a DSN scheme with a backend constructor. It is
// intended to be called from a backend package's init; registering the same
// scheme twice panics, since it can only be a wiring mistake.
func RegisterBackend(scheme string, open OpenFunc) {
	if _, dup := backends[scheme]; dup {
		panic(fmt.Sprintf("storage: backend scheme %q registered twice", scheme))
	}
	backends[scheme] = open
}

// Open parses dsn, dispatches on its scheme to the matching registered
// Backend, and wraps it in a caching Manager. The returned Closer releases
// the backend's connection pool; it is a no-op for backends that don't
// hold one.
func Open(ctx context.Context, dsn string) (*Manager, Closer, error) {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidDsn, dsn)
	}

	open, ok := backends[u.Scheme]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedStorageDsn, u.Scheme)
	}

	backend, err := open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	closer, ok := backend.(Closer)
	if !ok {
		closer = nopCloser{}
	}
	return NewManager(backend), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenWithRetry calls Open repeatedly on a fixed interval until it succeeds
// or ctx is done, logging each failed attempt through log. This implements
// the startup requirement that the service wait for its database rather
// than exit when the DSN is valid but temporarily unreachable.
func OpenWithRetry(ctx context.Context, dsn string, log func(attempt int, err error)) (*Manager, Closer, error) {
	attempt := 0
	for {
		attempt++
		manager, closer, err := Open(ctx, dsn)
		if err == nil {
			return manager, closer, nil
		}

		// An invalid or unsupported DSN is a configuration error, not a
		// transient one: retrying it is pointless, so fail fast.
		if isPermanentDsnError(err) {
			return nil, nil, err
		}

		if log != nil {
			log(attempt, err)
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(startupRetryInterval):
		}
	}
}

func isPermanentDsnError(err error) bool {
	return errors.Is(err, ErrInvalidDsn) || errors.Is(err, ErrUnsupportedStorageDsn)
}
