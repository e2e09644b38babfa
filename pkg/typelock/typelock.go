// Package typelock implements the Per-Type Serializer: a mutual-exclusion
// lock keyed by document type, backed by the State Store's native advisory
// lock so the guarantee survives process restarts and holds across a
// multi-process deployment even though this orchestrator runs single-process.
package typelock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docfiler/pkg/database"
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// configured deadline. Callers should treat it as transient (spec error
// kind 5): the row is retried on the next orchestrator tick.
var ErrLockTimeout = errors.New("typelock: timed out waiting for per-type lock")

// Locker serializes execution for a given document type.
type Locker struct {
	db           *sql.DB
	pollInterval time.Duration
	timeout      time.Duration
}

// New builds a Locker. pollInterval is the retry cadence while waiting;
// timeout bounds the total wait before ErrLockTimeout is returned.
func New(db *sql.DB, pollInterval, timeout time.Duration) *Locker {
	return &Locker{db: db, pollInterval: pollInterval, timeout: timeout}
}

// key derives the logical advisory-lock name for a document type.
func key(documentType string) string {
	return fmt.Sprintf("doctype:%s", documentType)
}

// WithTypeLock runs body while holding the exclusive per-type lock for
// documentType. Only one caller system-wide executes inside body for a
// given type at a time; others poll at pollInterval until the lock frees
// or the deadline passes, in which case ErrLockTimeout is returned without
// running body. The lock is released on every exit path from body,
// including panics and context cancellation.
func (l *Locker) WithTypeLock(ctx context.Context, documentType string, body func(ctx context.Context) error) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("typelock: acquire connection: %w", err)
	}
	defer conn.Close()

	name := key(documentType)
	deadline := time.Now().Add(l.timeout)

	for {
		acquired, err := database.TryAcquireLock(ctx, conn, name)
		if err != nil {
			return fmt.Errorf("typelock: %w", err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	defer func() {
		// Best-effort release using a fresh context: body's ctx may already
		// be cancelled, but the lock must still be freed for other waiters.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.ReleaseLock(releaseCtx, conn, name)
	}()

	// The deferred release above runs during a panic's stack unwind too, so
	// body's critical section never leaks the lock even if it panics.
	return body(ctx)
}
