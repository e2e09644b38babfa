package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// LockKey hashes a logical lock name (e.g. "doctype:bill") into the 63-bit
// signed integer pg_try_advisory_lock expects. Two distinct names may in
// principle collide; callers needing a true per-name guarantee should keep
// names short and distinct by prefix, which is how the per-type serializer
// uses this.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	// Clear the sign bit: pg_try_advisory_lock takes a signed bigint and a
	// negative key is legal but needlessly confusing in logs.
	return int64(h.Sum64() >> 1)
}

// TryAcquireLock attempts to take a session-scoped Postgres advisory lock
// on conn. It returns immediately: true if the lock was taken, false if it
// is already held by another session. The lock is tied to conn and is
// released automatically if the underlying connection drops.
func TryAcquireLock(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var acquired bool
	err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, LockKey(name)).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try advisory lock %q: %w", name, err)
	}
	return acquired, nil
}

// ReleaseLock releases a session-scoped advisory lock previously taken on
// the same conn via TryAcquireLock. Releasing a lock not held by this
// session is a no-op per Postgres semantics.
func ReleaseLock(ctx context.Context, conn *sql.Conn, name string) error {
	var released bool
	err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, LockKey(name)).Scan(&released)
	if err != nil {
		return fmt.Errorf("release advisory lock %q: %w", name, err)
	}
	return nil
}
