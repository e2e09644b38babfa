package database

import (
	"context"
	"database/sql"
	"time"
)

// ConnectionPoolStats is a narrowed snapshot of database/sql.DBStats — just
// the fields an operator looks at, not the raw struct. Sits alongside
// pkg/queue.PoolHealth as the other half of the "is this process okay"
// picture: that one reports in-flight flows, this one reports the DB the
// flows depend on.
type ConnectionPoolStats struct {
	Open         int           `json:"open"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
	MaxOpen      int           `json:"max_open"`
}

// DatabaseHealth reports whether the database answered a ping and, if so,
// its connection pool's current shape. Pool is the zero value when the
// ping failed — there was nothing to snapshot.
type DatabaseHealth struct {
	IsHealthy bool                `json:"is_healthy"`
	CheckedAt time.Time           `json:"checked_at"`
	Latency   time.Duration       `json:"latency"`
	Error     string              `json:"error,omitempty"`
	Pool      ConnectionPoolStats `json:"pool"`
}

// CheckHealth pings db and, on success, snapshots its connection pool. It
// never returns a Go error: a failed ping is folded into IsHealthy/Error so
// a caller can always serialize a result without a second error-handling
// path.
func CheckHealth(ctx context.Context, db *sql.DB) *DatabaseHealth {
	start := time.Now()
	health := &DatabaseHealth{CheckedAt: start}

	err := db.PingContext(ctx)
	health.Latency = time.Since(start)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	health.IsHealthy = true
	health.Pool = poolSnapshot(db.Stats())
	return health
}

func poolSnapshot(stats sql.DBStats) ConnectionPoolStats {
	return ConnectionPoolStats{
		Open:         stats.OpenConnections,
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration,
		MaxOpen:      stats.MaxOpenConnections,
	}
}
