// Package db owns the PostgreSQL schema and connection pools.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/groundwork/pkg/async"
	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// ConnectionManager manages the PostgreSQL primary and read replica pools.
// Writes and access checks go to the primary. Replicas serve reporting reads
// that tolerate lag (analytics, search).
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  atomic.Uint32
	mu       sync.RWMutex
	logger   *observability.Logger
}

// Open connects to the primary and every reachable replica
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *observability.Logger) (*ConnectionManager, error) {
	primary, err := openPool(ctx, cfg.URL, cfg.MaxOpenConns, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary: %w", err)
	}

	var replicas []*sql.DB
	for i, url := range cfg.ReplicaURLs {
		replica, err := openPool(ctx, url, max(cfg.MaxOpenConns/2, 2), cfg)
		if err != nil {
			// replicas are optional
			logger.WithError(err).WithField("replica", i).Warn("Skipping unreachable replica")
			continue
		}
		replicas = append(replicas, replica)
	}

	logger.WithField("replicas", len(replicas)).Info("Database connections established")
	return NewConnectionManager(primary, replicas, logger), nil
}

func openPool(ctx context.Context, url string, maxOpen int, cfg config.DatabaseConfig) (*sql.DB, error) {
	pool, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewConnectionManager wraps already opened pools
func NewConnectionManager(primary *sql.DB, replicas []*sql.DB, logger *observability.Logger) *ConnectionManager {
	return &ConnectionManager{primary: primary, replicas: replicas, logger: logger}
}

// Primary returns the primary database connection (for writes)
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a read replica using round-robin selection.
// Falls back to primary if no replicas are available.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	index := cm.current.Add(1)
	return cm.replicas[int(index%uint32(len(cm.replicas)))]
}

// RemoveUnhealthyReplicas closes and drops replicas that fail a ping
func (cm *ConnectionManager) RemoveUnhealthyReplicas(ctx context.Context) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	healthy := cm.replicas[:0]
	removed := 0
	for _, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			replica.Close()
			removed++
			continue
		}
		healthy = append(healthy, replica)
	}
	cm.replicas = healthy
	return removed
}

// StartHealthCheckRoutine periodically drops unhealthy replicas and records pool stats
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration, metrics *observability.Metrics) {
	if interval == 0 {
		interval = 30 * time.Second
	}

	async.SafeGo(ctx, cm.logger, "db-health-check", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if removed := cm.RemoveUnhealthyReplicas(checkCtx); removed > 0 {
					cm.logger.WithField("removed", removed).Warn("Removed unhealthy replicas")
				}
				cancel()
				cm.RecordStats(metrics)
			case <-ctx.Done():
				return
			}
		}
	})
}

// RecordStats publishes primary pool statistics
func (cm *ConnectionManager) RecordStats(metrics *observability.Metrics) {
	if metrics == nil {
		return
	}
	stats := cm.primary.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	metrics.DBConnectionsIdle.Set(float64(stats.Idle))
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
