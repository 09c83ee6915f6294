package database

import (
	"context"
	"time"
)

// HealthStatus reports database health and connection pool statistics.
type HealthStatus struct {
	Status         string `json:"status"`
	ResponseTime   int64  `json:"response_time_ms"`
	TotalConns     int32  `json:"total_conns"`
	AcquiredConns  int32  `json:"acquired_conns"`
	IdleConns      int32  `json:"idle_conns"`
	MaxConns       int32  `json:"max_conns"`
	EmptyAcquireCt int64  `json:"empty_acquire_count"`
}

// Health pings the database and returns pool statistics.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.pool.Ping(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := c.pool.Stat()
	return &HealthStatus{
		Status:         "healthy",
		ResponseTime:   time.Since(start).Milliseconds(),
		TotalConns:     stats.TotalConns(),
		AcquiredConns:  stats.AcquiredConns(),
		IdleConns:      stats.IdleConns(),
		MaxConns:       stats.MaxConns(),
		EmptyAcquireCt: stats.EmptyAcquireCount(),
	}, nil
}
