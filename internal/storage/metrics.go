package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts rows held by the storage.
type Stats struct {
	SharedItems   int64     // Shared items across all scopes
	PendingLogins int64     // Scopes holding an unredeemed login state
	Tokens        int64     // Stored tokens
	CollectedAt   time.Time // When these stats were collected
}

// GetStats collects storage statistics.
func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CollectedAt: time.Now()}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN item_key = 'wallet_oauth_state' THEN 1 END)
		FROM shared_items
	`).Scan(&stats.SharedItems, &stats.PendingLogins)
	if err != nil {
		return nil, fmt.Errorf("failed to count shared items: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&stats.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	return stats, nil
}

// StatsCollector exports storage Stats as Prometheus gauges.
type StatsCollector struct {
	storage *SQLiteStorage

	sharedItems   *prometheus.Desc
	pendingLogins *prometheus.Desc
	tokens        *prometheus.Desc
}

// NewStatsCollector creates a collector; register it with a prometheus.Registerer.
func NewStatsCollector(s *SQLiteStorage) *StatsCollector {
	return &StatsCollector{
		storage:       s,
		sharedItems:   prometheus.NewDesc("marketfront_storage_shared_items", "Shared items currently stored.", nil, nil),
		pendingLogins: prometheus.NewDesc("marketfront_storage_pending_login_states", "Scopes holding an unredeemed login state.", nil, nil),
		tokens:        prometheus.NewDesc("marketfront_storage_tokens", "Wallet tokens currently stored.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sharedItems
	ch <- c.pendingLogins
	ch <- c.tokens
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := c.storage.GetStats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.sharedItems, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.sharedItems, prometheus.GaugeValue, float64(stats.SharedItems))
	ch <- prometheus.MustNewConstMetric(c.pendingLogins, prometheus.GaugeValue, float64(stats.PendingLogins))
	ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(stats.Tokens))
}
