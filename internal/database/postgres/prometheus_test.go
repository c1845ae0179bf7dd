package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/opsdesk/sd-bridge/internal/metrics"
)

// mockStatsProvider is a minimal PoolStatsProvider for testing the exporter
// without a live database.
type mockStatsProvider struct {
	stats PoolStats
}

func (m *mockStatsProvider) Stats() PoolStats {
	return m.stats
}

func newTestStatsProvider() *mockStatsProvider {
	return &mockStatsProvider{
		stats: PoolStats{
			ActiveConnections:  5,
			IdleConnections:    10,
			ConnectionsCreated: 100,
			ConnectionWaitTime: 50 * time.Millisecond,
			TotalQueries:       1000,
			QueryExecutionTime: 500 * time.Millisecond,
			ConnectionErrors:   2,
			QueryErrors:        5,
			TimeoutErrors:      1,
		},
	}
}

func TestNewPrometheusExporter(t *testing.T) {
	pool := newTestStatsProvider()
	dbMetrics := metrics.NewDatabaseMetrics()

	exporter := NewPrometheusExporter(pool, dbMetrics)

	if exporter == nil {
		t.Fatal("NewPrometheusExporter returned nil")
	}
	if exporter.pool != pool {
		t.Error("pool not set correctly")
	}
	if exporter.dbMetrics != dbMetrics {
		t.Error("dbMetrics not set correctly")
	}
}

func TestPrometheusExporter_StartStop(t *testing.T) {
	pool := newTestStatsProvider()
	dbMetrics := metrics.NewDatabaseMetrics()
	exporter := NewPrometheusExporter(pool, dbMetrics)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	exporter.Start(ctx, 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	exporter.Stop()
	time.Sleep(10 * time.Millisecond)
}

func TestPrometheusExporter_ExportMetrics(t *testing.T) {
	pool := newTestStatsProvider()
	dbMetrics := metrics.NewDatabaseMetrics()
	exporter := NewPrometheusExporter(pool, dbMetrics)

	exporter.exportMetrics()

	exporter.pool = nil
	exporter.exportMetrics()

	exporter.pool = pool
	exporter.dbMetrics = nil
	exporter.exportMetrics()
}

func BenchmarkPrometheusExporter_ExportMetrics(b *testing.B) {
	pool := newTestStatsProvider()
	dbMetrics := metrics.NewDatabaseMetrics()
	exporter := NewPrometheusExporter(pool, dbMetrics)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exporter.exportMetrics()
	}
}
