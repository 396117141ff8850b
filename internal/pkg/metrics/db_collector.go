package metrics

import "github.com/jackc/pgx/v5/pgxpool"

// RecordDBPoolMetrics publishes a point-in-time view of the pool. Called on
// a ticker by the app's background collector.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	s := pool.Stat()
	DBPoolConnections.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(s.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(s.ConstructingConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(s.MaxConns()))
}
