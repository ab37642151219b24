package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	PurchasesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_created_total",
			Help: "Total pending purchases created at intake",
		},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Terminal payment statuses applied to purchases",
		},
		[]string{"status"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	TicketsMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_materialized_total",
			Help: "Ticket rows created by the materializer",
		},
	)

	PlanSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "materializer_plan_sources_total",
			Help: "How seat plans were resolved (manifest or inferred)",
		},
		[]string{"source"},
	)

	ArtifactRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_renders_total",
			Help: "Ticket artifacts rendered by format",
		},
		[]string{"format"},
	)

	pendingManifests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_manifests_total",
			Help: "Attendee manifests still waiting for materialization",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()

		m.collectManifestMetrics(ctx)
		goroutineCount.Set(float64(runtime.NumGoroutine()))
	}
}

func (m *Monitor) collectManifestMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "manifest:*").Result()
	if err != nil {
		return
	}
	pendingManifests.Set(float64(len(keys)))
}
