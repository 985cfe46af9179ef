// Package observability wires tracing and Prometheus metrics.
//
// This file declares the bot's domain collectors. They are package-level,
// registered once in init(), and updated by the monitor handlers, the
// interval workers, the cached Grocy client, the notifier and the Telegram
// command loop. All series share the "grocybot_" prefix so /stats and
// dashboards can select them without listing names.
//
// Label cardinality:
//   - product_name is bounded by the household's product catalogue
//   - worker, operation and command are fixed sets defined in code
package observability

import "github.com/prometheus/client_golang/prometheus"

// MetricPrefix is shared by every collector declared here.
const MetricPrefix = "grocybot_"

var (
	// Monitor gauges.
	ChoresTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricPrefix + "chores_total",
		Help: "Number of chores known to Grocy.",
	})
	ChoresOverdue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricPrefix + "chores_overdue",
		Help: "Number of chores past their next estimated execution time.",
	})
	ProductInventory = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricPrefix + "product_inventory",
		Help: "Available amount per product.",
	}, []string{"product_name"})
	ProductsExpired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricPrefix + "products_expired",
		Help: "Number of products past their best-before date.",
	})
	ProductsExpiring = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricPrefix + "products_expiring",
		Help: "Number of products expiring within the due-soon window.",
	})
	ShoppingListItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricPrefix + "shopping_list_items",
		Help: "Number of items per shopping list.",
	}, []string{"name"})
	TasksTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricPrefix + "tasks_total",
		Help: "Number of open Grocy tasks.",
	})

	// Worker loop.
	WorkerRunSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricPrefix + "worker_run_seconds",
		Help:    "Duration of a single interval worker run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	WorkerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "worker_errors_total",
		Help: "Errors absorbed by interval workers, by stage (fetch, identity, callback, panic).",
	}, []string{"worker", "stage"})

	// Cache in front of the Grocy API.
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "cache_requests_total",
		Help: "Cached Grocy reads by operation and result (hit|miss).",
	}, []string{"operation", "result"})
	CacheInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "cache_invalidations_total",
		Help: "Whole-cache invalidations by triggering operation.",
	}, []string{"operation"})

	// Grocy HTTP client.
	GrocyRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricPrefix + "grocy_request_seconds",
		Help:    "Latency of Grocy API calls by operation and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	// Notifications.
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "notifications_total",
		Help: "Notification deliveries by status (sent|failed|suppressed).",
	}, []string{"status"})

	// Telegram commands.
	CommandSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricPrefix + "command_seconds",
		Help:    "Time spent handling a bot command.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		ChoresTotal, ChoresOverdue, ProductInventory, ProductsExpired, ProductsExpiring,
		ShoppingListItems, TasksTotal,
		WorkerRunSeconds, WorkerErrors,
		CacheRequests, CacheInvalidations,
		GrocyRequestSeconds,
		Notifications,
		CommandSeconds,
	)
}
