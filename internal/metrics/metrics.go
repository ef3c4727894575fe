// Package metrics exposes dispatcher telemetry as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// Collector holds the dispatcher's Prometheus instruments. One Collector
// is registered per process.
type Collector struct {
	cyclesTotal        *prometheus.CounterVec
	assignmentsTotal   prometheus.Counter
	failuresTotal      prometheus.Counter
	reassignmentsTotal prometheus.Counter

	pendingOrders     prometheus.Gauge
	availableCapacity prometheus.Gauge
	demandSupplyRatio prometheus.Gauge

	cycleDuration prometheus.Histogram
	avgCost       prometheus.Histogram
}

// NewCollector creates and registers the dispatcher instruments on the
// given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_cycles_total",
			Help: "Assignment cycles executed, labeled by surge level and solver.",
		}, []string{"surge_level", "algorithm"}),
		assignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Orders successfully assigned across all cycles.",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_assignment_failures_total",
			Help: "Pending orders left unassigned at cycle end.",
		}),
		reassignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_reassignments_total",
			Help: "Assignments torn up by reassignment triggers.",
		}),
		pendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_pending_orders",
			Help: "Orders awaiting assignment at the last cycle.",
		}),
		availableCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_available_capacity",
			Help: "Fleet delivery capacity at the last cycle.",
		}),
		demandSupplyRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_demand_supply_ratio",
			Help: "Pending orders divided by available capacity.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_cycle_duration_seconds",
			Help:    "Wall time of one assignment cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		avgCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_cycle_avg_cost",
			Help:    "Mean decision cost per cycle.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 12),
		}),
	}

	reg.MustRegister(
		c.cyclesTotal,
		c.assignmentsTotal,
		c.failuresTotal,
		c.reassignmentsTotal,
		c.pendingOrders,
		c.availableCapacity,
		c.demandSupplyRatio,
		c.cycleDuration,
		c.avgCost,
	)
	return c
}

// ObserveCycle records the outcome of one assignment cycle.
func (c *Collector) ObserveCycle(result *models.AssignmentCycleResult, surge models.SurgeState, elapsed time.Duration) {
	c.cyclesTotal.WithLabelValues(string(result.SurgeLevel), result.Algorithm).Inc()
	c.assignmentsTotal.Add(float64(result.SuccessCount))
	c.failuresTotal.Add(float64(result.FailureCount))

	c.pendingOrders.Set(float64(surge.PendingOrderCount))
	c.availableCapacity.Set(float64(surge.AvailableCapacity))
	c.demandSupplyRatio.Set(surge.DemandSupplyRatio)

	c.cycleDuration.Observe(elapsed.Seconds())
	if result.SuccessCount > 0 {
		c.avgCost.Observe(result.Metrics.AvgCost)
	}
}

// ObserveReassignments adds applied reassignments to the counter.
func (c *Collector) ObserveReassignments(n int) {
	if n > 0 {
		c.reassignmentsTotal.Add(float64(n))
	}
}
