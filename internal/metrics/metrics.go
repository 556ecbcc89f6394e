package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_calculations_total",
			Help: "Total number of pricing calculations by trigger",
		},
		[]string{"trigger"},
	)

	CalculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotes_calculation_duration_seconds",
			Help:    "Duration of a pricing calculation in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		},
		[]string{"trigger"},
	)

	QuotedTotal = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotes_final_total_dollars",
			Help:    "Distribution of quoted final totals in dollars",
			Buckets: []float64{1000, 2000, 5000, 10000, 20000, 50000},
		},
		[]string{"project_type"},
	)

	BudgetAlignment = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_budget_alignment_total",
			Help: "Budget comparisons by alignment status",
		},
		[]string{"status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_pricing_cache_lookups_total",
			Help: "Pricing cache lookups by result",
		},
		[]string{"result"},
	)

	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_collaborator_errors_total",
			Help: "Failed calls to external collaborators",
		},
		[]string{"collaborator"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quotes_http_request_duration_seconds",
			Help: "HTTP request latency by route and status",
		},
		[]string{"route", "method", "status"},
	)
)
