// Package metrics provides Prometheus metrics for the peloton rules engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Transfer ledger
	transfersStaged    *prometheus.CounterVec
	stageRejections    *prometheus.CounterVec
	commitOutcomes     *prometheus.CounterVec
	penaltyPoints      prometheus.Counter
	staleCommits       prometheus.Counter
	invariantFailures  *prometheus.CounterVec
	activeDraftSession prometheus.Gauge

	// Power-ups
	powerUpTransitions *prometheus.CounterVec

	// Pricing
	priceChanges    *prometheus.CounterVec
	boostedCyclists prometheus.Gauge

	// Scoring
	stagesProcessed  prometheus.Counter
	stagesDuplicate  prometheus.Counter
	pointsAwarded    prometheus.Counter
	budgetAwarded    prometheus.Counter
	scoringLatency   prometheus.Histogram
	standingsEntries prometheus.Gauge

	// Leagues
	leagueMemberships *prometheus.CounterVec

	// Jobs
	jobRuns       *prometheus.CounterVec
	jobLatency    *prometheus.HistogramVec
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge

	// Storage
	repositoryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Runtime
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "peloton",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.transfersStaged = auto.NewCounterVec(m.counterOpts("transfers_staged_total",
		"Staged draft changes by action"), []string{"action"})
	m.stageRejections = auto.NewCounterVec(m.counterOpts("stage_rejections_total",
		"Staging requests rejected by reason"), []string{"reason"})
	m.commitOutcomes = auto.NewCounterVec(m.counterOpts("commit_operations_total",
		"Commit sub-operations by kind and outcome"), []string{"kind", "outcome"})
	m.penaltyPoints = auto.NewCounter(m.counterOpts("transfer_penalty_points_total",
		"Points deducted as transfer penalties"))
	m.staleCommits = auto.NewCounter(m.counterOpts("stale_commits_total",
		"Commits rejected because the team changed since the draft opened"))
	m.invariantFailures = auto.NewCounterVec(m.counterOpts("invariant_violations_total",
		"Internal inconsistencies detected and aborted"), []string{"component"})
	m.activeDraftSession = auto.NewGauge(m.gaugeOpts("draft_sessions",
		"Open draft sessions"))

	m.powerUpTransitions = auto.NewCounterVec(m.counterOpts("powerup_transitions_total",
		"Power-up state transitions"), []string{"kind", "transition"})

	m.priceChanges = auto.NewCounterVec(m.counterOpts("price_changes_total",
		"Cyclist price changes by reason"), []string{"reason"})
	m.boostedCyclists = auto.NewGauge(m.gaugeOpts("boosted_cyclists",
		"Cyclists currently carrying a pre-race boost"))

	m.stagesProcessed = auto.NewCounter(m.counterOpts("stages_processed_total",
		"Stages scored for the first time"))
	m.stagesDuplicate = auto.NewCounter(m.counterOpts("stages_duplicate_total",
		"Stage scoring runs skipped because the stage was already processed"))
	m.pointsAwarded = auto.NewCounter(m.counterOpts("points_awarded_total",
		"Fantasy points added to team totals"))
	m.budgetAwarded = auto.NewCounter(m.counterOpts("budget_awarded_millions_total",
		"Prize money added to team budgets, in millions"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_seconds",
		"Time spent scoring one stage for all teams"))
	m.standingsEntries = auto.NewGauge(m.gaugeOpts("standings_entries",
		"Teams tracked in the season standings"))

	m.leagueMemberships = auto.NewCounterVec(m.counterOpts("league_memberships_total",
		"League membership changes by operation"), []string{"op"})

	m.jobRuns = auto.NewCounterVec(m.counterOpts("job_runs_total",
		"Batch job executions by kind and outcome"), []string{"kind", "outcome"})
	m.jobLatency = auto.NewHistogramVec(m.histogramOpts("job_duration_seconds",
		"Batch job execution time"), []string{"kind"})
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueRejected = auto.NewCounter(m.counterOpts("queue_rejected_total",
		"Jobs rejected because the queue was full or closed"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running job workers"))

	m.repositoryLatency = auto.NewHistogramVec(m.histogramOpts("repository_latency_seconds",
		"Storage call latency by backend and operation"), []string{"backend", "operation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by route, method and status"), []string{"route", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_seconds",
		"HTTP request latency"), []string{"route", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.memoryUsage = auto.NewGauge(m.gaugeOpts("memory_usage_bytes", "Heap bytes in use"))
	m.goroutineCount = auto.NewGauge(m.gaugeOpts("goroutines", "Number of goroutines"))
}

// RecordTransferStaged counts a staged addition or removal.
func RecordTransferStaged(action string) {
	globalManager.transfersStaged.WithLabelValues(action).Inc()
}

// RecordStageRejection counts a staging request refused for reason.
func RecordStageRejection(reason string) {
	globalManager.stageRejections.WithLabelValues(reason).Inc()
}

// RecordCommitOperation counts one commit sub-operation outcome.
func RecordCommitOperation(kind, outcome string) {
	globalManager.commitOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordPenalty adds deducted penalty points.
func RecordPenalty(points int) {
	if points > 0 {
		globalManager.penaltyPoints.Add(float64(points))
	}
}

// RecordStaleCommit counts a commit refused on a version mismatch.
func RecordStaleCommit() {
	globalManager.staleCommits.Inc()
}

// RecordInvariantViolation counts an aborted inconsistent operation.
func RecordInvariantViolation(component string) {
	globalManager.invariantFailures.WithLabelValues(component).Inc()
}

// UpdateDraftSessions sets the number of open draft sessions.
func UpdateDraftSessions(n int) {
	globalManager.activeDraftSession.Set(float64(n))
}

// RecordPowerUpTransition counts a power-up state change.
func RecordPowerUpTransition(kind, transition string) {
	globalManager.powerUpTransitions.WithLabelValues(kind, transition).Inc()
}

// RecordPriceChange counts a price write by reason.
func RecordPriceChange(reason string) {
	globalManager.priceChanges.WithLabelValues(reason).Inc()
}

// UpdateBoostedCyclists sets the number of boosted cyclists.
func UpdateBoostedCyclists(n int) {
	globalManager.boostedCyclists.Set(float64(n))
}

// RecordStageProcessed counts a newly scored stage.
func RecordStageProcessed() {
	globalManager.stagesProcessed.Inc()
}

// RecordStageDuplicate counts a skipped re-run of a scored stage.
func RecordStageDuplicate() {
	globalManager.stagesDuplicate.Inc()
}

// RecordPointsAwarded adds points applied to team totals.
func RecordPointsAwarded(points int) {
	if points > 0 {
		globalManager.pointsAwarded.Add(float64(points))
	}
}

// RecordBudgetAwarded adds prize money applied to budgets.
func RecordBudgetAwarded(millions float64) {
	if millions > 0 {
		globalManager.budgetAwarded.Add(millions)
	}
}

// RecordScoringLatency observes the duration of one stage scoring run.
func RecordScoringLatency(seconds float64) {
	globalManager.scoringLatency.Observe(seconds)
}

// UpdateStandingsEntries sets the number of ranked teams.
func UpdateStandingsEntries(n int) {
	globalManager.standingsEntries.Set(float64(n))
}

// RecordLeagueMembership counts a join or leave.
func RecordLeagueMembership(op string) {
	globalManager.leagueMemberships.WithLabelValues(op).Inc()
}

// RecordJobRun counts a finished job and observes its duration.
func RecordJobRun(kind, outcome string, seconds float64) {
	globalManager.jobRuns.WithLabelValues(kind, outcome).Inc()
	globalManager.jobLatency.WithLabelValues(kind).Observe(seconds)
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a refused enqueue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordRepositoryLatency observes one storage call.
func RecordRepositoryLatency(backend, operation string, seconds float64) {
	globalManager.repositoryLatency.WithLabelValues(backend, operation).Observe(seconds)
}

// RecordHTTPRequest counts an HTTP request and observes its latency.
func RecordHTTPRequest(route, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(seconds)
}

// RecordError counts an error for a component.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateMemoryUsage sets heap bytes in use.
func UpdateMemoryUsage(bytes uint64) {
	globalManager.memoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount sets the number of goroutines.
func UpdateGoroutineCount(count int) {
	globalManager.goroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
