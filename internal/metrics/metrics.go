package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine and reconciliation metrics, partitioned by chain.

var (
	EngineEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "events_applied_total",
		Help:      "Total events applied to the entity store",
	}, []string{"chain", "event"})

	EngineDuplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "duplicates_skipped_total",
		Help:      "Total redelivered events skipped via the idempotency ledger",
	}, []string{"chain"})

	EngineAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "anomalies_total",
		Help:      "Total anomalous events ignored (double resolution, unknown references)",
	}, []string{"chain", "kind"})

	EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "errors_total",
		Help:      "Total terminal engine errors (after retry exhaustion)",
	}, []string{"chain"})

	EngineApplyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "apply_duration_seconds",
		Help:      "Per-event apply duration (one store transaction)",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"chain"})

	EngineHeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "head_block",
		Help:      "Highest block number applied per chain",
	}, []string{"chain"})

	ReorgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "reorgs_total",
		Help:      "Total revert notifications processed",
	}, []string{"chain"})

	ReorgEventsUndone = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "reorg_events_undone_total",
		Help:      "Total ledger events undone by reorg compensation",
	}, []string{"chain"})

	ReorgRevertLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "predict",
		Subsystem: "engine",
		Name:      "revert_duration_seconds",
		Help:      "Reorg compensation duration (one store transaction)",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain"})

	ReconcileChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "reconciliation",
		Name:      "checks_total",
		Help:      "Total invariant check passes",
	}, []string{"chain"})

	ReconcileMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "reconciliation",
		Name:      "mismatches_total",
		Help:      "Total invariant mismatches detected",
	}, []string{"chain", "invariant"})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent per channel",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts suppressed by cooldown",
	}, []string{"channel", "type"})

	SourceLogsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "source",
		Name:      "logs_received_total",
		Help:      "Total decoded logs received from the upstream stream",
	}, []string{"chain"})

	SourceDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predict",
		Subsystem: "source",
		Name:      "decode_errors_total",
		Help:      "Total stream entries that failed to decode",
	}, []string{"chain"})
)
