package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database
	// ============================================
	DBConnectionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_db_connections_open",
		Help: "Number of open database connections",
	})

	DBConnectionInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_db_connections_in_use",
		Help: "Number of database connections in use",
	})

	MintRecordsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fishit_minter_mint_records",
			Help: "Number of mint records by status",
		},
		[]string{"status"},
	)

	// ============================================
	// Periodic tasks
	// ============================================
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishit_minter_task_runs_total",
			Help: "Periodic task runs by result (ok, error, skipped)",
		},
		[]string{"task", "result"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fishit_minter_task_duration_seconds",
			Help:    "Periodic task run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	// ============================================
	// Event watcher
	// ============================================
	WatcherCheckpoint = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_watcher_checkpoint_block",
		Help: "Highest block fully scanned for FishMinted events",
	})

	WatcherChainHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_watcher_chain_head_block",
		Help: "Latest chain head seen by the watcher",
	})

	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishit_minter_events_ingested_total",
			Help: "FishMinted events handed to the pipeline by result",
		},
		[]string{"result"},
	)

	// ============================================
	// Pipeline
	// ============================================
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fishit_minter_stage_duration_seconds",
			Help:    "Duration of external stage calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	StageResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishit_minter_stage_results_total",
			Help: "Stage outcomes (ok, failed, already_done, sequencing_conflict)",
		},
		[]string{"stage", "outcome"},
	)

	// ============================================
	// Retry sweep
	// ============================================
	SweepCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_sweep_candidates",
		Help: "Retry candidates selected by the last sweep",
	})

	SweepItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishit_minter_sweep_items_total",
			Help: "Items processed by retry sweeps by result",
		},
		[]string{"result"},
	)

	// ============================================
	// NATS and WebSocket
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	StatusEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishit_minter_status_events_published_total",
			Help: "Status change events delivered by sink and result",
		},
		[]string{"sink", "result"},
	)

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fishit_minter_websocket_clients",
		Help: "Connected status feed clients",
	})
)
