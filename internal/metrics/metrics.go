package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)

	LedgerRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_total",
			Help: "Pass transactions handled by the ledger, by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Points credited to profiles, by rule",
		},
		[]string{"rule"},
	)

	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Chain events seen by the ingestors, by path and outcome",
		},
		[]string{"path", "outcome"},
	)
	IngestCursor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_cursor_block",
			Help: "Last block fully processed by the poller",
		},
	)
	IngestPollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_poll_errors_total",
			Help: "Poll cycles that ended in an error",
		},
	)

	ChainRPCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_rpc_errors_total",
			Help: "Chain RPC calls that failed with a transport or node error",
		},
		[]string{"method"},
	)
	ChainRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_rpc_duration_seconds",
			Help:    "Chain RPC call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	PriceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_fetches_total",
			Help: "BNB/USD quote lookups, by source",
		},
		[]string{"source"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Connected live feed clients",
		},
	)
)

func init() {
	prometheus.MustRegister(RLRequests)
	prometheus.MustRegister(RLBlocked)
	prometheus.MustRegister(LedgerRecords)
	prometheus.MustRegister(PointsAwarded)
	prometheus.MustRegister(IngestEvents)
	prometheus.MustRegister(IngestCursor)
	prometheus.MustRegister(IngestPollErrors)
	prometheus.MustRegister(ChainRPCErrors)
	prometheus.MustRegister(ChainRPCDuration)
	prometheus.MustRegister(PriceFetches)
	prometheus.MustRegister(WSClients)
}
