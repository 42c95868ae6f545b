package profiler

import "github.com/prometheus/client_golang/prometheus"

// Swap and wallet lifecycle counters, incremented by the daemon's event
// handlers and exposed on the profiler /metrics endpoint.
var (
	WalletsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harbor_wallets_created_total",
		Help: "Number of wallets created or restored.",
	})
	SwapsQuoted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harbor_swaps_quoted_total",
		Help: "Number of swap executions successfully quoted.",
	})
	SwapsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harbor_swaps_submitted_total",
		Help: "Number of swap executions submitted to their source chain.",
	})
	SwapsSettled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harbor_swaps_settled_total",
		Help: "Number of swap executions settled on their destination chain.",
	})
	SwapsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harbor_swaps_expired_total",
		Help: "Number of swap executions expired before confirmation.",
	})
	SwapsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harbor_swaps_failed_total",
		Help: "Number of failed swap executions by failure reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		WalletsCreated, SwapsQuoted, SwapsSubmitted, SwapsSettled,
		SwapsExpired, SwapsFailed,
	)
}
