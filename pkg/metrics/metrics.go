package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chain switch results
const (
	SwitchConfirmed     = "confirmed"
	SwitchAdded         = "added"
	SwitchRejected      = "rejected"
	SwitchNotConfigured = "not_configured"
	SwitchTimeout       = "timeout"
	SwitchSuperseded    = "superseded"
	SwitchFailed        = "failed"
)

var (
	// WalletActivations tracks active wallet swaps per connector
	WalletActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletconnector_wallet_activations_total",
			Help: "Total number of active wallet changes",
		},
		[]string{"connector"},
	)

	// ProviderCycles tracks provider re-subscriptions per connector
	ProviderCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletconnector_provider_cycles_total",
			Help: "Total number of provider cycles",
		},
		[]string{"connector"},
	)

	// ChainSwitches tracks chain switch outcomes
	ChainSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletconnector_chain_switches_total",
			Help: "Total number of chain switch attempts by result",
		},
		[]string{"connector", "result"},
	)

	// ChainSwitchLatency tracks how long the wallet takes to confirm a switch
	ChainSwitchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletconnector_chain_switch_latency_seconds",
			Help:    "Chain switch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector"},
	)

	// ProviderDisconnects tracks disconnects reported by providers
	ProviderDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletconnector_provider_disconnects_total",
			Help: "Total number of provider disconnect events",
		},
		[]string{"connector", "recovered"},
	)
)
