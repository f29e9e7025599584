// Package monitoring exposes the daemon's Prometheus metrics. Collectors
// are package-level and registered via promauto so every component can
// record without carrying a registry around.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlaced counts orders accepted by an exchange.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volumebot_orders_placed_total",
		Help: "Orders accepted by the exchange, by symbol and side.",
	}, []string{"symbol", "side"})

	// OrdersFailed counts orders rejected by an exchange or the transport.
	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volumebot_orders_failed_total",
		Help: "Order placements that failed, by symbol and side.",
	}, []string{"symbol", "side"})

	// CyclesTotal counts completed trading cycles, including skipped ones.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volumebot_cycles_total",
		Help: "Trading cycles executed, by symbol.",
	}, []string{"symbol"})

	// ActiveBots tracks the number of loops currently running.
	ActiveBots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volumebot_active_bots",
		Help: "Number of bot loops currently running.",
	})

	// SpreadPct records the last observed spread percentage per symbol.
	SpreadPct = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "volumebot_spread_percent",
		Help: "Last observed bid/ask spread as a percentage of mid price.",
	}, []string{"symbol"})

	// RemainingVolume records each bot's volume still to be traded.
	RemainingVolume = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "volumebot_remaining_volume",
		Help: "Base-asset volume remaining per bot.",
	}, []string{"bot_id", "symbol"})
)
