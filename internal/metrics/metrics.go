package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_transactions_total",
			Help: "Total number of ledger transactions appended",
		},
		[]string{"type"},
	)

	TransactionVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_transaction_volume_coins",
			Help: "Absolute coin volume of ledger transactions",
		},
		[]string{"type"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_operation_errors_total",
			Help: "Total number of failed wallet operations",
		},
		[]string{"operation", "code"},
	)

	RewardRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_reward_rejections_total",
			Help: "Total number of reward grants rejected by the limit guard",
		},
		[]string{"reason"},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_store_orders_total",
			Help: "Total number of store orders by final status",
		},
		[]string{"status"},
	)

	FiatPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinforge_fiat_purchases_total",
			Help: "Total number of fiat purchase transitions",
		},
		[]string{"status"},
	)

	ExpiredChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinforge_expired_chunks_total",
			Help: "Total number of promotional credit chunks lapsed by the sweep",
		},
	)
)

// RecordTransaction counts one appended ledger row and its absolute volume.
func RecordTransaction(txType string, absVolume float64) {
	TransactionsTotal.WithLabelValues(txType).Inc()
	TransactionVolume.WithLabelValues(txType).Add(absVolume)
}

func RecordOperationError(operation, code string) {
	OperationErrorsTotal.WithLabelValues(operation, code).Inc()
}

func RecordRewardRejection(reason string) {
	RewardRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordOrder(status string) {
	OrdersTotal.WithLabelValues(status).Inc()
}

func RecordFiatPurchase(status string) {
	FiatPurchasesTotal.WithLabelValues(status).Inc()
}

func RecordExpiredChunk() {
	ExpiredChunksTotal.Inc()
}
