package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	MetaTxTotal        *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ReclaimTotal       *prometheus.CounterVec
	ActiveRentals      prometheus.Gauge
	FeeCollectedTotal  *prometheus.CounterVec
	SweeperJobDuration prometheus.Histogram
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		MetaTxTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_metatx_total",
			Help: "Meta-transactions processed, by kind and result",
		}, []string{"kind", "result"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketplace_operation_duration_seconds",
			Help:    "Duration of marketplace operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ReclaimTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_reclaim_total",
			Help: "Rental reclaims, by trigger and result",
		}, []string{"trigger", "result"}),
		ActiveRentals: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_active_rentals",
			Help: "Number of unsettled rental agreements",
		}),
		FeeCollectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_fee_collected_total",
			Help: "Platform fees collected in payment asset base units (float approximation)",
		}, []string{"operation", "asset"}),
		SweeperJobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketplace_sweeper_job_duration_seconds",
			Help:    "Duration of expired-rental sweeper runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// 下面的辅助函数在未初始化指标时 (测试、CLI) 不做任何事

func ObserveOperation(operation, kind, result string, elapsed time.Duration) {
	if Business == nil {
		return
	}
	if kind != "" {
		Business.MetaTxTotal.WithLabelValues(kind, result).Inc()
	}
	Business.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveReclaim(trigger, result string, n int) {
	if Business == nil {
		return
	}
	Business.ReclaimTotal.WithLabelValues(trigger, result).Add(float64(n))
}

func SetActiveRentals(n int64) {
	if Business == nil {
		return
	}
	Business.ActiveRentals.Set(float64(n))
}

func AddFeeCollected(operation, asset string, amount float64) {
	if Business == nil || amount <= 0 {
		return
	}
	Business.FeeCollectedTotal.WithLabelValues(operation, asset).Add(amount)
}

func ObserveSweep(elapsed time.Duration) {
	if Business == nil {
		return
	}
	Business.SweeperJobDuration.Observe(elapsed.Seconds())
}
