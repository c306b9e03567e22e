package auction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's operational counters to Prometheus.
type Metrics struct {
	bidsReceived   prometheus.Counter
	asksReceived   prometheus.Counter
	rollsTotal     prometheus.Counter
	tradesTotal    prometheus.Counter
	refundsTotal   *prometheus.CounterVec
	clearingPrice  prometheus.Gauge
	escrowHeld     prometheus.Gauge
	currentBucket  prometheus.Gauge
}

// NewMetrics registers the engine's metrics against reg. A nil reg
// registers against a fresh, unexported registry, which is useful in tests
// that construct an engine without wiring in the process's default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		bidsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_auction", Name: "bids_received_total", Help: "Bids accepted into the order book.",
		}),
		asksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_auction", Name: "asks_received_total", Help: "Asks accepted into the order book.",
		}),
		rollsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_auction", Name: "rolls_total", Help: "Completed bucket rolls.",
		}),
		tradesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_auction", Name: "trades_total", Help: "Confirmed trades across all buckets.",
		}),
		refundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_auction", Name: "refunds_total", Help: "Escrow refunds paid out, by reason.",
		}, []string{"reason"}),
		clearingPrice: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "energy_auction", Name: "last_clearing_price", Help: "Clearing price of the most recently rolled bucket.",
		}),
		escrowHeld: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "energy_auction", Name: "escrow_held", Help: "Total value currently held in escrow.",
		}),
		currentBucket: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "energy_auction", Name: "current_bucket_id", Help: "Id of the currently open bucket.",
		}),
	}
}

func (m *Metrics) observeBid()  { m.bidsReceived.Inc() }
func (m *Metrics) observeAsk()  { m.asksReceived.Inc() }

func (m *Metrics) observeRoll(clearingPrice uint64, tradeCount int, escrowHeld uint64, bucketID uint64) {
	m.rollsTotal.Inc()
	m.tradesTotal.Add(float64(tradeCount))
	m.clearingPrice.Set(float64(clearingPrice))
	m.escrowHeld.Set(float64(escrowHeld))
	m.currentBucket.Set(float64(bucketID))
}

func (m *Metrics) observeRefund(reason string, amount uint64) {
	if amount == 0 {
		return
	}
	m.refundsTotal.WithLabelValues(reason).Add(float64(amount))
}
