// Package metrics exposes the platform's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	deposits       *prometheus.CounterVec
	depositAmount  prometheus.Counter
	joins          *prometheus.CounterVec
	payouts        prometheus.Counter
	payoutAmount   prometheus.Counter
	withdrawals    *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	statusSweeps   prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "wallet", Name: "deposits_total",
			Help: "Deposit verifications by outcome",
		}, []string{"outcome"}),
		depositAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "wallet", Name: "deposit_rupees_total",
			Help: "Rupees credited by verified deposits",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "tournament", Name: "joins_total",
			Help: "Tournament join attempts by outcome",
		}, []string{"outcome"}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "tournament", Name: "payouts_total",
			Help: "Prize payouts credited",
		}),
		payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "tournament", Name: "payout_rupees_total",
			Help: "Rupees credited as prizes",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "wallet", Name: "withdrawals_total",
			Help: "Withdrawal requests by outcome",
		}, []string{"outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kirda", Subsystem: "gateway", Name: "request_latency_seconds",
			Help: "Payment gateway call latency", Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		statusSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "tournament", Name: "status_transitions_total",
			Help: "Tournament status changes applied by the time sweep",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kirda", Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kirda", Subsystem: "http", Name: "request_latency_seconds",
			Help: "HTTP request latency", Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(m.deposits, m.depositAmount, m.joins, m.payouts, m.payoutAmount,
		m.withdrawals, m.gatewayLatency, m.statusSweeps, m.httpRequests, m.httpLatency)
	return m
}

func (m *Metrics) Deposit(outcome string, rupees float64) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(outcome).Inc()
	if rupees > 0 {
		m.depositAmount.Add(rupees)
	}
}

func (m *Metrics) Join(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Payout(rupees float64) {
	if m == nil {
		return
	}
	m.payouts.Inc()
	m.payoutAmount.Add(rupees)
}

func (m *Metrics) Withdrawal(outcome string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayCall(operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, outcome).Observe(took.Seconds())
}

func (m *Metrics) StatusTransitions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.statusSweeps.Add(float64(n))
}

func (m *Metrics) HTTPRequest(route, method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpLatency.WithLabelValues(route, method, code).Observe(took.Seconds())
}
