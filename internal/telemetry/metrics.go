package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rugs"

// Metrics exports event counts and live gauges to Prometheus.
type Metrics struct {
	Rounds          *prometheus.CounterVec
	Ticks           prometheus.Counter
	PositionsOpened prometheus.Counter
	PositionsClosed *prometheus.CounterVec
	EntriesSkipped  prometheus.Counter
	Errors          prometheus.Counter
	RealizedProfit  prometheus.Gauge
	OpenPositions   prometheus.Gauge
	Multiplier      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "rounds_total", Help: "Rounds finished, by outcome"},
			[]string{"outcome"},
		),
		Ticks: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "ticks_total", Help: "Ticks observed"},
		),
		PositionsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "positions_opened_total", Help: "Positions opened"},
		),
		PositionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "positions_closed_total", Help: "Positions closed, by exit kind"},
			[]string{"exit"},
		),
		EntriesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "entries_skipped_total", Help: "Buy signals not acted on"},
		),
		Errors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "errors_total", Help: "Execution and invariant errors"},
		),
		RealizedProfit: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "realized_profit", Help: "Cumulative realized profit in base units"},
		),
		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "open_positions", Help: "Positions currently open"},
		),
		Multiplier: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "current_multiplier", Help: "Multiplier of the current round"},
		),
	}
	reg.MustRegister(
		m.Rounds, m.Ticks, m.PositionsOpened, m.PositionsClosed,
		m.EntriesSkipped, m.Errors, m.RealizedProfit, m.OpenPositions, m.Multiplier,
	)
	return m
}

func (m *Metrics) Emit(ev Event) {
	switch ev.Kind {
	case KindRoundStart:
		m.Multiplier.Set(ev.Multiplier)
	case KindTick:
		m.Ticks.Inc()
		m.Multiplier.Set(ev.Multiplier)
	case KindRugPull, KindRoundEnd:
		m.Rounds.WithLabelValues(string(ev.Kind)).Inc()
	case KindPositionOpened:
		m.PositionsOpened.Inc()
		m.OpenPositions.Inc()
	case KindPositionClosed:
		exit := "strategy"
		if ev.Forced {
			exit = "forced"
		}
		m.PositionsClosed.WithLabelValues(exit).Inc()
		m.OpenPositions.Dec()
		m.RealizedProfit.Add(ev.Profit)
	case KindEntrySkipped:
		m.EntriesSkipped.Inc()
	case KindError:
		m.Errors.Inc()
	}
}
