package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's Prometheus instrumentation. Construct one
// with NewMetrics and pass it via Options; a nil Metrics disables
// instrumentation entirely.
type Metrics struct {
	actionsSubmitted   prometheus.Counter
	actionsForwarded   prometheus.Counter
	executionsStarted  *prometheus.CounterVec
	executionsFinished *prometheus.CounterVec
	executionFaults    *prometheus.CounterVec
	limiterDropped     *prometheus.CounterVec
	activeExecutions   prometheus.Gauge
}

// NewMetrics registers the engine collectors on the supplied registerer.
// Pass prometheus.DefaultRegisterer for the usual global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		actionsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "actions_submitted_total",
			Help:      "Actions submitted to the engine, including re-dispatches.",
		}),
		actionsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "actions_forwarded_total",
			Help:      "Actions forwarded downstream.",
		}),
		executionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "executions_started_total",
			Help:      "Pipeline executions admitted per logic unit.",
		}, []string{"logic"}),
		executionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "executions_finished_total",
			Help:      "Pipeline executions finished per logic unit and final state.",
		}, []string{"logic", "state"}),
		executionFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "execution_faults_total",
			Help:      "Stage faults per logic unit and stage.",
		}, []string{"logic", "stage"}),
		limiterDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionflow",
			Name:      "limiter_dropped_total",
			Help:      "Triggers discarded by limit operators per logic unit.",
		}, []string{"logic"}),
		activeExecutions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "actionflow",
			Name:      "active_executions",
			Help:      "Currently running pipeline executions.",
		}),
	}
}

func (m *Metrics) onSubmit() {
	if m == nil {
		return
	}
	m.actionsSubmitted.Inc()
}

func (m *Metrics) onForward() {
	if m == nil {
		return
	}
	m.actionsForwarded.Inc()
}

func (m *Metrics) onExecutionStart(logic string) {
	if m == nil {
		return
	}
	m.executionsStarted.WithLabelValues(logic).Inc()
	m.activeExecutions.Inc()
}

func (m *Metrics) onExecutionFinish(logic string, state ExecutionState) {
	if m == nil {
		return
	}
	m.executionsFinished.WithLabelValues(logic, state.String()).Inc()
	m.activeExecutions.Dec()
}

func (m *Metrics) onFault(logic, stage string) {
	if m == nil {
		return
	}
	m.executionFaults.WithLabelValues(logic, stage).Inc()
}

func (m *Metrics) onDropped(logic string) {
	if m == nil {
		return
	}
	m.limiterDropped.WithLabelValues(logic).Inc()
}
