package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	directivesTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	rulesTotal      *prometheus.GaugeVec
	exceptionsTotal *prometheus.CounterVec
	publishesTotal  *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		directivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seclang_directives_total", Help: "Total directives processed"},
			[]string{"directive"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seclang_compile_errors_total", Help: "Total compile errors"},
			[]string{"kind"},
		),
		rulesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "seclang_rules", Help: "Active rules of the last published rule set"},
			[]string{"phase", "kind"},
		),
		exceptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seclang_exceptions_total", Help: "Total exception directives recorded"},
			[]string{"kind"},
		),
		publishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seclang_publishes_total", Help: "Total rule set publications"},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seclang_compile_duration_seconds",
				Help:    "Compile duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.directivesTotal,
		m.errorsTotal,
		m.rulesTotal,
		m.exceptionsTotal,
		m.publishesTotal,
		m.compileDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDirective(name string) {
	if m == nil {
		return
	}
	m.directivesTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveException(kind string) {
	if m == nil {
		return
	}
	m.exceptionsTotal.WithLabelValues(kind).Inc()
}

// RuleCount is the number of active rules of one phase and kind.
type RuleCount struct {
	Phase int64
	Kind  string
	Count int
}

// ObserveCompile records the outcome of a compile run. counts replaces the
// rule gauges on success.
func (m *Metrics) ObserveCompile(d time.Duration, ok bool, counts []RuleCount) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compileDuration.WithLabelValues(result).Observe(d.Seconds())
	if !ok {
		return
	}
	m.rulesTotal.Reset()
	for _, c := range counts {
		m.rulesTotal.WithLabelValues(strconv.FormatInt(c.Phase, 10), c.Kind).Set(float64(c.Count))
	}
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.publishesTotal.WithLabelValues(result).Inc()
}
