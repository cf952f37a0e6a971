package render

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики растеризации. Все методы допускают nil-получатель.
type Metrics struct {
	renders   prometheus.Counter
	failures  prometheus.Counter
	cacheHits prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		renders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "levelbuilder",
			Name:      "renders_total",
			Help:      "Количество растеризаций уровня.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "levelbuilder",
			Name:      "render_failures_total",
			Help:      "Растеризации, завершившиеся ошибкой.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "levelbuilder",
			Name:      "render_cache_hits_total",
			Help:      "Запросы изображения, обслуженные из кеша.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "levelbuilder",
			Name:      "render_duration_seconds",
			Help:      "Длительность растеризации.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}

	reg.MustRegister(m.renders, m.failures, m.cacheHits, m.duration)
	return m
}

func (m *Metrics) hit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) renderFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// startRender запускает таймер; возвращаемая функция фиксирует успешный расчёт
func (m *Metrics) startRender() func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.duration)
	return func() {
		timer.ObserveDuration()
		m.renders.Inc()
	}
}
