package npc

import (
	"errors"

	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: Prometheus-метрики ядра ИИ. nil-значение допустимо:
// все методы проверяют получателя.
type Metrics struct {
	agents       prometheus.Gauge
	transitions  *prometheus.CounterVec
	damage       prometheus.Counter
	deaths       prometheus.Counter
	pathAttempts prometheus.Histogram
	pathOverlaps prometheus.Counter
	collisions   prometheus.Counter
	tickDuration prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// При повторной регистрации (несколько менеджеров на одном реестре)
// используются уже зарегистрированные коллекторы.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "npc",
			Name:      "agents",
			Help:      "Количество зарегистрированных агентов.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "npc",
			Name:      "state_transitions_total",
			Help:      "Переходы конечного автомата по парам состояний.",
		}, []string{"from", "to"}),
		damage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "npc",
			Name:      "damage_applied_total",
			Help:      "Суммарный нанесённый урон.",
		}),
		deaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "npc",
			Name:      "deaths_total",
			Help:      "Количество погибших агентов.",
		}),
		pathAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "npc",
			Name:      "patrol_path_attempts",
			Help:      "Попыток на генерацию одного маршрута патруля.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15},
		}),
		pathOverlaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "npc",
			Name:      "patrol_path_overlaps_total",
			Help:      "Маршруты, принятые несмотря на пересечение.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "npc",
			Name:      "movement_rollbacks_total",
			Help:      "Откаты движения из-за препятствий или границы карты.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "npc",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика менеджера агентов.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
	}

	m.agents = register(reg, m.agents)
	m.transitions = register(reg, m.transitions)
	m.damage = register(reg, m.damage)
	m.deaths = register(reg, m.deaths)
	m.pathAttempts = register(reg, m.pathAttempts)
	m.pathOverlaps = register(reg, m.pathOverlaps)
	m.collisions = register(reg, m.collisions)
	m.tickDuration = register(reg, m.tickDuration)
	return m
}

// register регистрирует коллектор; если такой уже есть, возвращает существующий
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logging.Warn("Не удалось зарегистрировать метрику: %v", err)
	}
	return c
}

func (m *Metrics) setAgents(n int) {
	if m != nil {
		m.agents.Set(float64(n))
	}
}

func (m *Metrics) transition(from, to State) {
	if m != nil {
		m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	}
}

func (m *Metrics) damaged(amount int) {
	if m != nil {
		m.damage.Add(float64(amount))
	}
}

func (m *Metrics) died() {
	if m != nil {
		m.deaths.Inc()
	}
}

func (m *Metrics) pathGenerated(attempts int, overlapping bool) {
	if m == nil {
		return
	}
	m.pathAttempts.Observe(float64(attempts))
	if overlapping {
		m.pathOverlaps.Inc()
	}
}

func (m *Metrics) rollback() {
	if m != nil {
		m.collisions.Inc()
	}
}

func (m *Metrics) tick(seconds float64) {
	if m != nil {
		m.tickDuration.Observe(seconds)
	}
}
