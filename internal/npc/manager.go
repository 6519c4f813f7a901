// Package npc реализует ядро ИИ агентов: конечный автомат поведения, агрессия,
// движение по маршрутам и реестр агентов с публичными операциями.
package npc

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/navigation"
	"github.com/annel0/mmo-npc/internal/perception"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// Dependencies: коллабораторы менеджера. Пустые поля заменяются
// безопасными значениями по умолчанию.
type Dependencies struct {
	World    CollisionWorld
	Target   Target
	Renderer Renderer
	Observer Observer
	Registry *navigation.Registry
	Rand     *rand.Rand
	Metrics  *Metrics
	Logger   *logging.Logger
}

// Manager владеет всеми агентами и продвигает их по тикам.
// Все операции сериализуются мьютексом: тик и внешние вызовы
// (урон, телепорт, отладка) не пересекаются.
type Manager struct {
	mu sync.Mutex

	cfg      *config.AIConfig
	agents   map[uint64]*Agent
	order    []uint64
	nextID   uint64
	now      time.Duration
	debug    bool
	handlers map[State]stateHandler

	gen        *navigation.Generator
	perception *perception.Perception
	mover      *MovementController
	anims      *AnimationTable
	sched      *Scheduler

	world    CollisionWorld
	markers  MarkerWorld
	target   Target
	renderer Renderer
	observer Observer
	metrics  *Metrics
	log      *logging.Logger
}

// NewManager создаёт менеджер агентов
func NewManager(cfg *config.AIConfig, deps Dependencies) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil AI config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = logging.GetAILogger()
	}
	if deps.Renderer == nil {
		deps.Renderer = NopRenderer{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Registry == nil {
		deps.Registry = navigation.NewRegistry()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(1))
	}

	var raycaster perception.Raycaster
	if deps.World != nil {
		raycaster = deps.World
	}
	markers, _ := deps.World.(MarkerWorld)

	gen := navigation.NewGenerator(cfg, deps.Registry, deps.Rand, deps.Logger)

	m := &Manager{
		cfg:        cfg,
		agents:     make(map[uint64]*Agent),
		nextID:     1,
		handlers:   defaultHandlers(),
		gen:        gen,
		perception: perception.New(raycaster),
		mover:      NewMovementController(cfg, gen.Bounds(), deps.World),
		anims:      BuildAnimationTable(cfg, deps.Logger),
		sched:      NewScheduler(),
		world:      deps.World,
		markers:    markers,
		target:     deps.Target,
		renderer:   deps.Renderer,
		observer:   deps.Observer,
		metrics:    deps.Metrics,
		log:        deps.Logger,
	}
	return m, nil
}

// SetTarget заменяет коллаборатор цели
func (m *Manager) SetTarget(t Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = t
}

// Spawn создаёт агента модели по умолчанию (первой по алфавиту из профилей)
func (m *Manager) Spawn(position vec.Vec3Float) uint64 {
	return m.SpawnModel(position, m.defaultModel())
}

// SpawnModel создаёт агента указанной модели в состоянии IDLE
// с уже сгенерированным маршрутом патруля и возвращает его ID.
// Точка появления прижимается к границе карты с учётом отступа.
func (m *Manager) SpawnModel(position vec.Vec3Float, model string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	pos := m.gen.Bounds().Clamp(position.Planar())
	a := &Agent{
		ID:       id,
		Model:    model,
		Position: pos,
		Health:   m.cfg.HealthFor(model),
		State:    StateIdle,
	}
	m.agents[id] = a
	m.order = append(m.order, id)

	if m.markers != nil {
		a.marker = m.markers.AddMarker(physics.CategoryAgent, pos, m.cfg.Hitbox.AgentRadius)
	}

	m.assignPatrol(a)
	m.enter(a, StateIdle)
	m.renderer.UpdateTransform(id, pos.Lift(0), a.Heading)

	m.metrics.setAgents(len(m.agents))
	m.observer.OnSpawn(a.snapshot(m.now))
	m.log.Info("Агент %d (%s) создан в (%.1f, %.1f)", id, model, pos.X, pos.Z)
	return id
}

func (m *Manager) defaultModel() string {
	if len(m.cfg.Profiles) == 0 {
		return ""
	}
	models := make([]string, 0, len(m.cfg.Profiles))
	for name := range m.cfg.Profiles {
		models = append(models, name)
	}
	sort.Strings(models)
	return models[0]
}

// Dispose немедленно удаляет агента. Неизвестный ID игнорируется.
func (m *Manager) Dispose(agentID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		m.log.Debug("Dispose: агент %d не найден", agentID)
		return
	}
	m.remove(a)
}

// remove освобождает все ресурсы агента
func (m *Manager) remove(a *Agent) {
	a.removed = true
	delete(m.agents, a.ID)
	for i, id := range m.order {
		if id == a.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	m.gen.Registry().Release(a.ID)
	m.clearPath(a)
	a.Path = nil
	m.sched.Cancel(a.ID)
	m.removeMarker(a)
	m.renderer.RemoveAgent(a.ID)

	m.metrics.setAgents(len(m.agents))
	m.observer.OnDispose(a.ID)
}

// GetPosition возвращает позицию агента
func (m *Manager) GetPosition(agentID uint64) (vec.Vec3Float, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		return vec.Vec3Float{}, false
	}
	return a.Position.Lift(0), true
}

// SetPosition телепортирует агента. Позиция прижимается к границе карты,
// маршрут не меняется. Погибший агент не перемещается.
func (m *Manager) SetPosition(agentID uint64, position vec.Vec3Float) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		m.log.Debug("SetPosition: агент %d не найден", agentID)
		return
	}
	if a.State.Terminal() {
		m.log.Debug("SetPosition: агент %d погиб, перемещение игнорируется", agentID)
		return
	}
	from := a.Position
	a.Position = m.gen.Bounds().Clamp(position.Planar())
	a.Velocity = vec.Vec2Float{}
	logging.LogAgentMovement(a.ID, from.X, from.Z, a.Position.X, a.Position.Z, a.Heading)
	m.moveMarker(a)
	m.renderer.UpdateTransform(a.ID, a.Position.Lift(0), a.Heading)
}

// SetRotation задаёт поворот агента вокруг вертикальной оси
func (m *Manager) SetRotation(agentID uint64, angle float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		m.log.Debug("SetRotation: агент %d не найден", agentID)
		return
	}
	if a.State.Terminal() {
		m.log.Debug("SetRotation: агент %d погиб, поворот игнорируется", agentID)
		return
	}
	a.Heading = vec.NormalizeAngle(angle)
	m.renderer.UpdateTransform(a.ID, a.Position.Lift(0), a.Heading)
}

// SetDebugVisualization включает или выключает показ маршрутов
func (m *Manager) SetDebugVisualization(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.debug == enabled {
		return
	}
	if !enabled {
		for _, a := range m.agents {
			m.clearPath(a)
		}
		m.debug = false
		return
	}
	m.debug = true
	for _, id := range m.order {
		if a := m.agents[id]; a.Path != nil {
			m.showPath(a)
		}
	}
}

// DebugVisualization сообщает, включена ли отладочная визуализация
func (m *Manager) DebugVisualization() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debug
}

// DebugPaths возвращает текущие маршруты агентов.
// Пустой результат, если отладочная визуализация выключена.
func (m *Manager) DebugPaths() map[uint64][]vec.Vec2Float {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uint64][]vec.Vec2Float)
	if !m.debug {
		return out
	}
	for id, a := range m.agents {
		if a.Path != nil {
			out[id] = a.Path.Copy()
		}
	}
	return out
}

// Snapshot возвращает копию состояния агента
func (m *Manager) Snapshot(agentID uint64) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		return Snapshot{}, false
	}
	return a.snapshot(m.now), true
}

// Snapshots возвращает состояния всех агентов в порядке создания
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id].snapshot(m.now))
	}
	return out
}

// Len возвращает количество агентов
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

// Now возвращает время симуляции
func (m *Manager) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Tick продвигает симуляцию на dt: сначала срабатывают отложенные задачи,
// затем каждый живой агент воспринимает, принимает решение и двигается.
func (m *Manager) Tick(dt time.Duration) {
	started := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if dt < 0 {
		dt = 0
	}
	m.now += dt
	m.sched.RunDue(m.now)

	ids := make([]uint64, len(m.order))
	copy(ids, m.order)
	for _, id := range ids {
		a, ok := m.agents[id]
		if !ok || a.removed || a.State.Terminal() {
			continue
		}
		m.update(a, dt)
	}

	m.metrics.tick(time.Since(started).Seconds())
}

// update выполняет тик одного агента
func (m *Manager) update(a *Agent, dt time.Duration) {
	s := m.perceive(a)
	if s.inRange || s.visible {
		a.LastKnownTarget = s.target
	}

	next := m.handlers[a.State].Update(m, a, s, dt)
	if a.removed || a.State.Terminal() {
		return
	}
	if next != a.State {
		m.transition(a, next)
	}
	if a.removed {
		return
	}

	m.moveMarker(a)
	m.renderer.UpdateTransform(a.ID, a.Position.Lift(0), a.Heading)
}

// perceive опрашивает восприятие агента
func (m *Manager) perceive(a *Agent) sense {
	s := sense{aggro: a.aggroActive(m.now)}
	if m.target == nil {
		return s
	}
	s.hasTarget = true
	s.target = m.target.Position()
	s.inRange = m.perception.InRange(a.Position, s.target, m.cfg.Ranges.Detection)
	s.visible = m.perception.InSight(a.Position, s.target, m.cfg.Ranges.MaxSight)
	return s
}

func (m *Manager) moveMarker(a *Agent) {
	if a.marker != nil {
		a.marker.Move(a.Position)
	}
}

func (m *Manager) removeMarker(a *Agent) {
	if a.marker != nil && m.markers != nil {
		m.markers.RemoveMarker(a.marker)
		a.marker = nil
	}
}
