package npc

import (
	"time"

	"github.com/annel0/mmo-npc/internal/navigation"
	"github.com/annel0/mmo-npc/internal/vec"
)

// assignPatrol выдаёт агенту свежий маршрут патруля от текущей позиции
func (m *Manager) assignPatrol(a *Agent) {
	path, res := m.gen.AssignPatrol(a.ID, a.Position)
	a.Path = path
	a.WaypointIndex = 0
	a.needsRepath = false
	m.metrics.pathGenerated(res.Attempts, res.Overlapping)
	m.showPath(a)
}

// releasePath снимает маршрут агента и освобождает его в реестре
func (m *Manager) releasePath(a *Agent) {
	m.gen.Registry().Release(a.ID)
	a.Path = nil
	a.WaypointIndex = 0
	m.clearPath(a)
}

// beginSearch переводит агента в режим поиска к последней известной позиции цели
func (m *Manager) beginSearch(a *Agent) {
	a.Searching = true
	a.SearchStartedAt = m.now
	m.gen.Registry().Release(a.ID)
	m.setSearchPath(a)
	m.log.Debug("Агент %d потерял цель, ищет у (%.1f, %.1f)", a.ID, a.LastKnownTarget.X, a.LastKnownTarget.Z)
}

func (m *Manager) setSearchPath(a *Agent) {
	a.Path = m.gen.SearchPath(a.Position, a.LastKnownTarget)
	// нулевая точка маршрута поиска совпадает с текущей позицией
	a.WaypointIndex = 1
	a.needsRepath = false
	m.showPath(a)
}

// endSearch завершает поиск и возвращает агента к обычному патрулю
func (m *Manager) endSearch(a *Agent) {
	a.Searching = false
	m.assignPatrol(a)
}

// repath строит маршрут заново от текущей позиции
func (m *Manager) repath(a *Agent) {
	if a.Searching {
		m.setSearchPath(a)
		return
	}
	m.assignPatrol(a)
}

// followPath двигает агента к текущей точке маршрута
func (m *Manager) followPath(a *Agent, dt time.Duration) {
	if a.needsRepath {
		m.repath(a)
	}
	wp, ok := a.currentWaypoint()
	if !ok {
		return
	}

	// Завершённый маршрут поиска: стоим в последней известной точке до конца поиска
	if a.Path.Kind == navigation.PathSearch && a.WaypointIndex == a.Path.Len()-1 &&
		a.Position.DistanceTo(wp) < m.cfg.Ranges.ArrivalThreshold {
		a.Velocity = vec.Vec2Float{}
		return
	}

	res := m.mover.Step(a, wp, a.Speed, dt)
	switch {
	case res.Blocked:
		m.metrics.rollback()
		if res.Stuck {
			// агент зажат: перестраиваем маршрут в следующем тике, а не в цикле
			a.needsRepath = true
			return
		}
		m.repath(a)
	case res.Arrived:
		m.advance(a)
	}
}

// advance переключает агента на следующую точку маршрута.
// Возврат патруля к нулевой точке порождает новый маршрут.
func (m *Manager) advance(a *Agent) {
	next := a.WaypointIndex + 1
	if next < a.Path.Len() {
		a.WaypointIndex = next
		return
	}
	if a.Path.Kind == navigation.PathSearch {
		return
	}
	m.log.Trace("Агент %d завершил круг патруля", a.ID)
	m.assignPatrol(a)
}

func (m *Manager) showPath(a *Agent) {
	if !m.debug {
		return
	}
	if pr, ok := m.renderer.(PathRenderer); ok {
		pr.ShowPath(a.ID, liftAll(a.Path.Copy()))
	}
}

func (m *Manager) clearPath(a *Agent) {
	if !m.debug {
		return
	}
	if pr, ok := m.renderer.(PathRenderer); ok {
		pr.ClearPath(a.ID)
	}
}

func liftAll(points []vec.Vec2Float) []vec.Vec3Float {
	out := make([]vec.Vec3Float, len(points))
	for i, p := range points {
		out[i] = p.Lift(0)
	}
	return out
}
