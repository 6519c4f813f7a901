package npc

import (
	"time"

	"github.com/annel0/mmo-npc/internal/navigation"
	"github.com/annel0/mmo-npc/internal/vec"
)

// stateHandler: поведение одного состояния автомата.
// Update возвращает следующее состояние; если оно совпадает с текущим,
// перехода не происходит.
type stateHandler interface {
	Enter(m *Manager, a *Agent)
	Update(m *Manager, a *Agent, s sense, dt time.Duration) State
	Exit(m *Manager, a *Agent)
}

// sense: результат восприятия за текущий тик
type sense struct {
	target    vec.Vec2Float
	hasTarget bool
	inRange   bool
	visible   bool
	aggro     bool
}

// detected: цель обнаружена дальностью или агент в агрессии
func (s sense) detected() bool {
	return s.inRange || s.aggro
}

func defaultHandlers() map[State]stateHandler {
	return map[State]stateHandler{
		StateIdle:     idleState{},
		StatePatrol:   patrolState{},
		StateChase:    chaseState{},
		StateHitReact: hitReactState{},
		StateDeath:    deathState{},
	}
}

// transition переводит агента в состояние to.
// Из DEATH переходов нет; повторный вход разрешён только в HIT_REACT
// (новый удар перезапускает реакцию).
func (m *Manager) transition(a *Agent, to State) {
	from := a.State
	if from.Terminal() {
		return
	}
	if from == to && to != StateHitReact {
		return
	}

	m.handlers[from].Exit(m, a)
	m.enter(a, to)

	m.metrics.transition(from, to)
	m.observer.OnStateChange(a.ID, from, to)
	m.log.Debug("Агент %d: %s -> %s", a.ID, from, to)
}

// enter устанавливает состояние без выхода из предыдущего (используется и при спавне)
func (m *Manager) enter(a *Agent, to State) {
	a.State = to
	a.StateEnteredAt = m.now
	a.stateSeq++
	a.Speed = m.cfg.SpeedFor(a.Model, to.String())

	m.handlers[to].Enter(m, a)

	a.Animation = m.anims.resolveLogged(a.Model, to)
	m.renderer.PlayAnimation(a.ID, a.Animation)
}

// === IDLE ===

type idleState struct{}

func (idleState) Enter(m *Manager, a *Agent) {
	a.Velocity = vec.Vec2Float{}
}

func (idleState) Update(m *Manager, a *Agent, s sense, dt time.Duration) State {
	if s.detected() {
		return StateChase
	}
	if m.now-a.StateEnteredAt >= m.cfg.Durations.Idle {
		return StatePatrol
	}
	return StateIdle
}

func (idleState) Exit(m *Manager, a *Agent) {}

// === PATROL (включая режим поиска) ===

type patrolState struct{}

func (patrolState) Enter(m *Manager, a *Agent) {
	if a.Searching {
		return
	}
	if a.Path == nil || a.Path.Kind != navigation.PathPatrol {
		m.assignPatrol(a)
	}
}

func (patrolState) Update(m *Manager, a *Agent, s sense, dt time.Duration) State {
	if a.Searching {
		// Во время поиска агрессия активна всегда, поэтому вернуться
		// в погоню можно только увидев цель или подпустив её на дальность обнаружения.
		if s.inRange || (s.aggro && s.visible) {
			return StateChase
		}
		if m.now-a.SearchStartedAt >= m.cfg.Durations.Search {
			m.endSearch(a)
		}
	} else if s.detected() {
		return StateChase
	}

	m.followPath(a, dt)
	return StatePatrol
}

func (patrolState) Exit(m *Manager, a *Agent) {}

// === CHASE ===

type chaseState struct{}

func (chaseState) Enter(m *Manager, a *Agent) {
	a.Searching = false
	a.needsRepath = false
	if a.Path != nil {
		m.releasePath(a)
	}
}

func (chaseState) Update(m *Manager, a *Agent, s sense, dt time.Duration) State {
	if !s.detected() {
		return StatePatrol
	}
	if !s.inRange && !s.visible {
		m.beginSearch(a)
		return StatePatrol
	}
	if !s.hasTarget {
		return StateChase
	}

	res := m.mover.Step(a, s.target, a.Speed, dt)
	if res.Blocked {
		m.metrics.rollback()
	}
	return StateChase
}

func (chaseState) Exit(m *Manager, a *Agent) {}

// === HIT_REACT ===

type hitReactState struct{}

func (hitReactState) Enter(m *Manager, a *Agent) {
	a.Velocity = vec.Vec2Float{}
	id, seq := a.ID, a.stateSeq
	m.sched.After(m.now, m.cfg.Durations.HitReact, id, func() {
		m.revertHitReact(id, seq)
	})
}

func (hitReactState) Update(m *Manager, a *Agent, s sense, dt time.Duration) State {
	return StateHitReact
}

func (hitReactState) Exit(m *Manager, a *Agent) {}

// revertHitReact возвращает агента в CHASE или PATROL по текущему восприятию,
// если с момента входа в HIT_REACT состояние не менялось.
func (m *Manager) revertHitReact(id, seq uint64) {
	a, ok := m.agents[id]
	if !ok || a.removed || a.State != StateHitReact || a.stateSeq != seq {
		return
	}
	if m.perceive(a).detected() {
		m.transition(a, StateChase)
		return
	}
	m.transition(a, StatePatrol)
}

// === DEATH ===

type deathState struct{}

func (deathState) Enter(m *Manager, a *Agent) {
	a.Velocity = vec.Vec2Float{}
	a.Searching = false
	m.removeMarker(a)
	id := a.ID
	m.sched.After(m.now, m.cfg.Durations.DeathDisplay, id, func() {
		if a, ok := m.agents[id]; ok && a.State == StateDeath {
			m.log.Debug("Агент %d удалён после показа смерти", id)
			m.remove(a)
		}
	})
}

func (deathState) Update(m *Manager, a *Agent, s sense, dt time.Duration) State {
	return StateDeath
}

func (deathState) Exit(m *Manager, a *Agent) {}
