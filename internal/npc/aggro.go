package npc

import (
	"github.com/annel0/mmo-npc/internal/vec"
)

// ApplyDamage наносит урон агенту. Окно агрессии всегда перезапускается
// от момента вызова. Если здоровье падает до нуля, агент переходит в DEATH,
// иначе получает отброс вдоль hitDirection, показывает цифру урона
// и входит в HIT_REACT.
// Урон по неизвестному или уже мёртвому агенту игнорируется.
func (m *Manager) ApplyDamage(agentID uint64, amount int, hitDirection vec.Vec2Float) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok || a.removed {
		m.log.Debug("ApplyDamage: агент %d не найден", agentID)
		return
	}
	if a.State == StateDeath {
		return
	}
	if amount < 0 {
		amount = 0
	}

	a.wasHit = true
	a.LastHitAt = m.now
	a.AggroDuration = m.cfg.Durations.Aggro
	if m.target != nil {
		a.LastKnownTarget = m.target.Position()
	}

	a.Health -= amount
	m.metrics.damaged(amount)
	m.observer.OnDamage(a.ID, amount, max(a.Health, 0))

	if a.Health <= 0 {
		a.Health = 0
		m.transition(a, StateDeath)
		m.metrics.died()
		m.observer.OnDeath(a.snapshot(m.now))
		m.log.Info("Агент %d погиб", a.ID)
		return
	}

	m.knockback(a, hitDirection)
	m.renderer.ShowDamageNumber(a.ID, a.Position.Lift(m.cfg.Ranges.EyeHeight), amount)
	m.transition(a, StateHitReact)
}

// knockback смещает агента на фиксированную дистанцию вдоль направления удара.
// Если новая позиция пересекает препятствие или границу, смещение отменяется.
func (m *Manager) knockback(a *Agent, dir vec.Vec2Float) {
	if dir.IsZero() || m.cfg.Hitbox.Knockback <= 0 {
		return
	}
	next := a.Position.Add(dir.Normalized().Mul(m.cfg.Hitbox.Knockback))
	if !m.mover.Free(next) {
		m.metrics.rollback()
		return
	}
	a.Position = next
	m.moveMarker(a)
	m.renderer.UpdateTransform(a.ID, a.Position.Lift(0), a.Heading)
}

// AggroRemaining возвращает оставшееся время агрессии агента
func (m *Manager) AggroRemaining(agentID uint64) (remaining float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return 0, false
	}
	return a.AggroRemaining(m.now).Seconds(), true
}
