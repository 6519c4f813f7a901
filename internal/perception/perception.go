// Package perception отвечает на вопросы "видит ли агент цель" и "в радиусе ли цель".
package perception

import (
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// Raycaster: запрос пересечения луча с геометрией мира.
// Категории из exclude в проверке не участвуют.
type Raycaster interface {
	Raycast(from, to vec.Vec2Float, exclude uint) (vec.Vec2Float, bool)
}

// Perception выполняет запросы дальности и прямой видимости
type Perception struct {
	world Raycaster
}

// New создаёт Perception. world может быть nil, тогда любая цель
// в пределах дальности обзора считается видимой.
func New(world Raycaster) *Perception {
	return &Perception{world: world}
}

// InRange возвращает true, если расстояние на плоскости не больше radius
func (p *Perception) InRange(agent, target vec.Vec2Float, radius float64) bool {
	return agent.DistanceTo(target) <= radius
}

// InSight проверяет прямую видимость цели по лучу на плоскости (x, z).
// Препятствия в мире являются вертикальными цилиндрами и боксами на всю высоту,
// поэтому высота глаз на результат не влияет. Геометрия агентов, цели,
// хитбоксов и снарядов обзор не перекрывает.
func (p *Perception) InSight(agent, target vec.Vec2Float, maxSightDistance float64) bool {
	dist := agent.DistanceTo(target)
	if dist > maxSightDistance {
		return false
	}
	if p.world == nil || dist == 0 {
		return true
	}

	hit, blocked := p.world.Raycast(agent, target, physics.NonObstructing)
	if !blocked {
		return true
	}
	// Пересечение за целью (или ровно в ней) обзор не перекрывает
	return agent.DistanceTo(hit) >= dist
}
