package physics

import (
	"github.com/annel0/mmo-npc/internal/vec"
)

// Bounds представляет прямоугольную границу карты на плоскости (x, z)
type Bounds struct {
	Min    vec.Vec2Float
	Max    vec.Vec2Float
	Margin float64
}

// Inner возвращает допустимую область с учётом отступа от края
func (b Bounds) Inner() (vec.Vec2Float, vec.Vec2Float) {
	return vec.Vec2Float{X: b.Min.X + b.Margin, Z: b.Min.Z + b.Margin},
		vec.Vec2Float{X: b.Max.X - b.Margin, Z: b.Max.Z - b.Margin}
}

// Contains проверяет, что точка лежит внутри границы с учётом отступа
func (b Bounds) Contains(p vec.Vec2Float) bool {
	min, max := b.Inner()
	return p.X >= min.X && p.X <= max.X && p.Z >= min.Z && p.Z <= max.Z
}

// Clamp прижимает точку к допустимой области
func (b Bounds) Clamp(p vec.Vec2Float) vec.Vec2Float {
	min, max := b.Inner()
	return p.Clamp(min, max)
}

// CirclesOverlap проверяет пересечение двух окружностей.
// Касание пересечением не считается.
func CirclesOverlap(posA vec.Vec2Float, radiusA float64, posB vec.Vec2Float, radiusB float64) bool {
	return posA.DistanceTo(posB) < radiusA+radiusB
}

// CollidesWithAny проверяет, пересекает ли окружность агента хотя бы одно препятствие
func CollidesWithAny(pos vec.Vec2Float, radius float64, obstacles []Obstacle) bool {
	for _, o := range obstacles {
		if CirclesOverlap(pos, radius, o.Position, o.Radius) {
			return true
		}
	}
	return false
}
