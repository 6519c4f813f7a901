// Package navigation генерирует маршруты патрулирования и поиска
// и ведёт глобальный реестр активных маршрутов.
package navigation

import (
	"sync/atomic"

	"github.com/annel0/mmo-npc/internal/vec"
)

// PathKind различает замкнутые маршруты патруля и короткие маршруты поиска
type PathKind uint8

const (
	PathPatrol PathKind = iota
	PathSearch
)

// String возвращает строковое представление вида маршрута
func (k PathKind) String() string {
	switch k {
	case PathPatrol:
		return "patrol"
	case PathSearch:
		return "search"
	default:
		return "unknown"
	}
}

var pathSeq uint64

// Path: упорядоченная последовательность точек на плоскости.
// Маршрут патруля замкнут: первая и последняя точки совпадают.
// Маршрут неизменяем после создания; замена маршрута означает новый *Path.
type Path struct {
	ID        uint64
	Kind      PathKind
	Waypoints []vec.Vec2Float
}

func newPath(kind PathKind, waypoints []vec.Vec2Float) *Path {
	return &Path{
		ID:        atomic.AddUint64(&pathSeq, 1),
		Kind:      kind,
		Waypoints: waypoints,
	}
}

// Len возвращает количество точек маршрута
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Waypoints)
}

// At возвращает точку маршрута по индексу
func (p *Path) At(i int) vec.Vec2Float {
	return p.Waypoints[i]
}

// Last возвращает последнюю точку маршрута
func (p *Path) Last() vec.Vec2Float {
	return p.Waypoints[len(p.Waypoints)-1]
}

// Closed проверяет, что первая и последняя точки совпадают
func (p *Path) Closed() bool {
	return p.Len() >= 2 && p.Waypoints[0] == p.Last()
}

// Copy возвращает копию точек (для отладочной визуализации)
func (p *Path) Copy() []vec.Vec2Float {
	out := make([]vec.Vec2Float, len(p.Waypoints))
	copy(out, p.Waypoints)
	return out
}

// MinDistance возвращает минимальное расстояние между точками двух маршрутов
func MinDistance(a, b *Path) float64 {
	best := -1.0
	for _, pa := range a.Waypoints {
		for _, pb := range b.Waypoints {
			d := pa.DistanceTo(pb)
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}
