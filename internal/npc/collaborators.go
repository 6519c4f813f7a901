package npc

import (
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// Renderer: коллаборатор рендеринга. Вызовы fire-and-forget:
// ядро ничего не получает в ответ.
type Renderer interface {
	// PlayAnimation проигрывает анимацию зацикленно, останавливая остальные анимации агента
	PlayAnimation(agentID uint64, key string)
	// UpdateTransform обновляет визуальную позицию и поворот
	UpdateTransform(agentID uint64, position vec.Vec3Float, rotation float64)
	// ShowDamageNumber показывает всплывающую цифру урона
	ShowDamageNumber(agentID uint64, position vec.Vec3Float, amount int)
	// RemoveAgent убирает визуальное представление агента
	RemoveAgent(agentID uint64)
}

// PathRenderer: необязательное расширение Renderer для отладочной
// визуализации маршрутов.
type PathRenderer interface {
	ShowPath(agentID uint64, waypoints []vec.Vec3Float)
	ClearPath(agentID uint64)
}

// CollisionWorld: коллаборатор мира коллизий
type CollisionWorld interface {
	Obstacles() []physics.Obstacle
	Raycast(from, to vec.Vec2Float, exclude uint) (vec.Vec2Float, bool)
}

// MarkerWorld: необязательное расширение CollisionWorld: хитбоксы агентов
// регистрируются в мире, чтобы запросы могли явно их исключать.
type MarkerWorld interface {
	AddMarker(category uint, pos vec.Vec2Float, radius float64) *physics.Marker
	RemoveMarker(m *physics.Marker)
}

// Target: коллаборатор цели (игрока)
type Target interface {
	Position() vec.Vec2Float
}

// Observer получает события жизненного цикла агентов.
// Вызывается под блокировкой менеджера и не должен обращаться к нему обратно.
type Observer interface {
	OnSpawn(s Snapshot)
	OnStateChange(agentID uint64, from, to State)
	OnDamage(agentID uint64, amount, health int)
	// OnDeath: внешний хук эффекта смерти
	OnDeath(s Snapshot)
	OnDispose(agentID uint64)
}

// NopRenderer игнорирует все вызовы рендеринга
type NopRenderer struct{}

func (NopRenderer) PlayAnimation(uint64, string) {}
func (NopRenderer) UpdateTransform(uint64, vec.Vec3Float, float64) {}
func (NopRenderer) ShowDamageNumber(uint64, vec.Vec3Float, int) {}
func (NopRenderer) RemoveAgent(uint64) {}

// NopObserver игнорирует события
type NopObserver struct{}

func (NopObserver) OnSpawn(Snapshot) {}
func (NopObserver) OnStateChange(uint64, State, State) {}
func (NopObserver) OnDamage(uint64, int, int) {}
func (NopObserver) OnDeath(Snapshot) {}
func (NopObserver) OnDispose(uint64) {}
