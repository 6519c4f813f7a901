package arena

import (
	"math"
	"sync"
	"time"

	"github.com/annel0/mmo-npc/internal/vec"
)

// Target: скриптовый игрок: обходит окружность вокруг центра карты.
// Оператор может закрепить цель в точке через Pin. Position безопасен
// для вызова из любой горутины, Advance вызывается из цикла симуляции.
type Target struct {
	mu     sync.RWMutex
	center vec.Vec2Float
	radius float64
	speed  float64 // угловая скорость, рад/с
	angle  float64
	pos    vec.Vec2Float
	pinned bool
	pinPos vec.Vec2Float
}

// NewTarget создаёт цель на окружности radius вокруг center.
// linearSpeed: скорость движения по окружности в единицах в секунду.
func NewTarget(center vec.Vec2Float, radius, linearSpeed float64) *Target {
	t := &Target{center: center, radius: radius}
	if radius > 0 {
		t.speed = linearSpeed / radius
	}
	t.pos = t.orbit()
	return t
}

func (t *Target) orbit() vec.Vec2Float {
	return t.center.Add(vec.FromHeading(t.angle).Mul(t.radius))
}

// Position возвращает текущую позицию цели
func (t *Target) Position() vec.Vec2Float {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos
}

// Advance продвигает цель по маршруту на dt
func (t *Target) Advance(dt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pinned {
		t.pos = t.pinPos
	} else {
		t.angle = math.Mod(t.angle+t.speed*dt.Seconds(), 2*math.Pi)
		t.pos = t.orbit()
	}
}

// Pin закрепляет цель в точке до вызова Release
func (t *Target) Pin(pos vec.Vec2Float) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinned = true
	t.pinPos = pos
	t.pos = pos
}

// Release возвращает цель на окружность
func (t *Target) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinned = false
}

// Pinned сообщает, закреплена ли цель
func (t *Target) Pinned() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pinned
}
