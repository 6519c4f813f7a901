package physics

import (
	"math"

	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/jakecoffman/cp"
)

// Категории геометрии мира для фильтрации запросов
const (
	CategoryObstacle uint = 1 << iota
	CategoryAgent
	CategoryTarget
	CategoryHitbox
	CategoryProjectile
)

// NonObstructing: категории, которые никогда не перекрывают линию видимости
const NonObstructing = CategoryAgent | CategoryTarget | CategoryHitbox | CategoryProjectile

const allCategories = ^uint(0)

// Obstacle: статическое препятствие с эффективным радиусом (половиной размера)
type Obstacle struct {
	ID       int
	Position vec.Vec2Float
	Radius   float64
}

// Marker: подвижная геометрия (хитбокс агента, цель, снаряд),
// которая участвует в запросах только если её категория не исключена.
type Marker struct {
	body  *cp.Body
	shape *cp.Shape
	space *cp.Space
}

// Move переносит маркер в новую точку. Форма переставляется в пространстве
// заново, иначе индекс продолжает хранить её старую ограничивающую рамку.
func (m *Marker) Move(pos vec.Vec2Float) {
	if m.body.Position() == toCP(pos) {
		return
	}
	m.space.RemoveShape(m.shape)
	m.body.SetPosition(toCP(pos))
	m.space.AddShape(m.shape)
}

// World: мир коллизий поверх пространства Chipmunk.
// Плоскость (x, z) отображается на (X, Y) пространства.
// Не потокобезопасен: используется из одного тика симуляции.
type World struct {
	space     *cp.Space
	obstacles []Obstacle
	shapes    map[*cp.Shape]int
	nextID    int
}

// NewWorld создаёт пустой мир коллизий
func NewWorld() *World {
	space := cp.NewSpace()
	return &World{
		space:  space,
		shapes: make(map[*cp.Shape]int),
		nextID: 1,
	}
}

// AddCircle добавляет круглое препятствие и возвращает его ID
func (w *World) AddCircle(pos vec.Vec2Float, radius float64) int {
	shape := cp.NewCircle(w.space.StaticBody, radius, toCP(pos))
	return w.addObstacle(shape, pos, radius)
}

// AddBox добавляет прямоугольное препятствие (ширина по X, глубина по Z).
// Эффективный радиус: половина большей стороны.
func (w *World) AddBox(pos vec.Vec2Float, width, depth float64) int {
	body := cp.NewStaticBody()
	body.SetPosition(toCP(pos))
	w.space.AddBody(body)
	shape := cp.NewBox(body, width, depth, 0)
	return w.addObstacle(shape, pos, math.Max(width, depth)/2)
}

func (w *World) addObstacle(shape *cp.Shape, pos vec.Vec2Float, radius float64) int {
	shape.SetFilter(cp.ShapeFilter{Categories: CategoryObstacle, Mask: allCategories})
	w.space.AddShape(shape)

	id := w.nextID
	w.nextID++
	w.shapes[shape] = id
	w.obstacles = append(w.obstacles, Obstacle{ID: id, Position: pos, Radius: radius})
	return id
}

// AddMarker регистрирует подвижную геометрию указанной категории
func (w *World) AddMarker(category uint, pos vec.Vec2Float, radius float64) *Marker {
	body := cp.NewKinematicBody()
	body.SetPosition(toCP(pos))
	w.space.AddBody(body)

	shape := cp.NewCircle(body, radius, cp.Vector{})
	shape.SetFilter(cp.ShapeFilter{Categories: category, Mask: allCategories})
	w.space.AddShape(shape)

	return &Marker{body: body, shape: shape, space: w.space}
}

// RemoveMarker удаляет подвижную геометрию из мира
func (w *World) RemoveMarker(m *Marker) {
	if m == nil {
		return
	}
	w.space.RemoveShape(m.shape)
	w.space.RemoveBody(m.body)
}

// Obstacles возвращает список статических препятствий
func (w *World) Obstacles() []Obstacle {
	return w.obstacles
}

// Raycast ищет первое пересечение отрезка from→to с геометрией мира,
// пропуская категории из exclude. Возвращает точку попадания.
func (w *World) Raycast(from, to vec.Vec2Float, exclude uint) (vec.Vec2Float, bool) {
	filter := cp.ShapeFilter{Categories: allCategories, Mask: allCategories &^ exclude}
	info := w.space.SegmentQueryFirst(toCP(from), toCP(to), 0, filter)
	if info.Shape == nil {
		return vec.Vec2Float{}, false
	}
	return vec.Vec2Float{X: info.Point.X, Z: info.Point.Y}, true
}

// Collides проверяет пересечение окружности агента со статическими препятствиями
func (w *World) Collides(pos vec.Vec2Float, radius float64) bool {
	return CollidesWithAny(pos, radius, w.obstacles)
}

func toCP(v vec.Vec2Float) cp.Vector {
	return cp.Vector{X: v.X, Y: v.Z}
}
