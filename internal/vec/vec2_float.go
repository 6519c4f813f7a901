package vec

import "math"

// Epsilon используется для сравнения координат с плавающей точкой
const Epsilon = 1e-9

// Vec2Float представляет точку или вектор на плоскости земли (x, z).
// Высота (y) в ИИ не участвует и фиксирована для всех агентов.
type Vec2Float struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Z: v.Z * scalar}
}

// Dot возвращает скалярное произведение
func (v Vec2Float) Dot(other Vec2Float) float64 {
	return v.X*other.X + v.Z*other.Z
}

// Normalized возвращает нормализованный вектор
func (v Vec2Float) Normalized() Vec2Float {
	length := v.Length()
	if length == 0 {
		return Vec2Float{X: 0, Z: 0}
	}
	return Vec2Float{X: v.X / length, Z: v.Z / length}
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// IsZero проверяет, является ли вектор нулевым
func (v Vec2Float) IsZero() bool {
	return math.Abs(v.X) < Epsilon && math.Abs(v.Z) < Epsilon
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2Float) DistanceTo(other Vec2Float) float64 {
	dx := v.X - other.X
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Lerp линейно интерполирует между v и other с коэффициентом t
func (v Vec2Float) Lerp(other Vec2Float, t float64) Vec2Float {
	return Vec2Float{
		X: v.X + (other.X-v.X)*t,
		Z: v.Z + (other.Z-v.Z)*t,
	}
}

// Heading возвращает угол поворота вокруг вертикальной оси,
// при котором модель смотрит вдоль вектора (угол 0 соответствует +Z).
func (v Vec2Float) Heading() float64 {
	return math.Atan2(v.X, v.Z)
}

// FromHeading возвращает единичный вектор взгляда для угла поворота
func FromHeading(angle float64) Vec2Float {
	return Vec2Float{X: math.Sin(angle), Z: math.Cos(angle)}
}

// Clamp ограничивает координаты прямоугольником [min, max]
func (v Vec2Float) Clamp(min, max Vec2Float) Vec2Float {
	return Vec2Float{
		X: math.Max(min.X, math.Min(max.X, v.X)),
		Z: math.Max(min.Z, math.Min(max.Z, v.Z)),
	}
}

// Equals сравнивает векторы с точностью Epsilon
func (v Vec2Float) Equals(other Vec2Float) bool {
	return math.Abs(v.X-other.X) < Epsilon && math.Abs(v.Z-other.Z) < Epsilon
}

// NormalizeAngle приводит угол к диапазону (-π, π]
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
