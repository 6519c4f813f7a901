package vec

// Vec3Float представляет трехмерный вектор с плавающими координатами
// (система координат рендера: ось Y направлена вверх)
type Vec3Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Planar отбрасывает высоту и возвращает точку на плоскости земли
func (v Vec3Float) Planar() Vec2Float {
	return Vec2Float{X: v.X, Z: v.Z}
}

// Lift поднимает точку плоскости на высоту y
func (v Vec2Float) Lift(y float64) Vec3Float {
	return Vec3Float{X: v.X, Y: y, Z: v.Z}
}
