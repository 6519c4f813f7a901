package arena

import (
	"github.com/aquilax/go-perlin"
)

// Noise: генератор шума Перлина с фиксированным сидом
type Noise struct {
	perlin *perlin.Perlin
	scale  float64
}

// NewNoise создаёт генератор шума. scale, сколько единиц карты
// приходится на один период шума.
func NewNoise(seed int64, scale float64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	if scale <= 0 {
		scale = 1
	}
	return &Noise{perlin: perlin.NewPerlin(alpha, beta, n, seed), scale: scale}
}

// At возвращает значение шума в точке карты (от 0 до 1)
func (n *Noise) At(x, z float64) float64 {
	v := (n.perlin.Noise2D(x/n.scale, z/n.scale) + 1.0) / 2.0
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
