package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0.0, NormalizeAngle(2*math.Pi), 1e-9)
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-9, "-π должен превращаться в π")
	assert.InDelta(t, math.Pi, NormalizeAngle(math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, 0.5, NormalizeAngle(0.5+4*math.Pi), 1e-9)
}

func TestHeadingRoundTrip(t *testing.T) {
	for _, angle := range []float64{0, 0.3, -1.2, math.Pi / 2, 3} {
		dir := FromHeading(angle)
		assert.InDelta(t, 1.0, dir.Length(), 1e-9)
		assert.InDelta(t, angle, dir.Heading(), 1e-9)
	}
}

func TestVec2Float_Basics(t *testing.T) {
	a := Vec2Float{X: 3, Z: 4}
	assert.Equal(t, 5.0, a.Length())
	assert.True(t, a.Normalized().Equals(Vec2Float{X: 0.6, Z: 0.8}))
	assert.True(t, Vec2Float{}.Normalized().IsZero(), "нормализация нулевого вектора не должна давать NaN")
	assert.Equal(t, Vec2Float{X: 1.5, Z: 2}, Vec2Float{}.Lerp(a, 0.5))
	assert.Equal(t, Vec2Float{X: 2, Z: 3}, Vec2Float{X: 10, Z: -5}.Clamp(Vec2Float{X: 0, Z: 3}, Vec2Float{X: 2, Z: 9}))
	assert.Equal(t, 5.0, Vec2Float{}.DistanceTo(a))
}
