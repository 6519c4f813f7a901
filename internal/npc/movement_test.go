package npc

import (
	"math"
	"testing"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/navigation"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/stretchr/testify/assert"
)

func newTestMover(world CollisionWorld) (*MovementController, *config.AIConfig) {
	cfg := config.DefaultAI()
	return NewMovementController(&cfg, navigation.BoundsFromConfig(cfg.Map), world), &cfg
}

func TestStep_MovesTowardTarget(t *testing.T) {
	mc, _ := newTestMover(nil)
	a := &Agent{}
	target := vec.Vec2Float{X: 10}

	before := a.Position.DistanceTo(target)
	for i := 0; i < 10; i++ {
		res := mc.Step(a, target, 2, 50*time.Millisecond)
		assert.False(t, res.Blocked)
	}
	assert.Less(t, a.Position.DistanceTo(target), before)
	assert.LessOrEqual(t, a.Velocity.Length(), 2.0+1e-9)
	assert.Greater(t, a.Heading, 0.0, "поворот в сторону +X")
}

func TestStep_ArrivesAndStops(t *testing.T) {
	mc, cfg := newTestMover(nil)
	a := &Agent{}
	target := vec.Vec2Float{X: 3, Z: -2}

	arrived := false
	for i := 0; i < 400 && !arrived; i++ {
		arrived = mc.Step(a, target, 2, 50*time.Millisecond).Arrived
	}
	assert.True(t, arrived)
	assert.Less(t, a.Position.DistanceTo(target), cfg.Ranges.ArrivalThreshold)
}

func TestStep_RollsBackOnObstacle(t *testing.T) {
	world := physics.NewWorld()
	world.AddCircle(vec.Vec2Float{X: 1.2}, 0.6)
	mc, _ := newTestMover(world)
	a := &Agent{Velocity: vec.Vec2Float{X: 10}}

	res := mc.Step(a, vec.Vec2Float{X: 5}, 10, 100*time.Millisecond)

	assert.True(t, res.Blocked)
	assert.False(t, res.Stuck)
	assert.Equal(t, vec.Vec2Float{}, a.Position)
	assert.True(t, a.Velocity.IsZero())
}

func TestStep_RollsBackAtMapEdge(t *testing.T) {
	mc, _ := newTestMover(nil)
	a := &Agent{Position: vec.Vec2Float{X: 47.99}, Velocity: vec.Vec2Float{X: 2}}

	res := mc.Step(a, vec.Vec2Float{X: 60}, 2, 100*time.Millisecond)

	assert.True(t, res.Blocked)
	assert.Equal(t, 47.99, a.Position.X)
}

func TestStep_ReportsStuckAgent(t *testing.T) {
	world := physics.NewWorld()
	world.AddCircle(vec.Vec2Float{}, 1)
	mc, _ := newTestMover(world)
	a := &Agent{Position: vec.Vec2Float{X: 0.5}}

	res := mc.Step(a, vec.Vec2Float{X: 5}, 2, 100*time.Millisecond)

	assert.True(t, res.Blocked)
	assert.True(t, res.Stuck)
}

func TestTurn_TakesShortestArc(t *testing.T) {
	mc, cfg := newTestMover(nil)
	a := &Agent{
		Heading:  math.Pi - 0.1,
		Velocity: vec.FromHeading(-math.Pi + 0.1),
	}

	mc.turn(a)

	// разница углов 0.2 через разрыв ±π, а не 2π-0.2 в обратную сторону
	want := math.Pi - 0.1 + 0.2*cfg.Movement.RotationSmoothing
	assert.InDelta(t, want, a.Heading, 1e-9)
	assert.LessOrEqual(t, a.Heading, math.Pi)
}

func TestTurn_NoVelocityKeepsHeading(t *testing.T) {
	mc, _ := newTestMover(nil)
	a := &Agent{Heading: 2.5}

	mc.turn(a)
	assert.Equal(t, 2.5, a.Heading)
}

func TestStep_DesiredSpeedIsConfiguredSpeed(t *testing.T) {
	mc, cfg := newTestMover(nil)
	assert.Zero(t, cfg.Movement.ApproachTime)
	a := &Agent{}
	target := vec.Vec2Float{X: 40}

	for i := 0; i < 100; i++ {
		mc.Step(a, target, 2, 50*time.Millisecond)
	}
	assert.InDelta(t, 2.0, a.Velocity.Length(), 1e-3)
	assert.InDelta(t, 0.0, a.Velocity.Z, 1e-9)
}

func TestStep_ApproachTimeSlowsNearTarget(t *testing.T) {
	cfg := config.DefaultAI()
	cfg.Movement.ApproachTime = 500 * time.Millisecond
	mc := NewMovementController(&cfg, navigation.BoundsFromConfig(cfg.Map), nil)
	a := &Agent{}

	// до цели 1 единица: желаемая скорость 1/0.5 = 2, а не 6
	for i := 0; i < 3; i++ {
		mc.Step(a, vec.Vec2Float{X: 1 + a.Position.X}, 6, 10*time.Millisecond)
	}
	assert.LessOrEqual(t, a.Velocity.Length(), 2.0+1e-9)
}
