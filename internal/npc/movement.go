package npc

import (
	"math"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// StepResult: итог одного шага движения
type StepResult struct {
	// Blocked: новая позиция пересекала препятствие или границу и была отменена
	Blocked bool
	// Stuck: агент стоит в позиции, которая сама пересекает препятствие
	Stuck bool
	// Arrived: после шага агент ближе порога прибытия к цели
	Arrived bool
}

// MovementController двигает агента к точке со сглаживанием скорости и поворота
type MovementController struct {
	cfg     config.MovementConfig
	radius  float64
	arrival float64
	bounds  physics.Bounds
	world   CollisionWorld
}

// NewMovementController создаёт контроллер движения
func NewMovementController(cfg *config.AIConfig, bounds physics.Bounds, world CollisionWorld) *MovementController {
	return &MovementController{
		cfg:     cfg.Movement,
		radius:  cfg.Hitbox.AgentRadius,
		arrival: cfg.Ranges.ArrivalThreshold,
		bounds:  bounds,
		world:   world,
	}
}

// Step выполняет один шаг к target со скоростью speed:
// желаемая скорость сглаживается с текущей, позиция интегрируется,
// поворот доворачивается к направлению скорости по кратчайшей дуге.
// При столкновении позиция откатывается, скорость обнуляется.
func (mc *MovementController) Step(a *Agent, target vec.Vec2Float, speed float64, dt time.Duration) StepResult {
	dir := target.Sub(a.Position)
	desired := vec.Vec2Float{}
	if dist := dir.Length(); dist > mc.arrival {
		if mc.cfg.ApproachTime > 0 {
			speed = math.Min(speed, dist/mc.cfg.ApproachTime.Seconds())
		}
		desired = dir.Normalized().Mul(speed)
	}

	a.Velocity = a.Velocity.Lerp(desired, mc.cfg.VelocitySmoothing)
	next := a.Position.Add(a.Velocity.Mul(dt.Seconds()))

	mc.turn(a)

	if !next.Equals(a.Position) && !mc.Free(next) {
		a.Velocity = vec.Vec2Float{}
		return StepResult{Blocked: true, Stuck: !mc.Free(a.Position)}
	}

	a.Position = next
	return StepResult{Arrived: a.Position.DistanceTo(target) < mc.arrival}
}

// turn доворачивает Heading к направлению скорости на долю RotationSmoothing.
// При нулевой скорости или нулевой разнице углов поворот не меняется.
func (mc *MovementController) turn(a *Agent) {
	if a.Velocity.IsZero() {
		return
	}
	delta := vec.NormalizeAngle(a.Velocity.Heading() - a.Heading)
	if delta == 0 {
		return
	}
	a.Heading = vec.NormalizeAngle(a.Heading + delta*mc.cfg.RotationSmoothing)
}

// Free проверяет, что хитбокс агента в pos не пересекает препятствий и границу
func (mc *MovementController) Free(pos vec.Vec2Float) bool {
	if !mc.bounds.Contains(pos) {
		return false
	}
	if mc.world == nil {
		return true
	}
	return !physics.CollidesWithAny(pos, mc.radius, mc.world.Obstacles())
}
