package navigation

import (
	"math"
	"math/rand"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// Result описывает итог генерации маршрута патруля
type Result struct {
	Attempts int
	// Overlapping: кандидат принят после исчерпания попыток, несмотря на пересечение
	Overlapping bool
}

// Generator строит маршруты патруля и поиска в пределах карты
type Generator struct {
	patrol   config.PatrolConfig
	search   config.SearchConfig
	bounds   physics.Bounds
	rng      *rand.Rand
	registry *Registry
	log      *logging.Logger
}

// NewGenerator создаёт генератор маршрутов поверх общего реестра
func NewGenerator(cfg *config.AIConfig, registry *Registry, rng *rand.Rand, log *logging.Logger) *Generator {
	return &Generator{
		patrol:   cfg.Patrol,
		search:   cfg.Search,
		bounds:   BoundsFromConfig(cfg.Map),
		rng:      rng,
		registry: registry,
		log:      log,
	}
}

// BoundsFromConfig переводит границы карты из конфигурации
func BoundsFromConfig(m config.MapConfig) physics.Bounds {
	return physics.Bounds{
		Min:    vec.Vec2Float{X: m.MinX, Z: m.MinZ},
		Max:    vec.Vec2Float{X: m.MaxX, Z: m.MaxZ},
		Margin: m.Margin,
	}
}

// Registry возвращает реестр, с которым работает генератор
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Bounds возвращает границы карты
func (g *Generator) Bounds() physics.Bounds {
	return g.bounds
}

// AssignPatrol генерирует новый маршрут патруля вокруг start и закрепляет его за owner.
// Прежний маршрут владельца освобождается до генерации. Если за MaxAttempts
// не удалось избежать пересечения с чужими маршрутами, принимается последний кандидат.
func (g *Generator) AssignPatrol(owner uint64, start vec.Vec2Float) (*Path, Result) {
	g.registry.Release(owner)

	var candidate *Path
	res := Result{}
	for res.Attempts < g.patrol.MaxAttempts {
		res.Attempts++
		candidate = g.patrolCandidate(start)
		if !g.registry.Overlaps(owner, candidate, g.patrol.MinPathDist) {
			g.registry.Register(owner, candidate)
			return candidate, res
		}
	}

	res.Overlapping = true
	if g.log != nil {
		g.log.Warn("Маршрут агента %d пересекается с чужими после %d попыток, принимаем как есть", owner, res.Attempts)
	}
	g.registry.Register(owner, candidate)
	return candidate, res
}

// patrolCandidate строит замкнутый маршрут: точки на равных углах вокруг start
// с дрожанием угла и радиуса, каждая прижата к границе карты.
func (g *Generator) patrolCandidate(start vec.Vec2Float) *Path {
	count := g.intBetween(g.patrol.MinWaypoints, g.patrol.MaxWaypoints)
	radius := g.floatBetween(g.patrol.MinRadius, g.patrol.MaxRadius)
	step := 2 * math.Pi / float64(count)

	waypoints := make([]vec.Vec2Float, 0, count+1)
	for i := 0; i < count; i++ {
		angle := float64(i)*step + g.patrol.AngleJitter*g.signed()
		r := radius * (1 + g.patrol.RadiusVariance*g.signed())
		p := start.Add(vec.FromHeading(angle).Mul(r))
		waypoints = append(waypoints, g.bounds.Clamp(p))
	}
	waypoints = append(waypoints, waypoints[0])

	return newPath(PathPatrol, waypoints)
}

// SearchPath строит короткий маршрут от start к target с небольшим дрожанием
// промежуточных точек. Нулевая точка равна start, последняя равна target,
// прижатому к границе карты. Маршрут поиска не регистрируется и не проверяется
// на пересечения.
func (g *Generator) SearchPath(start, target vec.Vec2Float) *Path {
	target = g.bounds.Clamp(target)
	count := g.intBetween(g.search.MinWaypoints, g.search.MaxWaypoints)

	waypoints := make([]vec.Vec2Float, 0, count+1)
	waypoints = append(waypoints, start)
	for i := 1; i < count; i++ {
		t := float64(i) / float64(count)
		p := start.Lerp(target, t)
		p = p.Add(vec.Vec2Float{X: g.search.Jitter * g.signed(), Z: g.search.Jitter * g.signed()})
		waypoints = append(waypoints, g.bounds.Clamp(p))
	}
	waypoints = append(waypoints, target)

	return newPath(PathSearch, waypoints)
}

// signed возвращает равномерное число из [-1, 1)
func (g *Generator) signed() float64 {
	return g.rng.Float64()*2 - 1
}

func (g *Generator) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.rng.Intn(max-min+1)
}

func (g *Generator) floatBetween(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + g.rng.Float64()*(max-min)
}
