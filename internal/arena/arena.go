// Package arena строит тестовую сцену headless-сервера: препятствия по шуму
// Перлина, точки появления агентов и скриптовую цель.
package arena

import (
	"math"
	"math/rand"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

const (
	// cellSize: шаг сетки, по которой раскладываются препятствия
	cellSize = 6.0
	// spawnClearance: дополнительный зазор вокруг точки появления
	spawnClearance = 1.5
	spawnAttempts  = 200
)

// Arena: собранная сцена
type Arena struct {
	World  *physics.World
	Spawns []vec.Vec2Float
	Bounds physics.Bounds
}

// Build собирает сцену по конфигурации симуляции. Результат
// детерминирован при одинаковом Simulation.Seed.
func Build(cfg *config.Config, log *logging.Logger) *Arena {
	sim := cfg.Simulation
	m := cfg.AI.Map
	bounds := physics.Bounds{
		Min:    vec.Vec2Float{X: m.MinX, Z: m.MinZ},
		Max:    vec.Vec2Float{X: m.MaxX, Z: m.MaxZ},
		Margin: m.Margin,
	}

	rng := rand.New(rand.NewSource(sim.Seed))
	noise := NewNoise(sim.Seed, 20)
	world := physics.NewWorld()

	lo, hi := bounds.Inner()
	placed := 0
	for x := lo.X + cellSize/2; x < hi.X; x += cellSize {
		for z := lo.Z + cellSize/2; z < hi.Z; z += cellSize {
			// Центр карты оставляем свободным
			if math.Hypot(x, z) < cellSize {
				continue
			}
			n := noise.At(x, z)
			if rng.Float64() >= sim.ObstacleDensity*2*n {
				continue
			}
			jitter := vec.Vec2Float{
				X: (rng.Float64() - 0.5) * cellSize * 0.5,
				Z: (rng.Float64() - 0.5) * cellSize * 0.5,
			}
			pos := vec.Vec2Float{X: x, Z: z}.Add(jitter)
			if n > 0.6 {
				size := sim.ObstacleRadius * 2
				world.AddBox(pos, size, size)
			} else {
				world.AddCircle(pos, sim.ObstacleRadius)
			}
			placed++
		}
	}

	spawns := make([]vec.Vec2Float, 0, sim.Agents)
	clearance := cfg.AI.Hitbox.AgentRadius + spawnClearance
	for attempt := 0; len(spawns) < sim.Agents && attempt < spawnAttempts*max(sim.Agents, 1); attempt++ {
		p := vec.Vec2Float{
			X: lo.X + rng.Float64()*(hi.X-lo.X),
			Z: lo.Z + rng.Float64()*(hi.Z-lo.Z),
		}
		if world.Collides(p, clearance) || tooClose(p, spawns, clearance*2) {
			continue
		}
		spawns = append(spawns, p)
	}
	if len(spawns) < sim.Agents {
		log.Warn("Арена: найдено только %d точек появления из %d", len(spawns), sim.Agents)
	}

	log.Info("🗺️ Арена собрана: %d препятствий, %d точек появления", placed, len(spawns))
	return &Arena{World: world, Spawns: spawns, Bounds: bounds}
}

func tooClose(p vec.Vec2Float, others []vec.Vec2Float, dist float64) bool {
	for _, o := range others {
		if p.DistanceTo(o) < dist {
			return true
		}
	}
	return false
}
