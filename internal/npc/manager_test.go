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
	"github.com/stretchr/testify/require"
)

func TestNewManager_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultAI()
	cfg.Patrol.MaxAttempts = 0

	_, err := NewManager(&cfg, Dependencies{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = NewManager(nil, Dependencies{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSpawn_AssignsSequentialIDs(t *testing.T) {
	rig := newRig(t, nil)
	a := rig.m.Spawn(vec.Vec3Float{X: -20})
	b := rig.m.Spawn(vec.Vec3Float{X: 20})

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, rig.m.Len())
	assert.ElementsMatch(t, []uint64{a, b}, rig.m.gen.Registry().Owners())

	snaps := rig.m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, a, snaps[0].ID)
	assert.Equal(t, "idle", snaps[0].State)
	assert.Equal(t, 100, snaps[1].Health)
}

func TestUnknownAgent_OperationsAreNoOps(t *testing.T) {
	rig := newRig(t, nil)
	rig.m.Spawn(origin())

	assert.NotPanics(t, func() {
		rig.m.ApplyDamage(999, 10, vec.Vec2Float{X: 1})
		rig.m.SetPosition(999, vec.Vec3Float{X: 1})
		rig.m.SetRotation(999, 1)
		rig.m.Dispose(999)
	})
	_, ok := rig.m.GetPosition(999)
	assert.False(t, ok)
	_, ok = rig.m.Snapshot(999)
	assert.False(t, ok)
	assert.Equal(t, 1, rig.m.Len())
}

func TestSetPosition_Teleports(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())

	rig.m.SetPosition(id, vec.Vec3Float{X: 7, Y: 3, Z: -4})

	got, ok := rig.m.GetPosition(id)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3Float{X: 7, Z: -4}, got)
}

func TestSpawnAndTeleport_ClampToMapBounds(t *testing.T) {
	rig := newRig(t, nil)
	bounds := rig.m.gen.Bounds()

	id := rig.m.Spawn(vec.Vec3Float{X: 60})
	start := rig.agent(t, id).Position
	assert.Equal(t, vec.Vec2Float{X: 48}, start, "точка появления прижимается к границе с отступом")

	farthest := 0.0
	for i := 0; i < 200; i++ {
		rig.m.Tick(50 * time.Millisecond)
		farthest = math.Max(farthest, rig.agent(t, id).Position.DistanceTo(start))
	}
	a := rig.agent(t, id)
	assert.Equal(t, StatePatrol, a.State)
	assert.True(t, bounds.Contains(a.Position))
	assert.Greater(t, farthest, 1.0, "агент у границы способен патрулировать")

	rig.m.SetPosition(id, vec.Vec3Float{X: -70, Z: 70})
	got, _ := rig.m.GetPosition(id)
	assert.Equal(t, vec.Vec3Float{X: -48, Z: 48}, got)
}

func TestSetRotation_IdempotentWithoutVelocity(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())

	rig.m.SetRotation(id, 1.25)
	rig.m.Tick(step)
	assert.Equal(t, 1.25, rig.agent(t, id).Heading)

	rig.m.SetRotation(id, 4*math.Pi+0.5)
	assert.InDelta(t, 0.5, rig.agent(t, id).Heading, 1e-9)
}

func TestDispose_ReleasesEverything(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())
	rig.m.ApplyDamage(id, 10, vec.Vec2Float{})

	rig.m.Dispose(id)

	assert.Equal(t, 0, rig.m.Len())
	assert.Equal(t, 0, rig.m.gen.Registry().Len())
	assert.Equal(t, 0, rig.m.sched.Pending())
	assert.Equal(t, []uint64{id}, rig.observer.disposed)

	rig.m.Dispose(id)
	assert.Len(t, rig.observer.disposed, 1)
}

func TestApplyDamage_RefreshesAggroAndShowsNumber(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())

	rig.m.ApplyDamage(id, 30, vec.Vec2Float{})
	a := rig.agent(t, id)
	assert.Equal(t, 70, a.Health)
	assert.Equal(t, StateHitReact, a.State)
	assert.True(t, a.aggroActive(rig.m.now))
	assert.Equal(t, []int{30}, rig.renderer.damage[id])

	rig.run(4*time.Second, step)
	rig.m.ApplyDamage(id, 1, vec.Vec2Float{})
	remaining, ok := rig.m.AggroRemaining(id)
	require.True(t, ok)
	assert.InDelta(t, rig.cfg.Durations.Aggro.Seconds(), remaining, 1e-9, "окно агрессии отсчитывается от последнего удара")
}

func TestApplyDamage_Knockback(t *testing.T) {
	t.Run("free", func(t *testing.T) {
		rig := newRig(t, physics.NewWorld())
		id := rig.m.Spawn(origin())

		rig.m.ApplyDamage(id, 10, vec.Vec2Float{X: 2})

		got, _ := rig.m.GetPosition(id)
		assert.InDelta(t, rig.cfg.Hitbox.Knockback, got.X, 1e-9)
		assert.InDelta(t, 0, got.Z, 1e-9)
	})

	t.Run("blocked", func(t *testing.T) {
		world := physics.NewWorld()
		world.AddCircle(vec.Vec2Float{X: 1}, 0.5)
		rig := newRig(t, world)
		id := rig.m.Spawn(origin())

		rig.m.ApplyDamage(id, 10, vec.Vec2Float{X: 1})

		got, _ := rig.m.GetPosition(id)
		assert.Equal(t, vec.Vec3Float{}, got, "отброс в препятствие откатывается")
		assert.Equal(t, StateHitReact, rig.state(t, id))
	})
}

func TestPatrol_WrapRegeneratesPath(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())
	rig.run(2*time.Second, step)
	require.Equal(t, StatePatrol, rig.state(t, id))

	a := rig.agent(t, id)
	first := a.Path
	visited := 0
	wrapped := false
	for i := 0; i < 6000 && !wrapped; i++ {
		prevPath, prevIdx := a.Path, a.WaypointIndex
		rig.m.Tick(50 * time.Millisecond)

		require.Greater(t, a.Heading, -math.Pi)
		require.LessOrEqual(t, a.Heading, math.Pi)
		require.True(t, rig.m.gen.Bounds().Contains(a.Position))

		if a.WaypointIndex != prevIdx && a.Path == prevPath {
			require.Equal(t, prevIdx+1, a.WaypointIndex, "точки проходятся по порядку")
			visited++
		}
		if a.Path != prevPath {
			require.Same(t, first, prevPath)
			assert.Equal(t, prevPath.Len()-1, prevIdx, "новый маршрут появляется только после последней точки")
			assert.Equal(t, 0, a.WaypointIndex)
			assert.Equal(t, navigation.PathPatrol, a.Path.Kind)
			registered, ok := rig.m.gen.Registry().Get(id)
			require.True(t, ok)
			assert.Same(t, a.Path, registered)
			wrapped = true
		}
	}
	require.True(t, wrapped, "агент должен пройти маршрут целиком")
	assert.Equal(t, first.Len()-1, visited)
}

func TestMovement_NeverEntersObstacles(t *testing.T) {
	world := physics.NewWorld()
	obstacles := []vec.Vec2Float{
		{X: 5, Z: 0}, {X: -5, Z: 3}, {X: 0, Z: 6}, {X: 2, Z: -6}, {X: -7, Z: -4}, {X: 8, Z: 8},
	}
	for _, p := range obstacles {
		world.AddCircle(p, 1.5)
	}
	rig := newRig(t, world)

	var ids []uint64
	for _, p := range []vec.Vec3Float{{X: 0, Z: 0}, {X: -10, Z: 10}, {X: 10, Z: -10}} {
		ids = append(ids, rig.m.Spawn(p))
	}

	for i := 0; i < 1200; i++ {
		rig.m.Tick(50 * time.Millisecond)
		for _, id := range ids {
			a := rig.agent(t, id)
			require.False(t, physics.CollidesWithAny(a.Position, rig.cfg.Hitbox.AgentRadius, world.Obstacles()),
				"агент %d в препятствии на тике %d", id, i)
			require.True(t, rig.m.gen.Bounds().Contains(a.Position))
			if a.State == StatePatrol && !a.Searching {
				registered, ok := rig.m.gen.Registry().Get(id)
				require.True(t, ok)
				require.Same(t, a.Path, registered)
				require.GreaterOrEqual(t, a.Path.Len(), 2)
			}
		}
	}
}

func TestLineOfSight_ObstacleBlocksAggroChase(t *testing.T) {
	world := physics.NewWorld()
	world.AddBox(vec.Vec2Float{X: 0, Z: 10}, 8, 1)
	rig := newRig(t, world)
	id := rig.m.Spawn(origin())
	rig.target.pos = vec.Vec2Float{X: 0, Z: 20}

	rig.m.ApplyDamage(id, 10, vec.Vec2Float{})
	rig.run(500*time.Millisecond, step)

	a := rig.agent(t, id)
	assert.Equal(t, StatePatrol, a.State)
	assert.True(t, a.Searching, "цель за стеной: агент ищет, а не преследует")
}

func TestDebugVisualization(t *testing.T) {
	rig := newRig(t, nil)
	id := rig.m.Spawn(origin())

	assert.Empty(t, rig.m.DebugPaths())

	rig.m.SetDebugVisualization(true)
	paths := rig.m.DebugPaths()
	require.Contains(t, paths, id)
	assert.Equal(t, rig.agent(t, id).Path.Waypoints, paths[id])
	assert.Equal(t, 1, rig.renderer.shown[id])

	rig.m.SetDebugVisualization(false)
	assert.Empty(t, rig.m.DebugPaths())
	assert.Equal(t, 1, rig.renderer.cleared[id])
	assert.False(t, rig.m.DebugVisualization())
}

func TestTick_IsDeterministicForSeed(t *testing.T) {
	positions := func() []vec.Vec3Float {
		rig := newRig(t, nil)
		a := rig.m.Spawn(origin())
		b := rig.m.Spawn(vec.Vec3Float{X: 20, Z: 20})
		rig.run(10*time.Second, 50*time.Millisecond)
		pa, _ := rig.m.GetPosition(a)
		pb, _ := rig.m.GetPosition(b)
		return []vec.Vec3Float{pa, pb}
	}
	assert.Equal(t, positions(), positions())
}
