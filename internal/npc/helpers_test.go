package npc

import (
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubTarget struct {
	pos vec.Vec2Float
}

func (t *stubTarget) Position() vec.Vec2Float { return t.pos }

type recordingRenderer struct {
	mu         sync.Mutex
	animations map[uint64][]string
	transforms map[uint64]int
	damage     map[uint64][]int
	removed    map[uint64]int
	shown      map[uint64]int
	cleared    map[uint64]int
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		animations: make(map[uint64][]string),
		transforms: make(map[uint64]int),
		damage:     make(map[uint64][]int),
		removed:    make(map[uint64]int),
		shown:      make(map[uint64]int),
		cleared:    make(map[uint64]int),
	}
}

func (r *recordingRenderer) PlayAnimation(id uint64, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.animations[id] = append(r.animations[id], key)
}

func (r *recordingRenderer) UpdateTransform(id uint64, _ vec.Vec3Float, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[id]++
}

func (r *recordingRenderer) ShowDamageNumber(id uint64, _ vec.Vec3Float, amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.damage[id] = append(r.damage[id], amount)
}

func (r *recordingRenderer) RemoveAgent(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed[id]++
}

func (r *recordingRenderer) ShowPath(id uint64, _ []vec.Vec3Float) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown[id]++
}

func (r *recordingRenderer) ClearPath(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared[id]++
}

func (r *recordingRenderer) lastAnimation(id uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.animations[id]
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1]
}

type recordingObserver struct {
	spawned     []uint64
	transitions []string
	damaged     []int
	deaths      []uint64
	disposed    []uint64
}

func (o *recordingObserver) OnSpawn(s Snapshot) { o.spawned = append(o.spawned, s.ID) }
func (o *recordingObserver) OnStateChange(_ uint64, from, to State) {
	o.transitions = append(o.transitions, from.String()+"->"+to.String())
}
func (o *recordingObserver) OnDamage(_ uint64, amount, _ int) { o.damaged = append(o.damaged, amount) }
func (o *recordingObserver) OnDeath(s Snapshot)               { o.deaths = append(o.deaths, s.ID) }
func (o *recordingObserver) OnDispose(id uint64)              { o.disposed = append(o.disposed, id) }

type testRig struct {
	m        *Manager
	cfg      *config.AIConfig
	target   *stubTarget
	renderer *recordingRenderer
	observer *recordingObserver
}

// farAway: точка вне дальности обнаружения и обзора для агентов у начала координат
var farAway = vec.Vec2Float{X: 0, Z: 500}

func newRig(t *testing.T, world CollisionWorld, mutate ...func(c *config.AIConfig)) *testRig {
	t.Helper()
	cfg := config.DefaultAI()
	for _, fn := range mutate {
		fn(&cfg)
	}
	rig := &testRig{
		cfg:      &cfg,
		target:   &stubTarget{pos: farAway},
		renderer: newRecordingRenderer(),
		observer: &recordingObserver{},
	}
	m, err := NewManager(&cfg, Dependencies{
		World:    world,
		Target:   rig.target,
		Renderer: rig.renderer,
		Observer: rig.observer,
		Rand:     rand.New(rand.NewSource(7)),
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Logger:   logging.NewWriterLogger("ai-test", io.Discard, logging.DEBUG),
	})
	require.NoError(t, err)
	rig.m = m
	return rig
}

// run продвигает симуляцию шагами step на суммарное время total
func (r *testRig) run(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		r.m.Tick(step)
	}
}

// agent возвращает внутреннее состояние агента (только для тестов пакета)
func (r *testRig) agent(t *testing.T, id uint64) *Agent {
	t.Helper()
	a, ok := r.m.agents[id]
	require.True(t, ok, "агент %d должен существовать", id)
	return a
}

func (r *testRig) state(t *testing.T, id uint64) State {
	return r.agent(t, id).State
}

func origin() vec.Vec3Float { return vec.Vec3Float{} }
