package effects

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mmo-npc/internal/eventbus"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/npc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_EmitsLifecycleEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(32)
	defer bus.Close()

	var mu sync.Mutex
	var got []*eventbus.Envelope
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	p := NewPublisher(bus, logging.NewWriterLogger("effects-test", io.Discard, logging.ERROR))
	p.OnSpawn(npc.Snapshot{ID: 4, State: "idle", Health: 100})
	p.OnStateChange(4, npc.StateIdle, npc.StateHitReact)
	p.OnDamage(4, 30, 70)
	p.OnDeath(npc.Snapshot{ID: 4, State: "death"})
	p.OnDispose(4)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	types := make([]string, 0, len(got))
	for _, ev := range got {
		types = append(types, ev.EventType)
		assert.Equal(t, "4", ev.CorrelationID)
		assert.Equal(t, Source, ev.Source)
	}
	assert.Equal(t, []string{EventSpawned, EventStateChanged, EventDamaged, EventDied, EventDisposed}, types)

	var change StateChange
	require.NoError(t, got[1].Decode(&change))
	assert.Equal(t, StateChange{AgentID: 4, From: "idle", To: "hit_react"}, change)

	var dmg Damage
	require.NoError(t, got[2].Decode(&dmg))
	assert.Equal(t, 70, dmg.Health)
}

type countingObserver struct {
	npc.NopObserver
	deaths int
}

func (c *countingObserver) OnDeath(npc.Snapshot) { c.deaths++ }

func TestFanout_CallsEveryObserver(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	f := Fanout{a, b}

	f.OnDeath(npc.Snapshot{ID: 1})
	f.OnSpawn(npc.Snapshot{ID: 1})

	assert.Equal(t, 1, a.deaths)
	assert.Equal(t, 1, b.deaths)
}
