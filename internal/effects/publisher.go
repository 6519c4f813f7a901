// Package effects публикует события жизненного цикла агентов в шину событий.
package effects

import (
	"context"
	"strconv"
	"time"

	"github.com/annel0/mmo-npc/internal/eventbus"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/npc"
)

// Типы событий агентов
const (
	EventSpawned      = "npc.spawned"
	EventStateChanged = "npc.state_changed"
	EventDamaged      = "npc.damaged"
	EventDied         = "npc.died"
	EventDisposed     = "npc.disposed"
)

// Source: имя источника в конвертах
const Source = "npc-core"

// StateChange: полезная нагрузка npc.state_changed
type StateChange struct {
	AgentID uint64 `json:"agent_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Damage: полезная нагрузка npc.damaged
type Damage struct {
	AgentID uint64 `json:"agent_id"`
	Amount  int    `json:"amount"`
	Health  int    `json:"health"`
}

// Disposed: полезная нагрузка npc.disposed
type Disposed struct {
	AgentID uint64 `json:"agent_id"`
}

// Publisher реализует npc.Observer поверх EventBus.
// Ошибки публикации логируются и не влияют на симуляцию.
type Publisher struct {
	bus     eventbus.EventBus
	log     *logging.Logger
	timeout time.Duration
}

var _ npc.Observer = (*Publisher)(nil)

// NewPublisher создаёт публикатор событий агентов
func NewPublisher(bus eventbus.EventBus, log *logging.Logger) *Publisher {
	return &Publisher{bus: bus, log: log, timeout: 50 * time.Millisecond}
}

func (p *Publisher) OnSpawn(s npc.Snapshot) {
	p.publish(EventSpawned, s.ID, 3, s)
}

func (p *Publisher) OnStateChange(agentID uint64, from, to npc.State) {
	p.publish(EventStateChanged, agentID, 2, StateChange{AgentID: agentID, From: from.String(), To: to.String()})
}

func (p *Publisher) OnDamage(agentID uint64, amount, health int) {
	p.publish(EventDamaged, agentID, 4, Damage{AgentID: agentID, Amount: amount, Health: health})
}

// OnDeath: хук эффекта смерти; событие высокого приоритета не отбрасывается при переполнении
func (p *Publisher) OnDeath(s npc.Snapshot) {
	p.publish(EventDied, s.ID, 7, s)
}

func (p *Publisher) OnDispose(agentID uint64) {
	p.publish(EventDisposed, agentID, 6, Disposed{AgentID: agentID})
}

func (p *Publisher) publish(eventType string, agentID uint64, priority int, payload interface{}) {
	ev, err := eventbus.NewEnvelope(Source, eventType, priority, payload)
	if err != nil {
		p.log.Error("Не удалось собрать событие %s: %v", eventType, err)
		return
	}
	ev.CorrelationID = strconv.FormatUint(agentID, 10)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.log.Warn("Событие %s агента %d не опубликовано: %v", eventType, agentID, err)
	}
}

// Fanout рассылает события нескольким наблюдателям по порядку
type Fanout []npc.Observer

func (f Fanout) OnSpawn(s npc.Snapshot) {
	for _, o := range f {
		o.OnSpawn(s)
	}
}

func (f Fanout) OnStateChange(agentID uint64, from, to npc.State) {
	for _, o := range f {
		o.OnStateChange(agentID, from, to)
	}
}

func (f Fanout) OnDamage(agentID uint64, amount, health int) {
	for _, o := range f {
		o.OnDamage(agentID, amount, health)
	}
}

func (f Fanout) OnDeath(s npc.Snapshot) {
	for _, o := range f {
		o.OnDeath(s)
	}
}

func (f Fanout) OnDispose(agentID uint64) {
	for _, o := range f {
		o.OnDispose(agentID)
	}
}
