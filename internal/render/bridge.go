// Package render связывает ядро агентов с внешними потребителями картинки:
// собирает позы, анимации и отладочные маршруты и сбрасывает их в хранилище поз.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/npc"
	"github.com/annel0/mmo-npc/internal/storage"
	"github.com/annel0/mmo-npc/internal/vec"
)

// maxPopups: сколько последних цифр урона хранится для клиентов
const maxPopups = 64

// DamagePopup: всплывающая цифра урона
type DamagePopup struct {
	AgentID  uint64        `json:"agent_id"`
	Position vec.Vec3Float `json:"position"`
	Amount   int           `json:"amount"`
	At       time.Time     `json:"at"`
}

// Bridge реализует npc.Renderer, npc.PathRenderer и npc.Observer.
// Вызовы из ядра приходят под блокировкой менеджера, поэтому здесь
// только обновляется состояние в памяти; запись в хранилище делает Flush.
type Bridge struct {
	mu      sync.Mutex
	repo    storage.PoseRepo
	poses   map[uint64]*storage.Pose
	dirty   map[uint64]struct{}
	removed map[uint64]struct{}
	paths   map[uint64][]vec.Vec3Float
	popups  []DamagePopup
	clock   func() time.Time
	log     *logging.Logger
}

var (
	_ npc.Renderer     = (*Bridge)(nil)
	_ npc.PathRenderer = (*Bridge)(nil)
	_ npc.Observer     = (*Bridge)(nil)
)

// NewBridge создаёт мост поверх хранилища поз
func NewBridge(repo storage.PoseRepo, log *logging.Logger) *Bridge {
	return &Bridge{
		repo:    repo,
		poses:   make(map[uint64]*storage.Pose),
		dirty:   make(map[uint64]struct{}),
		removed: make(map[uint64]struct{}),
		paths:   make(map[uint64][]vec.Vec3Float),
		clock:   time.Now,
		log:     log,
	}
}

// pose возвращает запись агента, создавая её при первом обращении.
// Вызывается под b.mu.
func (b *Bridge) pose(agentID uint64) *storage.Pose {
	p, ok := b.poses[agentID]
	if !ok {
		p = &storage.Pose{AgentID: agentID}
		b.poses[agentID] = p
		delete(b.removed, agentID)
	}
	p.UpdatedAt = b.clock()
	b.dirty[agentID] = struct{}{}
	return p
}

func (b *Bridge) PlayAnimation(agentID uint64, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pose(agentID).Animation = key
}

func (b *Bridge) UpdateTransform(agentID uint64, position vec.Vec3Float, rotation float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pose(agentID)
	p.Position = position
	p.Heading = rotation
}

func (b *Bridge) ShowDamageNumber(agentID uint64, position vec.Vec3Float, amount int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.popups = append(b.popups, DamagePopup{AgentID: agentID, Position: position, Amount: amount, At: b.clock()})
	if over := len(b.popups) - maxPopups; over > 0 {
		b.popups = append(b.popups[:0], b.popups[over:]...)
	}
}

func (b *Bridge) RemoveAgent(agentID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.poses, agentID)
	delete(b.dirty, agentID)
	delete(b.paths, agentID)
	b.removed[agentID] = struct{}{}
}

func (b *Bridge) ShowPath(agentID uint64, waypoints []vec.Vec3Float) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths[agentID] = append([]vec.Vec3Float(nil), waypoints...)
}

func (b *Bridge) ClearPath(agentID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.paths, agentID)
}

func (b *Bridge) OnSpawn(s npc.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pose(s.ID)
	p.Model = s.Model
	p.State = s.State
	p.Position = s.Position
	p.Heading = s.Heading
	p.Animation = s.Animation
}

func (b *Bridge) OnStateChange(agentID uint64, _, to npc.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, gone := b.removed[agentID]; gone {
		return
	}
	b.pose(agentID).State = to.String()
}

func (b *Bridge) OnDamage(uint64, int, int) {}

func (b *Bridge) OnDeath(s npc.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pose(s.ID).State = s.State
}

func (b *Bridge) OnDispose(uint64) {}

// Paths возвращает копию показанных отладочных маршрутов
func (b *Bridge) Paths() map[uint64][]vec.Vec3Float {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[uint64][]vec.Vec3Float, len(b.paths))
	for id, wp := range b.paths {
		out[id] = append([]vec.Vec3Float(nil), wp...)
	}
	return out
}

// Popups возвращает последние цифры урона, старые первыми
func (b *Bridge) Popups() []DamagePopup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DamagePopup(nil), b.popups...)
}

// Pose возвращает текущую позу агента из памяти моста
func (b *Bridge) Pose(agentID uint64) (storage.Pose, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.poses[agentID]
	if !ok {
		return storage.Pose{}, false
	}
	return *p, true
}

// Flush записывает изменённые позы одним батчем и удаляет позы убранных агентов.
// Вызывается из цикла симуляции вне блокировки менеджера.
func (b *Bridge) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := make([]storage.Pose, 0, len(b.dirty))
	for id := range b.dirty {
		if p, ok := b.poses[id]; ok {
			batch = append(batch, *p)
		}
	}
	removed := make([]uint64, 0, len(b.removed))
	for id := range b.removed {
		removed = append(removed, id)
	}
	b.dirty = make(map[uint64]struct{})
	b.removed = make(map[uint64]struct{})
	b.mu.Unlock()

	if len(batch) > 0 {
		if err := b.repo.BatchSave(ctx, batch); err != nil {
			b.requeue(batch)
			return err
		}
	}
	for _, id := range removed {
		if err := b.repo.Delete(ctx, id); err != nil {
			b.log.Warn("Поза агента %d не удалена: %v", id, err)
		}
	}
	return nil
}

// requeue возвращает несохранённые позы в очередь, если агент ещё жив
func (b *Bridge) requeue(batch []storage.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range batch {
		if _, ok := b.poses[p.AgentID]; ok {
			b.dirty[p.AgentID] = struct{}{}
		}
	}
}
