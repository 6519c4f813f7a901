package npc

import (
	"time"

	"github.com/annel0/mmo-npc/internal/navigation"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/vec"
)

// Agent: состояние одного NPC. Принадлежит менеджеру и изменяется
// только внутри его тика или публичных операций.
type Agent struct {
	ID       uint64
	Model    string
	Position vec.Vec2Float
	// Heading: поворот вокруг вертикальной оси, 0 соответствует +Z
	Heading  float64
	Velocity vec.Vec2Float
	Health   int

	State          State
	StateEnteredAt time.Duration
	// stateSeq растёт при каждом входе в состояние; отложенные задачи
	// сверяют его, чтобы не сработать после повторного входа.
	stateSeq uint64

	Path          *navigation.Path
	WaypointIndex int
	Speed         float64

	// Aggro: активна, пока now - LastHitAt < AggroDuration
	LastHitAt     time.Duration
	AggroDuration time.Duration
	wasHit        bool

	Searching       bool
	SearchStartedAt time.Duration
	LastKnownTarget vec.Vec2Float

	Animation string

	needsRepath bool
	removed     bool
	marker      *physics.Marker
}

// aggroActive сообщает, активна ли агрессия в момент now
func (a *Agent) aggroActive(now time.Duration) bool {
	return a.wasHit && now-a.LastHitAt < a.AggroDuration
}

// AggroRemaining возвращает оставшееся время агрессии
func (a *Agent) AggroRemaining(now time.Duration) time.Duration {
	if !a.aggroActive(now) {
		return 0
	}
	return a.AggroDuration - (now - a.LastHitAt)
}

// currentWaypoint возвращает текущую точку маршрута
func (a *Agent) currentWaypoint() (vec.Vec2Float, bool) {
	if a.Path.Len() == 0 || a.WaypointIndex >= a.Path.Len() {
		return vec.Vec2Float{}, false
	}
	return a.Path.At(a.WaypointIndex), true
}

// Snapshot: копия состояния агента для чтения снаружи
type Snapshot struct {
	ID            uint64        `json:"id"`
	Model         string        `json:"model"`
	Position      vec.Vec3Float `json:"position"`
	Heading       float64       `json:"heading"`
	State         string        `json:"state"`
	Health        int           `json:"health"`
	Animation     string        `json:"animation"`
	Searching     bool          `json:"searching"`
	AggroActive   bool          `json:"aggro_active"`
	WaypointIndex int           `json:"waypoint_index"`
	PathLength    int           `json:"path_length"`
}

func (a *Agent) snapshot(now time.Duration) Snapshot {
	return Snapshot{
		ID:            a.ID,
		Model:         a.Model,
		Position:      a.Position.Lift(0),
		Heading:       a.Heading,
		State:         a.State.String(),
		Health:        a.Health,
		Animation:     a.Animation,
		Searching:     a.Searching,
		AggroActive:   a.aggroActive(now),
		WaypointIndex: a.WaypointIndex,
		PathLength:    a.Path.Len(),
	}
}
