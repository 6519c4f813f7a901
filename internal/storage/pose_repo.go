package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/mmo-npc/internal/vec"
)

// ErrPoseNotFound возвращается, если поза агента не сохранена
var ErrPoseNotFound = errors.New("pose not found")

// Pose: последнее опубликованное состояние агента для внешних потребителей
// (клиентов рендера, отладочного API, инструментов).
type Pose struct {
	AgentID   uint64        `json:"agent_id"`
	Model     string        `json:"model"`
	Position  vec.Vec3Float `json:"position"`
	Heading   float64       `json:"heading"`
	State     string        `json:"state"`
	Animation string        `json:"animation"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PoseRepo определяет интерфейс хранилища поз агентов.
// Поза привязана к ID агента и живёт, пока агент не удалён.
type PoseRepo interface {
	// Save сохраняет позу агента. Реализации могут буферизовать запись.
	Save(ctx context.Context, pose Pose) error

	// BatchSave сохраняет позы нескольких агентов одновременно.
	BatchSave(ctx context.Context, poses []Pose) error

	// Load возвращает позу агента или ErrPoseNotFound.
	Load(ctx context.Context, agentID uint64) (Pose, error)

	// List возвращает все сохранённые позы в порядке ID агентов.
	List(ctx context.Context) ([]Pose, error)

	// Delete удаляет позу агента. Отсутствие записи ошибкой не считается.
	Delete(ctx context.Context, agentID uint64) error

	// Close сбрасывает буферы и освобождает соединения.
	Close() error
}
