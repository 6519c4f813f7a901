package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryPoseRepo реализует PoseRepo в памяти.
// Используется по умолчанию и в тестах, когда внешние хранилища недоступны.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryPoseRepo struct {
	mu   sync.RWMutex
	data map[uint64]Pose
}

// NewMemoryPoseRepo создает новый репозиторий поз в памяти.
func NewMemoryPoseRepo() *MemoryPoseRepo {
	return &MemoryPoseRepo{
		data: make(map[uint64]Pose),
	}
}

// Save сохраняет позу агента в памяти.
func (r *MemoryPoseRepo) Save(ctx context.Context, pose Pose) error {
	if pose.AgentID == 0 {
		return fmt.Errorf("недействительный agentID: %d", pose.AgentID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[pose.AgentID] = pose
	return nil
}

// BatchSave сохраняет позы одной операцией под блокировкой.
func (r *MemoryPoseRepo) BatchSave(ctx context.Context, poses []Pose) error {
	for _, p := range poses {
		if p.AgentID == 0 {
			return fmt.Errorf("недействительный agentID в batch: %d", p.AgentID)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range poses {
		r.data[p.AgentID] = p
	}
	return nil
}

// Load загружает позу агента из памяти.
func (r *MemoryPoseRepo) Load(ctx context.Context, agentID uint64) (Pose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pose, ok := r.data[agentID]
	if !ok {
		return Pose{}, ErrPoseNotFound
	}
	return pose, nil
}

// List возвращает все позы, отсортированные по ID агента.
func (r *MemoryPoseRepo) List(ctx context.Context) ([]Pose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Pose, 0, len(r.data))
	for _, p := range r.data {
		out = append(out, p)
	}
	sortPoses(out)
	return out, nil
}

// Delete удаляет позу агента.
func (r *MemoryPoseRepo) Delete(ctx context.Context, agentID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, agentID)
	return nil
}

// Close ничего не делает: данные в памяти.
func (r *MemoryPoseRepo) Close() error {
	return nil
}

// Count возвращает количество сохранённых поз (для тестов и статистики).
func (r *MemoryPoseRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func sortPoses(poses []Pose) {
	sort.Slice(poses, func(i, j int) bool { return poses[i].AgentID < poses[j].AgentID })
}
