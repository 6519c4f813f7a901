package navigation

import (
	"sort"
	"sync"
)

// Registry: глобальный реестр активных маршрутов патруля, по одному на владельца.
// В однопоточной модели тика пишет только текущий обновляемый агент;
// мьютекс нужен, когда реестр читают параллельно (отладочный API).
type Registry struct {
	mu    sync.RWMutex
	paths map[uint64]*Path // ownerID -> маршрут
}

// NewRegistry создаёт пустой реестр маршрутов
func NewRegistry() *Registry {
	return &Registry{paths: make(map[uint64]*Path)}
}

// Register закрепляет маршрут за владельцем, заменяя предыдущий
func (r *Registry) Register(owner uint64, p *Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[owner] = p
}

// Release освобождает маршрут владельца. Возвращает false, если маршрута не было.
func (r *Registry) Release(owner uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[owner]; !ok {
		return false
	}
	delete(r.paths, owner)
	return true
}

// Get возвращает маршрут владельца
func (r *Registry) Get(owner uint64) (*Path, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paths[owner]
	return p, ok
}

// Len возвращает количество активных маршрутов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

// Overlaps проверяет, есть ли у кандидата точка ближе minDist
// к любой точке любого чужого активного маршрута.
func (r *Registry) Overlaps(owner uint64, candidate *Path, minDist float64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for other, p := range r.paths {
		if other == owner {
			continue
		}
		for _, a := range candidate.Waypoints {
			for _, b := range p.Waypoints {
				if a.DistanceTo(b) < minDist {
					return true
				}
			}
		}
	}
	return false
}

// Owners возвращает отсортированный список владельцев маршрутов
func (r *Registry) Owners() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make([]uint64, 0, len(r.paths))
	for id := range r.paths {
		owners = append(owners, id)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}
