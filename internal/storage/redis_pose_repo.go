package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/go-redis/redis/v8"
)

// geoScale переводит координаты карты в градусы GEO-индекса Redis
const geoScale = 1000.0

// RedisPoseRepo хранит позы агентов в Redis. Запись буферизуется и
// сбрасывается пайплайном по таймеру или при заполнении батча.
type RedisPoseRepo struct {
	client      *redis.Client
	keyPrefix   string
	ttl         time.Duration
	batchSize   int
	batchMu     sync.Mutex
	batchBuffer map[uint64]Pose
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
	log         *logging.Logger
}

// NewRedisPoseRepo подключается к Redis и запускает фоновый сброс батчей
func NewRedisPoseRepo(ctx context.Context, cfg config.RedisConfig, log *logging.Logger) (*RedisPoseRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisPoseRepo(client, cfg, log), nil
}

func newRedisPoseRepo(client *redis.Client, cfg config.RedisConfig, log *logging.Logger) *RedisPoseRepo {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flush := time.Duration(cfg.BatchFlushMs) * time.Millisecond
	if flush <= 0 {
		flush = 100 * time.Millisecond
	}

	repo := &RedisPoseRepo{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		ttl:         cfg.TTL(),
		batchSize:   batchSize,
		batchBuffer: make(map[uint64]Pose),
		batchTicker: time.NewTicker(flush),
		shutdown:    make(chan struct{}),
		log:         log,
	}

	repo.wg.Add(1)
	go repo.batchFlusher()

	log.Info("🔴 Позы агентов хранятся в Redis %s", cfg.Addr)
	return repo
}

func (r *RedisPoseRepo) key(agentID uint64) string {
	return r.keyPrefix + strconv.FormatUint(agentID, 10)
}

func (r *RedisPoseRepo) geoKey() string {
	return r.keyPrefix + "geo"
}

// Save добавляет позу в батч-буфер; при заполнении буфер сбрасывается сразу.
func (r *RedisPoseRepo) Save(ctx context.Context, pose Pose) error {
	r.batchMu.Lock()
	r.batchBuffer[pose.AgentID] = pose

	if len(r.batchBuffer) >= r.batchSize {
		batch := r.batchBuffer
		r.batchBuffer = make(map[uint64]Pose)
		r.batchMu.Unlock()
		return r.flushBatch(ctx, batch)
	}

	r.batchMu.Unlock()
	return nil
}

// BatchSave пишет позы одним пайплайном в обход буфера.
func (r *RedisPoseRepo) BatchSave(ctx context.Context, poses []Pose) error {
	batch := make(map[uint64]Pose, len(poses))
	for _, p := range poses {
		batch[p.AgentID] = p
	}
	return r.flushBatch(ctx, batch)
}

// Load получает позу агента; сначала смотрит в несброшенный буфер.
func (r *RedisPoseRepo) Load(ctx context.Context, agentID uint64) (Pose, error) {
	r.batchMu.Lock()
	if p, ok := r.batchBuffer[agentID]; ok {
		r.batchMu.Unlock()
		return p, nil
	}
	r.batchMu.Unlock()

	data, err := r.client.Get(ctx, r.key(agentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pose{}, ErrPoseNotFound
	} else if err != nil {
		return Pose{}, fmt.Errorf("failed to get pose: %w", err)
	}

	var pose Pose
	if err := json.Unmarshal(data, &pose); err != nil {
		return Pose{}, fmt.Errorf("failed to unmarshal pose: %w", err)
	}
	return pose, nil
}

// List читает все позы через SCAN и пайплайн GET.
func (r *RedisPoseRepo) List(ctx context.Context) ([]Pose, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"[0-9]*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan poses: %w", err)
	}
	if len(keys) == 0 {
		return []Pose{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get poses: %w", err)
	}

	out := make([]Pose, 0, len(cmds))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue // ключ истёк между SCAN и GET
		}
		var pose Pose
		if err := json.Unmarshal(data, &pose); err != nil {
			r.log.Warn("⚠️ Не удалось разобрать позу %s: %v", keys[i], err)
			continue
		}
		out = append(out, pose)
	}
	sortPoses(out)
	return out, nil
}

// Nearby возвращает ID агентов в радиусе от точки (по GEO-индексу).
func (r *RedisPoseRepo) Nearby(ctx context.Context, x, z, radius float64) ([]uint64, error) {
	lon, lat := toGeo(x, z)
	names, err := r.client.GeoSearch(ctx, r.geoKey(), &redis.GeoSearchQuery{
		Longitude:  lon,
		Latitude:   lat,
		Radius:     radius * geoMetersPerUnit(),
		RadiusUnit: "m",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby agents: %w", err)
	}

	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		if id, err := strconv.ParseUint(name, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete удаляет позу из буфера, ключа и GEO-индекса.
func (r *RedisPoseRepo) Delete(ctx context.Context, agentID uint64) error {
	r.batchMu.Lock()
	delete(r.batchBuffer, agentID)
	r.batchMu.Unlock()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(agentID))
	pipe.ZRem(ctx, r.geoKey(), strconv.FormatUint(agentID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete pose: %w", err)
	}
	return nil
}

// Close останавливает флашер, сбрасывает остаток буфера и закрывает соединение.
func (r *RedisPoseRepo) Close() error {
	close(r.shutdown)
	r.wg.Wait()
	r.batchTicker.Stop()

	r.batchMu.Lock()
	batch := r.batchBuffer
	r.batchBuffer = make(map[uint64]Pose)
	r.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.flushBatch(ctx, batch); err != nil {
		r.log.Warn("Не удалось сбросить позы при закрытии: %v", err)
	}
	return r.client.Close()
}

// batchFlusher периодически сбрасывает батч-буфер
func (r *RedisPoseRepo) batchFlusher() {
	defer r.wg.Done()

	for {
		select {
		case <-r.shutdown:
			return
		case <-r.batchTicker.C:
			r.batchMu.Lock()
			if len(r.batchBuffer) == 0 {
				r.batchMu.Unlock()
				continue
			}
			batch := r.batchBuffer
			r.batchBuffer = make(map[uint64]Pose)
			r.batchMu.Unlock()

			if err := r.flushBatch(context.Background(), batch); err != nil {
				r.log.Error("❌ Failed to flush pose batch: %v", err)
			}
		}
	}
}

// flushBatch записывает батч поз и GEO-индекс одним пайплайном
func (r *RedisPoseRepo) flushBatch(ctx context.Context, batch map[uint64]Pose) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for id, pose := range batch {
		data, err := json.Marshal(pose)
		if err != nil {
			r.log.Warn("⚠️ Failed to marshal pose for %d: %v", id, err)
			continue
		}
		pipe.Set(ctx, r.key(id), data, r.ttl)

		lon, lat := toGeo(pose.Position.X, pose.Position.Z)
		pipe.GeoAdd(ctx, r.geoKey(), &redis.GeoLocation{
			Name:      strconv.FormatUint(id, 10),
			Longitude: lon,
			Latitude:  lat,
		})
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, r.geoKey(), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// toGeo отображает плоскость карты на долготу/широту в допустимых пределах
func toGeo(x, z float64) (lon, lat float64) {
	lon = clamp(x/geoScale, -180, 180)
	lat = clamp(z/geoScale, -85, 85)
	return lon, lat
}

// geoMetersPerUnit: примерная длина единицы карты в метрах после масштабирования
func geoMetersPerUnit() float64 {
	return 111320.0 / geoScale
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
