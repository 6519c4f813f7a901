package storage

import (
	"context"
	"fmt"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
)

// Open создаёт хранилище поз по конфигурации.
// Пустой или неизвестный бэкенд даёт ошибку; "memory" не требует внешних сервисов.
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (PoseRepo, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return NewMemoryPoseRepo(), nil
	case "redis":
		return NewRedisPoseRepo(ctx, cfg.Redis, log)
	case "badger":
		return NewBadgerPoseRepo(cfg.Storage.BadgerPath, cfg.Redis.TTL(), log)
	case "mariadb", "mysql":
		return NewMariaPoseRepo(ctx, cfg.Storage.MariaDSN)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Storage.Backend)
	}
}
