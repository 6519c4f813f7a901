package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

var posePrefix = []byte("pose:")

// BadgerPoseRepo хранит позы во встроенной базе Badger.
// Подходит для одиночного сервера без Redis: позы переживают перезапуск.
type BadgerPoseRepo struct {
	db  *badger.DB
	ttl time.Duration
	log *logging.Logger
}

// NewBadgerPoseRepo открывает базу в каталоге path. Пустой path, база в памяти.
func NewBadgerPoseRepo(path string, ttl time.Duration, log *logging.Logger) (*BadgerPoseRepo, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть Badger %q: %w", path, err)
	}
	log.Info("💾 Позы агентов хранятся в Badger (%s)", displayPath(path))
	return &BadgerPoseRepo{db: db, ttl: ttl, log: log}, nil
}

func displayPath(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}

// poseKey кодирует ID в big-endian, чтобы итерация шла в порядке ID
func poseKey(agentID uint64) []byte {
	key := make([]byte, len(posePrefix)+8)
	copy(key, posePrefix)
	binary.BigEndian.PutUint64(key[len(posePrefix):], agentID)
	return key
}

func (r *BadgerPoseRepo) entry(pose Pose) (*badger.Entry, error) {
	data, err := json.Marshal(pose)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации позы %d: %w", pose.AgentID, err)
	}
	e := badger.NewEntry(poseKey(pose.AgentID), data)
	if r.ttl > 0 {
		e = e.WithTTL(r.ttl)
	}
	return e, nil
}

// Save сохраняет позу в отдельной транзакции.
func (r *BadgerPoseRepo) Save(ctx context.Context, pose Pose) error {
	if pose.AgentID == 0 {
		return fmt.Errorf("недействительный agentID: %d", pose.AgentID)
	}
	e, err := r.entry(pose)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

// BatchSave пишет позы через WriteBatch без ожидания каждой транзакции.
func (r *BadgerPoseRepo) BatchSave(ctx context.Context, poses []Pose) error {
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range poses {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := r.entry(p)
		if err != nil {
			return err
		}
		if err := wb.SetEntry(e); err != nil {
			return fmt.Errorf("ошибка записи позы %d в batch: %w", p.AgentID, err)
		}
	}
	return wb.Flush()
}

// Load читает позу агента.
func (r *BadgerPoseRepo) Load(ctx context.Context, agentID uint64) (Pose, error) {
	var pose Pose
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(poseKey(agentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pose)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Pose{}, ErrPoseNotFound
	}
	if err != nil {
		return Pose{}, fmt.Errorf("ошибка загрузки позы %d: %w", agentID, err)
	}
	return pose, nil
}

// List обходит все позы по префиксу.
func (r *BadgerPoseRepo) List(ctx context.Context) ([]Pose, error) {
	out := []Pose{}
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(posePrefix); it.ValidForPrefix(posePrefix); it.Next() {
			var pose Pose
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &pose)
			})
			if err != nil {
				r.log.Warn("⚠️ Повреждённая запись позы: %v", err)
				continue
			}
			out = append(out, pose)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения поз: %w", err)
	}
	return out, nil
}

// Delete удаляет позу агента.
func (r *BadgerPoseRepo) Delete(ctx context.Context, agentID uint64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(poseKey(agentID))
	})
}

// Close закрывает базу.
func (r *BadgerPoseRepo) Close() error {
	return r.db.Close()
}
