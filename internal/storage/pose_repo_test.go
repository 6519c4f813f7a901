package storage

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/eventbus"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.NewWriterLogger("storage-test", io.Discard, logging.DEBUG)
}

func samplePose(id uint64, x float64) Pose {
	return Pose{
		AgentID:   id,
		Model:     "skeleton",
		Position:  vec.Vec3Float{X: x, Y: 0, Z: -x},
		Heading:   0.5,
		State:     "patrol",
		Animation: "Walk",
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// exercisePoseRepo прогоняет общий контракт PoseRepo
func exercisePoseRepo(t *testing.T, repo PoseRepo) {
	ctx := context.Background()

	_, err := repo.Load(ctx, 42)
	assert.ErrorIs(t, err, ErrPoseNotFound)

	require.NoError(t, repo.Save(ctx, samplePose(3, 1)))
	require.NoError(t, repo.BatchSave(ctx, []Pose{samplePose(1, 2), samplePose(2, 3)}))

	got, err := repo.Load(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "skeleton", got.Model)
	assert.InDelta(t, 1.0, got.Position.X, 1e-9)
	assert.InDelta(t, -1.0, got.Position.Z, 1e-9)
	assert.Equal(t, "Walk", got.Animation)

	// Повторное сохранение перезаписывает позу
	updated := samplePose(3, 7)
	updated.State = "chase"
	require.NoError(t, repo.Save(ctx, updated))
	got, err = repo.Load(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "chase", got.State)
	assert.InDelta(t, 7.0, got.Position.X, 1e-9)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{list[0].AgentID, list[1].AgentID, list[2].AgentID})

	require.NoError(t, repo.Delete(ctx, 2))
	require.NoError(t, repo.Delete(ctx, 2), "повторное удаление не ошибка")
	_, err = repo.Load(ctx, 2)
	assert.ErrorIs(t, err, ErrPoseNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryPoseRepo(t *testing.T) {
	repo := NewMemoryPoseRepo()
	defer repo.Close()
	exercisePoseRepo(t, repo)
	assert.Equal(t, 2, repo.Count())
}

func TestMemoryPoseRepo_RejectsZeroID(t *testing.T) {
	repo := NewMemoryPoseRepo()
	ctx := context.Background()

	assert.Error(t, repo.Save(ctx, Pose{}))
	assert.Error(t, repo.BatchSave(ctx, []Pose{samplePose(1, 0), {}}))
	assert.Equal(t, 0, repo.Count(), "batch с ошибкой не применяется частично")
}

func TestMemoryPoseRepo_CancelledContext(t *testing.T) {
	repo := NewMemoryPoseRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Save(ctx, samplePose(1, 0)), context.Canceled)
}

func TestBadgerPoseRepo_InMemory(t *testing.T) {
	repo, err := NewBadgerPoseRepo("", 0, testLogger())
	require.NoError(t, err)
	defer repo.Close()
	exercisePoseRepo(t, repo)
}

func TestBadgerPoseRepo_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerPoseRepo(dir, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, samplePose(9, 4)))
	require.NoError(t, repo.Close())

	repo, err = NewBadgerPoseRepo(dir, 0, testLogger())
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Load(ctx, 9)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got.Position.X, 1e-9)
}

func TestPoseKey_OrdersByID(t *testing.T) {
	assert.Less(t, string(poseKey(255)), string(poseKey(256)))
	assert.Less(t, string(poseKey(1)), string(poseKey(1<<40)))
}

func TestToGeo_StaysInRedisLimits(t *testing.T) {
	lon, lat := toGeo(1e9, -1e9)
	assert.Equal(t, 180.0, lon)
	assert.Equal(t, -85.0, lat)

	lon, lat = toGeo(50, -50)
	assert.InDelta(t, 0.05, lon, 1e-12)
	assert.InDelta(t, -0.05, lat, 1e-12)
}

func TestOpen_SelectsBackend(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	repo, err := Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryPoseRepo{}, repo)

	cfg.Storage.Backend = "badger"
	cfg.Storage.BadgerPath = t.TempDir()
	repo, err = Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BadgerPoseRepo{}, repo)
	require.NoError(t, repo.Close())

	cfg.Storage.Backend = "cassandra"
	_, err = Open(ctx, cfg, testLogger())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestToArchived_KeepsObjectPayload(t *testing.T) {
	ev, err := eventbus.NewEnvelope("npc-core", "npc.died", 7, map[string]interface{}{"id": 3, "health": 0})
	require.NoError(t, err)
	ev.CorrelationID = "3"

	doc := toArchived(ev)
	assert.Equal(t, ev.ID, doc.ID)
	assert.Equal(t, "npc.died", doc.EventType)
	assert.Equal(t, "3", doc.AgentID)
	assert.Empty(t, doc.RawJSON)
	require.NotNil(t, doc.Payload)
	assert.EqualValues(t, 3, doc.Payload["id"])
}

func TestToArchived_ScalarPayloadStoredAsString(t *testing.T) {
	ev, err := eventbus.NewEnvelope("npc-core", "npc.disposed", 6, 17)
	require.NoError(t, err)

	doc := toArchived(ev)
	assert.Nil(t, doc.Payload)
	assert.Equal(t, "17", doc.RawJSON)
}

// Тесты внешних хранилищ запускаются только при заданном окружении

func TestRedisPoseRepo_Integration(t *testing.T) {
	addr := os.Getenv("NPC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NPC_TEST_REDIS_ADDR не задан")
	}
	cfg := config.Default().Redis
	cfg.Addr = addr
	cfg.KeyPrefix = "npc:test:pose:"
	cfg.BatchFlushMs = 10

	repo, err := NewRedisPoseRepo(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer repo.Close()
	exercisePoseRepo(t, repo)

	time.Sleep(50 * time.Millisecond)
	ids, err := repo.Nearby(context.Background(), 1, -1, 0.5)
	require.NoError(t, err)
	assert.Contains(t, ids, uint64(3))
}

func TestMariaPoseRepo_Integration(t *testing.T) {
	dsn := os.Getenv("NPC_TEST_MARIA_DSN")
	if dsn == "" {
		t.Skip("NPC_TEST_MARIA_DSN не задан")
	}
	repo, err := NewMariaPoseRepo(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()

	_, _ = repo.db.Exec("DELETE FROM npc_poses")
	exercisePoseRepo(t, repo)
}
