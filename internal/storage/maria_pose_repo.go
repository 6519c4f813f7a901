package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-npc/internal/vec"
	_ "github.com/go-sql-driver/mysql"
)

// MariaPoseRepo реализует PoseRepo для базы данных MariaDB/MySQL.
// Использует таблицу npc_poses.
type MariaPoseRepo struct {
	db *sql.DB
}

// NewMariaPoseRepo подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaPoseRepo(ctx context.Context, dsn string) (*MariaPoseRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPoseRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MariaPoseRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS npc_poses (
			agent_id   BIGINT UNSIGNED PRIMARY KEY,
			model      VARCHAR(64)  NOT NULL,
			x          DOUBLE       NOT NULL,
			y          DOUBLE       NOT NULL,
			z          DOUBLE       NOT NULL,
			heading    DOUBLE       NOT NULL,
			state      VARCHAR(16)  NOT NULL,
			animation  VARCHAR(64)  NOT NULL,
			updated_at DATETIME(3)  NOT NULL,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы npc_poses: %w", err)
	}
	return nil
}

const upsertPose = `
	INSERT INTO npc_poses (agent_id, model, x, y, z, heading, state, animation, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		model = VALUES(model),
		x = VALUES(x),
		y = VALUES(y),
		z = VALUES(z),
		heading = VALUES(heading),
		state = VALUES(state),
		animation = VALUES(animation),
		updated_at = VALUES(updated_at)
`

func poseArgs(p Pose) []interface{} {
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []interface{}{p.AgentID, p.Model, p.Position.X, p.Position.Y, p.Position.Z, p.Heading, p.State, p.Animation, updated.UTC()}
}

// Save сохраняет позу агента (INSERT ... ON DUPLICATE KEY UPDATE).
func (r *MariaPoseRepo) Save(ctx context.Context, pose Pose) error {
	if pose.AgentID == 0 {
		return fmt.Errorf("недействительный agentID: %d", pose.AgentID)
	}
	if _, err := r.db.ExecContext(ctx, upsertPose, poseArgs(pose)...); err != nil {
		return fmt.Errorf("ошибка сохранения позы агента %d: %w", pose.AgentID, err)
	}
	return nil
}

// BatchSave сохраняет позы в одной транзакции.
func (r *MariaPoseRepo) BatchSave(ctx context.Context, poses []Pose) error {
	if len(poses) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPose)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, p := range poses {
		if p.AgentID == 0 {
			return fmt.Errorf("недействительный agentID в batch: %d", p.AgentID)
		}
		if _, err := stmt.ExecContext(ctx, poseArgs(p)...); err != nil {
			return fmt.Errorf("ошибка сохранения позы агента %d в batch: %w", p.AgentID, err)
		}
	}
	return tx.Commit()
}

const selectPose = `SELECT agent_id, model, x, y, z, heading, state, animation, updated_at FROM npc_poses`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPose(row rowScanner) (Pose, error) {
	var p Pose
	var pos vec.Vec3Float
	err := row.Scan(&p.AgentID, &p.Model, &pos.X, &pos.Y, &pos.Z, &p.Heading, &p.State, &p.Animation, &p.UpdatedAt)
	p.Position = pos
	return p, err
}

// Load загружает позу агента.
func (r *MariaPoseRepo) Load(ctx context.Context, agentID uint64) (Pose, error) {
	p, err := scanPose(r.db.QueryRowContext(ctx, selectPose+` WHERE agent_id = ?`, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Pose{}, ErrPoseNotFound
	}
	if err != nil {
		return Pose{}, fmt.Errorf("ошибка загрузки позы агента %d: %w", agentID, err)
	}
	return p, nil
}

// List возвращает все позы по возрастанию ID.
func (r *MariaPoseRepo) List(ctx context.Context) ([]Pose, error) {
	rows, err := r.db.QueryContext(ctx, selectPose+` ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения поз: %w", err)
	}
	defer rows.Close()

	out := []Pose{}
	for rows.Next() {
		p, err := scanPose(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора позы: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete удаляет позу агента.
func (r *MariaPoseRepo) Delete(ctx context.Context, agentID uint64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM npc_poses WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("ошибка удаления позы агента %d: %w", agentID, err)
	}
	return nil
}

// Close закрывает пул соединений.
func (r *MariaPoseRepo) Close() error {
	return r.db.Close()
}
