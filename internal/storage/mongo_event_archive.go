package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/eventbus"
	"github.com/annel0/mmo-npc/internal/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ArchivedEvent: документ архива событий агентов
type ArchivedEvent struct {
	ID        string    `bson:"_id" json:"id"`
	EventType string    `bson:"event_type" json:"event_type"`
	Source    string    `bson:"source" json:"source"`
	AgentID   string    `bson:"agent_id" json:"agent_id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Payload   bson.M    `bson:"payload,omitempty" json:"payload,omitempty"`
	RawJSON   string    `bson:"raw_json,omitempty" json:"raw_json,omitempty"`
}

// EventArchive сохраняет выбранные события шины в MongoDB для разбора постфактум
// (например, история смертей агентов).
type EventArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
	sub        eventbus.Subscription
	log        *logging.Logger
}

// NewEventArchive подключается к MongoDB и создаёт индексы.
func NewEventArchive(ctx context.Context, cfg config.ArchiveConfig, log *logging.Logger) (*EventArchive, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	a := &EventArchive{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
		log:        log,
	}
	if err := a.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("🗄️ Архив событий: %s/%s", cfg.Database, cfg.Collection)
	return a, nil
}

func (a *EventArchive) ensureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "agent_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("agent_timeline"),
		},
		{
			Keys:    bson.D{{Key: "event_type", Value: 1}},
			Options: options.Index().SetName("event_type"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

// Attach подписывает архив на шину. Пустой список типов означает все события.
func (a *EventArchive) Attach(ctx context.Context, bus eventbus.EventBus, types []string) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(ctx context.Context, ev *eventbus.Envelope) {
		if err := a.Store(ctx, ev); err != nil {
			a.log.Warn("Архив: событие %s не сохранено: %v", ev.ID, err)
		}
	})
	if err != nil {
		return err
	}
	a.sub = sub
	return nil
}

// Store сохраняет один конверт. Повторная запись с тем же ID игнорируется.
func (a *EventArchive) Store(ctx context.Context, ev *eventbus.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	_, err := a.collection.InsertOne(ctx, toArchived(ev))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// History возвращает последние события агента, новые первыми.
func (a *EventArchive) History(ctx context.Context, agentID string, limit int64) ([]ArchivedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cur, err := a.collection.Find(ctx, bson.M{"agent_id": agentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []ArchivedEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close отписывается от шины и закрывает соединение.
func (a *EventArchive) Close(ctx context.Context) error {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	return a.client.Disconnect(ctx)
}

// toArchived переводит конверт в документ. JSON-объект сохраняется
// вложенным документом, остальное строкой.
func toArchived(ev *eventbus.Envelope) ArchivedEvent {
	doc := ArchivedEvent{
		ID:        ev.ID,
		EventType: ev.EventType,
		Source:    ev.Source,
		AgentID:   ev.CorrelationID,
		Timestamp: ev.Timestamp,
	}
	var payload bson.M
	if err := bson.UnmarshalExtJSON(ev.Payload, false, &payload); err == nil {
		doc.Payload = payload
		return doc
	}
	doc.RawJSON = string(ev.Payload)
	return doc
}
