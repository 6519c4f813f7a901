// Package app собирает headless-сервер агентов из компонентов и крутит
// цикл симуляции.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/annel0/mmo-npc/internal/api"
	"github.com/annel0/mmo-npc/internal/arena"
	"github.com/annel0/mmo-npc/internal/auth"
	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/effects"
	"github.com/annel0/mmo-npc/internal/eventbus"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/npc"
	"github.com/annel0/mmo-npc/internal/observability"
	"github.com/annel0/mmo-npc/internal/render"
	"github.com/annel0/mmo-npc/internal/storage"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("mmo-npc/app")

// App: собранный сервер
type App struct {
	cfg *config.Config
	log *logging.Logger

	Arena    *arena.Arena
	Target   *arena.Target
	Manager  *npc.Manager
	Bridge   *render.Bridge
	Bus      eventbus.EventBus
	Poses    storage.PoseRepo
	Registry *prometheus.Registry

	archive   *storage.EventArchive
	listener  eventbus.Subscription
	exporter  *eventbus.MetricsExporter
	rest      *api.RestServer
	telemetry observability.Shutdown
}

// New собирает все компоненты. Внешние сервисы (NATS, Redis, MongoDB,
// MariaDB) подключаются только если заданы в конфигурации.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.telemetry = shutdown

	if err := a.openBus(); err != nil {
		return nil, err
	}

	a.Poses, err = storage.Open(ctx, cfg, log)
	if err != nil {
		a.Bus.Close()
		return nil, fmt.Errorf("pose storage: %w", err)
	}

	if cfg.Archive.MongoURI != "" {
		a.archive, err = storage.NewEventArchive(ctx, cfg.Archive, log)
		if err != nil {
			log.Warn("Архив событий недоступен: %v", err)
		} else if err := a.archive.Attach(ctx, a.Bus, cfg.Archive.EventTypes); err != nil {
			log.Warn("Архив событий не подписан на шину: %v", err)
		}
	}

	a.listener, err = eventbus.StartLoggingListener(a.Bus, logging.GetComponentLogger("events"))
	if err != nil {
		log.Warn("Логирование событий отключено: %v", err)
	}

	a.Arena = arena.Build(cfg, log)
	a.Target = arena.NewTarget(vec.Vec2Float{}, cfg.Simulation.TargetRadius, cfg.Simulation.TargetSpeed)
	a.Bridge = render.NewBridge(a.Poses, log)

	a.Manager, err = npc.NewManager(&cfg.AI, npc.Dependencies{
		World:    a.Arena.World,
		Target:   a.Target,
		Renderer: a.Bridge,
		Observer: effects.Fanout{a.Bridge, effects.NewPublisher(a.Bus, logging.GetComponentLogger("effects"))},
		Rand:     rand.New(rand.NewSource(cfg.Simulation.Seed)),
		Metrics:  npc.NewMetrics(a.Registry),
		Logger:   logging.GetAILogger(),
	})
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	for _, p := range a.Arena.Spawns {
		a.Manager.SpawnModel(p.Lift(0), cfg.Simulation.Model)
	}

	var operators *auth.Operators
	if !cfg.Auth.Disabled {
		operators, err = auth.NewOperators(cfg.Auth)
		if err != nil {
			a.Close(context.Background())
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	restCfg := api.Config{
		Port:         fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Manager:      a.Manager,
		Bridge:       a.Bridge,
		Poses:        a.Poses,
		Target:       a.Target,
		Operators:    operators,
		AuthDisabled: cfg.Auth.Disabled,
		Registerer:   a.Registry,
		Gatherer:     a.Registry,
		Logger:       logging.GetServerLogger(),
	}
	if a.archive != nil {
		restCfg.History = a.archive
	}
	a.rest = api.NewRestServer(restCfg)

	a.exporter = eventbus.NewMetricsExporter(a.Bus, a.Registry)
	return a, nil
}

func (a *App) openBus() error {
	bc := a.cfg.EventBus
	if bc.URL == "" {
		a.Bus = eventbus.NewMemoryBus(bc.Capacity)
		a.log.Info("🚌 Шина событий: in-memory")
		return nil
	}
	bus, err := eventbus.NewJetStreamBus(bc.URL, bc.Stream, time.Duration(bc.Retention)*time.Hour)
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}
	a.Bus = bus
	a.log.Info("🚌 Шина событий: JetStream %s (stream %s)", bc.URL, bc.Stream)
	return nil
}

// Run запускает HTTP-серверы и цикл симуляции до отмены ctx
func (a *App) Run(ctx context.Context) error {
	a.exporter.StartHTTP(fmt.Sprintf(":%d", a.cfg.Server.GetMetricsPort()), a.Registry)

	errCh := make(chan error, 1)
	go func() {
		if err := a.rest.Start(); err != nil {
			errCh <- err
		}
	}()

	tick := a.cfg.Simulation.TickInterval()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	flushEvery := a.cfg.Simulation.PoseFlush
	if flushEvery <= 0 {
		flushEvery = tick
	}
	lastFlush := time.Now()

	a.log.Info("▶️ Симуляция запущена: %d агентов, тик %s", a.Manager.Len(), tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("rest api: %w", err)
		case <-ticker.C:
			a.Step(tick)
			if time.Since(lastFlush) >= flushEvery {
				a.flush(ctx)
				lastFlush = time.Now()
			}
		}
	}
}

// Step продвигает цель и агентов на один тик
func (a *App) Step(dt time.Duration) {
	_, span := tracer.Start(context.Background(), "simulation.tick")
	defer span.End()

	a.Target.Advance(dt)
	a.Manager.Tick(dt)
	span.SetAttributes(attribute.Int("npc.agents", a.Manager.Len()))
}

func (a *App) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := a.Bridge.Flush(fctx); err != nil {
		a.log.Warn("Позы не сохранены: %v", err)
	}
}

// Close останавливает компоненты в обратном порядке сборки
func (a *App) Close(ctx context.Context) {
	if a.rest != nil {
		if err := a.rest.Stop(ctx); err != nil {
			a.log.Error("Остановка REST API: %v", err)
		}
	}
	if a.exporter != nil {
		if err := a.exporter.Stop(ctx); err != nil {
			a.log.Error("Остановка экспортёра метрик: %v", err)
		}
	}
	if a.Bridge != nil {
		a.flush(ctx)
	}
	if a.listener != nil {
		a.listener.Unsubscribe()
	}
	if a.archive != nil {
		if err := a.archive.Close(ctx); err != nil {
			a.log.Error("Закрытие архива: %v", err)
		}
	}
	if a.Poses != nil {
		if err := a.Poses.Close(); err != nil {
			a.log.Error("Закрытие хранилища поз: %v", err)
		}
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.log.Error("Закрытие шины: %v", err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry(ctx); err != nil {
			a.log.Error("Остановка телеметрии: %v", err)
		}
	}
}
