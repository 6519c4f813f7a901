package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mmo-npc/internal/app"
	"github.com/annel0/mmo-npc/internal/auth"
	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Путь к YAML конфигурации (по умолчанию NPC_CONFIG)")
		hashPassword = flag.String("hash-password", "", "Вывести bcrypt-хэш пароля для auth.operators и выйти")
	)
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("❌ Ошибка хэширования: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🤖 Запуск сервера агентов NPC...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := app.New(ctx, cfg, logging.GetServerLogger())
	if err != nil {
		logging.Error("❌ Ошибка сборки сервера: %v", err)
		log.Fatalf("❌ Ошибка сборки сервера: %v", err)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d", cfg.Server.GetRESTPort())
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())
	logging.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Server.GetRESTPort())

	runErr := srv.Run(ctx)
	if runErr != nil {
		logging.Error("❌ Сервер остановлен с ошибкой: %v", runErr)
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Close(shutdownCtx)

	logging.Info("👋 Сервер успешно остановлен")
	if runErr != nil {
		os.Exit(1)
	}
}
