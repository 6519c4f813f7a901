package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/mmo-npc/internal/effects"
	"github.com/annel0/mmo-npc/internal/eventbus"
)

const (
	defaultServerAddr = "nats://127.0.0.1:4222"
	timeFormat        = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "NATS server URL")
		stream     = flag.String("stream", "NPC_EVENTS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		agents     = flag.String("agents", "", "Agent IDs filter (comma-separated)")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		idle       = flag.Duration("idle", 2*time.Second, "Stop after this long without events (ignored with -follow)")
	)
	flag.Parse()

	from, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid -since: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*serverAddr, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to server: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &TailOptions{
		EventTypes: parseStringList(*eventTypes),
		Agents:     parseStringList(*agents),
		Since:      from,
		Limit:      *limit,
		Follow:     *follow,
		Idle:       *idle,
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		opts.Limit = 0
		opts.Follow = false
		if err := showStats(ctx, bus, opts); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

type TailOptions struct {
	EventTypes []string
	Agents     []string
	Since      time.Time
	Limit      int
	Follow     bool
	Idle       time.Duration
}

// collect читает события начиная с opts.Since и передаёт подходящие в fn.
// Завершается по лимиту, по тишине дольше opts.Idle (без -follow) или по ctx.
func collect(ctx context.Context, bus *eventbus.JetStreamBus, opts *TailOptions, fn func(*eventbus.Envelope)) error {
	var (
		mu    sync.Mutex
		count int
		last  = time.Now()
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	agentSet := make(map[string]bool, len(opts.Agents))
	for _, a := range opts.Agents {
		agentSet[a] = true
	}

	sub, err := bus.SubscribeSince(ctx, eventbus.Filter{Types: opts.EventTypes}, func(_ context.Context, ev *eventbus.Envelope) {
		if len(agentSet) > 0 && !agentSet[ev.CorrelationID] {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if opts.Limit > 0 && count >= opts.Limit {
			return
		}
		fn(ev)
		count++
		last = time.Now()
		if opts.Limit > 0 && count >= opts.Limit {
			cancel()
		}
	}, opts.Since)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			mu.Lock()
			quiet := time.Since(last)
			mu.Unlock()
			if !opts.Follow && quiet > opts.Idle {
				return nil
			}
		}
	}
}

// tailEvents выводит события
func tailEvents(ctx context.Context, bus *eventbus.JetStreamBus, opts *TailOptions) error {
	fmt.Printf("🎬 Tailing events since %s (limit: %d, follow: %v)\n", opts.Since.Format(timeFormat), opts.Limit, opts.Follow)
	return collect(ctx, bus, opts, printEvent)
}

// showStats считает события по типам
func showStats(ctx context.Context, bus *eventbus.JetStreamBus, opts *TailOptions) error {
	counts := make(map[string]int)
	agents := make(map[string]bool)
	if err := collect(ctx, bus, opts, func(ev *eventbus.Envelope) {
		counts[ev.EventType]++
		agents[ev.CorrelationID] = true
	}); err != nil {
		return err
	}

	types := make([]string, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	fmt.Printf("📊 Events since %s: %d (agents: %d)\n", opts.Since.Format(timeFormat), total, len(agents))
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, counts[t])
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] agent=%s %s\n",
		ev.Timestamp.Format("15:04:05.000"),
		ev.Source,
		ev.EventType,
		ev.CorrelationID,
		ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case effects.EventStateChanged:
		var p effects.StateChange
		if ev.Decode(&p) == nil {
			fmt.Printf("  %s → %s\n", p.From, p.To)
		}
	case effects.EventDamaged:
		var p effects.Damage
		if ev.Decode(&p) == nil {
			fmt.Printf("  -%d hp, осталось %d\n", p.Amount, p.Health)
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
