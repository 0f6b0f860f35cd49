package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cbodonnell/dropfour/pkg/api"
	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/matchmaking"
	"github.com/cbodonnell/dropfour/pkg/network"
	"github.com/cbodonnell/dropfour/pkg/orchestrator"
	"github.com/cbodonnell/dropfour/pkg/queue"
	"github.com/cbodonnell/dropfour/pkg/repositories"
	"github.com/cbodonnell/dropfour/pkg/scheduler"
	"github.com/cbodonnell/dropfour/pkg/version"
	"github.com/cbodonnell/dropfour/pkg/workers"
)

func main() {
	wsPort := flag.Int("ws-port", 9000, "WebSocket port to listen on")
	apiPort := flag.Int("api-port", 9001, "API port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	sqlitePath := flag.String("sqlite-path", "dropfour.db", "Path to the SQLite database file")
	migrationsPath := flag.String("migrations-path", "migrations/sqlite", "Path to the SQLite migrations directory")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repository repositories.Repository
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		repository, err = repositories.NewPostgresRepository(ctx, connStr)
		if err != nil {
			panic(fmt.Sprintf("Failed to connect to postgres: %v", err))
		}
	} else {
		repository, err = repositories.NewSQLiteRepository(ctx, *sqlitePath, *migrationsPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to open sqlite database: %v", err))
		}
	}
	defer repository.Close(ctx)

	saveGameChan := make(chan game.Summary, 64)
	upsertPlayerChan := make(chan string, 64)
	outcomeChan := make(chan workers.OutcomeRequest, 64)

	recordWorker := workers.NewGameRecordWorker(workers.NewGameRecordWorkerOptions{
		Repository:       repository,
		SaveGameChan:     saveGameChan,
		UpsertPlayerChan: upsertPlayerChan,
		OutcomeChan:      outcomeChan,
	})
	go recordWorker.Start(ctx)

	eventQueue := queue.NewMemoryQueue(1024)
	eventWorker := workers.NewLifecycleEventWorker(workers.NewLifecycleEventWorkerOptions{
		Repository: repository,
		EventQueue: eventQueue,
		Interval:   1 * time.Second,
	})
	go eventWorker.Start(ctx)

	sched := scheduler.New(clock.New())
	manager := game.NewManager(game.NewManagerOptions{
		SaveGameChan: saveGameChan,
	})
	matchmaker := matchmaking.NewCoordinator(matchmaking.NewCoordinatorOptions{
		Manager:   manager,
		Scheduler: sched,
	})

	clientManager := network.NewClientManager()
	orch := orchestrator.NewOrchestrator(orchestrator.NewOrchestratorOptions{
		Manager:          manager,
		Matchmaker:       matchmaker,
		Scheduler:        sched,
		Sender:           clientManager,
		EventQueue:       eventQueue,
		UpsertPlayerChan: upsertPlayerChan,
		OutcomeChan:      outcomeChan,
	})

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:       *apiPort,
		Repository: repository,
	})
	go apiServer.Start()
	defer apiServer.Stop(ctx)

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:          *wsPort,
		ClientManager: clientManager,
	})
	if err := wsServer.Start(ctx, orch.HandleMessage, orch.HandleDisconnect); err != nil {
		panic(fmt.Sprintf("WebSocket server failed: %v", err))
	}
}
