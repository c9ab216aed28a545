package main

import (
	"context"
	"log"
	"time"

	"card-ledger-backend/internal/config"
	"card-ledger-backend/internal/events"
	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/queue"
	"card-ledger-backend/internal/repository"
	"card-ledger-backend/internal/routes"
	"card-ledger-backend/internal/scheduler"
	"card-ledger-backend/internal/services/cardledger"
	"card-ledger-backend/internal/services/query"
	"card-ledger-backend/internal/services/reconciliation"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	db.AutoMigrate(
		&models.Transaction{},
		&models.Card{},
		&models.PendingClearingTransaction{},
		&models.TransactionEvent{},
	)

	store := repository.NewLedgerStore(db)

	bus := events.NewBus(logger)
	events.RegisterCardholderNotifier(bus, store, logger)
	events.RegisterAnalyticsPublisher(bus, store, logger)

	cards := cardledger.NewUpdater(cfg.CreditLimit, logger)
	reconService := reconciliation.NewService(store, cards, bus, logger)
	queryService := query.NewService(store)

	// SQS client and work queue
	if cfg.QueueURL == "" {
		log.Fatal("SQS_QUEUE_URL environment variable not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	workQueue := queue.NewQueue(sqs.NewFromConfig(awsCfg), cfg.QueueURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.NewWorker(workQueue, reconService, logger).Run(ctx)

	sched := scheduler.New(logger)
	if err := sched.InstallCleanup(reconService); err != nil {
		log.Fatalf("failed to install cleanup schedule: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, workQueue, queryService, logger)

	r.Run(":" + cfg.Port)
}
