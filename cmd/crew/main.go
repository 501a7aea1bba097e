package main

import (
	"log"
	"os"
	"time"

	v1 "go_crew/api/v1"
	"go_crew/internal/agentclient"
	"go_crew/internal/assign"
	"go_crew/internal/auth"
	"go_crew/internal/cache"
	"go_crew/internal/config"
	"go_crew/internal/db"
	"go_crew/internal/mailbox"
	"go_crew/internal/review"
	"go_crew/internal/scheduler"
	"go_crew/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	// 3. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
			os.Exit(1)
		}
		log.Println("✓ Migrations applied")
	}

	// 4. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 5. Initialize Socket.IO server
	if err := ws.InitServer(); err != nil {
		log.Fatalf("Failed to initialize Socket.IO server: %v", err)
		os.Exit(1)
	}
	defer ws.Close()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// 6. Build the fleet components
	mb := mailbox.New()
	client := agentclient.NewClient(time.Duration(cfg.HeartbeatWorker.TimeoutSec) * time.Second)

	worker := scheduler.NewWorker(db.DB, client, mb,
		logger.WithField("component", "heartbeat-worker"), cfg.HeartbeatWorker)
	if cfg.HeartbeatWorker.Enabled {
		worker.Start()
		defer worker.Stop()
		log.Println("✓ Heartbeat worker started")
	}

	trigger := review.NewQueueTrigger(db.DB, cache.NewRedisGuard(cache.Client),
		logger.WithField("component", "queue-trigger"), cfg.QueueTrigger)
	engine := review.NewEngine(db.DB,
		logger.WithField("component", "auto-review"), mb, cfg.AutoReview, trigger)
	resolver := assign.NewResolver(db.DB, nil)

	// 7. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/socket.io/*any", gin.WrapH(ws.Server))
	r.POST("/socket.io/*any", gin.WrapH(ws.Server))

	// Setup API v1 routes
	v1.SetupRouter(r, db.DB, cfg, v1.Deps{
		Engine:   engine,
		Resolver: resolver,
		Worker:   worker,
	})

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
