package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/shuttletrack/api/internal/config"
	"github.com/shuttletrack/api/internal/database"
	"github.com/shuttletrack/api/internal/handler"
	"github.com/shuttletrack/api/internal/queue"
	"github.com/shuttletrack/api/internal/repository"
	"github.com/shuttletrack/api/internal/router"
	"github.com/shuttletrack/api/internal/service"
)

func main() {
	_ = godotenv.Load() // absent .env is fine in containers

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	events := queue.NewPublisher()
	auth := service.NewAuthService(users, events, cfg)

	go queue.StartAuthLogConsumer()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, handler.NewAuthHandler(auth), cfg, rlCfg, rdb)

	log.Printf("listening on :%s (env=%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
