package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/worklane/worklane-api/internal/config"
	"github.com/worklane/worklane-api/internal/database"
	"github.com/worklane/worklane-api/internal/handler"
	"github.com/worklane/worklane-api/internal/otp"
	"github.com/worklane/worklane-api/internal/queue"
	"github.com/worklane/worklane-api/internal/repository"
	"github.com/worklane/worklane-api/internal/router"
	"github.com/worklane/worklane-api/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rateCfg := config.LoadRateLimitConfig()
	if rateCfg.Enabled {
		// Enforcement is not wired yet; surface the setting so operators
		// notice the gap instead of assuming protection.
		log.Printf("rate limiting configured (capacity=%d) but not enforced", rateCfg.Capacity)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	codec, err := token.NewCodec(token.Secrets{
		AccessSecret:  cfg.AccessSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
		ResetSecret:   cfg.ResetSecret,
		ResetTTL:      cfg.ResetTokenTTL,
		VerifySecret:  cfg.VerifySecret,
		VerifyTTL:     cfg.VerifyTokenTTL,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; phone verification disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	roles := repository.NewRoleRepo(db)
	codes := otp.NewStore(rdb, cfg.PhoneOTPTTL)
	mail := queue.NewPublisher()

	authH := handler.NewAuthHandler(cfg, codec, users, tokens, codes, mail)
	userH := handler.NewUserHandler(cfg, users)

	// Drain the outbound mail queue in the background.
	go queue.StartMailConsumer()

	e := echo.New()
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: cfg.CORSOrigin != "*",
	}))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH)
	router.RegisterUsers(e, userH, codec, users, roles)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
