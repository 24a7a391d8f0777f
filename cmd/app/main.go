package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lightning-tournament-backend/internal/common/cache"
	"lightning-tournament-backend/internal/common/config"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/middleware"
	gamehttp "lightning-tournament-backend/internal/features/game/delivery/http"
	gamerepo "lightning-tournament-backend/internal/features/game/repository/postgres"
	gameservice "lightning-tournament-backend/internal/features/game/service"
	lnurlhttp "lightning-tournament-backend/internal/features/lnurlauth/delivery/http"
	lnurlrepo "lightning-tournament-backend/internal/features/lnurlauth/repository/postgres"
	lnurlservice "lightning-tournament-backend/internal/features/lnurlauth/service"
	paymenthttp "lightning-tournament-backend/internal/features/payment/delivery/http"
	paymentservice "lightning-tournament-backend/internal/features/payment/service"
	"lightning-tournament-backend/internal/features/session"
	tournamenthttp "lightning-tournament-backend/internal/features/tournament/delivery/http"
	tournamentrepo "lightning-tournament-backend/internal/features/tournament/repository/postgres"
	tournamentservice "lightning-tournament-backend/internal/features/tournament/service"
	userhttp "lightning-tournament-backend/internal/features/user/delivery/http"
	userrepo "lightning-tournament-backend/internal/features/user/repository/postgres"
	userservice "lightning-tournament-backend/internal/features/user/service"
	wallethttp "lightning-tournament-backend/internal/features/wallet/delivery/http"
	walletrepo "lightning-tournament-backend/internal/features/wallet/repository/postgres"
	walletservice "lightning-tournament-backend/internal/features/wallet/service"
	"lightning-tournament-backend/internal/platform/lnbits"
	"lightning-tournament-backend/internal/platform/postgres"
	"lightning-tournament-backend/internal/platform/price"
	"lightning-tournament-backend/internal/platform/redis"
)

const sessionTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("lightning-tournament-backend", cfg.Debug)
	logger.Info().
		Str("env", cfg.Env).
		Bool("debug", cfg.Debug).
		Msg("Starting Lightning Tournament Backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// База данных
	pg, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Кеш: Redis в production, in-memory для локальной разработки.
	var store cache.Cache
	sessionStore := "memory"
	if cfg.Redis.URL != "" {
		redisClient, err := redis.Open(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		store = cache.NewRedisCache(redisClient)
		sessionStore = "redis"
	} else {
		logger.Warn().Msg("REDIS_URL not set, using in-memory cache")
		store = cache.NewMemoryCache(100_000)
	}
	defer store.Close()

	// Внешние адаптеры
	lightning := lnbits.NewClient(
		cfg.LNbits.URL,
		cfg.LNbits.APIKey,
		cfg.LNbits.AdminKey,
		lnbits.WithTimeout(cfg.LightningTimeout()),
		lnbits.WithWebhookURL(cfg.LNbits.WebhookURL),
	)
	oracle := price.NewOracle(
		cfg.Price.APIURL,
		cfg.Price.FallbackUSD,
		time.Duration(cfg.Price.CacheSeconds)*time.Second,
		time.Duration(cfg.Price.FetchTimeoutS)*time.Second,
	)

	// Репозитории
	users := userrepo.NewUserRepository(pg.GetDB())
	wallets := walletrepo.NewWalletRepository(pg.GetDB())
	tournaments := tournamentrepo.NewTournamentRepository(pg.GetDB())
	games := gamerepo.NewGameRepository(pg.GetDB())
	whitelist := lnurlrepo.NewWhitelistRepository(pg.GetDB())

	// Сервисы
	sessions := session.NewService(store, sessionTTL)
	userSvc := userservice.NewUserService(users, sessions)
	walletSvc := walletservice.NewWalletService(wallets, oracle)
	houseFee := int(cfg.Tournament.HouseFeePercent)
	tournamentSvc := tournamentservice.NewTournamentService(tournaments, oracle, cfg.Tournament.BuyInSats, houseFee)
	paymentSvc := paymentservice.NewPaymentService(store, lightning, tournamentSvc, wallets)
	gameSvc := gameservice.NewGameService(
		tournamentSvc, tournaments, wallets, oracle, games, store,
		cfg.Tournament.AttemptCostUSD, cfg.Tournament.MaxAttempts, cfg.Game.RequireAttemptID,
	)
	authSvc := lnurlservice.NewAuthService(whitelist, users, sessions, store, cfg.Server.PublicURL, cfg.Admin.BootstrapSecret)

	// Движок турниров
	engine := tournamentservice.NewEngine(tournaments, lightning, cfg.Tournament.BuyInSats, houseFee)
	if cfg.Tournament.SchedulerEnabled {
		sched, err := tournamentservice.StartScheduler(ctx, engine)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Error().Err(err).Msg("Scheduler shutdown failed")
			}
		}()
		if err := engine.CreateDailyTournament(ctx); err != nil {
			logger.Error().Err(err).Msg("Startup tournament creation failed")
		}
	}

	// HTTP
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.FrontendURL
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", session.CSRFHeaderName}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RateLimit(store, "global", 100, 15*time.Minute))

	authn := middleware.RequireAuth(sessions)
	admin := middleware.RequireAdmin(userSvc)
	csrf := middleware.CSRF()
	authLimit := middleware.RateLimit(store, "auth", 10, 15*time.Minute)
	payLimit := middleware.RateLimit(store, "payments", 5, time.Minute)
	gameLimit := middleware.RateLimit(store, "game", 20, time.Minute)
	bootstrapLimit := middleware.RateLimit(store, "bootstrap", 5, 15*time.Minute)

	secureCookies := cfg.IsProduction()

	api := router.Group("/api")
	userhttp.NewUserHandler(userSvc, sessions, secureCookies).RegisterRoutes(api, authn)
	tournamenthttp.NewTournamentHandler(tournamentSvc).RegisterRoutes(api, authn)
	wallethttp.NewWalletHandler(walletSvc).RegisterRoutes(api, authn)
	paymenthttp.NewPaymentHandler(paymentSvc, cfg.LNbits.WebhookSecret).RegisterRoutes(api, authn, csrf, payLimit)
	gamehttp.NewGameHandler(gameSvc).RegisterRoutes(api, authn, csrf, gameLimit)
	lnurlhttp.NewAuthHandler(authSvc, secureCookies).RegisterRoutes(api, authn, admin, authLimit, bootstrapLimit)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"sessionStore": sessionStore,
			"timestamp":    time.Now().UTC(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pg.HealthCheck(checkCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server exited")
}
