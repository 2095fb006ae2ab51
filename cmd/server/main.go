package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth"
	echoapi "go.pilab.hu/mockauth/api/echo"
	"go.pilab.hu/mockauth/cache"
	redisstore "go.pilab.hu/mockauth/cache/redis"
	"go.pilab.hu/mockauth/config"
	"go.pilab.hu/mockauth/domain"
	"go.pilab.hu/mockauth/internal/auth"
	"go.pilab.hu/mockauth/mongodb"
	"go.pilab.hu/mockauth/preset"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("preset", cfg.Preset).
		Str("issuer", cfg.Issuer).
		Str("storage", cfg.Storage).
		Str("http_port", cfg.HTTPPort).
		Msg("Starting mockauth server")

	p, err := preset.Load(cfg.Preset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load preset")
	}

	ctx := context.Background()

	clients, users, codes := buildRepositories(ctx, cfg)

	keys, err := mockauth.LoadOrCreateKeyService(cfg.KeyFile, p.SigningAlg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize signing key")
	}

	hasher := auth.NewBcryptPasswordHasher(0)
	guard := mockauth.NewLoginGuard(users)
	ledger := mockauth.NewCodeLedger(codes)
	sessions := mockauth.NewSessionStore(mockauth.SessionTTL)

	flow := mockauth.NewFlowService(clients, users, hasher, guard, ledger, sessions)
	tokens := mockauth.NewTokenService(clients, users, ledger, keys, p, cfg.Issuer)

	seedFixtures(ctx, cfg, clients, users, hasher)

	// Startup sweep plus a periodic one; redeem enforces expiry on its own.
	if err := ledger.Sweep(ctx); err != nil {
		log.Warn().Err(err).Msg("Startup sweep failed")
	}
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go ledger.RunSweeper(sweepCtx, time.Minute)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api := echoapi.NewOAuth2API(flow, tokens, keys, clients, users, p,
		mockauth.NewOpenIDConfiguration(cfg.Issuer, p))
	api.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if cfg.Storage == "mongo" {
		if err := mongodb.Disconnect(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("MongoDB disconnect failed")
		}
	}
}

// buildRepositories selects the storage backend. Clients and users always
// have an in-memory fallback; only mongo persists them.
func buildRepositories(ctx context.Context, cfg *config.ServerConfig) (domain.ClientRepository, domain.UserRepository, domain.AuthCodeRepository) {
	switch cfg.Storage {
	case "mongo":
		if err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		db := mongodb.DB()
		return mongodb.NewClientRepository(db), mongodb.NewUserRepository(db), mongodb.NewAuthCodeRepository(db)
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		return cache.NewMemoryClientStore(), cache.NewMemoryUserStore(), redisstore.NewCodeStore(client, "mockauth")
	default:
		return cache.NewMemoryClientStore(), cache.NewMemoryUserStore(), cache.NewMemoryCodeStore()
	}
}

// seedFixtures creates the configured deterministic test users and clients.
func seedFixtures(ctx context.Context, cfg *config.ServerConfig, clients domain.ClientRepository, users domain.UserRepository, hasher domain.PasswordHasher) {
	for _, seed := range cfg.SeedUsers {
		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			log.Error().Err(err).Str("username", seed.Username).Msg("Failed to hash seed password")
			continue
		}
		user := &domain.User{
			ID:                seed.Username,
			Username:          seed.Username,
			PasswordHash:      hash,
			Name:              seed.Name,
			PreferredUsername: seed.Username,
			Email:             seed.Email,
			EmailVerified:     seed.Email != "",
			Roles:             seed.Roles,
			Groups:            seed.Groups,
			Permissions:       seed.Permissions,
			CreatedAt:         time.Now().UTC(),
			UpdatedAt:         time.Now().UTC(),
		}
		if err := users.CreateUser(ctx, user); err != nil {
			log.Warn().Err(err).Str("username", seed.Username).Msg("Failed to seed user")
		}
	}

	for _, seed := range cfg.SeedClients {
		client := &domain.Client{
			ID:            seed.ClientID,
			Secret:        seed.ClientSecret,
			RedirectURIs:  seed.RedirectURIs,
			Scopes:        seed.Scopes,
			GrantTypes:    []string{"authorization_code", "client_credentials"},
			ResponseTypes: []string{"code"},
			CreatedAt:     time.Now().UTC(),
		}
		if err := clients.CreateClient(ctx, client); err != nil {
			log.Warn().Err(err).Str("client_id", seed.ClientID).Msg("Failed to seed client")
		}
	}
}
