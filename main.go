package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/auth"
	"github.com/alshaya00/Alshaya-sub002/pkg/config"
	"github.com/alshaya00/Alshaya-sub002/pkg/database"
	"github.com/alshaya00/Alshaya-sub002/pkg/handlers"
	"github.com/alshaya00/Alshaya-sub002/pkg/logging"
	"github.com/alshaya00/Alshaya-sub002/pkg/middleware"
	"github.com/alshaya00/Alshaya-sub002/pkg/repositories"
	"github.com/alshaya00/Alshaya-sub002/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	ctx := context.Background()

	// Run migrations before opening the pool.
	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, label caching disabled")
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(jwksClient, logger)

	memberRepo := repositories.NewMemberRepository()
	changeRepo := repositories.NewChangeRepository()

	memberService := services.NewMemberService(db, memberRepo, changeRepo, redisClient, logger)
	rollbackService := services.NewRollbackService(db, memberRepo, changeRepo, logger)
	candidateService := services.NewCandidateService(db, memberRepo, changeRepo, redisClient, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg).RegisterRoutes(mux)
	handlers.NewMemberHandler(memberService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewRollbackHandler(candidateService, rollbackService, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting family registry service", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
