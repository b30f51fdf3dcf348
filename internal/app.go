// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "bankcards/internal/api"
	"bankcards/internal/api/handler"
	"bankcards/internal/cardnumber"
	"bankcards/internal/config"
	"bankcards/internal/repository"
	"bankcards/internal/repository/memory"
	"bankcards/internal/repository/postgres"
	"bankcards/internal/security"
	"bankcards/internal/service"
	"bankcards/internal/util"
	"bankcards/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB // nil with the memory storage driver
	Store  repository.Store

	// Services
	UserService   service.UserService
	CardService   service.CardService
	LedgerService service.LedgerService
	AuthService   service.AuthService
	ExpiryJob     *service.ExpiryJob

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "storage_driver", cfg.StorageDriver)

	// 3. Storage
	if err := app.initStore(ctx); err != nil {
		return err
	}

	// 4. Security adapters
	cipher, err := cardnumber.NewAESCipher(cfg.CardEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize card cipher: %w", err)
	}
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens, err := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	// 5. Initialize Services
	app.UserService = service.NewUserService(app.Store, hasher, app.Logger)
	app.CardService = service.NewCardService(app.Store, cardnumber.NewCodec(cipher), app.Logger)
	app.LedgerService = service.NewLedgerService(app.Store, app.Logger)
	app.AuthService = service.NewAuthService(app.Store, app.UserService, hasher, tokens, app.Logger)
	app.Logger.Info("Services initialized.")

	if cfg.AdminUsername != "" {
		_, created, err := app.UserService.EnsureAdmin(ctx, service.RegisterRequest{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to bootstrap administrator: %w", err)
		}
		app.Logger.Info("Administrator account checked.", "username", cfg.AdminUsername, "created", created)
	}

	// 6. Expiry sweep
	app.ExpiryJob, err = service.NewExpiryJob(app.CardService, cfg.ExpirySweepSchedule, app.Logger)
	if err != nil {
		return err
	}
	app.ExpiryJob.Start()
	app.Logger.Info("Expiry sweep scheduled.", "schedule", cfg.ExpirySweepSchedule)

	// 7. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Auth:  handler.NewAuthHandler(app.AuthService, tokens, app.Logger),
		Cards: handler.NewCardHandler(app.CardService, app.LedgerService, app.Logger),
		Users: handler.NewUserHandler(app.UserService, app.Logger),
	}, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStore(ctx context.Context) error {
	if app.Config.StorageDriver == config.StorageMemory {
		app.Store = memory.NewStore()
		app.Logger.Warn("Using in-memory storage; data is lost on exit.")
		return nil
	}

	database, err := db.NewPostgresDB(ctx, app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if err := db.RunMigrations(ctx, app.DB, app.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Store = postgres.NewStore(app.DB)
	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.ExpiryJob != nil {
		app.ExpiryJob.Stop(ctx)
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
