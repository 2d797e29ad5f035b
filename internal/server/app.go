// Package server initializes and runs the account service: it wires the
// configuration, database, repositories, business services, and the HTTP
// transport, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avdeev/usersvc/internal/logging"
	"github.com/avdeev/usersvc/internal/server/config"
	"github.com/avdeev/usersvc/internal/server/password"
	"github.com/avdeev/usersvc/internal/server/repositories/repomanager"
	"github.com/avdeev/usersvc/internal/server/rest"
	"github.com/avdeev/usersvc/internal/server/services"
	"github.com/avdeev/usersvc/internal/server/token"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repos       repomanager.RepositoryManager
	userService *services.UserService
}

// NewApp constructs the application with all collaborators wired explicitly.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()

	tokens := token.NewManager([]byte(cfg.SecretKey), cfg.TokenValidityDuration)
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	us := services.NewUserService(db, repos, hasher, tokens)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repos:       repos,
		userService: us,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run applies migrations and serves HTTP until the context is cancelled or
// an OS signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.initSignalHandler(cancel)

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	srv := rest.NewServer(app.config.EndpointAddr, app.logger, app.userService)

	if err := srv.Run(ctx); err != nil {
		return err
	}

	app.logger.Info(ctx, "Server stopped")
	return app.db.Close()
}
