// @title           SMB CRM API
// @version         1.0
// @description     Leads, customers, quotes, projects and budgets for a small agency: kanban status changes, lead conversion and quote confirmation.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/server"
	"github.com/aldoetobex/smb-crm-backend/pkg/config"
	"github.com/aldoetobex/smb-crm-backend/pkg/database"
	"github.com/aldoetobex/smb-crm-backend/pkg/logger"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
)

// appContext is handed to every command.
type appContext struct {
	cfg *config.Config
	log *zap.Logger
}

func (a *appContext) openDB() (*gorm.DB, error) { return database.Open(a.cfg.Database, a.log) }

type serveCmd struct {
	Migrate bool `help:"Run migrations before serving." default:"true" negatable:""`
}

func (s *serveCmd) Run(app *appContext) error {
	db, err := app.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if s.Migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	srv := server.New(app.cfg, db, app.log, metrics.New())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		app.log.Info("shutting down")
		_ = srv.ShutdownWithTimeout(10 * time.Second)
	}()

	app.log.Info("server running", zap.String("port", app.cfg.App.Port), zap.String("env", app.cfg.App.Env))
	return srv.Listen(":" + app.cfg.App.Port)
}

type migrateCmd struct{}

func (migrateCmd) Run(app *appContext) error {
	db, err := app.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db); err != nil {
		return err
	}
	app.log.Info("migrations applied")
	return nil
}

var cli struct {
	Serve   serveCmd   `cmd:"" help:"Run the HTTP API." default:"withargs"`
	Migrate migrateCmd `cmd:"" help:"Create or update the database schema."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("smb-crm"),
		kong.Description("Small-business CRM backend"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	if err := kctx.Run(&appContext{cfg: cfg, log: log}); err != nil {
		log.Error("command failed", zap.String("command", kctx.Command()), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
