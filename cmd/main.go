package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"roster/internal/config"
	"roster/internal/database"
	"roster/internal/identity"
	"roster/internal/logging"
	"roster/internal/service"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// app is everything a command needs: one store owned for the whole run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	students *service.StudentService
}

func openApp(opts *rootOptions, server bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if server {
		logger, err = logging.New(cfg.LogLevel)
	} else {
		logger, err = logging.NewConsole(opts.verbose)
	}
	if err != nil {
		return nil, err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	students := service.NewStudentService(database.NewGormSlot(db), service.Options{
		Key:      cfg.StorageKey,
		PageSize: cfg.PageSize,
		IDs:      identity.Random{},
		Logger:   logger,
	})

	return &app{cfg: cfg, logger: logger, db: db, students: students}, nil
}

func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage a list of student records",
		Long: `roster keeps a list of student records in a single storage slot.

Records can be added, edited, deleted, searched, sorted, paginated,
imported from and exported to JSON, from the command line or over HTTP
(roster serve).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("ROSTER_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newClearCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
