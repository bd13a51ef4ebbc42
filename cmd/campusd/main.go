package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/config"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/persistence/sqlite"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.listSnapshots:
		err = listSnapshots(ctx, cfg, os.Stdout)
	case opts.exportOnly:
		err = exportOnce(ctx, cfg, logger)
	default:
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("campusd stopped with error", "error", err)
		os.Exit(1)
	}
}

type options struct {
	envFile       string
	exportOnly    bool
	listSnapshots bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("campusd", pflag.ContinueOnError)
	flagSet.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment (ignored when missing)")
	flagSet.BoolVar(&opts.exportOnly, "export", false, "write the text export from the newest snapshot and exit")
	flagSet.BoolVar(&opts.listSnapshots, "list-snapshots", false, "print the stored snapshots and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.exportOnly && opts.listSnapshots {
		return options{}, errors.New("--export and --list-snapshots are mutually exclusive")
	}
	return opts, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("campus reservation API listening", "addr", server.Addr)
	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(serveErr, a.close(closeCtx))
}

// app wires the directory to its snapshot store and HTTP surface.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *sqlite.Store
	snapshots *snapshotStore
	directory *application.Directory
	handler   http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...sqlite.Option) (*app, error) {
	store, err := sqlite.Open(cfg.SQLiteDSN, opts...)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", "versions", applied)
	}

	directory := application.NewDirectoryWithLogger(time.Now, logger)
	snapshots := newSnapshotStore(store, cfg.SnapshotRetention)
	if err := loadOrSeed(ctx, directory, snapshots, cfg.SeedDefaults, logger); err != nil {
		_ = store.Close()
		return nil, err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Resources:    httptransport.NewResourceHandler(directory, logger),
		Reservations: httptransport.NewReservationHandler(directory, logger),
		Users:        httptransport.NewUserHandler(directory, logger),
		Admin: httptransport.NewAdminHandler(
			directory,
			directorySnapshotter{directory: directory, store: snapshots},
			directoryExporter{directory: directory, dir: cfg.ExportDir, now: time.Now},
			logger,
		),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.IdentifyActingUser(),
		},
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		snapshots: snapshots,
		directory: directory,
		handler:   router,
	}, nil
}

// loadOrSeed restores the newest snapshot. An empty store yields the default
// catalog when seed is set and an empty directory otherwise.
func loadOrSeed(ctx context.Context, directory *application.Directory, store application.StateStore, seed bool, logger *slog.Logger) error {
	err := directory.LoadFrom(ctx, store)
	switch {
	case err == nil:
		state := directory.State()
		logger.Info("directory restored from snapshot",
			"users", len(state.Users),
			"resources", len(state.Resources),
			"reservations", len(state.Reservations),
		)
		return nil
	case errors.Is(err, application.ErrNotFound):
		if !seed {
			logger.Info("no snapshot found, starting empty")
			return nil
		}
		if err := directory.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed defaults: %w", err)
		}
		logger.Info("no snapshot found, seeded default catalog")
		return nil
	default:
		return fmt.Errorf("restore directory: %w", err)
	}
}

// close saves a final snapshot when autosave is enabled and releases storage.
func (a *app) close(ctx context.Context) error {
	var saveErr error
	if a.cfg.Autosave {
		if saveErr = a.directory.SaveTo(ctx, a.snapshots); saveErr != nil {
			saveErr = fmt.Errorf("autosave: %w", saveErr)
		} else {
			a.logger.Info("directory saved on shutdown")
		}
	}
	return errors.Join(saveErr, a.store.Close())
}

// exportOnce writes the text export for the stored directory without serving.
func exportOnce(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	cfg.Autosave = false
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	paths, exportErr := directoryExporter{directory: a.directory, dir: cfg.ExportDir, now: time.Now}.Export(ctx)
	if exportErr == nil {
		logger.Info("export written", "files", paths)
	}
	return errors.Join(exportErr, a.close(ctx))
}

// listSnapshots prints one line per stored snapshot, newest first.
func listSnapshots(ctx context.Context, cfg config.Config, w io.Writer) error {
	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if _, err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	infos, err := store.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s | %s | users=%d resources=%d reservations=%d | %s\n",
			info.ID, info.SavedAt.Format(time.RFC3339), info.Users, info.Resources, info.Reservations, info.Digest)
	}
	return nil
}
