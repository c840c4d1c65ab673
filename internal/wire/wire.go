// Package wire provides dependency injection for shiftdesk.
// It builds the service graph once per process from the loaded config.
package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	cliadapter "github.com/example/shiftdesk/internal/adapters/cli"
	"github.com/example/shiftdesk/internal/adapters/events"
	"github.com/example/shiftdesk/internal/adapters/postgres"
	"github.com/example/shiftdesk/internal/adapters/sqlite"
	"github.com/example/shiftdesk/internal/app"
	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/config"
	"github.com/example/shiftdesk/internal/db"
	"github.com/example/shiftdesk/internal/httpapi"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

// App is the assembled service graph.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Shifts    *app.ShiftRegistryImpl
	Handovers *app.HandoverCoordinatorImpl
	Linkage   *app.LinkageServiceImpl
	Reports   *app.ReportServiceImpl
	Ledger    *app.LedgerServiceImpl
	ExitQueue *app.ExitStatsQueue
	Hub       *events.Hub // nil unless websocket events are enabled

	closers []func() error
}

// repositories is one storage backend's set of secondary ports.
type repositories struct {
	shifts  secondary.ShiftRepository
	changes secondary.ShiftChangeRepository
	ledger  secondary.LedgerRepository
	stats   secondary.LiveStatsRepository
	tx      secondary.Transactor
}

// New opens the configured storage and event sinks and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	repos, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := a.openPublisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	clk := clock.System{}
	slot := app.NewShiftSlot()
	notifier := app.NewNotifier(publisher, clk, logger)

	a.Shifts = app.NewShiftRegistry(repos.shifts, repos.tx, slot, notifier, clk, logger)
	a.Linkage = app.NewLinkageService(a.Shifts, repos.ledger, repos.stats, repos.tx, notifier, clk, logger)
	a.Reports = app.NewReportService(repos.shifts, repos.ledger, clk, logger)

	recovery := app.DefaultRecoveryPolicy()
	recovery.Attempts = cfg.Handover.RecoveryAttempts
	recovery.MaxInterval = cfg.Handover.RecoveryMaxInterval.Duration
	a.Handovers = app.NewHandoverCoordinator(a.Shifts, a.Linkage, a.Reports, repos.changes,
		repos.tx, slot, notifier, clk, logger, recovery)

	a.Ledger = app.NewLedgerService(repos.ledger, a.Linkage, cfg.FeeCalculator(), clk, logger)
	a.ExitQueue = app.NewExitStatsQueue(a.Linkage, cfg.Linkage.ExitStatsFlushInterval.Duration,
		cfg.Linkage.ExitStatsBatch, logger)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*repositories, error) {
	switch a.Config.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, a.Config.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Logger.Debug("storage opened", "driver", config.DriverPostgres)
		return &repositories{
			shifts:  postgres.NewShiftRepository(pool),
			changes: postgres.NewShiftChangeRepository(pool),
			ledger:  postgres.NewLedgerRepository(pool),
			stats:   postgres.NewLiveStatsRepository(pool),
			tx:      postgres.NewTransactor(pool),
		}, nil

	case config.DriverSQLite, "":
		conn, err := db.Open(a.Config.Database.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		a.Logger.Debug("storage opened", "driver", config.DriverSQLite, "path", a.Config.Database.Path)
		return &repositories{
			shifts:  sqlite.NewShiftRepository(conn),
			changes: sqlite.NewShiftChangeRepository(conn),
			ledger:  sqlite.NewLedgerRepository(conn),
			stats:   sqlite.NewLiveStatsRepository(conn),
			tx:      sqlite.NewTransactor(conn),
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
}

func (a *App) openPublisher() (secondary.EventPublisher, error) {
	sinks := events.Fanout{events.LogPublisher{Logger: a.Logger}}

	if a.Config.Events.Websocket {
		a.Hub = events.NewHub(a.Logger)
		a.closers = append(a.closers, func() error { a.Hub.Close(); return nil })
		sinks = append(sinks, a.Hub)
	}

	if a.Config.Events.RabbitMQURL != "" {
		rabbit, err := events.DialRabbitMQ(a.Config.Events.RabbitMQURL, a.Config.Events.Exchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rabbit.Close)
		sinks = append(sinks, rabbit)
	}
	return sinks, nil
}

// HTTPServer builds the API server over the assembled services.
func (a *App) HTTPServer() *httpapi.Server {
	svc := httpapi.Services{
		Shifts:    a.Shifts,
		Handovers: a.Handovers,
		Linkage:   a.Linkage,
		Reports:   a.Reports,
		Ledger:    a.Ledger,
		ExitQueue: a.ExitQueue,
	}
	opts := httpapi.Options{
		Metrics:   a.Config.Server.Metrics,
		JWTSecret: a.Config.Server.JWTSecret,
	}
	if a.Hub != nil {
		opts.Events = a.Hub
	}
	return httpapi.NewServer(svc, opts, a.Logger)
}

// Close releases event sinks and storage, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var (
	cfgPath   string
	logger    = slog.Default()
	singleton *App
	initErr   error
	once      sync.Once
)

// Configure sets the config file and logger used by the singleton. It must
// be called before the first service is requested.
func Configure(path string, l *slog.Logger) {
	cfgPath = path
	if l != nil {
		logger = l
	}
}

// Get returns the singleton App, building it on first use.
func Get() (*App, error) {
	once.Do(initServices)
	return singleton, initErr
}

// initServices loads the config and builds the service graph.
// This is called once via sync.Once.
func initServices() {
	path := cfgPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			initErr = err
			return
		}
		path = p
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		initErr = err
		return
	}
	singleton, initErr = New(context.Background(), cfg, logger)
}

// Shutdown closes the singleton if it was built.
func Shutdown() error {
	if singleton == nil {
		return nil
	}
	return singleton.Close()
}

// ShiftAdapter returns a new ShiftAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func ShiftAdapter() (*cliadapter.ShiftAdapter, error) {
	return ShiftAdapterWithOutput(os.Stdout)
}

// ShiftAdapterWithOutput returns a new ShiftAdapter writing to the given output.
func ShiftAdapterWithOutput(out io.Writer) (*cliadapter.ShiftAdapter, error) {
	a, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewShiftAdapter(a.Shifts, a.Handovers, a.Reports, out), nil
}

// VehicleAdapter returns a new VehicleAdapter writing to stdout.
func VehicleAdapter() (*cliadapter.VehicleAdapter, error) {
	return VehicleAdapterWithOutput(os.Stdout)
}

// VehicleAdapterWithOutput returns a new VehicleAdapter writing to the given output.
func VehicleAdapterWithOutput(out io.Writer) (*cliadapter.VehicleAdapter, error) {
	a, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewVehicleAdapter(a.Ledger, a.Linkage, out), nil
}
