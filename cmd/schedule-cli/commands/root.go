package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/cache"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/client"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/config"
	"univer-schedule/internal/db"
	"univer-schedule/lib/sqliteutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	remote     bool
	verbose    bool
)

// app is everything a command needs, it is built once before any command
// runs.
type app struct {
	cfg      config.Config
	clock    chrono.API
	calendar calendar.Calendar
	database *sql.DB
	policy   *cache.Policy
	tel      telemetry.API

	// onReload is set by long running commands that redraw after a
	// background refresh.
	onReload func(cache.Snapshot)
}

var current *app

// errSilent fails a command whose message was already printed.
var errSilent = errors.New("")

var errNotSignedIn = errors.New("not signed in, run `schedule-cli login` first")

var rootCmd = &cobra.Command{
	Use:   "schedule-cli",
	Short: "schedule-cli shows your weekly timetable from the univer portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.database.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "schedule.json5", "Path to the json5 config file.")
	rootCmd.PersistentFlags().BoolVar(&remote, "remote", false, "Acquire through the schedule server in the config instead of a local browser.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
}

func newAcquirer(cfg config.Config, cal calendar.Calendar, clock chrono.API, tel telemetry.API) (acquisition.Acquirer, error) {
	if remote {
		if cfg.Remote.Url == "" {
			return nil, fmt.Errorf("--remote needs remote.url in %s", configPath)
		}
		return client.NewClient(cfg.Remote.Url, cfg.Remote.AccessToken, tel), nil
	}
	orchestrator, err := cfg.Orchestrator(cal, clock, tel)
	if err != nil {
		return nil, err
	}
	return orchestrator, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	tel := telemetry.SlogAPI{}

	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	cal, err := cfg.CalendarModel(clock)
	if err != nil {
		return nil, err
	}
	acquirer, err := newAcquirer(cfg, cal, clock, tel)
	if err != nil {
		return nil, err
	}
	window, err := cfg.Cache.Window()
	if err != nil {
		return nil, fmt.Errorf("cache.stale_after: %w", err)
	}

	database, err := sqliteutil.OpenDB(ctx, cfg.Cache.Database, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	a := &app{
		cfg:      cfg,
		clock:    clock,
		calendar: cal,
		database: database,
		tel:      tel,
	}
	a.policy = cache.NewPolicy(
		cache.NewSQLiteStore(database),
		acquirer,
		cal,
		clock,
		tel,
		cache.WithWindow(window),
		cache.WithReload(func(snapshot cache.Snapshot) {
			if a.onReload != nil {
				a.onReload(snapshot)
			}
		}),
	)
	return a, nil
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, errSilent) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
