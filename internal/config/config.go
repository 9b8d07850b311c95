package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/cache"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/browser"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/scrapers/univer"
	"univer-schedule/internal/service"
	"univer-schedule/lib/configutil"
	"univer-schedule/lib/sqliteutil"
	"univer-schedule/lib/util/dumputil"
)

const epochLayout = "2006-01-02"

type CalendarConfig struct {
	// Epoch is the monday of the first numerator week, "YYYY-MM-DD".
	Epoch    string `json:"epoch"`
	Location string `json:"location"`
}

type BrowserConfig struct {
	// Headful shows the browser window, useful when the portal changes.
	Headful   bool   `json:"headful"`
	ExecPath  string `json:"exec_path"`
	UserAgent string `json:"user_agent"`
	// DebugDir receives screenshots of failed sessions, empty disables them.
	DebugDir string `json:"debug_dir"`

	// durations use time.ParseDuration syntax, "3s", "500ms"
	LoginSettle  string `json:"login_settle"`
	LocaleSettle string `json:"locale_settle"`
	Navigation   string `json:"navigation"`
	TableWait    string `json:"table_wait"`
}

type CacheConfig struct {
	Database sqliteutil.Config `json:"database"`
	// StaleAfter is how old a cached schedule may get before it is
	// refreshed in the background.
	StaleAfter string `json:"stale_after"`
	// WatchSpec is the cron spec used by `schedule-cli watch`.
	WatchSpec string `json:"watch_spec"`
}

type ServerConfig struct {
	Port           int    `json:"port"`
	RequestTimeout string `json:"request_timeout"`
	service.Config
}

type RemoteConfig struct {
	// Url of a schedule-server, used by the cli with --remote.
	Url         string `json:"url"`
	AccessToken string `json:"access_token"`
}

type Config struct {
	Portal    univer.Portal    `json:"portal"`
	Calendar  CalendarConfig   `json:"calendar"`
	Browser   BrowserConfig    `json:"browser"`
	Cache     CacheConfig      `json:"cache"`
	Server    ServerConfig     `json:"server"`
	Remote    RemoteConfig     `json:"remote"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func Defaults() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Portal: univer.DefaultPortal(),
		Calendar: CalendarConfig{
			Epoch:    "2026-01-26",
			Location: "Asia/Almaty",
		},
		Browser: BrowserConfig{
			UserAgent:    univer.DefaultUserAgent,
			LoginSettle:  "3s",
			LocaleSettle: "1s",
			Navigation:   "30s",
			TableWait:    "15s",
		},
		Cache: CacheConfig{
			Database: sqliteutil.Config{
				File: filepath.Join(home, ".local", "share", "univer-schedule", "state.db"),
			},
			StaleAfter: cache.DefaultWindow.String(),
			WatchSpec:  "*/30 * * * *",
		},
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: "90s",
			Config:         service.DefaultConfig(),
		},
	}
}

// Load reads name (json5, with a .local override) and fills everything it
// leaves out from Defaults. A missing file is not an error.
func Load(name string) (Config, error) {
	config, err := configutil.ReadConfig[Config](name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return configutil.WithDefaults(config, Defaults())
}

// Clock returns the wall clock in the portal's timezone.
func (c Config) Clock() (chrono.StandardImpl, error) {
	clock, err := chrono.NewStandardImpl(c.Calendar.Location)
	if err != nil {
		return chrono.StandardImpl{}, fmt.Errorf("calendar location: %w", err)
	}
	return clock, nil
}

func (c Config) CalendarModel(clock chrono.API) (calendar.Calendar, error) {
	epoch, err := time.ParseInLocation(epochLayout, c.Calendar.Epoch, clock.Location())
	if err != nil {
		return calendar.Calendar{}, fmt.Errorf("calendar epoch: %w", err)
	}
	return calendar.New(epoch, clock.Location()), nil
}

func parseDurations(fields map[string]string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(fields))
	for name, text := range fields {
		d, err := time.ParseDuration(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = d
	}
	return out, nil
}

func (c BrowserConfig) Timeouts() (univer.Timeouts, error) {
	parsed, err := parseDurations(map[string]string{
		"login_settle":  c.LoginSettle,
		"locale_settle": c.LocaleSettle,
		"navigation":    c.Navigation,
		"table_wait":    c.TableWait,
	})
	if err != nil {
		return univer.Timeouts{}, err
	}
	timeouts := univer.DefaultTimeouts()
	timeouts.LoginSettle = parsed["login_settle"]
	timeouts.LocaleSettle = parsed["locale_settle"]
	timeouts.Navigation = parsed["navigation"]
	timeouts.TableWait = parsed["table_wait"]
	return timeouts, nil
}

// DriverOptions turns the browser section into session driver options.
func (c Config) DriverOptions() ([]univer.Option, error) {
	timeouts, err := c.Browser.Timeouts()
	if err != nil {
		return nil, err
	}
	debug, err := dumputil.NewDir(c.Browser.DebugDir)
	if err != nil {
		return nil, err
	}

	profile := univer.DefaultProfile(c.Portal)
	profile.Headless = !c.Browser.Headful
	profile.ExecPath = c.Browser.ExecPath
	if c.Browser.UserAgent != "" {
		profile.UserAgent = c.Browser.UserAgent
	}

	return []univer.Option{
		univer.WithTimeouts(timeouts),
		univer.WithDebugDir(debug),
		univer.WithProfile(profile),
	}, nil
}

func (c CacheConfig) Window() (time.Duration, error) {
	return time.ParseDuration(c.StaleAfter)
}

// ServiceConfig is the server section with its durations parsed.
func (c ServerConfig) ServiceConfig() (service.Config, error) {
	timeout, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return service.Config{}, fmt.Errorf("request_timeout: %w", err)
	}
	out := c.Config
	out.RequestTimeout = timeout
	return out, nil
}

// Orchestrator builds a browser backed acquirer from the config.
func (c Config) Orchestrator(cal calendar.Calendar, clock chrono.API, tel telemetry.API) (acquisition.Orchestrator, error) {
	opts, err := c.DriverOptions()
	if err != nil {
		return acquisition.Orchestrator{}, err
	}
	driver := univer.NewDriver(browser.NewChromeLauncher(tel), c.Portal, tel, opts...)
	return acquisition.NewOrchestrator(driver, cal, clock, tel), nil
}
