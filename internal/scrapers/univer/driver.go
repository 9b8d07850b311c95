package univer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/assert"
	"univer-schedule/internal/components/browser"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/timetable"
	"univer-schedule/lib/util/dumputil"
)

const (
	report_session_open          = "session.open"
	report_session_login         = "session.login"
	report_session_fix_locale    = "session.fix-locale"
	report_session_navigate_week = "session.navigate-week"
	report_session_capture       = "session.capture"
	report_session_close         = "session.close"
)

const (
	usernameSelector = `input[type="text"]`
	passwordSelector = `input[type="password"]`
	submitSelector   = `input[type="submit"]`
)

var (
	// ErrLoginFailed means the portal kept us on the login page after the
	// credentials were submitted.
	ErrLoginFailed = errors.New("login failed")
	// ErrNavigationFailed means the schedule table never showed up.
	ErrNavigationFailed = errors.New("schedule navigation failed")
)

type State int

const (
	StateOpen State = iota
	StateAuthenticated
	// StateReady means the schedule table of a week is rendered.
	StateReady
	StateLoginFailed
	StateNavigationFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateLoginFailed:
		return "login_failed"
	case StateNavigationFailed:
		return "navigation_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// LoginOracle decides from the address the browser ended up on after
// submitting the login form whether the portal accepted the credentials.
type LoginOracle func(location string) bool

// LeftLoginPage is the default oracle, the portal gives no other signal than
// redirecting away from the login page.
func LeftLoginPage(loginPath string) LoginOracle {
	return func(location string) bool {
		return !strings.Contains(location, loginPath)
	}
}

type Timeouts struct {
	// LoginSettle bounds the wait for the redirect after submitting the
	// login form.
	LoginSettle time.Duration
	// LocaleSettle is how long the language switch page is given to apply.
	LocaleSettle time.Duration
	Navigation   time.Duration
	TableWait    time.Duration
	// Poll is the interval between location checks while logging in.
	Poll time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		LoginSettle:  3 * time.Second,
		LocaleSettle: time.Second,
		Navigation:   30 * time.Second,
		TableWait:    15 * time.Second,
		Poll:         250 * time.Millisecond,
	}
}

type Driver struct {
	launcher browser.Launcher
	portal   Portal
	profile  browser.Profile
	timeouts Timeouts
	oracle   LoginOracle
	debug    dumputil.Dir
	tel      telemetry.API
}

type Option func(d *Driver)

func WithProfile(profile browser.Profile) Option {
	return func(d *Driver) {
		d.profile = profile
	}
}

func WithTimeouts(timeouts Timeouts) Option {
	return func(d *Driver) {
		d.timeouts = timeouts
	}
}

func WithLoginOracle(oracle LoginOracle) Option {
	return func(d *Driver) {
		d.oracle = oracle
	}
}

// WithDebugDir saves a screenshot of the page whenever a session ends up in
// a failed state.
func WithDebugDir(dir dumputil.Dir) Option {
	return func(d *Driver) {
		d.debug = dir
	}
}

func NewDriver(launcher browser.Launcher, portal Portal, tel telemetry.API, opts ...Option) *Driver {
	assert.NotNil(launcher, "browser launcher")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(portal.BaseUrl, "portal base url")

	d := &Driver{
		launcher: launcher,
		portal:   portal,
		profile:  DefaultProfile(portal),
		timeouts: DefaultTimeouts(),
		oracle:   LeftLoginPage(portal.LoginPath),
		tel:      telemetry.NewScopedAPI("univer", tel),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Portal() Portal {
	return d.portal
}

// Open launches a fresh browser with the session profile applied. The
// returned session must always be closed.
func (d *Driver) Open(ctx context.Context) (*Session, error) {
	b, err := d.launcher.Launch(ctx, d.profile)
	if err != nil {
		d.tel.ReportBroken(report_session_open, err)
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{driver: d, browser: b, state: StateOpen}, nil
}

// Session is one browser driven through login, locale fixup and navigation.
// It is not safe for concurrent use.
type Session struct {
	driver  *Driver
	browser browser.API
	state   State

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) expect(state State) error {
	if s.state != state {
		return fmt.Errorf("session is %s, expected %s", s.state, state)
	}
	return nil
}

// capture stores a screenshot of the current page, it never fails the caller.
func (s *Session) capture(ctx context.Context, name string) {
	if !s.driver.debug.Enabled() {
		return
	}
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	png, err := s.browser.Screenshot(captureCtx)
	if err != nil {
		s.driver.tel.ReportWarning(report_session_capture, name, err)
		return
	}
	path := s.driver.debug.Write(name, png)
	s.driver.tel.ReportDebug("saved failure screenshot", "path", path)
}

// Login submits the credentials through the portal's login form. The fields
// are located by input type, their names change between portal releases.
func (s *Session) Login(ctx context.Context, creds timetable.Credentials) error {
	err := s.expect(StateOpen)
	if err != nil {
		return err
	}

	formCtx, cancel := context.WithTimeout(ctx, s.driver.timeouts.Navigation)
	defer cancel()

	err = s.browser.Navigate(formCtx, s.driver.portal.LoginURL())
	if err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	err = s.browser.Fill(formCtx, usernameSelector, creds.Username)
	if err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	err = s.browser.Fill(formCtx, passwordSelector, creds.Password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	err = s.browser.Click(formCtx, submitSelector)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	return s.awaitLogin(ctx)
}

// awaitLogin polls the location until the oracle accepts it or the settle
// timeout passes. The location is checked one last time after the timeout.
func (s *Session) awaitLogin(ctx context.Context) error {
	settle := time.NewTimer(s.driver.timeouts.LoginSettle)
	defer settle.Stop()
	poll := time.NewTicker(s.driver.timeouts.Poll)
	defer poll.Stop()

	expired := false
	location := ""
	for {
		// reading the location can fail while the page is navigating
		current, err := s.browser.Location(ctx)
		if err == nil {
			location = current
			if s.driver.oracle(location) {
				s.state = StateAuthenticated
				s.driver.tel.ReportDebug("logged in", "location", location)
				return nil
			}
		} else {
			s.driver.tel.ReportDebug("read location while logging in", "err", err)
		}

		if expired {
			s.state = StateLoginFailed
			s.driver.tel.ReportDebug(report_session_login, "still on", location)
			s.capture(ctx, "login_failed.png")
			return ErrLoginFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settle.C:
			expired = true
		case <-poll.C:
		}
	}
}

// FixLocale requests the language switch page, some sessions lose the
// russian locale after login even with the seeded cookie.
func (s *Session) FixLocale(ctx context.Context) error {
	err := s.expect(StateAuthenticated)
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.driver.timeouts.Navigation)
	defer cancel()
	err = s.browser.Navigate(navCtx, s.driver.portal.LanguageURL())
	if err != nil {
		s.driver.tel.ReportWarning(report_session_fix_locale, err)
		return fmt.Errorf("switch language: %w", err)
	}

	settle := time.NewTimer(s.driver.timeouts.LocaleSettle)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-settle.C:
		return nil
	}
}

// NavigateWeek opens the schedule of the given week and waits for its table.
func (s *Session) NavigateWeek(ctx context.Context, window calendar.Window) error {
	err := s.expect(StateAuthenticated)
	if err != nil {
		return err
	}

	address := s.driver.portal.ScheduleURL(window)
	s.driver.tel.ReportDebug("navigating to schedule", "url", address)

	err = s.navigateWeek(ctx, address)
	if err != nil {
		// the caller giving up is not a failure of the page
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.state = StateNavigationFailed
		s.driver.tel.ReportWarning(report_session_navigate_week, address, err)
		s.capture(ctx, "schedule_not_found.png")
		return fmt.Errorf("%w: %w", ErrNavigationFailed, err)
	}

	s.state = StateReady
	return nil
}

func (s *Session) navigateWeek(ctx context.Context, address string) error {
	navCtx, cancelNav := context.WithTimeout(ctx, s.driver.timeouts.Navigation)
	defer cancelNav()
	err := s.browser.Navigate(navCtx, address)
	if err != nil {
		return fmt.Errorf("load schedule page: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, s.driver.timeouts.TableWait)
	defer cancelWait()
	err = s.browser.WaitVisible(waitCtx, ScheduleSelector)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", ScheduleSelector, err)
	}
	return nil
}

// HTML returns the markup of the loaded schedule page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	err := s.expect(StateReady)
	if err != nil {
		return "", err
	}
	return s.browser.HTML(ctx)
}

// Close tears the browser down, only the first call does anything.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		if s.closeErr != nil {
			s.driver.tel.ReportWarning(report_session_close, s.closeErr)
		}
	})
	return s.closeErr
}
