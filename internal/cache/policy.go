package cache

import (
	"context"
	"errors"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/assert"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/timetable"

	"golang.org/x/sync/singleflight"
)

const (
	report_policy_refresh = "policy.refresh"
	report_policy_watch   = "policy.watch"
)

const (
	DefaultWindow         = 6 * time.Hour
	DefaultRefreshTimeout = 2 * time.Minute
)

var errSessionChanged = errors.New("signed in student changed during refresh")

// Policy serves the cached schedule right away and refreshes it in the
// background once it is older than the staleness window.
type Policy struct {
	store          Store
	acquirer       acquisition.Acquirer
	calendar       calendar.Calendar
	clock          chrono.API
	tel            telemetry.API
	window         time.Duration
	refreshTimeout time.Duration
	onReload       func(Snapshot)

	inflight *singleflight.Group
}

type PolicyOption func(p *Policy)

func WithWindow(window time.Duration) PolicyOption {
	return func(p *Policy) {
		p.window = window
	}
}

func WithRefreshTimeout(timeout time.Duration) PolicyOption {
	return func(p *Policy) {
		p.refreshTimeout = timeout
	}
}

// WithReload registers a callback invoked after a background refresh
// replaced the cache. Everything derived from the old snapshot (week dates,
// cycle) should be recomputed from scratch.
func WithReload(onReload func(Snapshot)) PolicyOption {
	return func(p *Policy) {
		p.onReload = onReload
	}
}

func NewPolicy(
	store Store,
	acquirer acquisition.Acquirer,
	cal calendar.Calendar,
	clock chrono.API,
	tel telemetry.API,
	opts ...PolicyOption,
) *Policy {
	assert.NotNil(store, "store")
	assert.NotNil(acquirer, "acquirer")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")

	p := &Policy{
		store:          store,
		acquirer:       acquirer,
		calendar:       cal,
		clock:          clock,
		tel:            telemetry.NewScopedAPI("cache", tel),
		window:         DefaultWindow,
		refreshTimeout: DefaultRefreshTimeout,
		inflight:       &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Login acquires the schedule with fresh credentials and, only when that
// succeeds, replaces whatever was cached before. The error is the one
// returned by the acquirer, see acquisition.Classify.
func (p *Policy) Login(ctx context.Context, creds timetable.Credentials) (Snapshot, error) {
	err := creds.Validate()
	if err != nil {
		return Snapshot{}, err
	}
	matrix, err := p.acquirer.AcquireSchedule(ctx, creds)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{
		Credentials: creds,
		Matrix:      matrix,
		FetchedAt:   p.clock.Now(),
	}
	err = p.store.Save(ctx, snapshot)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// Logout forgets the credentials, the schedule and the settings together.
func (p *Policy) Logout(ctx context.Context) error {
	return p.store.Wipe(ctx)
}

// IsStale reports whether a schedule fetched at fetchedAt is older than the
// staleness window.
func (p *Policy) IsStale(fetchedAt time.Time) bool {
	return p.clock.Now().Sub(fetchedAt) > p.window
}

// Refresh is the background re-acquisition started by Load.
type Refresh struct {
	triggered bool
	done      chan struct{}
	snapshot  Snapshot
	err       error
}

func finishedRefresh() *Refresh {
	r := &Refresh{done: make(chan struct{})}
	close(r.done)
	return r
}

// Triggered reports whether the cached schedule was stale.
func (r *Refresh) Triggered() bool {
	return r.triggered
}

// Wait blocks until the refresh finished and returns the new snapshot. The
// boolean is false when nothing was refreshed, either because the cache was
// fresh or because the refresh failed.
func (r *Refresh) Wait(ctx context.Context) (Snapshot, bool) {
	select {
	case <-ctx.Done():
		return Snapshot{}, false
	case <-r.done:
	}
	if !r.triggered || r.err != nil {
		return Snapshot{}, false
	}
	return r.snapshot, true
}

// Load returns the cached snapshot without touching the network. When it is
// stale a refresh is started in the background with the stored credentials,
// its failure leaves the cache as it was and is only reported.
func (p *Policy) Load(ctx context.Context) (Snapshot, *Refresh, error) {
	snapshot, err := p.store.Load(ctx)
	if err != nil {
		return Snapshot{}, nil, err
	}

	if !p.IsStale(snapshot.FetchedAt) {
		return snapshot, finishedRefresh(), nil
	}

	refresh := &Refresh{triggered: true, done: make(chan struct{})}
	// the refresh outlives the caller, the view is already rendered
	refreshCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(refresh.done)
		refresh.snapshot, refresh.err = p.refresh(refreshCtx, snapshot.Credentials)
	}()

	return snapshot, refresh, nil
}

func (p *Policy) refresh(ctx context.Context, creds timetable.Credentials) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.refreshTimeout)
	defer cancel()

	result, err, _ := p.inflight.Do(creds.Username, func() (any, error) {
		matrix, err := p.acquirer.AcquireSchedule(ctx, creds)
		if err != nil {
			return nil, err
		}
		fetchedAt := p.clock.Now()
		updated, err := p.store.UpdateSchedule(ctx, creds.Username, matrix, fetchedAt)
		if err != nil {
			return nil, err
		}
		if !updated {
			return nil, errSessionChanged
		}
		return Snapshot{Credentials: creds, Matrix: matrix, FetchedAt: fetchedAt}, nil
	})
	if errors.Is(err, errSessionChanged) {
		p.tel.ReportDebug("dropping refresh of signed out student", "username", creds.Username)
		return Snapshot{}, err
	}
	if err != nil {
		p.tel.ReportWarning(report_policy_refresh, "kind", acquisition.Classify(err).String(), "err", err)
		return Snapshot{}, err
	}

	snapshot := result.(Snapshot)
	if p.onReload != nil {
		p.onReload(snapshot)
	}
	return snapshot, nil
}

// Refresh re-acquires the schedule with the stored credentials now,
// regardless of its age. Unlike the background refresh its failure is
// returned to the caller.
func (p *Policy) Refresh(ctx context.Context) (Snapshot, error) {
	snapshot, err := p.store.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return p.refresh(ctx, snapshot.Credentials)
}

// Watch applies the staleness check on the given cron spec, for long
// running clients.
func (p *Policy) Watch(ctx context.Context, cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, func() {
		_, refresh, err := p.Load(ctx)
		if errors.Is(err, ErrNoSession) {
			return
		}
		if err != nil {
			p.tel.ReportWarning(report_policy_watch, err)
			return
		}
		refresh.Wait(ctx)
	})
}

// SelectedCycle is the cycle to display: override when set, otherwise the
// cycle of the current week.
func (p *Policy) SelectedCycle(override calendar.Cycle) calendar.Cycle {
	if override != "" {
		return override
	}
	return p.calendar.CycleInfo(p.clock.Now()).Cycle
}

// Theme is the display theme, light unless set otherwise.
func (p *Policy) Theme(ctx context.Context) (Theme, error) {
	return p.store.Theme(ctx)
}

func (p *Policy) SetTheme(ctx context.Context, theme Theme) error {
	return p.store.SetTheme(ctx, theme)
}
