package acquisition

import (
	"context"
	"errors"
	"fmt"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/assert"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/scrapers/univer"
	"univer-schedule/internal/timetable"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("univer-schedule/internal/acquisition")
var meter = otel.Meter("univer-schedule/internal/acquisition")

var acquisitionCounter, _ = meter.Int64Counter(
	"acquisitions",
	metric.WithDescription("schedule acquisitions by outcome"),
)

const (
	report_orchestrator_acquire = "orchestrator.acquire"
	report_orchestrator_locale  = "orchestrator.fix-locale"
)

var (
	// ErrInvalidCredentials means the portal rejected the login, it is never
	// retried automatically.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTimeoutOrMarkupChanged covers a schedule that did not show up in
	// time as well as markup the extractor no longer recognizes.
	ErrTimeoutOrMarkupChanged = errors.New("timed out or portal markup changed")
	ErrUnexpected             = errors.New("unexpected acquisition failure")
)

type Kind int

const (
	KindNone Kind = iota
	KindInvalidCredentials
	KindTimeoutOrMarkupChanged
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindTimeoutOrMarkupChanged:
		return "timeout_or_markup_changed"
	}
	return "unexpected"
}

// Classify maps an error returned by an Acquirer to its kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrTimeoutOrMarkupChanged):
		return KindTimeoutOrMarkupChanged
	}
	return KindUnexpected
}

// wrapFault tags err with the taxonomy error it belongs to.
func wrapFault(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTimeoutOrMarkupChanged),
		errors.Is(err, ErrUnexpected):
		return err
	case errors.Is(err, univer.ErrLoginFailed),
		errors.Is(err, timetable.ErrMissingCredentials):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case errors.Is(err, univer.ErrNavigationFailed),
		errors.Is(err, univer.ErrNoScheduleTable),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeoutOrMarkupChanged, err)
	}
	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}

// Acquirer fetches the current week's schedule of a student.
//
// note: fault injection point
type Acquirer interface {
	AcquireSchedule(ctx context.Context, creds timetable.Credentials) (timetable.Matrix, error)
}

// Orchestrator drives a portal session from login to extraction. Every call
// owns its own browser, calls for different students do not share anything.
type Orchestrator struct {
	driver   *univer.Driver
	calendar calendar.Calendar
	clock    chrono.API
	tel      telemetry.API
}

func NewOrchestrator(driver *univer.Driver, cal calendar.Calendar, clock chrono.API, tel telemetry.API) Orchestrator {
	assert.NotNil(driver, "univer driver")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	return Orchestrator{
		driver:   driver,
		calendar: cal,
		clock:    clock,
		tel:      telemetry.NewScopedAPI("acquisition", tel),
	}
}

func step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// AcquireSchedule logs in, opens the current week and extracts its table.
// The browser is closed before returning on every path, panics included.
// Errors always wrap one of ErrInvalidCredentials, ErrTimeoutOrMarkupChanged
// or ErrUnexpected.
func (o Orchestrator) AcquireSchedule(ctx context.Context, creds timetable.Credentials) (matrix timetable.Matrix, err error) {
	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "AcquireSchedule", trace.WithAttributes(
		attribute.String("acquisition.id", id),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			matrix = nil
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}
		kind := Classify(err)
		acquisitionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", kind.String()),
		))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		switch kind {
		case KindNone:
			o.tel.ReportDebug("acquired schedule", "id", id, "rows", len(matrix), "lessons", matrix.LessonCount())
		case KindUnexpected:
			o.tel.ReportBroken(report_orchestrator_acquire, "id", id, "err", err)
		default:
			o.tel.ReportDebug("acquisition failed", "id", id, "kind", kind.String(), "err", err)
		}
	}()

	err = creds.Validate()
	if err != nil {
		return nil, wrapFault(err)
	}

	session, err := o.driver.Open(ctx)
	if err != nil {
		return nil, wrapFault(err)
	}
	defer session.Close()

	err = step(ctx, "Login", func(ctx context.Context) error {
		return session.Login(ctx, creds)
	})
	if err != nil {
		return nil, wrapFault(err)
	}

	err = step(ctx, "FixLocale", session.FixLocale)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapFault(err)
		}
		// the seeded cookie usually already did the job
		o.tel.ReportWarning(report_orchestrator_locale, "id", id, "err", err)
	}

	window := o.calendar.WeekWindow(o.clock.Now())
	span.SetAttributes(
		attribute.String("week.monday", window.MondayString()),
		attribute.String("week.sunday", window.SundayString()),
	)

	err = step(ctx, "NavigateWeek", func(ctx context.Context) error {
		return session.NavigateWeek(ctx, window)
	})
	if err != nil {
		return nil, wrapFault(err)
	}

	err = step(ctx, "Extract", func(ctx context.Context) error {
		page, err := session.HTML(ctx)
		if err != nil {
			return err
		}
		matrix, err = univer.Extract(page)
		return err
	})
	if err != nil {
		return nil, wrapFault(err)
	}

	if first, ok := matrix.FirstTime(); ok {
		o.tel.ReportDebug("first lesson time", "id", id, "time", first)
	}
	return matrix, nil
}
