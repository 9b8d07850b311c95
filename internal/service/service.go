package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/assert"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/lib/util/serviceutil"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	report_schedule_acquire = "schedule.acquire"
	report_schedule_encode  = "schedule.encode"
	report_limiter_size     = "limiter.size"
)

type Config struct {
	// MaxConcurrent bounds the number of browsers running at once.
	MaxConcurrent int64 `json:"max_concurrent"`
	// RequestsPerMinute and Burst limit how often a single username may
	// trigger an acquisition.
	RequestsPerMinute float64 `json:"requests_per_minute"`
	Burst             int     `json:"burst"`
	// RequestTimeout bounds a whole acquisition, queueing included.
	RequestTimeout time.Duration `json:"-"`
	AllowedOrigins []string      `json:"allowed_origins"`
	// AccessToken, when set, is required as a bearer token on /api.
	AccessToken string `json:"access_token"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     4,
		RequestsPerMinute: 6,
		Burst:             3,
		RequestTimeout:    90 * time.Second,
		AllowedOrigins:    []string{"*"},
	}
}

const limiterCacheSize = 1024

type Service struct {
	acquirer acquisition.Acquirer
	calendar calendar.Calendar
	clock    chrono.API
	tel      telemetry.API
	config   Config

	browsers   *semaphore.Weighted
	limiterMu  sync.Mutex
	limiters   *expirable.LRU[string, *rate.Limiter]
	limitEvery rate.Limit
}

func NewService(
	acquirer acquisition.Acquirer,
	cal calendar.Calendar,
	clock chrono.API,
	tel telemetry.API,
	config Config,
) *Service {
	assert.NotNil(acquirer, "acquirer")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")

	defaults := DefaultConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}

	return &Service{
		acquirer:   acquirer,
		calendar:   cal,
		clock:      clock,
		tel:        telemetry.NewScopedAPI("service", tel),
		config:     config,
		browsers:   semaphore.NewWeighted(config.MaxConcurrent),
		limiters:   expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, 10*time.Minute),
		limitEvery: rate.Limit(config.RequestsPerMinute / 60),
	}
}

// allow reports whether username may start another acquisition right now.
func (s *Service) allow(username string) bool {
	key := strings.ToLower(strings.TrimSpace(username))

	s.limiterMu.Lock()
	limiter, ok := s.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(s.limitEvery, s.config.Burst)
		s.limiters.Add(key, limiter)
	}
	size := s.limiters.Len()
	s.limiterMu.Unlock()

	s.tel.ReportCount(report_limiter_size, int64(size))
	return limiter.Allow()
}

// acquireSlot waits for a free browser, it fails when ctx ends first.
func (s *Service) acquireSlot(ctx context.Context) (func(), error) {
	err := s.browsers.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	return func() {
		s.browsers.Release(1)
	}, nil
}

// Handler serves the http api, requests are logged to accessLog.
func (s *Service) Handler(accessLog io.Writer) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(serviceutil.VerifyAccessToken(s.config.AccessToken))
	api.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	api.HandleFunc("/week", s.handleWeek).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(handler)
	handler = handlers.CORS(
		handlers.AllowedOrigins(s.config.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(handler)
	if accessLog != nil {
		handler = handlers.LoggingHandler(accessLog, handler)
	}
	return handler
}
