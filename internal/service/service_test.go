package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/timetable"

	"github.com/stretchr/testify/require"
)

var (
	almaty  = time.FixedZone("ALMT", 5*60*60)
	testCal = calendar.New(time.Date(2026, time.January, 26, 0, 0, 0, 0, almaty), almaty)
	testNow = time.Date(2026, time.February, 4, 10, 0, 0, 0, almaty)
)

type fakeAcquirer struct {
	matrix timetable.Matrix
	err    error
	calls  atomic.Int32
	block  chan struct{}
}

func (f *fakeAcquirer) AcquireSchedule(ctx context.Context, creds timetable.Credentials) (timetable.Matrix, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.matrix, f.err
}

func oneLesson() timetable.Matrix {
	row := timetable.NewRow()
	row[0] = timetable.Day{{
		Time:    "08:00-09:30",
		Subject: "Физика",
		Teacher: "Петров П.П.",
		Room:    "ГК Ауд. 112",
		Cycle:   timetable.TagA,
	}}
	return timetable.Matrix{row}
}

func newTestServer(t *testing.T, acquirer acquisition.Acquirer, config Config) *httptest.Server {
	service := NewService(acquirer, testCal, chrono.FixedImpl{Time: testNow}, &telemetry.Recorder{}, config)
	server := httptest.NewServer(service.Handler(nil))
	t.Cleanup(server.Close)
	return server
}

func postSchedule(t *testing.T, server *httptest.Server, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/schedule", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	buff, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, strings.TrimSpace(string(buff))
}

const validBody = `{"username": "student", "password": "secret"}`

func TestScheduleStatusCodes(t *testing.T) {
	cases := []struct {
		name     string
		acquirer *fakeAcquirer
		body     string
		status   int
		response string
	}{
		{
			name:     "success",
			acquirer: &fakeAcquirer{matrix: oneLesson()},
			body:     validBody,
			status:   http.StatusOK,
			response: `[[[{"time":"08:00-09:30","subject":"Физика","teacher":"Петров П.П.","room":"ГК Ауд. 112","cycle":"A"}],[],[],[],[],[]]]`,
		},
		{
			name:     "empty schedule",
			acquirer: &fakeAcquirer{},
			body:     validBody,
			status:   http.StatusOK,
			response: `[]`,
		},
		{
			name:     "invalid credentials",
			acquirer: &fakeAcquirer{err: acquisition.ErrInvalidCredentials},
			body:     validBody,
			status:   http.StatusUnauthorized,
			response: `{"error":"invalid credentials"}`,
		},
		{
			name:     "markup changed",
			acquirer: &fakeAcquirer{err: acquisition.ErrTimeoutOrMarkupChanged},
			body:     validBody,
			status:   http.StatusInternalServerError,
			response: `[]`,
		},
		{
			name:     "unexpected",
			acquirer: &fakeAcquirer{err: acquisition.ErrUnexpected},
			body:     validBody,
			status:   http.StatusInternalServerError,
			response: `[]`,
		},
		{
			name:     "missing password",
			acquirer: &fakeAcquirer{},
			body:     `{"username": "student"}`,
			status:   http.StatusBadRequest,
			response: `{"error":"username and password are required"}`,
		},
		{
			name:     "malformed body",
			acquirer: &fakeAcquirer{},
			body:     `{"username":`,
			status:   http.StatusBadRequest,
			response: `{"error":"malformed request body"}`,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			server := newTestServer(t, test.acquirer, DefaultConfig())
			res, body := postSchedule(t, server, test.body)
			require.Equal(t, test.status, res.StatusCode)
			require.Equal(t, test.response, body)
		})
	}
}

func TestScheduleRateLimit(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: oneLesson()}
	config := DefaultConfig()
	config.RequestsPerMinute = 1
	config.Burst = 2
	server := newTestServer(t, acquirer, config)

	for i := 0; i < 2; i++ {
		res, _ := postSchedule(t, server, validBody)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}
	res, _ := postSchedule(t, server, `{"username": " STUDENT ", "password": "secret"}`)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("Retry-After"))
	require.Equal(t, int32(2), acquirer.calls.Load())

	// other students are not affected
	res, _ = postSchedule(t, server, `{"username": "other", "password": "secret"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestScheduleConcurrencyBound(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: oneLesson(), block: make(chan struct{})}
	config := DefaultConfig()
	config.MaxConcurrent = 1
	config.RequestTimeout = 100 * time.Millisecond
	server := newTestServer(t, acquirer, config)

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := server.Client().Post(
			server.URL+"/api/schedule",
			"application/json",
			strings.NewReader(`{"username": "first", "password": "secret"}`),
		)
		if err == nil {
			res.Body.Close()
		}
	}()

	require.Eventually(t, func() bool {
		return acquirer.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	res, body := postSchedule(t, server, `{"username": "second", "password": "secret"}`)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.Equal(t, `[]`, body)
	require.Equal(t, int32(1), acquirer.calls.Load())

	close(acquirer.block)
	<-done
}

func TestAccessToken(t *testing.T) {
	config := DefaultConfig()
	config.AccessToken = "token"
	server := newTestServer(t, &fakeAcquirer{matrix: oneLesson()}, config)

	res, _ := postSchedule(t, server, validBody)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = postSchedule(t, server, validBody, "Authorization", "Bearer token")
	require.Equal(t, http.StatusOK, res.StatusCode)

	health, err := server.Client().Get(server.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestWeek(t *testing.T) {
	server := newTestServer(t, &fakeAcquirer{}, DefaultConfig())

	res, err := server.Client().Get(server.URL + "/api/week")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var week weekResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&week))
	require.Equal(t, weekResponse{
		Monday: "02.02.2026",
		Sunday: "08.02.2026",
		Week:   2,
		Cycle:  "B",
		Label:  "Знаменатель",
	}, week)
}

func TestCorsPreflight(t *testing.T) {
	server := newTestServer(t, &fakeAcquirer{}, DefaultConfig())

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/schedule", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://schedule.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := server.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, &fakeAcquirer{}, DefaultConfig())
	res, err := server.Client().Get(server.URL + "/api/schedule")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
