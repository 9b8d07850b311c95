package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/timetable"
)

type errorResponse struct {
	Error string `json:"error"`
}

type weekResponse struct {
	Monday string `json:"monday"`
	Sunday string `json:"sunday"`
	Week   int    `json:"week"`
	Cycle  string `json:"cycle"`
	Label  string `json:"label"`
}

func (s *Service) writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		s.tel.ReportWarning(report_schedule_encode, err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Service) handleWeek(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	window := s.calendar.WeekWindow(now)
	info := s.calendar.CycleInfo(now)
	s.writeJson(w, http.StatusOK, weekResponse{
		Monday: window.MondayString(),
		Sunday: window.SundayString(),
		Week:   info.DisplayWeek(),
		Cycle:  string(info.Cycle),
		Label:  info.Cycle.Label(),
	})
}

// handleSchedule is the credentials submission boundary. Invalid credentials
// answer 401 so the client can tell them apart, every other failure answers
// 500 with an empty schedule.
func (s *Service) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var creds timetable.Credentials
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&creds)
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	err = creds.Validate()
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !s.allow(creds.Username) {
		w.Header().Set("Retry-After", strconv.Itoa(int(60/s.config.RequestsPerMinute)+1))
		s.writeJson(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	release, err := s.acquireSlot(ctx)
	if err != nil {
		s.tel.ReportWarning(report_schedule_acquire, "waiting for a browser", err)
		s.writeJson(w, http.StatusServiceUnavailable, timetable.Matrix{})
		return
	}
	defer release()

	matrix, err := s.acquirer.AcquireSchedule(ctx, creds)
	if errors.Is(err, acquisition.ErrInvalidCredentials) {
		s.writeJson(w, http.StatusUnauthorized, errorResponse{Error: acquisition.ErrInvalidCredentials.Error()})
		return
	}
	if err != nil {
		s.tel.ReportDebug("acquisition failed", "kind", acquisition.Classify(err).String(), "err", err)
		s.writeJson(w, http.StatusInternalServerError, timetable.Matrix{})
		return
	}

	if matrix == nil {
		matrix = timetable.Matrix{}
	}
	s.writeJson(w, http.StatusOK, matrix.Normalize())
}
