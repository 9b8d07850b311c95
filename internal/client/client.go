package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/timetable"

	"github.com/go-resty/resty/v2"
)

// Client acquires schedules through a remote schedule server instead of a
// local browser.
type Client struct {
	http *resty.Client
}

var _ acquisition.Acquirer = Client{}

type errorResponse struct {
	Error string `json:"error"`
}

func NewClient(baseUrl, accessToken string, tel telemetry.API) Client {
	client := resty.New().
		SetBaseURL(baseUrl).
		SetTimeout(2 * time.Minute).
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("client", tel))
	return Client{http: client}
}

func (c Client) AcquireSchedule(ctx context.Context, creds timetable.Credentials) (timetable.Matrix, error) {
	err := creds.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", acquisition.ErrInvalidCredentials, err)
	}

	var matrix timetable.Matrix
	var failure errorResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&matrix).
		SetError(&failure).
		Post("/api/schedule")
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", acquisition.ErrTimeoutOrMarkupChanged, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", acquisition.ErrUnexpected, err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
		if matrix == nil {
			return timetable.Matrix{}, nil
		}
		return matrix.Normalize(), nil
	case http.StatusUnauthorized:
		// the access token middleware answers 401 too, only the json body
		// of the schedule handler means the portal rejected the student.
		if failure.Error == acquisition.ErrInvalidCredentials.Error() {
			return nil, acquisition.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: schedule server rejected the access token", acquisition.ErrUnexpected)
	}
	return nil, fmt.Errorf("%w: schedule server answered %s", acquisition.ErrUnexpected, res.Status())
}
