// Package calendar books visits on a Google Calendar through the REST API
// with a service-account token.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"dispatch_bot_backend/platform/config"

	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	scope          = "https://www.googleapis.com/auth/calendar.events"
)

// Event is a visit to book.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Client talks to one calendar.
type Client struct {
	http       *http.Client
	baseURL    string
	calendarID string
	timeZone   string
}

// New builds a client authenticated with the service-account key file.
func New(ctx context.Context, cfg config.CalendarConfig) (*Client, error) {
	key, err := os.ReadFile(cfg.GetCalendarCredentialsFile())
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(key, scope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	httpClient := jwtCfg.Client(ctx)
	httpClient.Timeout = 15 * time.Second
	return NewWithHTTP(httpClient, defaultBaseURL, cfg.GetCalendarID(), cfg.GetCalendarTimeZone()), nil
}

// NewWithHTTP builds a client over an already authenticated HTTP client.
func NewWithHTTP(httpClient *http.Client, baseURL, calendarID, timeZone string) *Client {
	return &Client{http: httpClient, baseURL: baseURL, calendarID: calendarID, timeZone: timeZone}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventBody struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

func (c *Client) eventsURL() string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
}

// CreateEvent inserts ev and returns the calendar's event id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(eventBody{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       eventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: c.timeZone},
		End:         eventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: c.timeZone},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("create calendar event: status %d: %s", resp.StatusCode, msg)
	}

	var created eventBody
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode calendar event: %w", err)
	}
	return created.ID, nil
}

// DeleteEvent removes an event. Events already gone are not an error.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventsURL()+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil
	case resp.StatusCode >= 300:
		return fmt.Errorf("delete calendar event: status %d", resp.StatusCode)
	}
	return nil
}
