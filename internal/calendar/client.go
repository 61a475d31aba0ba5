// Package calendar contains the HTTP client for the external calendar
// bridge, which fronts the office's Google Calendar.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
)

// Client implements scheduling.FreeBusySource and scheduling.EventCreator
// against the calendar bridge API.
type Client struct {
	baseURL    string
	apiKey     string
	calendarID string
	http       *http.Client
	log        *logger.Logger
}

type freeBusyResponse struct {
	Busy bool `json:"busy"`
}

type createEventRequest struct {
	CalendarID  string    `json:"calendarId"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
}

type createEventResponse struct {
	ID string `json:"id"`
}

// NewClient creates a calendar bridge client. Returns nil when no bridge is
// configured.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	if !cfg.IsCalendarEnabled() {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetCalendarURL(), "/"),
		apiKey:     cfg.GetCalendarAPIKey(),
		calendarID: cfg.GetCalendarID(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// IsBusy queries the bridge's free/busy endpoint for one interval.
func (c *Client) IsBusy(ctx context.Context, iv scheduling.Interval) (bool, error) {
	if c == nil {
		return false, nil
	}

	query := url.Values{}
	query.Set("calendarId", c.calendarID)
	query.Set("start", iv.Start.Format(time.RFC3339))
	query.Set("end", iv.End.Format(time.RFC3339))

	endpoint := fmt.Sprintf("%s/freebusy?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("freebusy request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("calendar bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode freebusy response: %w", err)
	}
	return parsed.Busy, nil
}

// CreateEvent books the interval in the external calendar.
func (c *Client) CreateEvent(ctx context.Context, iv scheduling.Interval, summary, description string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("calendar bridge not configured")
	}

	payload := createEventRequest{
		CalendarID:  c.calendarID,
		Start:       iv.Start,
		End:         iv.End,
		Summary:     summary,
		Description: description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/events", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create event request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("calendar bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode event response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("calendar bridge returned empty event id")
	}

	c.log.Info("calendar event created", "event_id", parsed.ID)
	return parsed.ID, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

var (
	_ scheduling.FreeBusySource = (*Client)(nil)
	_ scheduling.EventCreator   = (*Client)(nil)
)
