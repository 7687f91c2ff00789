package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/service"
	"github.com/wricardo/seatsession/reservation/session"
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d", e.Status)
	}
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Client is a thin REST client for the reservation API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, venueID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"venue_id": venueID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) ToggleSeat(ctx context.Context, id string, seat int) (*session.View, error) {
	var view session.View
	path := fmt.Sprintf("/api/sessions/%s/seats/%d/toggle", id, seat)
	if err := c.do(ctx, http.MethodPost, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) UpdatePassenger(ctx context.Context, id string, rec passenger.Record) (*session.View, error) {
	var view session.View
	path := fmt.Sprintf("/api/sessions/%s/passengers/%d", id, rec.Seat)
	if err := c.do(ctx, http.MethodPut, path, rec, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Submit(ctx context.Context, id string) (*session.SubmitResult, error) {
	var result session.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+id+"/submit", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil)
}
