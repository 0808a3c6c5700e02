package telematics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the telematics provider. Every operation logs in first;
// the provider invalidates tokens aggressively, so nothing is cached.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient constructs a provider client.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, err := c.post(ctx, "/login", map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", err
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode login response: %v", ErrUpstream, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", ErrUpstream)
	}
	return resp.Token, nil
}

// Vehicle is one vehicle known to the provider.
type Vehicle struct {
	VehicleID string `json:"vehicle_id"`
	DeviceID  string `json:"device_id"`
}

// ListVehicles returns every vehicle registered with the provider.
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	token, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, "/vehicles", map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode vehicles response: %v", ErrUpstream, err)
	}
	return resp.Vehicles, nil
}

// DeviceState is the raw provider reading for one vehicle.
type DeviceState struct {
	VehicleID  string    `json:"vehicle_id"`
	DeviceID   string    `json:"device_id"`
	Battery    float64   `json:"battery"`
	OdometerKM float64   `json:"odometer_km"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	ReportedAt time.Time `json:"reported_at"`
}

// FetchState returns the current reading for one vehicle.
func (c *Client) FetchState(ctx context.Context, vehicleID string) (DeviceState, []byte, error) {
	token, err := c.login(ctx)
	if err != nil {
		return DeviceState{}, nil, err
	}
	body, err := c.post(ctx, "/state", map[string]string{"token": token, "vehicle_id": vehicleID})
	if err != nil {
		return DeviceState{}, nil, err
	}
	var state DeviceState
	if err := json.Unmarshal(body, &state); err != nil {
		return DeviceState{}, body, fmt.Errorf("%w: decode state response: %v", ErrUpstream, err)
	}
	return state, body, nil
}

// FetchHistory returns readings for all vehicles after the cursor, capped at
// limit rows, oldest first.
func (c *Client) FetchHistory(ctx context.Context, after time.Time, limit int) ([]DeviceState, []byte, error) {
	token, err := c.login(ctx)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.post(ctx, "/history", map[string]any{
		"token": token,
		"after": after.UTC().Format(time.RFC3339),
		"limit": limit,
	})
	if err != nil {
		return nil, nil, err
	}
	var resp struct {
		Readings []DeviceState `json:"readings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("%w: decode history response: %v", ErrUpstream, err)
	}
	return resp.Readings, body, nil
}

// post sends one JSON request. The provider answers every route with POST.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUpstream, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	}
	return body, nil
}
