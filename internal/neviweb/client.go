package neviweb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://neviweb.com/api"
	defaultTimeout = 30 * time.Second
)

// Config for the Neviweb client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// Networks selects locations by name. Empty selects the first location.
	Networks []string
	Timeout  time.Duration
}

// Session is the authenticated Neviweb session.
type Session struct {
	AccountID int    `json:"account_id"`
	ID        string `json:"id"`
}

// SessionStore persists the session across restarts so a restart does not
// consume another one of the account's limited sessions.
type SessionStore interface {
	LoadSession() (Session, error)
	SaveSession(Session) error
}

// Client talks to the Neviweb REST API.
type Client struct {
	baseURL  string
	username string
	password string
	networks []string

	httpClient *http.Client
	store      SessionStore
	logger     *slog.Logger

	mu      sync.Mutex
	session Session
}

// NewClient creates a client. store may be nil.
func NewClient(cfg Config, store SessionStore, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		networks:   cfg.Networks,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		logger:     logger.With("component", "neviweb"),
	}
	if store != nil {
		if s, err := store.LoadSession(); err == nil && s.ID != "" {
			c.session = s
		}
	}
	return c
}

// Login authenticates unless a session is already held.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	has := c.session.ID != ""
	c.mu.Unlock()
	if has {
		return nil
	}
	return c.login(ctx)
}

// Reconnect drops the current session and logs in again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
	return c.login(ctx)
}

// AccountID returns the account of the current session.
func (c *Client) AccountID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccountID
}

func (c *Client) login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]any{
		"username":      c.username,
		"password":      c.password,
		"interface":     "neviweb",
		"stayConnected": 1,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var resp struct {
		Session string `json:"session"`
		Account struct {
			ID int `json:"id"`
		} `json:"account"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("login: decode: %w", err)
	}
	if resp.Session == "" {
		return errors.New("login: no session in response")
	}

	s := Session{AccountID: resp.Account.ID, ID: resp.Session}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.logger.Info("logged in", "account", s.AccountID)

	if c.store != nil {
		if err := c.store.SaveSession(s); err != nil {
			c.logger.Warn("failed to persist session", "err", err)
		}
	}
	return nil
}

// Locations returns the networks selected by the configuration.
func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("account$id", strconv.Itoa(c.AccountID()))

	var all []Location
	if err := c.getJSON(ctx, "/locations?"+q.Encode(), &all); err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	return selectLocations(all, c.networks)
}

func selectLocations(all []Location, names []string) ([]Location, error) {
	if len(all) == 0 {
		return nil, errors.New("no Neviweb location on this account")
	}
	if len(names) == 0 {
		return all[:1], nil
	}
	var out []Location
	for _, name := range names {
		found := false
		for _, loc := range all {
			if strings.EqualFold(loc.Name, name) {
				out = append(out, loc)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("network %q not found", name)
		}
	}
	return out, nil
}

// Devices lists the devices of one location.
func (c *Client) Devices(ctx context.Context, locationID int) ([]DeviceInfo, error) {
	q := url.Values{}
	q.Set("location$id", strconv.Itoa(locationID))
	var devices []DeviceInfo
	if err := c.getJSON(ctx, "/devices?"+q.Encode(), &devices); err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	return devices, nil
}

// GetDeviceAttributes reads the named attributes of a device. A partial
// failure is reported in-band through Attributes.ErrorCode.
func (c *Client) GetDeviceAttributes(ctx context.Context, id int, names []string) (Attributes, error) {
	q := url.Values{}
	q.Set("attributes", strings.Join(names, ","))
	var attrs Attributes
	if err := c.getJSON(ctx, fmt.Sprintf("/device/%d/attribute?%s", id, q.Encode()), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// HourlyStats returns the hourly energy history, newest first.
func (c *Client) HourlyStats(ctx context.Context, id int) ([]StatEntry, error) {
	return c.stats(ctx, id, "hourly")
}

// DailyStats returns the daily energy history, newest first.
func (c *Client) DailyStats(ctx context.Context, id int) ([]StatEntry, error) {
	return c.stats(ctx, id, "daily")
}

// MonthlyStats returns the monthly energy history, newest first.
func (c *Client) MonthlyStats(ctx context.Context, id int) ([]StatEntry, error) {
	return c.stats(ctx, id, "monthly")
}

func (c *Client) stats(ctx context.Context, id int, period string) ([]StatEntry, error) {
	var resp struct {
		Values []StatEntry `json:"values"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/device/%d/energy/%s", id, period), &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// SensorError returns the errorCodeSet1 map of a ZigBee thermostat.
func (c *Client) SensorError(ctx context.Context, id int) (map[string]any, error) {
	attrs, err := c.GetDeviceAttributes(ctx, id, []string{"errorCodeSet1"})
	if err != nil {
		return nil, err
	}
	raw, ok := attrs["errorCodeSet1"]
	if !ok {
		return nil, nil
	}
	var codes map[string]any
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, fmt.Errorf("errorCodeSet1: %w", err)
	}
	return codes, nil
}

// SetAttributes writes attribute values on a device.
func (c *Client) SetAttributes(ctx context.Context, id int, values map[string]any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	c.logger.Debug("set attributes", "device", id, "values", string(payload))
	_, err = c.request(ctx, http.MethodPut, fmt.Sprintf("/device/%d/attribute", id), payload)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// request sends an authenticated request. A session Neviweb rejects, such
// as one saved by a previous run, is replaced by a fresh login and the
// request is sent once more.
func (c *Client) request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	data, err := c.send(ctx, method, path, payload)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !sessionRejected(apiErr.Code) {
		return data, err
	}
	c.logger.Info("session rejected, logging in again", "code", apiErr.Code)
	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, payload)
}

func sessionRejected(code string) bool {
	return code == CodeSessionExpired || code == CodeSessionLimit
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	req.Header.Set("Session-Id", c.session.ID)
	c.mu.Unlock()
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if apiErr := apiError(data); apiErr != nil {
		return nil, apiErr
	}
	if resp.StatusCode >= 300 {
		return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
