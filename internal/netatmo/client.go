// Package netatmo is the climate system client: home status, per-room
// setpoints and weekly schedules.
package netatmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"stove_coordination/internal/logger"
)

const DefaultBaseURL = "https://api.netatmo.com"

// API is the subset of the vendor API the coordination uses.
type API interface {
	GetHomeStatus(ctx context.Context, homeID string) (HomeStatus, error)
	SetRoomSetpoint(ctx context.Context, req SetpointRequest) error
	GetThermSchedules(ctx context.Context, homeID string) ([]ThermSchedule, error)
}

type Client struct {
	http    *http.Client
	baseURL string
	log     *logger.Logger
}

var _ API = (*Client)(nil)

// NewClient authenticates every request with tokens from ts.
func NewClient(baseURL string, ts oauth2.TokenSource, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.OrNop(log).Named("netatmo"),
	}
}

// TokenConfig holds the app credentials and the long-lived refresh token.
type TokenConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
}

// NewTokenSource returns a caching source that refreshes the access token
// when it expires.
func NewTokenSource(ctx context.Context, cfg TokenConfig) oauth2.TokenSource {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultBaseURL + "/oauth2/token"
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Scopes:       []string{"read_thermostat", "write_thermostat"},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
}

func (c *Client) GetHomeStatus(ctx context.Context, homeID string) (HomeStatus, error) {
	var res homeStatusResponse
	q := url.Values{"home_id": {homeID}}
	if err := c.do(ctx, http.MethodGet, "/api/homestatus?"+q.Encode(), nil, &res); err != nil {
		return HomeStatus{}, fmt.Errorf("get home status %s: %w", homeID, err)
	}
	return res.Body.Home, nil
}

func (c *Client) SetRoomSetpoint(ctx context.Context, req SetpointRequest) error {
	form := url.Values{
		"home_id": {req.HomeID},
		"room_id": {req.RoomID},
		"mode":    {req.Mode},
	}
	if req.Mode == ModeManual {
		form.Set("temp", strconv.FormatFloat(req.Temp, 'f', 1, 64))
	}
	if req.EndTime > 0 {
		form.Set("endtime", strconv.FormatInt(req.EndTime, 10))
	}
	if err := c.do(ctx, http.MethodPost, "/api/setroomthermpoint", form, nil); err != nil {
		return fmt.Errorf("set room %s setpoint: %w", req.RoomID, err)
	}
	return nil
}

func (c *Client) GetThermSchedules(ctx context.Context, homeID string) ([]ThermSchedule, error) {
	var res homesDataResponse
	q := url.Values{"home_id": {homeID}, "gateway_types": {"NAPlug"}}
	if err := c.do(ctx, http.MethodGet, "/api/homesdata?"+q.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("get schedules %s: %w", homeID, err)
	}
	for _, h := range res.Body.Homes {
		if h.ID == homeID {
			return h.ThermSchedules, nil
		}
	}
	return nil, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: token refresh: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb apiErrorBody
		_ = json.Unmarshal(raw, &eb)
		err := classify(resp.StatusCode, eb)
		c.log.Warnw("netatmo_request_failed", "method", method, "path", req.URL.Path, "status", resp.StatusCode, "error", err)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
