// Package stove polls the pellet stove cloud for its current status.
package stove

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable wraps every failed status poll.
var ErrUnavailable = errors.New("stove: status unavailable")

// Status strings meaning the stove is producing heat or about to.
var onStatuses = map[string]struct{}{
	"ON":         {},
	"START":      {},
	"IGNITION":   {},
	"WORK":       {},
	"MODULATION": {},
}

type Status struct {
	Status    string `json:"status"`
	ErrorCode int    `json:"errorCode"`
}

// IsOn maps a vendor status to the coordination's ON/OFF view. Any
// non-zero error code counts as OFF.
func IsOn(s Status) bool {
	if s.ErrorCode != 0 {
		return false
	}
	_, ok := onStatuses[strings.ToUpper(strings.TrimSpace(s.Status))]
	return ok
}

type Poller interface {
	Status(ctx context.Context, device string) (Status, error)
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

var _ Poller = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) Status(ctx context.Context, device string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/devices/"+url.PathEscape(device)+"/status", nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	var s Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Status{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return s, nil
}
