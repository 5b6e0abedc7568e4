// Package notify delivers user-facing coordination alerts.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const DefaultTopicPrefix = "stove_coordination/notifications"

// Notifier sends one alert. Implementations must be safe for concurrent use.
type Notifier interface {
	Trigger(ctx context.Context, userID, kind string, payload map[string]any) error
	Close() error
}

// Message is the JSON document published for every alert.
type Message struct {
	Timestamp string         `json:"timestamp"`
	UserID    string         `json:"userId"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func FormatMessage(now time.Time, userID, kind string, payload map[string]any) ([]byte, error) {
	return json.Marshal(Message{
		Timestamp: now.UTC().Format(time.RFC3339),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
	})
}

// Topic is {prefix}/{userId}/{kind}.
func Topic(prefix, userID, kind string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + userID + "/" + kind
}
