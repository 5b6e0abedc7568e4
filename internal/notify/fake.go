package notify

import (
	"context"
	"sync"

	"stove_coordination/internal/logger"
)

// Sent is one recorded alert.
type Sent struct {
	UserID  string
	Kind    string
	Payload map[string]any
}

// FakeNotifier records alerts for test assertions.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []Sent

	// Err, if set, is returned by Trigger and nothing is recorded.
	Err    error
	Closed bool
}

var _ Notifier = (*FakeNotifier)(nil)

func NewFakeNotifier() *FakeNotifier { return &FakeNotifier{} }

func (f *FakeNotifier) Trigger(_ context.Context, userID, kind string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, Sent{UserID: userID, Kind: kind, Payload: payload})
	return nil
}

func (f *FakeNotifier) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

func (f *FakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// LogNotifier only logs alerts; used when no broker is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log).Named("notify")}
}

func (n *LogNotifier) Trigger(_ context.Context, userID, kind string, payload map[string]any) error {
	n.log.Infow("notification", "user_id", userID, "kind", kind, "payload", payload)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
