package notify

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTNotifier publishes alerts to an MQTT broker, one topic per user and
// kind.
type MQTTNotifier struct {
	client paho.Client
	prefix string
	now    func() time.Time
}

var _ Notifier = (*MQTTNotifier)(nil)

func NewMQTTNotifier(broker, clientID, prefix string) (*MQTTNotifier, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &MQTTNotifier{client: client, prefix: prefix, now: time.Now}, nil
}

func (n *MQTTNotifier) Trigger(ctx context.Context, userID, kind string, payload map[string]any) error {
	msg, err := FormatMessage(n.now(), userID, kind, payload)
	if err != nil {
		return fmt.Errorf("format message: %w", err)
	}

	// QoS 1: alerts should survive a broker reconnect.
	token := n.client.Publish(Topic(n.prefix, userID, kind), 1, false, msg)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (n *MQTTNotifier) IsConnected() bool {
	return n.client.IsConnected()
}

func (n *MQTTNotifier) Close() error {
	n.client.Disconnect(1000)
	return nil
}
