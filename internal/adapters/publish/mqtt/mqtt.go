// Package mqtt publishes pad activity to an MQTT broker: button transitions
// and committed thresholds, both retained so late subscribers see the
// current state.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/padcal/internal/domain/threshold"
	"github.com/okian/padcal/internal/domain/types"
)

const (
	// defaults
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "padcal"
	DefaultTopic    = "padcal"

	buttonTopicFmt    = "%s/button/%d"
	thresholdTopicFmt = "%s/sensor/%d/thresholds"
	disconnectQuiesce = 250
	publishTimeout    = 2 * time.Second
)

// Config selects the broker.
type Config struct {
	Server   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Publisher sends pad events to MQTT.
type Publisher struct {
	client paho.Client
	base   string
}

// New connects to the broker.
func New(cfg Config) (*Publisher, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID).SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return NewWithClient(client, cfg.Topic), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client paho.Client, topic string) *Publisher {
	topic = strings.TrimSuffix(topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: client, base: topic}
}

type buttonPayload struct {
	Button  int       `json:"button"`
	Pressed bool      `json:"pressed"`
	TS      time.Time `json:"ts"`
}

type thresholdPayload struct {
	Sensor            int       `json:"sensor"`
	Activation        float64   `json:"activation"`
	Release           float64   `json:"release"`
	ActivationPercent int       `json:"activation_percent"`
	ReleasePercent    int       `json:"release_percent"`
	TS                time.Time `json:"ts"`
}

// PublishButton reports a button's new pressed state.
func (p *Publisher) PublishButton(ctx context.Context, button int, pressed bool) error {
	return p.publish(ctx, fmt.Sprintf(buttonTopicFmt, p.base, button),
		buttonPayload{Button: button, Pressed: pressed, TS: time.Now().UTC()})
}

// PublishThresholds reports a sensor's committed thresholds.
func (p *Publisher) PublishThresholds(ctx context.Context, sensor int, pair threshold.Pair) error {
	return p.publish(ctx, fmt.Sprintf(thresholdTopicFmt, p.base, sensor), thresholdPayload{
		Sensor:            sensor,
		Activation:        pair.Activation,
		Release:           pair.Release,
		ActivationPercent: types.Percent(pair.Activation),
		ReleasePercent:    types.Percent(pair.Release),
		TS:                time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	token := p.client.Publish(topic, 0, true, b)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
