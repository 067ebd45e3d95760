// Package events publishes scan lifecycle events to an MQTT broker so farm
// dashboards and downstream consumers can react to completed submissions.
// Delivery is best-effort, with no exactly-once guarantee.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

// ScanEvent is the payload published when a submission completes.
type ScanEvent struct {
	ScanID             uint      `json:"scan_id"`
	ImageURL           string    `json:"image_url"`
	HeadlineLabel      string    `json:"headline_label"`
	HeadlineConfidence float64   `json:"headline_confidence"`
	SubmitterID        string    `json:"submitter_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Publisher is the contract the pipeline publishes completed scans through.
type Publisher interface {
	PublishScan(ctx context.Context, event ScanEvent) error
	Disconnect()
}

// Config holds the configuration for the MQTT publisher.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// client implements Publisher over paho MQTT.
type client struct {
	config         Config
	internalClient mqtt.Client
	mu             sync.Mutex
	logger         *slog.Logger
}

// NewPublisher creates an MQTT publisher from settings.
func NewPublisher(settings *conf.Settings) Publisher {
	return &client{
		config: Config{
			Broker:   settings.Realtime.MQTT.Broker,
			ClientID: settings.Main.Name,
			Topic:    settings.Realtime.MQTT.Topic,
			Username: settings.Realtime.MQTT.Username,
			Password: settings.Realtime.MQTT.Password,
			Retain:   settings.Realtime.MQTT.Retain,
		},
		logger: logging.ForService("events"),
	}
}

// connect establishes the broker connection if needed.
func (c *client) connect() error {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	c.logger.Info("connected to MQTT broker", "broker", c.config.Broker)
	return nil
}

// PublishScan sends a scan-created event to the configured topic.
func (c *client) PublishScan(ctx context.Context, event ScanEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return publishError(err, c.config.Broker)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return publishError(fmt.Errorf("encoding scan event: %w", err), c.config.Broker)
	}

	token := c.internalClient.Publish(c.config.Topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return publishError(fmt.Errorf("publish timeout"), c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return publishError(err, c.config.Broker)
	}

	c.logger.Debug("scan event published",
		"topic", c.config.Topic,
		"scan_id", event.ScanID)

	return nil
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
}

func publishError(err error, broker string) error {
	return errors.New(err).
		Category(errors.CategoryMQTTPublish).
		Component("events").
		NetworkContext(broker, 0).
		Build()
}
