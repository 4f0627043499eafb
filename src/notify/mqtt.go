package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"battery-observer/src/helpers"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publisher is the part of mqtt.Client the notifier needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes alerts to a broker topic at QoS 0.
type MQTTNotifier struct {
	Topic  string
	Title  string
	Logger *logger.Logger

	client publisher
	now    func() time.Time
}

type alertPayload struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// -----------------------------------------------------------------------------

// NewMQTTNotifier connects to the broker. The client reconnects on its own
// after the initial connection.
func NewMQTTNotifier(cfg models.MMQTTConfig, title string, log *logger.Logger) (*MQTTNotifier, mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, nil, helpers.NewConnectionError(fmt.Sprintf("mqtt connect %s", cfg.Broker), fmt.Errorf("timeout"))
	}
	if err := token.Error(); err != nil {
		return nil, nil, helpers.NewConnectionError(fmt.Sprintf("mqtt connect %s", cfg.Broker), err)
	}

	return newMQTTNotifier(client, cfg.Topic, title, log), client, nil
}

// -----------------------------------------------------------------------------

func newMQTTNotifier(client publisher, topic, title string, log *logger.Logger) *MQTTNotifier {
	if log == nil {
		log = logger.NewLogger(nil, "MQTTNotifier")
	}
	return &MQTTNotifier{
		Topic:  topic,
		Title:  title,
		Logger: log,
		client: client,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

func (n *MQTTNotifier) Name() string {
	return "mqtt"
}

// -----------------------------------------------------------------------------

// Notify publishes message and waits for the local send or ctx, whichever
// comes first.
func (n *MQTTNotifier) Notify(ctx context.Context, message string) error {
	payload, err := json.Marshal(alertPayload{Title: n.Title, Message: message, SentAt: n.now().UTC()})
	if err != nil {
		return err
	}

	token := n.client.Publish(n.Topic, 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return helpers.NewNotificationError(fmt.Sprintf("publish to %s", n.Topic), err)
		}
		n.Logger.Debug("Published alert to %s", n.Topic)
		return nil
	case <-ctx.Done():
		return helpers.NewNotificationError(fmt.Sprintf("publish to %s", n.Topic), ctx.Err())
	}
}
