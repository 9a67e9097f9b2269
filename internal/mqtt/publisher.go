package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"weather_station/internal/models"
)

const devicePlaceholder = "{device_id}"

// Publisher mirrors prediction records to weather/<device_id>/prediction.
// It implements service.PredictionPublisher only, so readings that arrived
// over MQTT are never echoed back to the broker.
type Publisher struct {
	client  paho.Client
	pattern string
	qos     byte
}

func NewPublisher(client paho.Client, pattern string, qos byte) *Publisher {
	return &Publisher{client: client, pattern: pattern, qos: qos}
}

func (p *Publisher) Name() string { return "mqtt" }

func (p *Publisher) PublishPrediction(ctx context.Context, rec models.PredictionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	topic := strings.ReplaceAll(p.pattern, devicePlaceholder, rec.DeviceID)

	token := p.client.Publish(topic, p.qos, false, body)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}
