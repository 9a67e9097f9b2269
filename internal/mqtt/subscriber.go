package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"weather_station/internal/logger"
	"weather_station/internal/service"
)

const ingestTimeout = 10 * time.Second

// Subscriber feeds station payloads from the broker into the ingestion service.
type Subscriber struct {
	ingest service.Ingestion
	topic  string
	qos    byte
	log    *logger.Logger
}

func NewSubscriber(ingest service.Ingestion, topic string, qos byte, log *logger.Logger) *Subscriber {
	return &Subscriber{ingest: ingest, topic: topic, qos: qos, log: log}
}

// Subscribe registers the data topic on c. Safe to call on every reconnect.
func (s *Subscriber) Subscribe(c paho.Client) {
	token := c.Subscribe(s.topic, s.qos, s.handle)
	if token.Wait() && token.Error() != nil {
		s.log.Errorw("mqtt_subscribe_failed", "topic", s.topic, "err", token.Error())
		return
	}
	s.log.Infow("mqtt_subscribed", "topic", s.topic, "qos", s.qos)
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	deviceID := deviceFromTopic(msg.Topic())

	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil || payload == nil {
		s.log.Warnw("mqtt_payload_not_json", "topic", msg.Topic(), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	res, err := s.ingest.Ingest(ctx, service.IngestInput{
		Source:   "mqtt",
		DeviceID: deviceID,
		Payload:  payload,
	})
	if err != nil {
		s.log.Warnw("mqtt_ingest_rejected", "topic", msg.Topic(), "device_id", deviceID, "err", err)
		return
	}
	s.log.Debugw("mqtt_reading_ingested", "device_id", res.Reading.DeviceID, "condition", res.Prediction.AIPrediction.Condition)
}

// deviceFromTopic returns the second level of weather/<device_id>/data.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
