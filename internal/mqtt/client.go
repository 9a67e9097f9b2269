// Package mqtt connects the station server to an MQTT broker: stations
// publish readings on weather/<device_id>/data and the server publishes
// prediction records back on weather/<device_id>/prediction.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"weather_station/internal/logger"
)

const (
	keepAlive   = 60 * time.Second
	pingTimeout = 10 * time.Second
	quiesceMs   = 250
)

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Connect dials the broker with auto-reconnect enabled. onConnect runs after
// every (re)connect and is where subscriptions are (re)established.
func Connect(cfg ClientConfig, log *logger.Logger, onConnect func(paho.Client)) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(pingTimeout)
	// handlers call into the service layer, which may publish in turn
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker)
		if onConnect != nil {
			onConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warnw("mqtt_connection_lost", "broker", cfg.Broker, "err", err)
	})

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// Close disconnects, giving in-flight work a short grace period.
func Close(c paho.Client) {
	c.Disconnect(quiesceMs)
}
