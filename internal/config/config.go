// Package config loads configs/config.yml, an optional .env file and
// WEATHER_* environment overrides into a typed Config.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"weather_station/internal/forecast"
	"weather_station/internal/logger"
	"weather_station/internal/ml"
	"weather_station/internal/service"
)

const envPrefix = "WEATHER"

type Config struct {
	HTTP      HTTPConfig           `mapstructure:"http"`
	DB        DBConfig             `mapstructure:"db"`
	Log       logger.Config        `mapstructure:"log"`
	DataDir   string               `mapstructure:"data_dir"`
	Auth      service.AuthConfig   `mapstructure:"auth"`
	ML        MLConfig             `mapstructure:"ml"`
	Forecast  forecast.Config      `mapstructure:"forecast"`
	Buffer    service.BufferConfig `mapstructure:"buffer"`
	Backup    BackupConfig         `mapstructure:"backup"`
	Retention RetentionConfig      `mapstructure:"retention"`
	Devices   DevicesConfig        `mapstructure:"devices"`
	MQTT      MQTTConfig           `mapstructure:"mqtt"`
	Firebase  FirebaseConfig       `mapstructure:"firebase"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// MLConfig extends the training thresholds with the auto-train switch.
type MLConfig struct {
	ml.Config `mapstructure:",squash"`

	AutoTrain bool `mapstructure:"auto_train"`
}

type BackupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Keep     int           `mapstructure:"keep"`
}

// RetentionConfig bounds the SQLite tables. Zero keep disables a target.
type RetentionConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Readings    int           `mapstructure:"readings"`
	Predictions int           `mapstructure:"predictions"`
}

type DevicesConfig struct {
	service.DeviceConfig `mapstructure:",squash"`

	PresenceInterval time.Duration `mapstructure:"presence_interval"`
}

type MQTTConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client_id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DataTopic       string        `mapstructure:"data_topic"`
	PredictionTopic string        `mapstructure:"prediction_topic"`
	QoS             byte          `mapstructure:"qos"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type FirebaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ModelDir is where model artifacts live.
func (c Config) ModelDir() string { return filepath.Join(c.DataDir, "models") }

// BackupDir is where backup snapshots live.
func (c Config) BackupDir() string { return filepath.Join(c.DataDir, "backups") }

// ServiceOptions maps the config onto service.Options.
func (c Config) ServiceOptions() service.Options {
	return service.Options{
		Auth:      c.Auth,
		Buffer:    c.Buffer,
		Devices:   c.Devices.DeviceConfig,
		AutoTrain: c.ML.AutoTrain,
	}
}

// Load reads <dir>/config.yml when present. A .env file in the working
// directory is loaded first so its values act as environment overrides.
func Load(dir string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	mlDefaults := ml.DefaultConfig()
	fcDefaults := forecast.DefaultConfig()

	v.SetDefault("http.port", "8080")
	v.SetDefault("db.path", "weather.db")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("data_dir", "data")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("ml.min_total_samples", mlDefaults.MinTotalSamples)
	v.SetDefault("ml.min_train_samples_per_class", mlDefaults.MinPerClass)
	v.SetDefault("ml.auto_force_threshold", mlDefaults.AutoForceThreshold)
	v.SetDefault("ml.synthetic_per_archetype", mlDefaults.SyntheticPerArchetype)
	v.SetDefault("ml.forest.trees", mlDefaults.Forest.Trees)
	v.SetDefault("ml.forest.seed", mlDefaults.Forest.Seed)
	v.SetDefault("ml.forest.max_features", mlDefaults.Forest.MaxFeatures)
	v.SetDefault("ml.auto_train", true)

	v.SetDefault("forecast.window", fcDefaults.Window)
	v.SetDefault("forecast.history_cap", fcDefaults.HistoryCap)
	v.SetDefault("forecast.max_trend_points", fcDefaults.MaxTrendPoints)
	v.SetDefault("forecast.rain_alert", fcDefaults.RainAlert)

	v.SetDefault("buffer.max_readings", 1000)
	v.SetDefault("buffer.max_predictions", 50)

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.interval", time.Hour)
	v.SetDefault("backup.keep", 10)

	v.SetDefault("retention.interval", 6*time.Hour)
	v.SetDefault("retention.readings", 100_000)
	v.SetDefault("retention.predictions", 10_000)

	v.SetDefault("devices.require_auth", false)
	v.SetDefault("devices.session_ttl", time.Hour)
	v.SetDefault("devices.allowed_drift", time.Minute)
	v.SetDefault("devices.offline_after", 15*time.Second)
	v.SetDefault("devices.presence_interval", 5*time.Second)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "weather-station-server")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.data_topic", "weather/+/data")
	v.SetDefault("mqtt.prediction_topic", "weather/{device_id}/prediction")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)

	v.SetDefault("firebase.enabled", false)
	v.SetDefault("firebase.url", "")
	v.SetDefault("firebase.auth_token", "")
	v.SetDefault("firebase.timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
}

func (c Config) validate() error {
	if c.ML.MinTotalSamples <= 0 || c.ML.MinPerClass <= 0 {
		return fmt.Errorf("ml thresholds must be positive (min_total_samples=%d, min_train_samples_per_class=%d)",
			c.ML.MinTotalSamples, c.ML.MinPerClass)
	}
	if c.Firebase.Enabled && c.Firebase.URL == "" {
		return errors.New("firebase.enabled requires firebase.url")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.enabled requires mqtt.broker")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}
