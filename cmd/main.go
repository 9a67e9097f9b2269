package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	_ "weather_station/docs"
	"weather_station/internal/config"
	"weather_station/internal/firebase"
	"weather_station/internal/forecast"
	"weather_station/internal/handlers"
	"weather_station/internal/logger"
	"weather_station/internal/metrics"
	"weather_station/internal/ml"
	"weather_station/internal/mqtt"
	"weather_station/internal/repository"
	"weather_station/internal/repository/db"
	"weather_station/internal/server"
	"weather_station/internal/service"
	"weather_station/internal/workers"
)

const shutdownTimeout = 10 * time.Second

// @title                       Weather Station API
// @version                     1.0
// @description                 ESP32 weather station ingestion, classification and forecasting service.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.Config{Level: logger.InfoLevel}).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log)
	defer func() { _ = log.Sync() }()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	conn, err := openDB(cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// inference core
	artifacts := repository.NewModelFiles(cfg.ModelDir())
	classifier := ml.NewClassifier()
	if err := classifier.Restore(artifacts); err != nil {
		if !errors.Is(err, ml.ErrNoModel) {
			log.Fatalw("failed to restore model", "dir", cfg.ModelDir(), "err", err)
		}
		log.Infow("no_saved_model", "dir", cfg.ModelDir())
	} else {
		log.Infow("model_restored", "dir", cfg.ModelDir())
	}
	metrics.SetModelTrained(classifier.Trained())

	hub := handlers.NewHub(log)
	mirrors, mqttClient, subscriber := buildMirrors(cfg, log)

	repos := repository.NewRepository(conn)
	services := service.NewService(service.Dependencies{
		Repos:        repos,
		Artifacts:    artifacts,
		Backups:      repository.NewBackupFiles(cfg.BackupDir(), cfg.Backup.Keep),
		Classifier:   classifier,
		Orchestrator: ml.NewOrchestrator(cfg.ML.Config, artifacts, classifier),
		Forecast:     forecast.NewEngine(cfg.Forecast),
		Notifier:     hub,
		Mirrors:      mirrors,
		Log:          log,
	}, cfg.ServiceOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.Warm(ctx); err != nil {
		log.Fatalw("failed to load buffers", "err", err)
	}
	log.Infow("buffers_loaded", "readings", services.Readings.Count())

	if mqttClient != nil {
		subscriber.Store(mqtt.NewSubscriber(services.Ingestion, cfg.MQTT.DataTopic, cfg.MQTT.QoS, log))
		subscriber.Load().Subscribe(mqttClient)
	}

	scheduler := startWorkers(ctx, cfg, services, repos, hub, log)

	srv := &server.Server{}
	apiHandler := handlers.NewHandler(services, hub, log)
	runHTTPServer(srv, cfg.HTTP.Port, apiHandler, log)

	waitForShutdown(cancel, scheduler, mqttClient, srv, log)
}

// openDB initializes the SQLite database at path.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "weather.db")
		path = "weather.db"
	}
	return db.InitDB(path)
}

// buildMirrors connects the optional Firebase and MQTT sinks. The subscriber
// pointer is filled once the service layer exists; until then reconnects
// only log.
func buildMirrors(cfg config.Config, log *logger.Logger) ([]service.Mirror, paho.Client, *atomic.Pointer[mqtt.Subscriber]) {
	var mirrors []service.Mirror
	sub := &atomic.Pointer[mqtt.Subscriber]{}

	if cfg.Firebase.Enabled {
		fb := firebase.NewClient(firebase.Config{
			URL:       cfg.Firebase.URL,
			AuthToken: cfg.Firebase.AuthToken,
			Timeout:   cfg.Firebase.Timeout,
		})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Firebase.Timeout)
		if err := fb.Ping(ctx); err != nil {
			log.Warnw("firebase_unreachable", "url", cfg.Firebase.URL, "err", err)
		}
		cancel()
		mirrors = append(mirrors, fb)
	}

	if !cfg.MQTT.Enabled {
		return mirrors, nil, sub
	}
	client, err := mqtt.Connect(mqtt.ClientConfig{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
	}, log, func(c paho.Client) {
		if s := sub.Load(); s != nil {
			s.Subscribe(c)
		}
	})
	if err != nil {
		log.Errorw("mqtt_disabled", "err", err)
		return mirrors, nil, sub
	}
	mirrors = append(mirrors, mqtt.NewPublisher(client, cfg.MQTT.PredictionTopic, cfg.MQTT.QoS))
	return mirrors, client, sub
}

func startWorkers(ctx context.Context, cfg config.Config, services *service.Service, repos *repository.Repository, hub *handlers.Hub, log *logger.Logger) *workers.Scheduler {
	scheduler := workers.NewScheduler(log)
	scheduler.RegisterWorker(workers.NewBackupWorker(services.Backup, cfg.Backup.Interval, cfg.Backup.Enabled, log))

	var targets []workers.RetentionTarget
	if cfg.Retention.Readings > 0 {
		targets = append(targets, workers.RetentionTarget{Name: "readings", Repo: repos.Readings, Keep: cfg.Retention.Readings})
	}
	if cfg.Retention.Predictions > 0 {
		targets = append(targets, workers.RetentionTarget{Name: "predictions", Repo: repos.Predictions, Keep: cfg.Retention.Predictions})
	}
	scheduler.RegisterWorker(workers.NewRetentionWorker(cfg.Retention.Interval, log, targets...))
	scheduler.RegisterWorker(workers.NewPresenceWorker(services.Monitoring, hub, cfg.Devices.PresenceInterval, log))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalw("failed to start workers", "err", err)
	}
	return scheduler
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, scheduler *workers.Scheduler, mqttClient paho.Client, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	if err := scheduler.Stop(); err != nil {
		log.Warnw("worker_stop_failed", "err", err)
	}
	if mqttClient != nil {
		mqtt.Close(mqttClient)
	}
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
