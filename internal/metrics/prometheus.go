package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	ReadingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_readings_ingested_total",
			Help: "Sensor readings accepted, by transport",
		},
		[]string{"source"}, // http, mqtt
	)

	ReadingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_readings_rejected_total",
			Help: "Sensor payloads rejected during validation",
		},
		[]string{"source"},
	)

	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_predictions_total",
			Help: "Classifier predictions by condition",
		},
		[]string{"condition"},
	)

	// Training metrics
	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_training_runs_total",
			Help: "Training runs by terminal status",
		},
		[]string{"status"},
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weather_training_duration_seconds",
			Help:    "Wall time of a training run",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ModelTrained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_model_trained",
			Help: "1 when a classifier is loaded, 0 otherwise",
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"},
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_worker_duration_seconds",
			Help:    "Worker execution duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "weather_worker_last_run_timestamp",
			Help: "Timestamp of last worker run",
		},
		[]string{"worker"},
	)

	// Realtime metrics
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_websocket_clients",
			Help: "Connected dashboard websocket clients",
		},
	)

	MirrorPublish = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_mirror_publish_total",
			Help: "Records pushed to external mirrors",
		},
		[]string{"target", "status"}, // firebase|mqtt, success|error
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReadingsIngested,
			ReadingsRejected,
			Predictions,
			TrainingRuns,
			TrainingDuration,
			ModelTrained,
			WorkerExecutions,
			WorkerDuration,
			WorkerLastRun,
			WebSocketClients,
			MirrorPublish,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, statusOf(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordTraining records a finished training run.
func RecordTraining(status string, duration time.Duration, trained bool) {
	TrainingRuns.WithLabelValues(status).Inc()
	TrainingDuration.Observe(duration.Seconds())
	SetModelTrained(trained)
}

func SetModelTrained(trained bool) {
	if trained {
		ModelTrained.Set(1)
		return
	}
	ModelTrained.Set(0)
}

// RecordMirror records one push to an external mirror.
func RecordMirror(target string, err error) {
	MirrorPublish.WithLabelValues(target, statusOf(err)).Inc()
}
