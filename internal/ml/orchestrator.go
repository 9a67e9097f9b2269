package ml

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"weather_station/internal/models"
)

var (
	ErrTrainingInProgress  = errors.New("training already in progress")
	ErrDataTooSmall        = errors.New("not enough real samples to train")
	ErrInsufficientVariety = errors.New("real samples contain a single label")
)

const (
	warnMinorClass     = "a class has fewer than 2 samples; evaluation is not representative"
	warnTestDistrib    = "test partition lacks label variety (classes with fewer than 2 samples); metrics are not representative"
	warnSyntheticTrain = "synthetic archetype samples were added to the training partition"
)

// Config holds training thresholds.
type Config struct {
	MinTotalSamples       int          `mapstructure:"min_total_samples"`
	MinPerClass           int          `mapstructure:"min_train_samples_per_class"`
	AutoForceThreshold    int          `mapstructure:"auto_force_threshold"`
	SyntheticPerArchetype int          `mapstructure:"synthetic_per_archetype"`
	Forest                ForestConfig `mapstructure:"forest"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinTotalSamples:       50,
		MinPerClass:           10,
		AutoForceThreshold:    100,
		SyntheticPerArchetype: 3,
		Forest:                DefaultForestConfig(),
	}
}

// Orchestrator runs the training pipeline. At most one run executes at a
// time; a second trigger gets ErrTrainingInProgress.
type Orchestrator struct {
	cfg        Config
	store      ArtifactStore
	classifier *Classifier

	now  func() time.Time
	seed func() uint64

	running atomic.Bool

	mu     sync.RWMutex
	last   *models.TrainingOutcome
	report *models.EvaluationReport
}

func NewOrchestrator(cfg Config, store ArtifactStore, classifier *Classifier) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		now:        func() time.Time { return time.Now().UTC() },
		seed:       func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Config returns the thresholds the orchestrator was built with.
func (o *Orchestrator) Config() Config { return o.cfg }

// Running reports whether a training run is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// LastOutcome returns the outcome of the most recent finished run, if any.
func (o *Orchestrator) LastOutcome() *models.TrainingOutcome {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	cp := *o.last
	return &cp
}

// LastReport returns the evaluation report of the most recent run that got
// far enough to produce one.
func (o *Orchestrator) LastReport() *models.EvaluationReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.report
}

// Train runs the pipeline synchronously on a snapshot of readings.
func (o *Orchestrator) Train(readings []models.SensorReading, force bool) (models.TrainingOutcome, error) {
	if !o.running.CompareAndSwap(false, true) {
		return models.TrainingOutcome{}, ErrTrainingInProgress
	}
	defer o.running.Store(false)
	return o.runGuarded(readings, force)
}

// Start acquires the guard and runs the pipeline in a new goroutine, calling
// done (if non-nil) with the outcome. It returns ErrTrainingInProgress
// without starting anything when a run is already active.
func (o *Orchestrator) Start(readings []models.SensorReading, force bool, done func(models.TrainingOutcome, error)) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrTrainingInProgress
	}
	snapshot := make([]models.SensorReading, len(readings))
	copy(snapshot, readings)
	go func() {
		defer o.running.Store(false)
		out, err := o.runGuarded(snapshot, force)
		if done != nil {
			done(out, err)
		}
	}()
	return nil
}

func (o *Orchestrator) runGuarded(readings []models.SensorReading, force bool) (out models.TrainingOutcome, err error) {
	started := o.now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("training pipeline panic: %v", rec)
			out = models.TrainingOutcome{Status: models.TrainingFailed, Message: err.Error(), StartedAt: started}
		}
		out.FinishedAt = o.now()
		o.mu.Lock()
		o.last = &out
		// only a persisted model's report replaces the previous one
		if out.Status == models.TrainingDone && out.Report != nil {
			o.report = out.Report
		}
		o.mu.Unlock()
	}()
	out, err = o.run(readings, force)
	out.StartedAt = started
	return out, err
}

func (o *Orchestrator) run(readings []models.SensorReading, force bool) (models.TrainingOutcome, error) {
	n := len(readings)
	if n < o.cfg.MinTotalSamples {
		return models.TrainingOutcome{
			Status:  models.TrainingDataTooSmall,
			Message: fmt.Sprintf("real samples %d/%d", n, o.cfg.MinTotalSamples),
		}, fmt.Errorf("%w: %d/%d", ErrDataTooSmall, n, o.cfg.MinTotalSamples)
	}

	samples := labelSamples(readings)
	allLabels := make([]string, len(samples))
	for i, s := range samples {
		allLabels[i] = s.Label
	}
	allCounts := countLabels(allLabels)

	mode := models.EvaluationValid
	var warnings []string
	useSynthetic := false

	if len(allCounts) < 2 {
		if !force {
			return models.TrainingOutcome{
				Status:  models.TrainingDataInsufficientVariety,
				Message: "only one label present in real samples",
			}, ErrInsufficientVariety
		}
		mode = models.EvaluationNonValid
		useSynthetic = true
		warnings = append(warnings, warnSyntheticTrain)
	}
	if hasClassBelow(allCounts, 2) {
		mode = models.EvaluationNonValid
		warnings = append(warnings, warnMinorClass)
	}

	train, test := ChronologicalSplit(samples)

	seed := o.seed()
	aug := NewAugmentor(seed)
	if useSynthetic {
		train = append(train, aug.Synthetic(o.cfg.SyntheticPerArchetype)...)
	}
	train = aug.Oversample(train, o.cfg.MinPerClass)

	trainX, trainY := featureMatrix(train)
	testX, testY := featureMatrix(test)

	scaler, err := FitScaler(trainX)
	if err != nil {
		return failed(fmt.Errorf("fit scaler: %w", err))
	}
	trainXs, err := scaler.TransformAll(trainX)
	if err != nil {
		return failed(fmt.Errorf("scale train: %w", err))
	}
	testXs, err := scaler.TransformAll(testX)
	if err != nil {
		return failed(fmt.Errorf("scale test: %w", err))
	}

	forest, err := FitForest(trainXs, trainY, o.cfg.Forest)
	if err != nil {
		return failed(fmt.Errorf("fit forest: %w", err))
	}
	trainPred, err := forest.PredictAll(trainXs)
	if err != nil {
		return failed(fmt.Errorf("predict train: %w", err))
	}
	testPred, err := forest.PredictAll(testXs)
	if err != nil {
		return failed(fmt.Errorf("predict test: %w", err))
	}

	testCounts := countLabels(testY)
	if len(testCounts) < 2 || hasClassBelow(testCounts, 2) {
		mode = models.EvaluationNonValid
		warnings = append(warnings, warnTestDistrib)
	}
	trusted := mode == models.EvaluationValid

	labels := sortedKeys(allCounts)
	report := &models.EvaluationReport{
		EvaluationMode:           mode,
		MetricsTrusted:           trusted,
		SyntheticUsed:            useSynthetic,
		Warnings:                 warnings,
		TrainAccuracy:            accuracy(trainY, trainPred),
		BaselineMajorityAccuracy: majorityBaseline(trainY, testY),
		ConfusionMatrix:          confusionMatrix(labels, testY, testPred),
		Labels:                   labels,
		AllCounts:                allCounts,
		TrainCounts:              countLabels(trainY),
		TestCounts:               testCounts,
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	if trusted {
		testAcc := accuracy(testY, testPred)
		f1 := macroF1(testY, testPred)
		bal := balancedAccuracy(testY, testPred)
		report.TestAccuracy, report.MacroF1, report.BalancedAccuracy = &testAcc, &f1, &bal
	}

	state := &ModelState{
		Scaler: scaler,
		Forest: forest,
		Meta: models.ModelMeta{
			Version:              uuid.NewString(),
			TrainingSeed:         seed,
			TrainingSamples:      n,
			TrainingSamplesTrain: len(train),
			TrainingSamplesTest:  len(test),
			SyntheticUsed:        useSynthetic,
			EvaluationMode:       mode,
			MetricsTrusted:       trusted,
			TrainedAt:            o.now(),
		},
	}
	meta, err := o.store.Save(state)
	if err != nil {
		return models.TrainingOutcome{
			Status:  models.TrainingSaveFailed,
			Message: err.Error(),
		}, fmt.Errorf("persist model: %w", err)
	}
	state.Meta = meta
	o.classifier.Publish(state)
	report.Status = models.TrainingDone

	return models.TrainingOutcome{
		Status: models.TrainingDone,
		Report: report,
		Meta:   &meta,
	}, nil
}

func failed(err error) (models.TrainingOutcome, error) {
	return models.TrainingOutcome{Status: models.TrainingFailed, Message: err.Error()}, err
}
