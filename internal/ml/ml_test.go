package ml

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather_station/internal/models"
)

type memoryStore struct {
	mu    sync.Mutex
	saved *ModelState
	saves int
	err   error
}

func (m *memoryStore) Save(state *ModelState) (models.ModelMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.ModelMeta{}, m.err
	}
	m.saves++
	meta := state.Meta
	meta.SavedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *state
	cp.Meta = meta
	m.saved = &cp
	return meta, nil
}

func (m *memoryStore) Load() (*ModelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, ErrNoModel
	}
	return m.saved, nil
}

func reading(at time.Time, temp, hum, aq float64) models.SensorReading {
	return models.SensorReading{
		DeviceID:       "esp32",
		Temperature:    temp,
		Humidity:       hum,
		AirQuality:     aq,
		LightIntensity: 500,
		BatteryVoltage: 3.9,
		Timestamp:      at,
	}
}

func threeClassReadings() []models.SensorReading {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	shapes := [][3]float64{{36, 35, 80}, {24, 50, 40}, {10, 40, 30}}
	out := make([]models.SensorReading, 0, 60)
	for i := 0; i < 60; i++ {
		s := shapes[i%3]
		out = append(out, reading(base.Add(time.Duration(i)*time.Minute), s[0], s[1], s[2]))
	}
	return out
}

func identicalReadings(n int, temp, hum, aq float64) []models.SensorReading {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	out := make([]models.SensorReading, n)
	for i := range out {
		out[i] = reading(base.Add(time.Duration(i)*time.Minute), temp, hum, aq)
	}
	return out
}

func newTestOrchestrator(store ArtifactStore) (*Orchestrator, *Classifier) {
	c := NewClassifier()
	cfg := DefaultConfig()
	cfg.Forest.Trees = 25
	o := NewOrchestrator(cfg, store, c)
	o.seed = func() uint64 { return 7 }
	return o, c
}

func TestLabelFromFeatures(t *testing.T) {
	tests := []struct {
		name          string
		temp, hum, aq float64
		want          string
	}{
		{"polluted overrides heat", 40, 90, 301, LabelPolluted},
		{"aq exactly 300 is not polluted", 22, 50, 300, LabelNormal},
		{"hot humid", 32, 70, 50, LabelHotHumid},
		{"very hot very humid", 36, 85, 50, LabelHotHumid},
		{"hot dry", 33, 20, 50, LabelHotDry},
		{"very hot normal humidity", 36, 35, 80, LabelVeryHot},
		{"warm very humid", 26, 85, 30, LabelVeryHumid},
		{"warm humid is normal", 26, 70, 30, LabelNormal},
		{"cool humid", 18, 65, 30, LabelCoolHumid},
		{"cold very humid", 5, 95, 30, LabelCoolHumid},
		{"cold dry", 10, 40, 30, LabelCold},
		{"cool dry", 17, 10, 30, LabelCold},
		{"normal", 24, 50, 40, LabelNormal},
		{"band edge 15 is cool", 15, 40, 0, LabelCold},
		{"band edge 30 is hot", 30, 45, 0, LabelVeryHot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelFromFeatures(tt.temp, tt.hum, tt.aq))
		})
	}
}

func TestLabelFromFeatures_PureAndPollutedAlwaysWins(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		temp := rng.Float64()*80 - 20
		hum := rng.Float64() * 100
		aq := rng.Float64() * 600
		first := LabelFromFeatures(temp, hum, aq)
		require.Equal(t, first, LabelFromFeatures(temp, hum, aq))
		if aq > 300 {
			require.Equal(t, LabelPolluted, first)
		}
	}
}

func TestSplitIndex_Bounds(t *testing.T) {
	assert.Equal(t, 0, SplitIndex(0))
	assert.Equal(t, 1, SplitIndex(1))
	for n := 2; n <= 300; n++ {
		idx := SplitIndex(n)
		require.GreaterOrEqual(t, idx, 1, "n=%d", n)
		require.LessOrEqual(t, idx, n-1, "n=%d", n)
	}
	assert.Equal(t, 48, SplitIndex(60))
	assert.Equal(t, 2, SplitIndex(3))
	assert.Equal(t, 4, SplitIndex(5))
}

func TestChronologicalSplit_OrdersAndPartitions(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var samples []Sample
	for i := 9; i >= 0; i-- {
		samples = append(samples, Sample{Label: LabelNormal, At: base.Add(time.Duration(i) * time.Hour)})
	}

	train, test := ChronologicalSplit(samples)
	require.Len(t, train, 8)
	require.Len(t, test, 2)
	for i := 1; i < len(train); i++ {
		assert.True(t, train[i-1].At.Before(train[i].At))
	}
	assert.True(t, train[len(train)-1].At.Before(test[0].At))
	assert.Equal(t, base.Add(9*time.Hour), samples[0].At, "input must not be reordered")
}

func TestLabelSamples_ZeroTimestampFallsBackToIndex(t *testing.T) {
	rs := []models.SensorReading{
		reading(time.Time{}, 20, 50, 10),
		reading(time.Time{}, 20, 50, 10),
	}
	s := labelSamples(rs)
	assert.Equal(t, time.Unix(0, 0).UTC(), s[0].At)
	assert.Equal(t, time.Unix(1, 0).UTC(), s[1].At)
}

func TestAugmentor_OversampleReachesMinimumAndKeepsInput(t *testing.T) {
	in := []Sample{
		{Features: [models.NumFeatures]float64{10, 40, 30, 100, 3.8}, Label: LabelCold},
		{Features: [models.NumFeatures]float64{11, 41, 31, 100, 3.8}, Label: LabelCold},
		{Features: [models.NumFeatures]float64{36, 35, 80, 900, 3.9}, Label: LabelVeryHot},
	}
	before := append([]Sample(nil), in...)

	out := NewAugmentor(3).Oversample(in, 10)
	counts := map[string]int{}
	for _, s := range out {
		counts[s.Label]++
	}
	assert.Equal(t, 10, counts[LabelCold])
	assert.Equal(t, 10, counts[LabelVeryHot])
	assert.Equal(t, before, in)
	assert.Equal(t, in, out[:len(in)])
}

func TestAugmentor_DeterministicForSeed(t *testing.T) {
	a := NewAugmentor(99).Synthetic(3)
	b := NewAugmentor(99).Synthetic(3)
	c := NewAugmentor(100).Synthetic(3)
	require.Len(t, a, 12)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, s := range a {
		assert.Equal(t, LabelFromFeatures(s.Features[0], s.Features[1], s.Features[2]), s.Label)
	}
}

func TestAugmentation_LeavesTestPartitionUntouched(t *testing.T) {
	samples := labelSamples(threeClassReadings())
	train, test := ChronologicalSplit(samples)
	testBefore := append([]Sample(nil), test...)

	aug := NewAugmentor(5)
	train = append(train, aug.Synthetic(3)...)
	train = aug.Oversample(train, 30)

	assert.Equal(t, testBefore, test)
	assert.Len(t, test, 12)
	assert.Greater(t, len(train), 48)
}

func TestFitScaler(t *testing.T) {
	x := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s, err := FitScaler(x)
	require.NoError(t, err)
	assert.InDelta(t, 3, s.Mean[0], 1e-12)
	assert.InDelta(t, 1.632993, s.Scale[0], 1e-6)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	row, err := s.Transform([]float64{3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0, row[0], 1e-12)
	assert.InDelta(t, 0, row[1], 1e-12)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)

	_, err = FitScaler(nil)
	assert.ErrorIs(t, err, errEmptyMatrix)
}

func TestFitForest_SeparatesClasses(t *testing.T) {
	var x [][]float64
	var y []string
	for i := 0; i < 40; i++ {
		v := float64(i % 10)
		x = append(x, []float64{v, 0})
		y = append(y, "low")
		x = append(x, []float64{v + 100, 1})
		y = append(y, "high")
	}
	f, err := FitForest(x, y, ForestConfig{Trees: 15, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, f.Classes)

	label, p, err := f.Predict([]float64{3, 0})
	require.NoError(t, err)
	assert.Equal(t, "low", label)
	assert.InDelta(t, 1.0, p, 1e-9)

	label, _, err = f.Predict([]float64{104, 1})
	require.NoError(t, err)
	assert.Equal(t, "high", label)

	proba, err := f.PredictProba([]float64{50, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)

	_, err = f.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestFitForest_SameSeedSameTrees(t *testing.T) {
	x := [][]float64{{1, 2}, {2, 1}, {3, 4}, {4, 3}, {5, 6}, {6, 5}}
	y := []string{"a", "a", "b", "b", "c", "c"}
	f1, err := FitForest(x, y, ForestConfig{Trees: 10, Seed: 42})
	require.NoError(t, err)
	f2, err := FitForest(x, y, ForestConfig{Trees: 10, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, f1, f2)

	_, err = FitForest(x, y[:2], ForestConfig{Trees: 1})
	assert.ErrorIs(t, err, errLabelMismatch)
}

func TestMetrics(t *testing.T) {
	yTrue := []string{"a", "a", "b", "b", "c", "c"}
	yPred := []string{"a", "b", "b", "b", "c", "a"}

	assert.InDelta(t, 4.0/6.0, accuracy(yTrue, yPred), 1e-12)
	assert.InDelta(t, (0.5+1+0.5)/3, balancedAccuracy(yTrue, yPred), 1e-12)

	// a: p=1/2 r=1/2 f=.5; b: p=2/3 r=1 f=.8; c: p=1 r=1/2 f=2/3
	assert.InDelta(t, (0.5+0.8+2.0/3.0)/3, macroF1(yTrue, yPred), 1e-12)

	cm := confusionMatrix([]string{"a", "b", "c"}, yTrue, yPred)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}}, cm)

	assert.Equal(t, 0.0, accuracy(nil, nil))
	assert.Equal(t, "x", majorityLabel([]string{"x", "y", "y", "x"}))
	assert.InDelta(t, 0.5, majorityBaseline([]string{"a", "a", "b"}, []string{"a", "b"}), 1e-12)
	assert.Equal(t, 0.0, majorityBaseline([]string{"a"}, nil))
}

func TestClassifier_NotTrained(t *testing.T) {
	c := NewClassifier()
	assert.False(t, c.Trained())
	p := c.Predict(reading(time.Now(), 20, 50, 10))
	assert.Equal(t, ConditionNotTrained, p.Condition)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, []string{"Train the AI model first"}, p.Recommendations)
}

func TestClassifier_BrokenModelYieldsErrorSentinel(t *testing.T) {
	c := NewClassifier()
	c.Publish(&ModelState{
		Scaler: &Scaler{Mean: []float64{0}, Scale: []float64{1}},
		Forest: &Forest{Classes: []string{LabelCold}, NFeatures: 1},
	})
	p := c.Predict(reading(time.Now(), 20, 50, 10))
	assert.Equal(t, ConditionError, p.Condition)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, []string{"AI model error occurred"}, p.Recommendations)
}

func TestClassifier_RestoreWithoutModel(t *testing.T) {
	c := NewClassifier()
	err := c.Restore(&memoryStore{})
	assert.ErrorIs(t, err, ErrNoModel)
	assert.False(t, c.Trained())
}

func TestOrchestrator_ThreeClassesReachValid(t *testing.T) {
	store := &memoryStore{}
	o, c := newTestOrchestrator(store)

	out, err := o.Train(threeClassReadings(), false)
	require.NoError(t, err)
	require.Equal(t, models.TrainingDone, out.Status)
	require.NotNil(t, out.Report)

	r := out.Report
	assert.Equal(t, models.EvaluationValid, r.EvaluationMode)
	assert.True(t, r.MetricsTrusted)
	assert.False(t, r.SyntheticUsed)
	assert.Equal(t, map[string]int{LabelVeryHot: 20, LabelNormal: 20, LabelCold: 20}, r.AllCounts)
	assert.Equal(t, []string{LabelCold, LabelNormal, LabelVeryHot}, r.Labels)
	require.NotNil(t, r.TestAccuracy)
	require.NotNil(t, r.MacroF1)
	require.NotNil(t, r.BalancedAccuracy)
	assert.InDelta(t, 1.0, *r.TestAccuracy, 1e-9)
	assert.InDelta(t, 1.0, r.TrainAccuracy, 1e-9)
	assert.LessOrEqual(t, r.BaselineMajorityAccuracy, 1.0)
	assert.Len(t, r.ConfusionMatrix, 3)

	require.NotNil(t, out.Meta)
	assert.Equal(t, 60, out.Meta.TrainingSamples)
	assert.Equal(t, 48, out.Meta.TrainingSamplesTrain)
	assert.Equal(t, 12, out.Meta.TrainingSamplesTest)
	assert.Equal(t, uint64(7), out.Meta.TrainingSeed)
	assert.NotEmpty(t, out.Meta.Version)

	require.True(t, c.Trained())
	p := c.Predict(reading(time.Now(), 36, 35, 80))
	assert.Equal(t, LabelVeryHot, p.Condition)
	assert.Greater(t, p.Confidence, 0.5)
	assert.Equal(t, p, c.Predict(reading(time.Now(), 36, 35, 80)), "prediction must be idempotent")

	assert.Equal(t, r, o.LastReport())
	assert.Equal(t, models.TrainingDone, o.LastOutcome().Status)
}

func TestOrchestrator_SingleClassRejectedUnlessForced(t *testing.T) {
	store := &memoryStore{}
	o, c := newTestOrchestrator(store)
	rs := identicalReadings(60, 26, 85, 30)

	out, err := o.Train(rs, false)
	assert.ErrorIs(t, err, ErrInsufficientVariety)
	assert.Equal(t, models.TrainingDataInsufficientVariety, out.Status)
	assert.False(t, c.Trained())
	assert.Zero(t, store.saves)

	out, err = o.Train(rs, true)
	require.NoError(t, err)
	require.Equal(t, models.TrainingDone, out.Status)
	r := out.Report
	assert.True(t, r.SyntheticUsed)
	assert.Equal(t, models.EvaluationNonValid, r.EvaluationMode)
	assert.False(t, r.MetricsTrusted)
	assert.Nil(t, r.TestAccuracy)
	assert.Nil(t, r.MacroF1)
	assert.Nil(t, r.BalancedAccuracy)
	assert.NotEmpty(t, r.Warnings)
	assert.Equal(t, []string{LabelVeryHumid}, r.Labels)
	assert.True(t, c.Trained())
	assert.Equal(t, 1, store.saves)
}

func TestOrchestrator_DataTooSmallLeavesStateAlone(t *testing.T) {
	store := &memoryStore{}
	o, c := newTestOrchestrator(store)

	_, err := o.Train(threeClassReadings(), false)
	require.NoError(t, err)
	prev := c.Snapshot()

	out, err := o.Train(threeClassReadings()[:49], false)
	assert.ErrorIs(t, err, ErrDataTooSmall)
	assert.Equal(t, models.TrainingDataTooSmall, out.Status)
	assert.Same(t, prev, c.Snapshot())
	assert.Equal(t, 1, store.saves)
}

func TestOrchestrator_SaveFailureKeepsPreviousModel(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	o, c := newTestOrchestrator(store)

	out, err := o.Train(threeClassReadings(), false)
	require.Error(t, err)
	assert.Equal(t, models.TrainingSaveFailed, out.Status)
	assert.Nil(t, out.Report)
	assert.Nil(t, o.LastReport())
	assert.False(t, c.Trained())
	assert.False(t, o.Running())
}

func TestOrchestrator_SaveFailureKeepsPreviousReport(t *testing.T) {
	store := &memoryStore{}
	o, c := newTestOrchestrator(store)

	first, err := o.Train(threeClassReadings(), false)
	require.NoError(t, err)
	require.NotNil(t, first.Report)
	assert.Equal(t, models.TrainingDone, first.Report.Status)
	published := c.Snapshot()

	store.mu.Lock()
	store.err = errors.New("disk full")
	store.mu.Unlock()

	out, err := o.Train(threeClassReadings(), true)
	require.Error(t, err)
	assert.Equal(t, models.TrainingSaveFailed, out.Status)
	assert.Same(t, first.Report, o.LastReport())
	assert.Equal(t, models.TrainingDone, o.LastReport().Status)
	assert.Same(t, published, c.Snapshot())
	assert.Equal(t, models.TrainingSaveFailed, o.LastOutcome().Status)
}

func TestOrchestrator_UntrustedWheneverNonValid(t *testing.T) {
	rs := threeClassReadings()
	// A single Polluted reading makes one class too small.
	rs[10] = reading(rs[10].Timestamp, 22, 50, 350)

	o, _ := newTestOrchestrator(&memoryStore{})
	out, err := o.Train(rs, false)
	require.NoError(t, err)
	r := out.Report
	assert.Equal(t, models.EvaluationNonValid, r.EvaluationMode)
	assert.False(t, r.MetricsTrusted)
	assert.Nil(t, r.TestAccuracy)
	assert.Nil(t, r.MacroF1)
	assert.Nil(t, r.BalancedAccuracy)
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	o, _ := newTestOrchestrator(&memoryStore{})
	o.running.Store(true)

	_, err := o.Train(threeClassReadings(), false)
	assert.ErrorIs(t, err, ErrTrainingInProgress)
	assert.ErrorIs(t, o.Start(threeClassReadings(), false, nil), ErrTrainingInProgress)
	o.running.Store(false)

	done := make(chan models.TrainingOutcome, 1)
	require.NoError(t, o.Start(threeClassReadings(), false, func(out models.TrainingOutcome, err error) {
		done <- out
	}))
	select {
	case out := <-done:
		assert.Equal(t, models.TrainingDone, out.Status)
	case <-time.After(30 * time.Second):
		t.Fatal("training did not finish")
	}
	assert.Eventually(t, func() bool { return !o.Running() }, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_PanicReleasesGuard(t *testing.T) {
	o, _ := newTestOrchestrator(nil)

	out, err := o.Train(threeClassReadings(), false)
	require.Error(t, err)
	assert.Equal(t, models.TrainingFailed, out.Status)
	assert.False(t, o.Running())
}

func TestCheckReadiness(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name      string
		readings  []models.SensorReading
		wantReady bool
		reason    string
		autoForce bool
	}{
		{"below minimum", threeClassReadings()[:10], false, ReasonDataBelowMin, false},
		{"single class", identicalReadings(60, 20, 50, 10), false, ReasonSingleClass, false},
		{"single class auto allowed", identicalReadings(100, 20, 50, 10), true, ReasonSingleClassAutoAllowed, true},
		{"ready", threeClassReadings(), true, ReasonReady, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CheckReadiness(tt.readings, cfg)
			assert.Equal(t, tt.wantReady, r.Ready)
			assert.Equal(t, tt.reason, r.Reason)
			assert.Equal(t, tt.autoForce, r.AutoForce)
			assert.Equal(t, len(tt.readings), r.Count)
			assert.Equal(t, 50, r.MinRequired)
		})
	}

	rs := threeClassReadings()
	rs[0] = reading(rs[0].Timestamp, 22, 50, 350)
	assert.Equal(t, ReasonClassTooSmall, CheckReadiness(rs, cfg).Reason)
}
