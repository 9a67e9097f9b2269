// Package forecast projects the next three hours of weather from the latest
// reading and its recent history. It is rule based and does not need a
// trained model.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"weather_station/internal/advice"
	"weather_station/internal/models"
)

// Light labels.
const (
	LightDark     = "Dark"
	LightOvercast = "Overcast"
	LightCloudy   = "Cloudy"
	LightClear    = "Clear"
	LightBlazing  = "Blazing"
)

// Config tunes the history window used for trend fitting.
type Config struct {
	Window         time.Duration `mapstructure:"window"`
	HistoryCap     int           `mapstructure:"history_cap"`
	MaxTrendPoints int           `mapstructure:"max_trend_points"`
	RainAlert      float64       `mapstructure:"rain_alert"`
}

func DefaultConfig() Config {
	return Config{
		Window:         30 * time.Minute,
		HistoryCap:     200,
		MaxTrendPoints: 30,
		RainAlert:      60,
	}
}

const (
	horizons       = 3
	confidenceStep = 0.08
	minTrendPoints = 3
	minTrendSpan   = 0.5 // minutes
)

type bounds struct{ lo, hi float64 }

var (
	temperatureBounds = bounds{-10, 60}
	humidityBounds    = bounds{0, 100}
	lightBounds       = bounds{0, 200000}
)

// Engine produces ForecastResults. It holds no state between calls.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = def.HistoryCap
	}
	if cfg.MaxTrendPoints <= 0 {
		cfg.MaxTrendPoints = def.MaxTrendPoints
	}
	if cfg.RainAlert <= 0 {
		cfg.RainAlert = def.RainAlert
	}
	return &Engine{cfg: cfg}
}

// ClassifyLight buckets illuminance in lux. Negative or NaN input is treated as Clear.
func ClassifyLight(lux float64) string {
	switch {
	case lux >= 0 && lux < 50:
		return LightDark
	case lux >= 50 && lux < 1000:
		return LightOvercast
	case lux >= 1000 && lux < 10000:
		return LightCloudy
	case lux >= 10000 && lux < 50000:
		return LightClear
	case lux >= 50000:
		return LightBlazing
	}
	return LightClear
}

// RainProbability returns a 0..100 rain likelihood from weighted humidity,
// darkness and heat scores.
func RainProbability(temperature, humidity, lux float64) float64 {
	h := clamp01((humidity - 55) / 45)
	l := clamp01((10000 - lux) / 10000)
	t := clamp01((temperature - 28) / 12)
	risk := 0.55*h + 0.35*l + 0.10*t

	switch ClassifyLight(lux) {
	case LightBlazing:
		risk *= 0.6
	case LightDark:
		risk = min(1, risk*1.15)
	}
	return clamp01(risk) * 100
}

// WeatherType maps rain probability and light to a weather category.
func WeatherType(rainProbability, lux float64) string {
	switch {
	case rainProbability >= 70:
		return advice.WeatherRain
	case lux < 1000:
		return advice.WeatherOvercast
	case lux < 10000:
		return advice.WeatherCloudy
	}
	return advice.WeatherClear
}

type point struct {
	at time.Time
	v  float64
}

// trend is value = slope*minutes + intercept, minutes relative to the newest point.
type trend struct {
	slope, intercept float64
}

// fitLinear fits a least squares line over the newest points. It reports
// false when there are too few points or they span less than half a minute.
func (e *Engine) fitLinear(series []point) (trend, bool) {
	if len(series) < minTrendPoints {
		return trend{}, false
	}
	sorted := make([]point, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].at.Before(sorted[j].at) })

	last := sorted[len(sorted)-1].at
	if len(sorted) > e.cfg.MaxTrendPoints {
		sorted = sorted[len(sorted)-e.cfg.MaxTrendPoints:]
	}
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, p := range sorted {
		xs[i] = p.at.Sub(last).Minutes()
		ys[i] = p.v
	}
	if xs[len(xs)-1]-xs[0] < minTrendSpan {
		return trend{}, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return trend{slope: beta, intercept: alpha}, true
}

func project(now float64, tr trend, ok bool, minutes float64, b bounds) float64 {
	v := now
	if ok {
		v = tr.intercept + tr.slope*minutes
	}
	return max(b.lo, min(b.hi, v))
}

// Forecast3h evaluates the latest reading and projects it 1, 2 and 3 hours
// ahead. now is used as the base time when the reading has no timestamp.
func (e *Engine) Forecast3h(latest models.SensorReading, history []models.SensorReading, now time.Time) models.ForecastResult {
	base := latest.Timestamp.UTC()
	if latest.Timestamp.IsZero() {
		base = now.UTC().Truncate(time.Second)
	}

	if len(history) > e.cfg.HistoryCap {
		history = history[len(history)-e.cfg.HistoryCap:]
	}
	cutoff := base.Add(-e.cfg.Window)
	var temps, hums, luxes []point
	for _, r := range history {
		if r.Timestamp.IsZero() || r.Timestamp.Before(cutoff) || r.Timestamp.After(base) {
			continue
		}
		temps = append(temps, point{r.Timestamp, r.Temperature})
		hums = append(hums, point{r.Timestamp, r.Humidity})
		luxes = append(luxes, point{r.Timestamp, r.LightIntensity})
	}
	tempFit, tempOK := e.fitLinear(temps)
	humFit, humOK := e.fitLinear(hums)
	luxFit, luxOK := e.fitLinear(luxes)

	baseConf := 0.62 + 0.22*min(1, float64(len(temps))/12)

	out := models.ForecastResult{
		HourlyForecast: make([]models.ForecastPoint, 0, horizons),
	}
	for h := 1; h <= horizons; h++ {
		minutes := float64(h * 60)
		t := project(latest.Temperature, tempFit, tempOK, minutes, temperatureBounds)
		hum := project(latest.Humidity, humFit, humOK, minutes, humidityBounds)
		lux := project(latest.LightIntensity, luxFit, luxOK, minutes, lightBounds)

		rain := RainProbability(t, hum, lux)
		at := base.Add(time.Duration(h) * time.Hour)
		if out.PredictedRainTime == nil && rain >= e.cfg.RainAlert {
			rainAt := at
			out.PredictedRainTime = &rainAt
		}
		out.HourlyForecast = append(out.HourlyForecast,
			newPoint(at, t, hum, lux, rain, clamp01(baseConf-confidenceStep*float64(h))))
	}

	rainNow := RainProbability(latest.Temperature, latest.Humidity, latest.LightIntensity)
	out.Now = newPoint(base, latest.Temperature, latest.Humidity, latest.LightIntensity, rainNow, baseConf)
	out.PrimaryRecommendation = advice.ForWeather(out.Now.WeatherType, latest.Temperature, latest.Humidity, latest.AirQuality)
	return out
}

func newPoint(at time.Time, temperature, humidity, lux, rain, confidence float64) models.ForecastPoint {
	return models.ForecastPoint{
		Timestamp:       at,
		WeatherType:     WeatherType(rain, lux),
		RainProbability: round(rain, 1),
		Confidence:      round(confidence, 3),
		LightLabel:      ClassifyLight(lux),
		Temperature:     round(temperature, 2),
		Humidity:        round(humidity, 2),
		LightIntensity:  round(lux, 2),
	}
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
