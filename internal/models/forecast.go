package models

import "time"

// ForecastPoint is one rule evaluation, either for "now" or a projected hour.
type ForecastPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	WeatherType     string    `json:"weather_type"`     // Rain | Overcast | Cloudy | Clear
	RainProbability float64   `json:"rain_probability"` // 0..100
	Confidence      float64   `json:"confidence"`       // 0..1
	LightLabel      string    `json:"light_label"`      // Dark | Overcast | Cloudy | Clear | Blazing
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	LightIntensity  float64   `json:"light_intensity"`
}

// ForecastResult is the short-horizon projection built from recent history.
type ForecastResult struct {
	Now                   ForecastPoint   `json:"now"`
	HourlyForecast        []ForecastPoint `json:"hourly_forecast"`
	PredictedRainTime     *time.Time      `json:"predicted_rain_time,omitempty"`
	PrimaryRecommendation string          `json:"primary_recommendation"`
}
