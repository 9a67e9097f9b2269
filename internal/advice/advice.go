// Package advice holds the static recommendation tables shared by the
// classifier and the forecast engine.
package advice

import "strings"

const maxConditionTips = 5

var conditionTips = map[string][]string{
	"Cold":       {"Wear warm clothing", "Consider indoor heating", "Protect pipes from freezing"},
	"Very Hot":   {"Stay hydrated", "Avoid direct sun exposure", "Use air conditioning"},
	"Very Humid": {"Use dehumidifier", "Wear breathable clothing", "Check for mold"},
	"Polluted":   {"Wear mask outdoors", "Use air purifier", "Limit outdoor activities"},
	"Hot Dry":    {"Stay hydrated", "Use moisturizer", "Protect from sunburn"},
	"Hot Humid":  {"Stay in air conditioning", "Wear light clothing", "Watch for heat exhaustion"},
	"Cool Humid": {"Wear light layers", "Use umbrella if needed", "Check for dampness"},
	"Normal":     {"Great weather for activities", "Perfect conditions for exercise", "Enjoy outdoors"},
}

const defaultConditionTip = "Weather conditions normal"

// ForCondition returns up to five tips for a classifier condition, followed by
// air-quality and temperature warnings for the reading it was derived from.
func ForCondition(condition string, temperature, airQuality float64) []string {
	base, ok := conditionTips[condition]
	if !ok {
		base = []string{defaultConditionTip}
	}
	out := make([]string, 0, maxConditionTips+2)
	out = append(out, base...)

	switch {
	case airQuality > 400:
		out = append(out, "Hazardous air quality - stay indoors")
	case airQuality > 300:
		out = append(out, "Very unhealthy air - avoid outdoor activities")
	case airQuality > 200:
		out = append(out, "Unhealthy air - limit outdoor exercise")
	case airQuality > 100:
		out = append(out, "Moderate air quality - sensitive groups should limit exposure")
	}

	switch {
	case temperature > 35:
		out = append(out, "Extreme heat - seek immediate cooling")
	case temperature < 5:
		out = append(out, "Freezing conditions - take winter precautions")
	}

	if len(out) > maxConditionTips {
		out = out[:maxConditionTips]
	}
	return out
}

// Weather types produced by the forecast engine.
const (
	WeatherRain     = "Rain"
	WeatherOvercast = "Overcast"
	WeatherCloudy   = "Cloudy"
	WeatherClear    = "Clear"
)

const (
	maxWeatherTips     = 2
	weatherTipSep      = " / "
	fallbackWeatherTip = "Monitor weather conditions"
)

// ForWeather builds the primary forecast recommendation: a weather-type tip,
// then optional mask and humidity tips, at most two joined for display.
func ForWeather(weatherType string, temperature, humidity, airQuality float64) string {
	var tips []string
	switch weatherType {
	case WeatherRain:
		tips = append(tips, "Bring an umbrella or raincoat")
	case WeatherOvercast:
		tips = append(tips, "Prepare an umbrella")
	case WeatherCloudy:
		tips = append(tips, "Watch for possible rain, prepare an umbrella")
	default:
		if temperature >= 32 {
			tips = append(tips, "Use sunscreen and a hat when outside")
		} else {
			tips = append(tips, "Clear weather, good for activities")
		}
	}

	if airQuality >= 200 {
		tips = append(tips, "Wear a mask when outside")
	}
	if humidity >= 85 && weatherType != WeatherRain {
		tips = append(tips, "Humid air, reduce heavy activity")
	}

	if len(tips) == 0 {
		return fallbackWeatherTip
	}
	if len(tips) > maxWeatherTips {
		tips = tips[:maxWeatherTips]
	}
	return strings.Join(tips, weatherTipSep)
}
