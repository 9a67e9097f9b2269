// Package ml implements the weather-condition classifier pipeline: label
// derivation, dataset augmentation, chronological training with an evaluation
// validity gate, and the prediction wrapper.
package ml

import (
	"sort"

	"weather_station/internal/models"
)

// Condition labels.
const (
	LabelPolluted  = "Polluted"
	LabelHotHumid  = "Hot Humid"
	LabelHotDry    = "Hot Dry"
	LabelVeryHot   = "Very Hot"
	LabelVeryHumid = "Very Humid"
	LabelCoolHumid = "Cool Humid"
	LabelCold      = "Cold"
	LabelNormal    = "Normal"
)

const pollutedAbove = 300.0

type tempBand int

const (
	tempCold tempBand = iota
	tempCool
	tempNormal
	tempWarm
	tempHot
	tempVeryHot
)

type humBand int

const (
	humDry humBand = iota
	humNormal
	humHumid
	humVeryHumid
)

func bandTemperature(t float64) tempBand {
	switch {
	case t < 15:
		return tempCold
	case t < 20:
		return tempCool
	case t < 25:
		return tempNormal
	case t < 30:
		return tempWarm
	case t < 35:
		return tempHot
	default:
		return tempVeryHot
	}
}

func bandHumidity(h float64) humBand {
	switch {
	case h < 30:
		return humDry
	case h < 60:
		return humNormal
	case h < 80:
		return humHumid
	default:
		return humVeryHumid
	}
}

// LabelFromFeatures maps temperature, humidity and air quality to a condition.
// Air quality above 300 always yields Polluted; otherwise the first matching
// (temperature band, humidity band) rule wins.
func LabelFromFeatures(temperature, humidity, airQuality float64) string {
	if airQuality > pollutedAbove {
		return LabelPolluted
	}
	t := bandTemperature(temperature)
	h := bandHumidity(humidity)

	hot := t == tempHot || t == tempVeryHot
	cold := t == tempCold || t == tempCool
	wet := h == humHumid || h == humVeryHumid

	switch {
	case hot && wet:
		return LabelHotHumid
	case hot && h == humDry:
		return LabelHotDry
	case hot && h == humNormal:
		return LabelVeryHot
	case t == tempWarm && h == humVeryHumid:
		return LabelVeryHumid
	case cold && wet:
		return LabelCoolHumid
	case cold:
		return LabelCold
	default:
		return LabelNormal
	}
}

// LabelForReading derives the label of a reading.
func LabelForReading(r models.SensorReading) string {
	return LabelFromFeatures(r.Temperature, r.Humidity, r.AirQuality)
}

// LabelDistribution counts derived labels over readings.
func LabelDistribution(readings []models.SensorReading) map[string]int {
	out := make(map[string]int)
	for _, r := range readings {
		out[LabelForReading(r)]++
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
