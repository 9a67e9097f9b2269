// Package sensor converts loosely-typed station payloads into typed readings.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"weather_station/internal/models"
)

// DefaultDeviceID is used when a payload carries no device id.
const DefaultDeviceID = "esp32"

var (
	ErrEmptyPayload    = errors.New("empty payload")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidNumber   = errors.New("invalid numeric value")
	ErrInvalidDeviceID = errors.New("invalid device id")
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var requiredFields = []string{"temperature", "humidity", "air_quality", "light_intensity", "battery_voltage"}

// Warning thresholds and milli-unit heuristics.
const (
	milliTempAbove    = 1000.0
	milliHumAbove     = 1000.0
	milliAQAbove      = 100000.0
	milliBatteryAbove = 100.0

	minTempC, maxTempC       = -50.0, 80.0
	minBatteryV, maxBatteryV = 0.0, 20.0
)

// Normalized is the outcome of Normalize: a typed reading plus non-fatal warnings.
type Normalized struct {
	Reading  models.SensorReading
	Warnings []string
}

// ValidDeviceID reports whether id matches the accepted device id pattern.
func ValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// Normalize validates a decoded JSON payload, applies field aliases and
// milli-unit heuristics and coerces every numeric field to float64.
// A missing timestamp defaults to now.
func Normalize(payload map[string]any, now time.Time) (Normalized, error) {
	if len(payload) == 0 {
		return Normalized{}, ErrEmptyPayload
	}
	data := make(map[string]any, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	var warnings []string

	if _, ok := data["temperature"]; !ok {
		if v, ok := data["temp_c"]; ok {
			data["temperature"] = v
		} else if v, ok := data["temp_milli"]; ok {
			f, ok := toFloat(v)
			if !ok {
				return Normalized{}, fmt.Errorf("temp_milli: %w", ErrInvalidNumber)
			}
			data["temperature"] = f / 1000.0
			warnings = append(warnings, "temperature converted from milli")
		}
	}
	aliasIfMissing(data, "battery_voltage", "voltage")
	aliasIfMissing(data, "battery_current", "current")
	aliasIfMissing(data, "battery_power", "power")

	vals := make(map[string]float64, len(requiredFields))
	for _, k := range requiredFields {
		raw, ok := data[k]
		if !ok || raw == nil {
			return Normalized{}, fmt.Errorf("%s: %w", k, ErrMissingField)
		}
		f, ok := toFloat(raw)
		if !ok {
			return Normalized{}, fmt.Errorf("%s: %w", k, ErrInvalidNumber)
		}
		vals[k] = f
	}

	r := models.SensorReading{
		Temperature:    vals["temperature"],
		Humidity:       vals["humidity"],
		AirQuality:     vals["air_quality"],
		LightIntensity: vals["light_intensity"],
		BatteryVoltage: vals["battery_voltage"],
	}

	if math.Abs(r.Temperature) > milliTempAbove {
		r.Temperature /= 1000.0
		warnings = append(warnings, "temperature appeared in milli, converted")
	}
	if r.Temperature < minTempC || r.Temperature > maxTempC {
		warnings = append(warnings, "temperature out-of-range")
	}
	if r.Humidity > milliHumAbove {
		r.Humidity /= 1000.0
		warnings = append(warnings, "humidity appeared in milli, converted")
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		warnings = append(warnings, "humidity out-of-range")
	}
	if r.AirQuality > milliAQAbove {
		r.AirQuality /= 1000.0
		warnings = append(warnings, "air_quality appeared in milli, converted")
	}
	if r.AirQuality < 0 {
		warnings = append(warnings, "air_quality negative")
	}
	if r.BatteryVoltage > milliBatteryAbove {
		r.BatteryVoltage /= 1000.0
		warnings = append(warnings, "battery_voltage appeared in milli, converted")
	}
	if r.BatteryVoltage < minBatteryV || r.BatteryVoltage > maxBatteryV {
		warnings = append(warnings, "battery_voltage out-of-range")
	}

	if v, ok := optionalFloat(data, "battery_current"); ok {
		r.BatteryCurrent = &v
	}
	if v, ok := optionalFloat(data, "battery_power"); ok {
		r.BatteryPower = &v
	}

	lat, latOK := firstFloat(data, "latitude", "lat")
	lon, lonOK := firstFloat(data, "longitude", "lon", "lng")
	if latOK && lonOK {
		if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
			warnings = append(warnings, "gps out-of-range")
		} else {
			r.Latitude, r.Longitude = &lat, &lon
		}
	}

	deviceID := DefaultDeviceID
	if raw, ok := data["device_id"]; ok && raw != nil {
		deviceID = strings.TrimSpace(fmt.Sprint(raw))
	}
	if !ValidDeviceID(deviceID) {
		return Normalized{}, fmt.Errorf("%q: %w", deviceID, ErrInvalidDeviceID)
	}
	r.DeviceID = deviceID

	if ts, ok := ParseTimestamp(data["timestamp"]); ok {
		r.Timestamp = ts
	} else {
		if data["timestamp"] != nil {
			warnings = append(warnings, "timestamp unparseable, server time used")
		}
		r.Timestamp = now.UTC().Truncate(time.Second)
	}

	return Normalized{Reading: r, Warnings: warnings}, nil
}

func aliasIfMissing(data map[string]any, key, alias string) {
	if _, ok := data[key]; ok {
		return
	}
	if v, ok := data[alias]; ok {
		data[key] = v
	}
}

func optionalFloat(data map[string]any, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return 0, false
	}
	return toFloat(raw)
}

func firstFloat(data map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := optionalFloat(data, k); ok {
			return v, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
