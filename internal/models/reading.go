package models

import "time"

// NumFeatures is the width of the classifier feature vector.
const NumFeatures = 5

// SensorReading is a single normalized measurement from a station.
type SensorReading struct {
	DeviceID       string    `json:"device_id"`
	Temperature    float64   `json:"temperature"`     // °C
	Humidity       float64   `json:"humidity"`        // %
	AirQuality     float64   `json:"air_quality"`     // raw gas sensor units
	LightIntensity float64   `json:"light_intensity"` // lux
	BatteryVoltage float64   `json:"battery_voltage"` // V
	BatteryCurrent *float64  `json:"battery_current,omitempty"`
	BatteryPower   *float64  `json:"battery_power,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Timestamp      time.Time `json:"timestamp"` // UTC, second precision; zero when unresolved
}

// Features returns [temperature, humidity, air_quality, light_intensity, battery_voltage].
func (r SensorReading) Features() [NumFeatures]float64 {
	return [NumFeatures]float64{
		r.Temperature,
		r.Humidity,
		r.AirQuality,
		r.LightIntensity,
		r.BatteryVoltage,
	}
}
