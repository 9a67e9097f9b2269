package ml

import "weather_station/internal/models"

// Readiness reasons.
const (
	ReasonReady                  = "ready"
	ReasonDataBelowMin           = "data_below_min"
	ReasonSingleClass            = "single_class"
	ReasonSingleClassAutoAllowed = "single_class_auto_allowed"
	ReasonClassTooSmall          = "class_too_small"
)

// CheckReadiness reports whether readings are enough for a useful training
// run. It uses the same label derivation as training.
func CheckReadiness(readings []models.SensorReading, cfg Config) models.Readiness {
	dist := LabelDistribution(readings)
	out := models.Readiness{
		Count:        len(readings),
		MinRequired:  cfg.MinTotalSamples,
		Distribution: dist,
	}

	switch {
	case len(readings) < cfg.MinTotalSamples:
		out.Reason = ReasonDataBelowMin
	case len(dist) < 2 && cfg.AutoForceThreshold > 0 && len(readings) >= cfg.AutoForceThreshold:
		out.Ready, out.AutoForce, out.Reason = true, true, ReasonSingleClassAutoAllowed
	case len(dist) < 2:
		out.Reason = ReasonSingleClass
	case hasClassBelow(dist, 2):
		out.Reason = ReasonClassTooSmall
	default:
		out.Ready, out.Reason = true, ReasonReady
	}
	return out
}

func hasClassBelow(dist map[string]int, n int) bool {
	for _, c := range dist {
		if c < n {
			return true
		}
	}
	return false
}
