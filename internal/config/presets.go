package config

import "fmt"

// Preset is a named parameter bundle for the ensemble's weighting scheme,
// grounded on the original source's StrategyConfig/PRESETS table.
type Preset struct {
	Name          string
	SignalWeights map[string]float64
	RegimeWeight  float64
	Threshold     float64
}

var presets = map[string]Preset{
	"default": {
		Name:          "default",
		SignalWeights: nil, // equal weights
		RegimeWeight:  0.3,
		Threshold:     0.1,
	},
	"trend": {
		Name: "trend",
		SignalWeights: map[string]float64{
			"momentum":      0.6,
			"mean_reversion": 0.2,
		},
		RegimeWeight: 0.2,
		Threshold:    0.15,
	},
	"mean_reversion": {
		Name: "mean_reversion",
		SignalWeights: map[string]float64{
			"momentum":       0.2,
			"mean_reversion": 0.6,
		},
		RegimeWeight: 0.2,
		Threshold:    0.08,
	},
	"conservative": {
		Name:          "conservative",
		SignalWeights: nil,
		RegimeWeight:  0.2,
		Threshold:     0.2,
	},
}

// GetPreset looks up a preset by name. An empty name returns "default" with
// no warning; an unknown name falls back to "default" and returns a warning
// describing the fallback, rather than an error — presets are ergonomic
// shortcuts, not validated config.
func GetPreset(name string) (Preset, []string) {
	if name == "" {
		return presets["default"], nil
	}
	if p, ok := presets[name]; ok {
		return p, nil
	}
	return presets["default"], []string{fmt.Sprintf("unknown preset %q, using \"default\"", name)}
}

// Apply copies a preset's weighting scheme onto a CoreConfig, leaving every
// other field (costs, sizing, risk) untouched.
func (p Preset) Apply(c *CoreConfig) {
	c.SignalWeights = p.SignalWeights
	c.RegimeWeight = p.RegimeWeight
	c.Threshold = p.Threshold
}
