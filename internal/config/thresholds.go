package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ThresholdPair is a warning/critical limit for one monitored metric.
type ThresholdPair struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Thresholds is the alert threshold file consumed by the monitor.
//
// Egress is bytes served in the last 24 hours, Cost is USD per month committed
// through payment rails, Performance is retrieval latency in milliseconds.
type Thresholds struct {
	Egress      ThresholdPair `json:"egress"`
	Cost        ThresholdPair `json:"cost"`
	Performance ThresholdPair `json:"performance"`
}

// DefaultThresholds are used when no threshold file exists.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Egress:      ThresholdPair{Warning: 10 << 30, Critical: 50 << 30},
		Cost:        ThresholdPair{Warning: 50, Critical: 100},
		Performance: ThresholdPair{Warning: 2000, Critical: 5000},
	}
}

// LoadThresholds reads the threshold file at path. A missing file yields the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultThresholds(), nil
		}
		return Thresholds{}, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	t := DefaultThresholds()
	if err := json.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// Validate checks that every pair is ordered
func (t Thresholds) Validate() error {
	pairs := map[string]ThresholdPair{
		"egress":      t.Egress,
		"cost":        t.Cost,
		"performance": t.Performance,
	}
	for name, p := range pairs {
		if p.Warning < 0 || p.Critical < 0 {
			return fmt.Errorf("%s thresholds must not be negative", name)
		}
		if p.Warning > p.Critical {
			return fmt.Errorf("%s warning threshold %v is above critical %v", name, p.Warning, p.Critical)
		}
	}
	return nil
}
