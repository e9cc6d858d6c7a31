package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// AppOverride is an entity-scoped threshold override for one application,
// loaded from the app observer's optional JSON side-file. Nil fields keep
// the base threshold.
type AppOverride struct {
	Name            string   `json:"name"`
	CPUWarning      *float64 `json:"cpu_warning"`
	CPUError        *float64 `json:"cpu_error"`
	MemoryWarningMB *float64 `json:"memory_warning_mb"`
	MemoryErrorMB   *float64 `json:"memory_error_mb"`
}

// LoadAppOverrides reads the JSON side-file and keys the overrides by
// application name. An empty path yields an empty map.
func LoadAppOverrides(path string) (map[string]AppOverride, error) {
	out := make(map[string]AppOverride)
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var entries []AppOverride
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}

	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		out[e.Name] = e
	}
	return out, nil
}
