package devtools

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ExportJSON serializes the unit's ordered history for external inspection.
func (r *Recorder) ExportJSON(unit string) ([]byte, error) {
	entries, err := r.History(unit)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return data, nil
}

// ExportYAML serializes the unit's ordered history as YAML.
func (r *Recorder) ExportYAML(unit string) ([]byte, error) {
	entries, err := r.History(unit)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal: %w", err)
	}
	return data, nil
}
