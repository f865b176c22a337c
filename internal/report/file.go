package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// JSONFile appends every report to a JSON array on disk so successive runs
// build up a history.
type JSONFile struct {
	path string
}

// NewJSONFile creates the parent directory of path if needed.
func NewJSONFile(path string) (*JSONFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &JSONFile{path: path}, nil
}

func (f *JSONFile) Write(r Report) error {
	reports, err := f.LoadAll()
	if err != nil {
		return err
	}
	reports = append(reports, r)

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}
	return os.WriteFile(f.path, data, 0644)
}

// LoadAll returns every stored report, oldest first. A missing or empty
// file is an empty history.
func (f *JSONFile) LoadAll() ([]Report, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Report{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Report{}, nil
	}

	var reports []Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reports: %w", err)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
	return reports, nil
}

// LoadLatest returns the newest report, or nil when there is none.
func (f *JSONFile) LoadLatest() (*Report, error) {
	reports, err := f.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[len(reports)-1], nil
}

// YAMLFile overwrites path with the latest report.
type YAMLFile struct {
	Path string
}

func (f *YAMLFile) Write(r Report) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(f.Path, data, 0644)
}
