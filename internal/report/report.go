// Package report renders benchmark results. The measurement packages only
// produce results; writing them anywhere is done here.
package report

import (
	"sort"
	"time"

	"calibench/internal/benchmark"
	"calibench/internal/probe"
	"calibench/internal/stats"
)

// Entry is one named benchmark outcome.
type Entry struct {
	Name        string                    `json:"name" yaml:"name"`
	Result      benchmark.BenchmarkResult `json:"result" yaml:"result"`
	Stats       *stats.EnhancedSummary    `json:"stats,omitempty" yaml:"stats,omitempty"`
	Calibration *benchmark.Calibration    `json:"calibration,omitempty" yaml:"calibration,omitempty"`
	Mode        string                    `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Report is everything one CLI invocation produced.
type Report struct {
	Timestamp time.Time          `json:"timestamp" yaml:"timestamp"`
	System    *probe.Snapshot    `json:"system,omitempty" yaml:"system,omitempty"`
	Entries   []Entry            `json:"entries" yaml:"entries"`
	Ranking   *benchmark.Ranking `json:"ranking,omitempty" yaml:"ranking,omitempty"`
}

// Reporter writes a report somewhere.
type Reporter interface {
	Write(r Report) error
}

// Multi fans a report out to several reporters and stops at the first error.
type Multi []Reporter

func (m Multi) Write(r Report) error {
	for _, rep := range m {
		if err := rep.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// FromResults builds entries from a name → result mapping, sorted by name.
func FromResults(results map[string]benchmark.BenchmarkResult) []Entry {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Result: results[name]})
	}
	return entries
}
