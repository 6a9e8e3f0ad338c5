package engine

import (
	"fmt"
	"sort"
)

// Summary holds the totals of one run.
type Summary struct {
	RunID               string                    `yaml:"run_id"`
	Deployment          string                    `yaml:"deployment"`
	LinesProcessed      int                       `yaml:"lines_processed"`
	EventLinesProcessed int                       `yaml:"event_lines_processed"`
	OutOfOrder          int                       `yaml:"out_of_order,omitempty"`
	Unsupported         int                       `yaml:"unsupported"`
	Days                int                       `yaml:"days"`
	Sessions            int                       `yaml:"sessions"`
	CountsByType        map[string]int            `yaml:"counts_by_type"`
	ExtraTallyValues    map[string]map[string]int `yaml:"extra_tally_values,omitempty"`
}

// TotalEvents is the number of supported events processed.
func (s Summary) TotalEvents() int {
	total := 0
	for _, n := range s.CountsByType {
		total += n
	}
	return total
}

// Lines renders the per-type counts, sorted by type.
func (s Summary) Lines() []string {
	types := make([]string, 0, len(s.CountsByType))
	for t := range s.CountsByType {
		types = append(types, t)
	}
	sort.Strings(types)

	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("Found [%d] events for type [%s]", s.CountsByType[t], t))
	}
	return lines
}
