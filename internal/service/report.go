package service

import (
	"time"

	"github.com/audiolibrelab/dialmix/internal/mapping"
)

// SessionReport identifies one audio session in a cycle report.
type SessionReport struct {
	PID  int    `json:"pid"`
	Path string `json:"path,omitempty"`
}

// DialReport is the outcome of one cycle for a single dial.
type DialReport struct {
	Name     string          `json:"name"`
	Selector string          `json:"selector"`
	Bits     uint16          `json:"bits"`
	Percent  float64         `json:"percent"`
	Volume   float32         `json:"volume"`
	Command  bool            `json:"command_mute"`
	Muted    bool            `json:"muted"`
	Sessions []SessionReport `json:"sessions"`
}

// CycleReport describes one completed host cycle.
type CycleReport struct {
	Cycle      uint64          `json:"cycle"`
	Time       time.Time       `json:"time"`
	Dials      []DialReport    `json:"dials"`
	Unassigned []SessionReport `json:"unassigned"`
	Unresolved []SessionReport `json:"unresolved"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// MuteFlags returns the aggregated mute flag of every dial, in dial order.
func (r *CycleReport) MuteFlags() []bool {
	flags := make([]bool, len(r.Dials))
	for i, d := range r.Dials {
		flags[i] = d.Muted
	}
	return flags
}

func boundReports(bound []mapping.Bound) []SessionReport {
	reports := make([]SessionReport, len(bound))
	for i, b := range bound {
		reports[i] = SessionReport{PID: b.Session.ProcessID(), Path: b.Path}
	}
	return reports
}

func unresolvedReports(unresolved []mapping.Unresolved) []SessionReport {
	reports := make([]SessionReport, len(unresolved))
	for i, u := range unresolved {
		reports[i] = SessionReport{PID: u.Session.ProcessID()}
	}
	return reports
}
