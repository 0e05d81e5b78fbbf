package jenkins

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

// reportingDateLayout is the timestamp format of machine_info.reporting_date.
const reportingDateLayout = "01/02/2006 15:04:05"

// Report is a parsed summary_report.json.
type Report struct {
	Build    int
	Machines []Machine
}

// Machine is the part of a report produced by one test machine.
type Machine struct {
	Name    string
	Summary model.RunSummary
	Groups  []Group
}

// Group is the result of one test group on one machine.
type Group struct {
	Name          string
	Skipped       int
	Observed      int
	ReportingDate time.Time
	// Broken is set when the group carries no machine_info block.
	Broken bool
}

type summaryJSON struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Error         int     `json:"error"`
	Skipped       int     `json:"skipped"`
	Observed      int     `json:"observed"`
	ExecutionTime float64 `json:"execution_time"`
}

// groupTotals is the entry stored under the empty key of a group.
type groupTotals struct {
	Skipped     int `json:"skipped"`
	Observed    int `json:"observed"`
	MachineInfo *struct {
		ReportingDate string `json:"reporting_date"`
	} `json:"machine_info"`
}

// ParseReport decodes a summary report, keeping machines and groups in
// the order the report lists them.
func ParseReport(data []byte) (*Report, error) {
	machines, err := sources.OrderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}

	report := &Report{}
	for _, m := range machines {
		var raw struct {
			Summary summaryJSON     `json:"summary"`
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(m.Value, &raw); err != nil {
			return nil, fmt.Errorf("invalid report for machine %s: %w", m.Key, err)
		}

		machine := Machine{
			Name: m.Key,
			Summary: model.RunSummary{
				Machine:       m.Key,
				Total:         raw.Summary.Total,
				Passed:        raw.Summary.Passed,
				Failed:        raw.Summary.Failed,
				Errored:       raw.Summary.Error,
				Skipped:       raw.Summary.Skipped,
				Observed:      raw.Summary.Observed,
				ExecutionTime: time.Duration(raw.Summary.ExecutionTime * float64(time.Second)),
			},
		}

		if len(raw.Results) > 0 {
			groups, err := sources.OrderedObject(raw.Results)
			if err != nil {
				return nil, fmt.Errorf("invalid results for machine %s: %w", m.Key, err)
			}
			for _, g := range groups {
				group, err := parseGroup(g)
				if err != nil {
					return nil, fmt.Errorf("invalid group %s on %s: %w", g.Key, m.Key, err)
				}
				machine.Groups = append(machine.Groups, group)
			}
		}

		report.Machines = append(report.Machines, machine)
	}
	return report, nil
}

func parseGroup(m sources.Member) (Group, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(m.Value, &entries); err != nil {
		return Group{}, err
	}

	var totals groupTotals
	if raw, ok := entries[""]; ok {
		if err := json.Unmarshal(raw, &totals); err != nil {
			return Group{}, err
		}
	}

	group := Group{
		Name:     m.Key,
		Skipped:  totals.Skipped,
		Observed: totals.Observed,
	}
	if totals.MachineInfo == nil {
		group.Broken = true
		return group, nil
	}
	if s := totals.MachineInfo.ReportingDate; s != "" {
		date, err := time.Parse(reportingDateLayout, s)
		if err != nil {
			return Group{}, fmt.Errorf("invalid reporting date: %w", err)
		}
		group.ReportingDate = date
	}
	return group, nil
}

// Broken reports whether any group lacks machine information.
func (r *Report) Broken() bool {
	for _, m := range r.Machines {
		for _, g := range m.Groups {
			if g.Broken {
				return true
			}
		}
	}
	return false
}

// ReportingDate is the most recent reporting date across all groups.
func (r *Report) ReportingDate() time.Time {
	var latest time.Time
	for _, m := range r.Machines {
		for _, g := range m.Groups {
			if g.ReportingDate.After(latest) {
				latest = g.ReportingDate
			}
		}
	}
	return latest
}

// PreferredMachine returns the first machine whose name contains marker,
// or the first machine when none does.
func (r *Report) PreferredMachine(marker string) (Machine, bool) {
	if len(r.Machines) == 0 {
		return Machine{}, false
	}
	if marker != "" {
		for _, m := range r.Machines {
			if strings.Contains(m.Name, marker) {
				return m, true
			}
		}
	}
	return r.Machines[0], true
}

// GroupStats counts skipped plus observed cases per group on the preferred
// machine. Groups without such cases are left out.
func (r *Report) GroupStats(marker string) model.GroupStats {
	machine, ok := r.PreferredMachine(marker)
	if !ok {
		return nil
	}

	var stats model.GroupStats
	for _, g := range machine.Groups {
		if n := g.Skipped + g.Observed; n > 0 {
			stats = append(stats, model.GroupCount{Group: g.Name, Count: n})
		}
	}
	return stats
}
