package service

import (
	"fmt"

	"github.com/bytedance/gopkg/collection/skipmap"
)

type Outcome string

const (
	OutcomeMigrated        Outcome = "migrated"
	OutcomeAlreadyMigrated Outcome = "already_migrated"
	OutcomeBlocked         Outcome = "blocked"
	OutcomeFailed          Outcome = "failed"
)

type IndexResult struct {
	Name        string     `json:"name"`
	Outcome     Outcome    `json:"outcome"`
	State       IndexState `json:"state"`
	SourceCount string     `json:"source_count"`
	TargetCount string     `json:"target_count"`
	Error       string     `json:"error,omitempty"`
}

func newIndexResult(desc *IndexDescriptor, outcome Outcome, err error) *IndexResult {
	result := &IndexResult{
		Name:        desc.Name,
		Outcome:     outcome,
		State:       desc.State,
		SourceCount: desc.SourceCount.String(),
		TargetCount: desc.TargetCount.String(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// Report accumulates per-index outcomes over a run. The status endpoint
// reads it concurrently while the migration loop writes, so results live in
// a concurrent skip-list map ordered by index name.
type Report struct {
	runID   string
	results *skipmap.StringMap
}

func NewReport(runID string) *Report {
	return &Report{
		runID:   runID,
		results: skipmap.NewString(),
	}
}

func (r *Report) RunID() string {
	return r.runID
}

func (r *Report) Add(result *IndexResult) {
	r.results.Store(result.Name, result)
}

func (r *Report) Get(name string) (*IndexResult, bool) {
	value, ok := r.results.Load(name)
	if !ok {
		return nil, false
	}
	return value.(*IndexResult), true
}

// Results returns all outcomes recorded so far, ordered by index name.
func (r *Report) Results() []*IndexResult {
	var results []*IndexResult
	r.results.Range(func(key string, value interface{}) bool {
		results = append(results, value.(*IndexResult))
		return true
	})
	return results
}

func (r *Report) HasFailures() bool {
	hasFailures := false
	r.results.Range(func(key string, value interface{}) bool {
		if value.(*IndexResult).Outcome == OutcomeFailed {
			hasFailures = true
			return false
		}
		return true
	})
	return hasFailures
}

func (r *Report) Summary() string {
	outcomeCounts := make(map[Outcome]int)
	r.results.Range(func(key string, value interface{}) bool {
		outcomeCounts[value.(*IndexResult).Outcome]++
		return true
	})
	return fmt.Sprintf("migrated: %d, already migrated: %d, blocked: %d, failed: %d",
		outcomeCounts[OutcomeMigrated], outcomeCounts[OutcomeAlreadyMigrated],
		outcomeCounts[OutcomeBlocked], outcomeCounts[OutcomeFailed])
}
