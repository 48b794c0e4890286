package domain

import "time"

// Report collects the results of one run in catalogue order.
type Report struct {
	Results    []ValidationResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Passed is the logical AND of every result. Error outcomes count as failures.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Counts tallies results per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}
