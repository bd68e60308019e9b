package router

import "sync/atomic"

// RunState is the run-scoped state shared by every handler invocation. The
// cap and details toggle are fixed at construction; only the scraped counter
// changes.
type RunState struct {
	maxJobs       int64
	scrapeDetails bool
	jobsScraped   atomic.Int64
}

// NewRunState builds a RunState. maxJobs <= 0 means unbounded.
func NewRunState(maxJobs int, scrapeDetails bool) *RunState {
	if maxJobs < 0 {
		maxJobs = 0
	}
	return &RunState{maxJobs: int64(maxJobs), scrapeDetails: scrapeDetails}
}

// ShouldContinue reports whether more jobs may be produced.
func (s *RunState) ShouldContinue() bool {
	return s.maxJobs == 0 || s.jobsScraped.Load() < s.maxJobs
}

// Reserve claims one slot under the cap and reports whether it succeeded.
// Concurrent callers never push the counter past MaxJobs.
func (s *RunState) Reserve() bool {
	for {
		cur := s.jobsScraped.Load()
		if s.maxJobs > 0 && cur >= s.maxJobs {
			return false
		}
		if s.jobsScraped.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// JobsScraped returns the number of reserved jobs.
func (s *RunState) JobsScraped() int64 {
	return s.jobsScraped.Load()
}

// MaxJobs returns the cap, 0 when unbounded.
func (s *RunState) MaxJobs() int {
	return int(s.maxJobs)
}

// ScrapeJobDetails reports whether detail pages are visited.
func (s *RunState) ScrapeJobDetails() bool {
	return s.scrapeDetails
}
