package api

import (
	"sort"
	"sync"
	"time"

	"github.com/maltedev/catalog-crawler/internal/models"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SiteRun is the progress of one site session inside a run.
type SiteRun struct {
	Site        string               `json:"site"`
	Backend     string               `json:"backend"`
	Status      string               `json:"status"`
	Products    int                  `json:"products"`
	Categories  int                  `json:"categories"`
	Terms       []models.TermSummary `json:"terms,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       string               `json:"error,omitempty"`
}

type Run struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Sites     []*SiteRun `json:"sites"`
	StartedAt time.Time  `json:"started_at"`
}

type Stats struct {
	TotalRuns     int     `json:"total_runs"`
	RunningSites  int     `json:"running_sites"`
	FailedSites   int     `json:"failed_sites"`
	TotalProducts int     `json:"total_products"`
	TermsSkipped  int     `json:"terms_skipped"`
	PriceRatio    float64 `json:"price_ratio"`
}

// Registry keeps the runs of this process in memory for the diagnostics API.
// Site sessions report into it from their own goroutines.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]*Run),
		now:  time.Now,
	}
}

// StartSite marks a site session of runID as running, creating the run on first use.
func (r *Registry) StartSite(runID, site, backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		run = &Run{ID: runID, StartedAt: r.now()}
		r.runs[runID] = run
	}
	run.Sites = append(run.Sites, &SiteRun{
		Site:      site,
		Backend:   backend,
		Status:    RunStatusRunning,
		StartedAt: r.now(),
	})
	run.Status = runStatus(run)
}

// FinishSite records the outcome of a site session.
func (r *Registry) FinishSite(runID, site string, out *models.Output, terms []models.TermSummary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return
	}
	for _, s := range run.Sites {
		if s.Site != site || s.Status != RunStatusRunning {
			continue
		}
		now := r.now()
		s.CompletedAt = &now
		s.Terms = terms
		if out != nil {
			s.Products = len(out.Products)
			s.Categories = len(out.Categories)
		}
		s.Status = RunStatusCompleted
		if err != nil {
			s.Status = RunStatusFailed
			s.Error = err.Error()
		}
		break
	}
	run.Status = runStatus(run)
}

func runStatus(run *Run) string {
	status := RunStatusCompleted
	for _, s := range run.Sites {
		switch s.Status {
		case RunStatusRunning:
			return RunStatusRunning
		case RunStatusFailed:
			status = RunStatusFailed
		}
	}
	return status
}

func (r *Registry) Get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return copyRun(run), true
}

// List returns all runs, newest first.
func (r *Registry) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, copyRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		stats     Stats
		withPrice int
	)
	stats.TotalRuns = len(r.runs)
	for _, run := range r.runs {
		for _, s := range run.Sites {
			switch s.Status {
			case RunStatusRunning:
				stats.RunningSites++
			case RunStatusFailed:
				stats.FailedSites++
			}
			stats.TotalProducts += s.Products
			for _, t := range s.Terms {
				if t.Skipped {
					stats.TermsSkipped++
				}
				withPrice += t.WithPrice
			}
		}
	}
	if stats.TotalProducts > 0 {
		stats.PriceRatio = float64(withPrice) / float64(stats.TotalProducts)
	}
	return stats
}

func copyRun(run *Run) Run {
	out := *run
	out.Sites = make([]*SiteRun, len(run.Sites))
	for i, s := range run.Sites {
		c := *s
		out.Sites[i] = &c
	}
	return out
}
