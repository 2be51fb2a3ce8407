package pipeline

import (
	"sync"
	"time"
)

// Run states.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is the state of a run started with Start.
type RunRecord struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Request    Request    `json:"request"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Report     *Report    `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Tracker remembers recent runs. Once more than limit runs are known the
// oldest finished ones are forgotten.
type Tracker struct {
	mu    sync.Mutex
	limit int
	order []string
	runs  map[string]*RunRecord
}

func NewTracker(limit int) *Tracker {
	return &Tracker{limit: limit, runs: make(map[string]*RunRecord)}
}

// Get returns a copy of the run record.
func (t *Tracker) Get(id string) (RunRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// Active returns the number of runs still in progress.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, rec := range t.runs {
		if rec.Status == StatusRunning {
			n++
		}
	}
	return n
}

func (t *Tracker) begin(id string, req Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[id] = &RunRecord{ID: id, Status: StatusRunning, Request: req, StartedAt: time.Now().UTC()}
	t.order = append(t.order, id)
	t.prune()
}

func (t *Tracker) finish(id string, rep Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.runs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.Report = &rep
	rec.Status = StatusSucceeded
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
}

func (t *Tracker) prune() {
	for i := 0; len(t.runs) > t.limit && i < len(t.order); {
		id := t.order[i]
		if t.runs[id].Status == StatusRunning {
			i++
			continue
		}
		delete(t.runs, id)
		t.order = append(t.order[:i], t.order[i+1:]...)
	}
}
