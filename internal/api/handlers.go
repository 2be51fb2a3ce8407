package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/store"
)

const maxBodyBytes = 1 << 20

func (s *server) getListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.Listings.Load()
	if err != nil {
		logging.FromContext(r.Context()).Error("load listings", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve listings data")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *server) getSearchURLs(w http.ResponseWriter, r *http.Request) {
	entries, _, err := s.SearchURLs.Read()
	if err != nil {
		logging.FromContext(r.Context()).Error("read search urls", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve search URLs")
		return
	}
	if entries == nil {
		entries = []models.SearchURL{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) postSearchURLs(w http.ResponseWriter, r *http.Request) {
	var entries []models.SearchURL
	if !s.decode(w, r, SchemaSearchURLs, &entries) {
		return
	}
	if err := s.SearchURLs.Write(entries); err != nil {
		logging.FromContext(r.Context()).Error("save search urls", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save search URLs")
		return
	}
	logging.FromContext(r.Context()).Info("search urls updated", "count", len(entries))
	writeJSON(w, http.StatusOK, entries)
}

type scrapeRequest struct {
	Mode        string   `json:"mode"`
	URLs        []string `json:"urls"`
	MaxListings *int     `json:"maxListings"`
}

type scrapeResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

func (s *server) postScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if !s.decode(w, r, SchemaScrape, &body) {
		return
	}
	mode, err := pipeline.ParseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := pipeline.Request{Mode: mode, URLs: body.URLs}
	if body.MaxListings != nil {
		req.MaxListings = *body.MaxListings
	}

	id := s.Runner.Start(req)
	writeJSON(w, http.StatusOK, scrapeResponse{
		Success:  true,
		Message:  "Scraping process started",
		ThreadID: id,
	})
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.Runner.Runs().Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := store.ReadSchedule(s.Schedule)
	if err != nil {
		logging.FromContext(r.Context()).Error("read schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve schedule config")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *server) postSchedule(w http.ResponseWriter, r *http.Request) {
	var sched models.Schedule
	if !s.decode(w, r, SchemaSchedule, &sched) {
		return
	}
	if err := s.Schedule.Write(sched); err != nil {
		logging.FromContext(r.Context()).Error("save schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save schedule config")
		return
	}
	logging.FromContext(r.Context()).Info("schedule updated", "interval", sched.Interval, "enabled", sched.Enabled)
	if s.Scheduler != nil {
		s.Scheduler.Restart(s.BaseContext)
	}
	writeJSON(w, http.StatusOK, sched)
}

type statusResponse struct {
	Status           string            `json:"status"`
	Uptime           float64           `json:"uptime"`
	Memory           map[string]string `json:"memory"`
	CPUPercent       float64           `json:"cpu_percent"`
	Goroutines       int               `json:"goroutines"`
	SchedulerRunning bool              `json:"scheduler_running"`
	ActiveRuns       int               `json:"active_runs"`
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	uptime := time.Since(s.started)

	resp := statusResponse{
		Status:     "running",
		Uptime:     uptime.Seconds(),
		Goroutines: runtime.NumGoroutine(),
		Memory: map[string]string{
			"heap": megabytes(ms.HeapAlloc),
			"sys":  megabytes(ms.Sys),
		},
		ActiveRuns: s.Runner.Runs().Active(),
	}
	if cpu, rss, ok := processUsage(); ok {
		resp.Memory["rss"] = megabytes(rss)
		if uptime > 0 {
			resp.CPUPercent = float64(cpu) / float64(uptime) * 100
		}
	}
	if s.Scheduler != nil {
		resp.SchedulerRunning = s.Scheduler.Running()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode validates the request body against schema and decodes it into v.
// It writes a 400 response and returns false on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, schema string, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validator.Validate(schema, body); err != nil {
		logging.FromContext(r.Context()).Warn("rejected request body", "schema", schema, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func megabytes(b uint64) string {
	return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
}
