package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/xray/internal/database"
	"github.com/aristath/xray/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	scheduler   *scheduler.Scheduler
	jobs        map[string]scheduler.Job
	databases   []*database.DB
}

// NewSystemHandlers creates a new system handlers instance. Nil databases are ignored.
func NewSystemHandlers(
	log zerolog.Logger,
	sched *scheduler.Scheduler,
	jobs []scheduler.Job,
	databases ...*database.DB,
) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name()] = job
	}

	var dbs []*database.DB
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}

	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		scheduler:   sched,
		jobs:        byName,
		databases:   dbs,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartedAt     string            `json:"started_at"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	Goroutines    int               `json:"goroutines"`
	GoVersion     string            `json:"go_version"`
	Databases     []*database.Stats `json:"databases"`
	LastChecked   string            `json:"last_checked"`
}

// JobInfo describes a manually triggerable job
type JobInfo struct {
	Name string `json:"name"`
}

// HandleHealth reports liveness
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleSystemStatus returns process, host and database status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	status := "healthy"
	stats := make([]*database.Stats, 0, len(h.databases))
	for _, db := range h.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			status = "degraded"
		}
		s, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			status = "degraded"
			continue
		}
		stats = append(stats, s)
	}

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		StartedAt:     h.startupTime.Format(time.RFC3339),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Databases:     stats,
		LastChecked:   time.Now().Format(time.RFC3339),
	})
}

// HandleListJobs lists jobs that can be triggered manually
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := make([]JobInfo, 0, len(h.jobs))
	for name := range h.jobs {
		jobs = append(jobs, JobInfo{Name: name})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerJob runs a registered job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "job not found: " + name})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": name + " completed"})
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// Short sampling interval keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
