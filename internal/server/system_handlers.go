package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/di"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/version"
)

// SystemHandlers exposes process and storage diagnostics.
type SystemHandlers struct {
	container *di.Container
	dataDir   string
	startedAt time.Time
	log       zerolog.Logger
}

func NewSystemHandlers(container *di.Container, dataDir string, startedAt time.Time, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container: container,
		dataDir:   dataDir,
		startedAt: startedAt,
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// DBInfo describes one SQLite database file.
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	Healthy   bool    `json:"healthy"`
}

// HandleSystemInfo returns version, uptime and resource usage.
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := getSystemStats(h.log)

	diskPercent := 0.0
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskPercent = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":      version.Version,
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"uptime_sec":   int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":  cpuPercent,
		"mem_percent":  memPercent,
		"disk_percent": diskPercent,
	})
}

// HandleDatabaseStats reports size and page statistics for each
// database along with a quick integrity signal.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	databases := make([]DBInfo, 0, 2)
	totalSizeMB := 0.0
	for name, db := range h.container.Databases() {
		info := DBInfo{Name: name, Path: db.Path()}

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database stats")
		} else {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.PageCount = stats.PageCount
		}
		info.Healthy = db.QuickCheck(ctx) == nil

		totalSizeMB += info.SizeMB
		databases = append(databases, info)
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Name < databases[j].Name })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":     databases,
		"total_size_mb": totalSizeMB,
		"last_checked":  time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleDiskUsage reports how much space the data directories consume
// and how full the underlying volume is.
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	directories := map[string]float64{
		"data": getDirSizeMB(h.dataDir),
		"logs": getDirSizeMB(filepath.Join(h.dataDir, "logs")),
	}

	response := map[string]interface{}{
		"directories":  directories,
		"last_checked": time.Now().UTC().Format(time.RFC3339),
	}
	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read volume usage")
	} else {
		response["volume_total_gb"] = float64(usage.Total) / 1024 / 1024 / 1024
		response["volume_used_percent"] = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// getDirSizeMB walks a directory tree and sums file sizes. Unreadable
// entries are skipped.
func getDirSizeMB(path string) float64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return float64(size) / 1024 / 1024
}

// getSystemStats samples CPU and memory usage. Failures log a warning
// and report zero rather than failing the caller.
func getSystemStats(log zerolog.Logger) (float64, float64) {
	cpuPercent := 0.0
	if percents, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		log.Warn().Err(err).Msg("Failed to read CPU usage")
	} else if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	memPercent := 0.0
	if stat, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		memPercent = stat.UsedPercent
	}

	return cpuPercent, memPercent
}
