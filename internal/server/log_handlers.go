package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxLogLines = 10000

// LogHandlers serves the JSONL error logs written by the distributor,
// including rotated files kept by the retention job.
type LogHandlers struct {
	logsDir string
	log     zerolog.Logger
}

func NewLogHandlers(logsDir string, log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		logsDir: logsDir,
		log:     log.With().Str("component", "log_handlers").Logger(),
	}
}

// LogFileInfo describes one log file on disk.
type LogFileInfo struct {
	Name       string    `json:"name"`
	SizeMB     float64   `json:"size_mb"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LogListResponse lists the available log files.
type LogListResponse struct {
	LogFiles []LogFileInfo `json:"log_files"`
	Total    int           `json:"total"`
}

// LogContentResponse carries filtered log lines.
type LogContentResponse struct {
	Lines  []string `json:"lines"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// HandleListLogs returns the log files under the logs directory,
// newest first.
func (h *LogHandlers) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.logsDir)
	if err != nil && !os.IsNotExist(err) {
		h.log.Error().Err(err).Msg("Failed to list log directory")
		http.Error(w, "Failed to list logs", http.StatusInternalServerError)
		return
	}

	files := make([]LogFileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Name:       entry.Name(),
			SizeMB:     float64(info.Size()) / 1024 / 1024,
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModifiedAt.After(files[j].ModifiedAt) })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LogListResponse{LogFiles: files, Total: len(files)})
}

// HandleGetLogs returns the tail of one log file with optional
// severity and search filtering. The file parameter defaults to the
// live error log.
func (h *LogHandlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		name = "errors.jsonl"
	}
	// File names only. Anything that looks like a path is rejected.
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		http.Error(w, "Invalid log file name", http.StatusBadRequest)
		return
	}

	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			lines = parsed
			if lines > maxLogLines {
				lines = maxLogLines
			}
		}
	}
	severity := strings.ToLower(r.URL.Query().Get("severity"))
	search := r.URL.Query().Get("search")

	content, err := os.ReadFile(filepath.Join(h.logsDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Log file not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("file", name).Msg("Failed to read log file")
		http.Error(w, "Failed to read logs", http.StatusInternalServerError)
		return
	}

	logLines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(logLines) == 1 && logLines[0] == "" {
		logLines = nil
	}

	total := len(logLines)
	if len(logLines) > lines {
		logLines = logLines[len(logLines)-lines:]
	}

	h.log.Debug().
		Str("file", name).
		Int("lines", lines).
		Str("severity", severity).
		Str("search", search).
		Msg("Serving log content")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LogContentResponse{
		Lines:  filterLogLines(logLines, severity, search),
		Total:  total,
		Status: "ok",
	})
}

// filterLogLines keeps lines matching the severity and search term.
// Severity matches the JSONL severity field written by the error log.
func filterLogLines(lines []string, severity string, search string) []string {
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if severity != "" && !strings.Contains(strings.ToLower(line), `"severity":"`+severity+`"`) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
			continue
		}
		filtered = append(filtered, line)
	}
	return filtered
}
