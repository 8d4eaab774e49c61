package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestHandleListLogs(t *testing.T) {
	logsDir := t.TempDir()
	writeLogFile(t, logsDir, "errors.jsonl", []string{`{"error_id":"e1"}`})
	writeLogFile(t, logsDir, "errors-2026-08-01.jsonl", []string{`{"error_id":"e0"}`})
	writeLogFile(t, logsDir, "notes.txt", []string{"not a log"})

	h := NewLogHandlers(logsDir, testLogger())
	rec := httptest.NewRecorder()
	h.HandleListLogs(rec, httptest.NewRequest(http.MethodGet, "/api/system/logs/list", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var response LogListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 2, response.Total)
	names := []string{response.LogFiles[0].Name, response.LogFiles[1].Name}
	assert.ElementsMatch(t, []string{"errors.jsonl", "errors-2026-08-01.jsonl"}, names)
	for _, file := range response.LogFiles {
		assert.False(t, file.ModifiedAt.IsZero(), file.Name)
	}
}

func TestHandleListLogs_MissingDirectory(t *testing.T) {
	h := NewLogHandlers(filepath.Join(t.TempDir(), "absent"), testLogger())

	rec := httptest.NewRecorder()
	h.HandleListLogs(rec, httptest.NewRequest(http.MethodGet, "/api/system/logs/list", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var response LogListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Zero(t, response.Total)
}

func TestHandleGetLogs(t *testing.T) {
	logsDir := t.TempDir()
	writeLogFile(t, logsDir, "errors.jsonl", []string{
		`{"error_id":"e1","severity":"warning","message":"slow insert"}`,
		`{"error_id":"e2","severity":"error","message":"detector crashed"}`,
		`{"error_id":"e3","severity":"critical","message":"database locked"}`,
	})
	h := NewLogHandlers(logsDir, testLogger())

	get := func(query string) LogContentResponse {
		t.Helper()
		rec := httptest.NewRecorder()
		h.HandleGetLogs(rec, httptest.NewRequest(http.MethodGet, "/api/system/logs"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var response LogContentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		return response
	}

	full := get("")
	assert.Equal(t, 3, full.Total)
	assert.Len(t, full.Lines, 3)
	assert.Equal(t, "ok", full.Status)

	tail := get("?lines=2")
	assert.Equal(t, 3, tail.Total)
	require.Len(t, tail.Lines, 2)
	assert.Contains(t, tail.Lines[0], "e2")

	critical := get("?severity=critical")
	require.Len(t, critical.Lines, 1)
	assert.Contains(t, critical.Lines[0], "database locked")

	search := get("?search=Detector")
	require.Len(t, search.Lines, 1)
	assert.Contains(t, search.Lines[0], "e2")
}

func TestHandleGetLogs_MissingFile(t *testing.T) {
	h := NewLogHandlers(t.TempDir(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleGetLogs(rec, httptest.NewRequest(http.MethodGet, "/api/system/logs?file=absent.jsonl", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetLogs_RejectsPathTraversal(t *testing.T) {
	h := NewLogHandlers(t.TempDir(), testLogger())

	for _, name := range []string{"../secrets.jsonl", "..", "sub/file.jsonl", `win\file.jsonl`} {
		rec := httptest.NewRecorder()
		target := "/api/system/logs?file=" + url.QueryEscape(name)
		h.HandleGetLogs(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestFilterLogLines(t *testing.T) {
	lines := []string{
		`{"severity":"error","message":"detector crashed"}`,
		``,
		`{"severity":"warning","message":"slow insert"}`,
	}

	assert.Len(t, filterLogLines(lines, "", ""), 2)
	assert.Len(t, filterLogLines(lines, "error", ""), 1)
	assert.Len(t, filterLogLines(lines, "error", "slow"), 0)
	assert.Len(t, filterLogLines(lines, "", "SLOW"), 1)
}
