package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func newTestHandler(t *testing.T) *Handler {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE universes (
			key TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT 'watchlist',
			description TEXT NOT NULL DEFAULT '',
			updated_at TEXT
		);
		CREATE TABLE universe_members (
			universe_key TEXT NOT NULL REFERENCES universes(key) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			PRIMARY KEY (universe_key, symbol)
		);
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := universe.NewRepository(db, log)
	require.NoError(t, repo.UpsertUniverse(universe.Record{Key: "dow30", Type: universe.TypeIndex, Description: "Dow components"}))
	require.NoError(t, repo.ReplaceMembers("dow30", []string{"AAPL", "MSFT", "JPM"}))
	require.NoError(t, repo.UpsertUniverse(universe.Record{Key: "etfs", Type: universe.TypeFund}))

	service := universe.NewService(repo, time.Hour, log)
	return NewHandler(service, log)
}

func TestHandleList(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/universes", nil)
	w := httptest.NewRecorder()
	handler.HandleList(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Universes []struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Description string `json:"description"`
			MemberCount int    `json:"member_count"`
		} `json:"universes"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.Equal(t, 2, response.TotalCount)
	require.Len(t, response.Universes, 2)
	assert.Equal(t, "dow30", response.Universes[0].Name)
	assert.Equal(t, 3, response.Universes[0].MemberCount)
	assert.Equal(t, "Dow components", response.Universes[0].Description)
}

func TestHandleListFilteredByType(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/universes?type=fund", nil)
	w := httptest.NewRecorder()
	handler.HandleList(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Universes  []map[string]interface{} `json:"universes"`
		TotalCount int                      `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Universes, 1)
	assert.Equal(t, "etfs", response.Universes[0]["name"])
}

func TestHandleRefreshCache(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/universes/cache/refresh", nil)
	w := httptest.NewRecorder()
	handler.HandleRefreshCache(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
}
