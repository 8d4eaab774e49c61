package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams_HistoricalLoad(t *testing.T) {
	raw := json.RawMessage(`{"symbols":["AAPL","MSFT"],"years":2,"timeframes":["daily"]}`)

	params, err := DecodeParams(JobTypeHistoricalLoad, raw)
	require.NoError(t, err)

	p, ok := params.(HistoricalLoadParams)
	require.True(t, ok)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Symbols)
	assert.Equal(t, 2, p.Years)

	symbols, expr := params.SymbolSources()
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
	assert.Empty(t, expr)
}

func TestDecodeParams_UniverseExpression(t *testing.T) {
	raw := json.RawMessage(`{"universe_key":"sp500:nasdaq100","years":1}`)

	params, err := DecodeParams(JobTypeHistoricalLoad, raw)
	require.NoError(t, err)

	symbols, expr := params.SymbolSources()
	assert.Empty(t, symbols)
	assert.Equal(t, "sp500:nasdaq100", expr)
}

func TestDecodeParams_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		raw     string
	}{
		{"historical load without target", JobTypeHistoricalLoad, `{"years":1}`},
		{"historical load without years", JobTypeHistoricalLoad, `{"symbols":["AAPL"]}`},
		{"historical load negative years", JobTypeHistoricalLoad, `{"symbols":["AAPL"],"years":-1}`},
		{"historical load blank symbol", JobTypeHistoricalLoad, `{"symbols":["AAPL",""],"years":1}`},
		{"historical load bad timeframe", JobTypeHistoricalLoad, `{"symbols":["AAPL"],"years":1,"timeframes":["2min"]}`},
		{"multi timeframe without timeframes", JobTypeMultiTimeframeLoad, `{"symbols":["AAPL"],"years":1}`},
		{"multi timeframe unknown timeframe", JobTypeMultiTimeframeLoad, `{"symbols":["AAPL"],"years":1,"timeframes":["fortnightly"]}`},
		{"multi timeframe without years", JobTypeMultiTimeframeLoad, `{"symbols":["AAPL"],"timeframes":["daily"]}`},
		{"universe seed without key", JobTypeUniverseSeed, `{}`},
		{"universe seed blank key", JobTypeUniverseSeed, `{"universe_key":"  "}`},
		{"unknown job type", JobType("repaint_charts"), `{}`},
		{"malformed json", JobTypeHistoricalLoad, `{"symbols":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeParams(tt.jobType, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "expected a validation error, got %v", err)
		})
	}
}

func TestDecodeParams_MultiTimeframeLoad(t *testing.T) {
	raw := json.RawMessage(`{"universe_key":"etfs","years":3,"timeframes":["1min","hour","daily"]}`)

	params, err := DecodeParams(JobTypeMultiTimeframeLoad, raw)
	require.NoError(t, err)
	assert.Equal(t, JobTypeMultiTimeframeLoad, params.Type())
}

func TestDecodeParams_UniverseSeed(t *testing.T) {
	raw := json.RawMessage(`{"universe_key":"SP500"}`)

	params, err := DecodeParams(JobTypeUniverseSeed, raw)
	require.NoError(t, err)

	// Seed jobs never resolve on the submission path
	symbols, expr := params.SymbolSources()
	assert.Empty(t, symbols)
	assert.Empty(t, expr)

	req := params.Request("job-1", "ops", nil)
	assert.Equal(t, "sp500", req.UniverseKey)
	assert.Empty(t, req.Symbols)
}

func TestDecodeParams_EnvelopeFieldsIgnored(t *testing.T) {
	// Handlers pass the whole submission body; the envelope keys must not
	// break variant decoding.
	raw := json.RawMessage(`{"job_type":"historical_load","requested_by":"ops","symbols":["AAPL"],"years":1}`)

	_, err := DecodeParams(JobTypeHistoricalLoad, raw)
	require.NoError(t, err)
}

func TestRequestCarriesResolvedSymbols(t *testing.T) {
	params, err := DecodeParams(JobTypeHistoricalLoad, json.RawMessage(`{"universe_key":"etfs","years":1}`))
	require.NoError(t, err)

	req := params.Request("job-9", "ops", []string{"QQQ", "SPY"})
	assert.Equal(t, "job-9", req.JobID)
	assert.Equal(t, JobTypeHistoricalLoad, req.JobType)
	assert.Equal(t, []string{"QQQ", "SPY"}, req.Symbols)
	assert.Equal(t, "etfs", req.UniverseKey)
	assert.Equal(t, "ops", req.RequestedBy)
	assert.NotEmpty(t, req.Timestamp)
}

func TestValidTimeframes(t *testing.T) {
	tfs := ValidTimeframes()
	assert.Len(t, tfs, 8)
	assert.Contains(t, tfs, "1min")
	assert.Contains(t, tfs, "monthly")
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(StatusSubmitted))
	assert.False(t, IsTerminalStatus(StatusRunning))
	assert.True(t, IsTerminalStatus(StatusCompleted))
	assert.True(t, IsTerminalStatus(StatusFailed))
	assert.True(t, IsTerminalStatus(StatusCancelled))
}
