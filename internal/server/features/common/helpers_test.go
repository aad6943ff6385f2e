package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weppcloud/queryengine/pkg/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind core.Kind
		want int
	}{
		{core.KindUnauthorized, http.StatusUnauthorized},
		{core.KindForbidden, http.StatusForbidden},
		{core.KindNotFound, http.StatusNotFound},
		{core.KindCatalogMissing, http.StatusNotFound},
		{core.KindDatasetMissing, http.StatusUnprocessableEntity},
		{core.KindInvalidPayload, http.StatusUnprocessableEntity},
		{core.KindInvalidRequest, http.StatusBadRequest},
		{core.KindReadOnly, http.StatusConflict},
		{core.KindCatalogInvalid, http.StatusInternalServerError},
		{core.KindActivationFailed, http.StatusInternalServerError},
		{core.KindExecutionFailed, http.StatusInternalServerError},
		{core.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestTraceID(t *testing.T) {
	a, b := TraceID(), TraceID()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}

func TestWriteJSON_KeepsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/vnd.api+json")

	WriteJSON(rec, http.StatusCreated, map[string]string{"a": "<b>"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/vnd.api+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a": "<b>"}`, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<b>")
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantStack bool
	}{
		{
			name:     "client error",
			err:      core.NewError(core.KindInvalidRequest, nil, "bad body"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "sentinel classification",
			err:      core.Invalidf("limit must be positive"),
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:      "server error",
			err:       core.NewError(core.KindExecutionFailed, errors.New("engine exploded"), "query execution failed"),
			wantCode:  http.StatusInternalServerError,
			wantStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			req := httptest.NewRequest(http.MethodPost, "/runs/alpha/query", nil)
			rec := httptest.NewRecorder()

			WriteError(rec, req, nil, base, tt.err)

			require.Equal(t, tt.wantCode, rec.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.StatusCode)
			assert.Equal(t, string(core.KindOf(tt.err)), body.Code)
			assert.Equal(t, tt.err.Error(), body.Error)

			logPath := filepath.Join(base, ExceptionsLog)
			if !tt.wantStack {
				assert.Empty(t, body.Stacktrace)
				assert.Empty(t, body.ExcInfo)
				assert.NoFileExists(t, logPath)
				return
			}

			assert.NotEmpty(t, body.Stacktrace)
			assert.NotEmpty(t, body.StacktraceLines)
			assert.Contains(t, body.ExcInfo, "engine exploded")

			data, err := os.ReadFile(logPath)
			require.NoError(t, err)
			assert.Contains(t, string(data), "POST /runs/alpha/query -> 500")
			assert.Contains(t, string(data), "engine exploded")
		})
	}
}

func TestReport_Appends(t *testing.T) {
	base := t.TempDir()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	f := Describe(errors.New("boom"))

	Report(nil, req, base, f)
	Report(nil, req, base, f)

	data, err := os.ReadFile(filepath.Join(base, ExceptionsLog))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "GET /x -> 500 boom"))
}

func TestQueryBool(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{"", false, false},
		{"true", true, false},
		{"1", true, false},
		{"YES", true, false},
		{"off", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?flag="+tt.raw, nil)
			got, err := QueryBool(req, "flag")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
