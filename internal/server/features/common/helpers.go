// Package common provides the response helpers shared by the HTTP features.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weppcloud/queryengine/pkg/core"
)

// ExceptionsLog is the per-run file 5xx errors are appended to.
const ExceptionsLog = "exceptions.log"

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind core.Kind) int {
	switch kind {
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound, core.KindCatalogMissing:
		return http.StatusNotFound
	case core.KindDatasetMissing, core.KindInvalidPayload:
		return http.StatusUnprocessableEntity
	case core.KindInvalidRequest:
		return http.StatusBadRequest
	case core.KindReadOnly:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// TraceID returns a fresh hex trace id.
func TraceID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// WriteJSON encodes v with status. A Content-Type set by the caller is kept.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// ErrorBody is the console error envelope.
type ErrorBody struct {
	Error           string   `json:"error"`
	StatusCode      int      `json:"status_code"`
	Code            string   `json:"code,omitempty"`
	Stacktrace      string   `json:"stacktrace,omitempty"`
	StacktraceLines []string `json:"stacktrace_lines,omitempty"`
	ExcInfo         string   `json:"exc_info,omitempty"`
}

// Failure describes an error ready for serialization.
type Failure struct {
	Status int
	Kind   core.Kind
	Detail string
	// Stack and ExcInfo are only populated for 5xx errors.
	Stack   string
	ExcInfo string
}

// Describe classifies err for the edges.
func Describe(err error) Failure {
	kind := core.KindOf(err)
	f := Failure{Status: StatusFor(kind), Kind: kind, Detail: err.Error()}
	if f.Status >= http.StatusInternalServerError {
		f.Stack = string(debug.Stack())
		f.ExcInfo = excInfo(err)
	}
	return f
}

func excInfo(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Err != nil {
		return fmt.Sprintf("%s: %T: %v", ce.Kind, ce.Err, ce.Err)
	}
	return fmt.Sprintf("%T: %v", err, err)
}

// Body renders f as the console envelope.
func (f Failure) Body() ErrorBody {
	b := ErrorBody{Error: f.Detail, StatusCode: f.Status, Code: string(f.Kind), ExcInfo: f.ExcInfo}
	if f.Stack != "" {
		b.Stacktrace = f.Stack
		b.StacktraceLines = strings.Split(strings.TrimRight(f.Stack, "\n"), "\n")
	}
	return b
}

// WriteError writes the console envelope for err. 5xx errors are logged
// and, when baseDir is known, appended to the run's exceptions log.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, baseDir string, err error) {
	f := Describe(err)
	if f.Status >= http.StatusInternalServerError {
		Report(logger, r, baseDir, f)
	}
	WriteJSON(w, f.Status, f.Body())
}

// Report logs a 5xx failure and appends it to <baseDir>/exceptions.log.
// Write failures are ignored.
func Report(logger *slog.Logger, r *http.Request, baseDir string, f Failure) {
	if logger != nil {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", f.Kind, "error", f.Detail)
	}
	if baseDir == "" {
		return
	}
	file, err := os.OpenFile(filepath.Join(baseDir, ExceptionsLog), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer func() { _ = file.Close() }()
	_, _ = fmt.Fprintf(file, "[%s] %s %s -> %d %s\n%s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), r.Method, r.URL.Path, f.Status, f.Detail, f.ExcInfo, f.Stack)
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name)))
	switch raw {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}
	return false, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "query parameter %s must be a boolean", name)
}
