package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/weppcloud/queryengine/internal/auth"
	"github.com/weppcloud/queryengine/internal/server/features/common"
	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// Deps are the collaborators of the MCP routes.
type Deps struct {
	Auth           *auth.Config
	Resolver       *runctx.Resolver
	Activator      *catalog.Activator
	Query          *query.Service
	UnsafePatterns []UnsafePattern
	RunInterchange bool
	RootPath       string
	Logger         *slog.Logger
}

// Handlers provides HTTP handlers for the MCP feature.
type Handlers struct {
	deps Deps
}

// NewHandlers fills defaults for unset collaborators.
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Activator == nil {
		deps.Activator = &catalog.Activator{Logger: deps.Logger}
	}
	if deps.Query == nil {
		deps.Query = &query.Service{Logger: deps.Logger}
	}
	if deps.Auth == nil {
		deps.Auth = &auth.Config{}
	}
	if deps.UnsafePatterns == nil {
		deps.UnsafePatterns = DefaultUnsafePatterns
	}
	return &Handlers{deps: deps}
}

func newMeta() map[string]any {
	return map[string]any{"trace_id": common.TraceID()}
}

func (h *Handlers) mount() string {
	return h.deps.RootPath + "/mcp"
}

func (h *Handlers) write(w http.ResponseWriter, status int, doc Document) {
	if doc.Meta == nil {
		doc.Meta = newMeta()
	}
	if id, ok := doc.Meta["trace_id"].(string); ok {
		w.Header().Set("X-Trace-Id", id)
	}
	w.Header().Set("Content-Type", "application/vnd.api+json")
	common.WriteJSON(w, status, doc)
}

// fail writes a JSON:API error document. 5xx errors carry the stack and are
// appended to the run's exceptions log when base is known.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, base string, err error, extra map[string]any) {
	f := common.Describe(err)
	obj := ErrorObject{Code: string(f.Kind), Detail: f.Detail, Meta: extra}
	if f.Status >= http.StatusInternalServerError {
		common.Report(h.deps.Logger, r, base, f)
		body := f.Body()
		if obj.Meta == nil {
			obj.Meta = map[string]any{}
		}
		obj.Meta["exc_info"] = body.ExcInfo
		obj.Meta["stacktrace_lines"] = body.StacktraceLines
	}
	meta := newMeta()
	w.Header().Set("X-Trace-Id", meta["trace_id"].(string))
	w.Header().Set("Content-Type", "application/vnd.api+json")
	common.WriteJSON(w, f.Status, ErrorDocument{Errors: []ErrorObject{obj}, Meta: meta})
}

func (h *Handlers) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.fail(w, r, "", err, nil)
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func runNotFound(runID string) error {
	return core.NewError(core.KindNotFound, core.ErrNotFound, "run %s not found", runID)
}

// requireRunAccess rejects runs outside the principal's allowlist before
// any scope is checked, so foreign runs always read as missing.
func (h *Handlers) requireRunAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runid")
		if !principal(r).CanAccessRun(runID) {
			h.fail(w, r, "", runNotFound(runID), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// locate returns the run directory after checking the principal may see
// it. Missing runs and forbidden runs are indistinguishable.
func (h *Handlers) locate(r *http.Request) (string, string, error) {
	runID := chi.URLParam(r, "runid")
	if !principal(r).CanAccessRun(runID) {
		return runID, "", runNotFound(runID)
	}
	base, err := h.deps.Resolver.Locate(runID, r.URL.Query().Get("scenario"))
	if err != nil {
		return runID, "", runNotFound(runID)
	}
	return runID, base, nil
}

// resolve is locate followed by catalog resolution, activating on first use
// when the resolver is configured to.
func (h *Handlers) resolve(r *http.Request) (*core.RunContext, error) {
	runID, _, err := h.locate(r)
	if err != nil {
		return nil, err
	}
	rc, err := h.deps.Resolver.Resolve(r.Context(), runID, r.URL.Query().Get("scenario"))
	if runctx.IsNotFound(err) {
		return nil, runNotFound(runID)
	}
	return rc, err
}

func (h *Handlers) runLinks(runID string) map[string]string {
	self := h.mount() + "/runs/" + runID
	return map[string]string{
		"self":           self,
		"catalog":        self + "/catalog",
		"query":          h.deps.RootPath + "/runs/" + runID + "/query",
		"query_execute":  self + "/queries/execute",
		"query_validate": self + "/queries/validate",
		"activate":       self + "/activate",
	}
}

func (h *Handlers) runResource(runID, base string) Resource {
	attrs := RunAttributes{Path: base, Activated: catalog.Exists(base)}
	if cat, err := catalog.Load(base); err == nil {
		generated := cat.Snapshot().GeneratedAt
		attrs.LastCatalogRefresh = &generated
		attrs.DatasetCount = len(FilterEntries(cat.Entries(), h.deps.UnsafePatterns))
	}
	return Resource{Type: "run", ID: runID, Attributes: attrs, Links: h.runLinks(runID)}
}

// Ping reports the authenticated principal.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	h.write(w, http.StatusOK, Document{Data: Resource{
		Type: "ping",
		ID:   p.Subject,
		Attributes: PingAttributes{
			Service: ServiceName,
			Status:  "ok",
			Principal: map[string]any{
				"subject":  p.Subject,
				"scopes":   p.Scopes,
				"run_ids":  p.RunIDs,
				"token_id": p.TokenID,
				"issuer":   p.Issuer,
			},
			Version: h.deps.Auth.ServiceVersion,
		},
	}})
}

// ListRuns lists the runs in the principal's allowlist that exist.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := auth.RequireScope(p, ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	page, err := ParsePage(r.URL.Query())
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}

	runs := make([]Resource, 0, len(p.RunIDs))
	for _, id := range p.RunIDs {
		base, err := h.deps.Resolver.Locate(id, "")
		if err != nil {
			continue
		}
		runs = append(runs, h.runResource(id, base))
	}

	data, pm := Paginate(runs, page)
	meta := newMeta()
	meta["page"] = pm
	h.write(w, http.StatusOK, Document{Data: data, Meta: meta, Links: pageLinks(h.deps.RootPath+r.URL.Path, r.URL.Query(), pm)})
}

// GetRun describes one run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireScope(principal(r), ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	runID, base, err := h.locate(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	h.write(w, http.StatusOK, Document{Data: h.runResource(runID, base)})
}

// Catalog lists the run's visible datasets.
func (h *Handlers) Catalog(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireScope(principal(r), ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	q := r.URL.Query()
	includeFields, err := common.QueryBool(r, "include_fields")
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	fieldLimit, err := FieldLimit(q)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	page, err := ParsePage(q, "limit_datasets")
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}

	_, base, err := h.locate(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	cat, err := catalog.Load(base)
	if err != nil {
		h.fail(w, r, base, err, nil)
		return
	}

	all := cat.Entries()
	visible := FilterEntries(all, h.deps.UnsafePatterns)
	window, pm := Paginate(visible, page)

	data := make([]Resource, len(window))
	for i, e := range window {
		attrs := DatasetAttributes{Path: e.Path, Extension: e.Extension, SizeBytes: e.SizeBytes, Modified: e.Modified}
		if e.Schema != nil {
			attrs.FieldCount = len(e.Schema.Fields)
			if includeFields {
				attrs.Fields = e.Schema.Fields
				if fieldLimit > 0 && len(attrs.Fields) > fieldLimit {
					attrs.Fields = attrs.Fields[:fieldLimit]
					attrs.FieldsTruncated = true
				}
			}
		}
		data[i] = Resource{Type: "dataset", ID: e.Path, Attributes: attrs}
	}

	meta := newMeta()
	meta["page"] = pm
	meta["catalog"] = map[string]int{"total": len(all), "filtered": len(visible), "returned": len(data)}
	h.write(w, http.StatusOK, Document{Data: data, Meta: meta, Links: pageLinks(h.deps.RootPath+r.URL.Path, q, pm)})
}

// prepare decodes and validates the request body against the run catalog.
func (h *Handlers) prepare(w http.ResponseWriter, r *http.Request) (*core.RunContext, *query.Validation, bool) {
	rc, err := h.resolve(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return nil, nil, false
	}
	req, err := query.DecodeRequest(r.Body)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return nil, nil, false
	}
	v, err := h.deps.Query.Validate(rc, req)
	if err != nil {
		var extra map[string]any
		if v != nil && len(v.MissingDatasets) > 0 {
			extra = map[string]any{"missing_datasets": v.MissingDatasets}
		}
		h.fail(w, r, rc.BaseDir, err, extra)
		return nil, nil, false
	}
	return rc, v, true
}

// Validate checks a query payload without running it.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := auth.RequireScope(p, ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	if err := auth.RequireAnyScope(p, ScopeQueriesValidate, ScopeQueriesExecute); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	rc, v, ok := h.prepare(w, r)
	if !ok {
		return
	}
	h.write(w, http.StatusOK, Document{Data: Resource{Type: "query_validation", ID: rc.RunID, Attributes: v}})
}

// Execute validates and runs a query payload; dry_run stops after validation.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := auth.RequireScope(p, ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	if err := auth.RequireScope(p, ScopeQueriesExecute); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	dryRun, err := common.QueryBool(r, "dry_run")
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	rc, v, ok := h.prepare(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res := &query.Result{Records: []map[string]any{}}
	if !dryRun {
		res, err = h.deps.Query.Run(r.Context(), rc, v.Request)
		if err != nil {
			base := rc.BaseDir
			if errors.Is(err, context.Canceled) {
				base = ""
			}
			h.fail(w, r, base, err, nil)
			return
		}
	}

	meta := newMeta()
	meta["execution"] = map[string]any{
		"dry_run":     dryRun,
		"row_count":   res.RowCount,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
	}
	h.write(w, http.StatusOK, Document{
		Data: Resource{Type: "query_execution", ID: rc.RunID, Attributes: ExecutionAttributes{
			NormalizedPayload: v.Request,
			DryRun:            dryRun,
			Warnings:          v.Warnings,
			Result:            res,
		}},
		Meta: meta,
	})
}

// Activate re-scans the run synchronously.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireScope(principal(r), ScopeRunsActivate); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	runID, base, err := h.locate(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	cat, err := h.deps.Activator.Activate(r.Context(), base, h.deps.RunInterchange)
	if err != nil {
		h.fail(w, r, base, err, nil)
		return
	}
	h.write(w, http.StatusOK, Document{Data: Resource{Type: "activation", ID: runID, Attributes: ActivationAttributes{
		RunID:        runID,
		Status:       "completed",
		GeneratedAt:  cat.Snapshot().GeneratedAt,
		DatasetCount: cat.Len(),
	}}})
}

// Presets returns example payloads.
func (h *Handlers) Presets(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireScope(principal(r), ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	runID, _, err := h.locate(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	h.write(w, http.StatusOK, Document{Data: Resource{Type: "query_presets", ID: runID, Attributes: map[string]any{"categories": Presets}}})
}

// PromptTemplate renders the Markdown prompt for the run.
func (h *Handlers) PromptTemplate(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireScope(principal(r), ScopeRunsRead); err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	runID, base, err := h.locate(r)
	if err != nil {
		h.fail(w, r, "", err, nil)
		return
	}
	var entries []core.CatalogEntry
	if cat, err := catalog.Load(base); err == nil {
		entries = FilterEntries(cat.Entries(), h.deps.UnsafePatterns)
	}

	in := PromptInput{
		RunID:         runID,
		QueryEndpoint: h.mount() + "/runs/" + runID + "/queries/execute",
		RowLimit:      h.deps.Query.MaxLimit,
		Entries:       entries,
		UserRequest:   r.URL.Query().Get("user_request"),
	}
	h.write(w, http.StatusOK, Document{Data: Resource{Type: "prompt_template", ID: runID, Attributes: map[string]any{
		"markdown":     RenderPrompt(in),
		"placeholders": in.Placeholders(),
	}}})
}
