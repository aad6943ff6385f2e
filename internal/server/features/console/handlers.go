package console

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/weppcloud/queryengine/internal/server/features/common"
	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

//go:embed templates/*.html
var templateFS embed.FS

// defaultPreviewLimit seeds the console form payload.
const defaultPreviewLimit = 25

// Deps are the collaborators of the console routes.
type Deps struct {
	Resolver       *runctx.Resolver
	Activator      *catalog.Activator
	Query          *query.Service
	RunInterchange bool
	RootPath       string
	Logger         *slog.Logger
}

// Handlers provides HTTP handlers for the console feature.
type Handlers struct {
	deps  Deps
	pages map[string]*template.Template
}

// NewHandlers parses the embedded templates.
func NewHandlers(deps Deps) (*Handlers, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Activator == nil {
		deps.Activator = &catalog.Activator{Logger: deps.Logger}
	}
	if deps.Query == nil {
		deps.Query = &query.Service{Logger: deps.Logger}
	}

	h := &Handlers{deps: deps, pages: make(map[string]*template.Template)}
	for _, name := range []string{"index.html", "run.html", "query.html"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, err
		}
		h.pages[name] = tmpl
	}
	return h, nil
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages[name].ExecuteTemplate(w, name, data); err != nil {
		h.deps.Logger.Error("render failed", "page", name, "path", r.URL.Path, "error", err)
	}
}

// fail writes the console error envelope, attributing 5xx errors to the
// run in the path when it can be located.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	base := ""
	if runID := chi.URLParam(r, "runid"); runID != "" {
		base, _ = h.deps.Resolver.Locate(runID, r.URL.Query().Get("scenario"))
	}
	common.WriteError(w, r, h.deps.Logger, base, err)
}

func (h *Handlers) resolve(r *http.Request) (*core.RunContext, error) {
	return h.deps.Resolver.Resolve(r.Context(), chi.URLParam(r, "runid"), r.URL.Query().Get("scenario"))
}

func (h *Handlers) runURL(r *http.Request, suffix string) string {
	u := h.deps.RootPath + "/runs/" + chi.URLParam(r, "runid") + suffix
	if sc := r.URL.Query().Get("scenario"); sc != "" {
		u += "?scenario=" + sc
	}
	return u
}

// Index renders the landing page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index.html", pageData{Title: "WEPP Query Engine", RootPath: h.deps.RootPath})
}

// RunInfo renders the catalog of one run.
func (h *Handlers) RunInfo(w http.ResponseWriter, r *http.Request) {
	rc, err := h.resolve(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap := rc.Catalog.Snapshot()
	page := runPage{
		pageData:    pageData{Title: "Run " + rc.RunID, RootPath: h.deps.RootPath},
		RunID:       runctx.Describe(rc.RunID, rc.Scenario),
		BaseDir:     rc.BaseDir,
		GeneratedAt: snap.GeneratedAt,
		QueryURL:    h.runURL(r, "/query"),
		SchemaURL:   h.runURL(r, "/schema"),
	}
	for _, e := range rc.Catalog.Entries() {
		row := entryRow{Path: e.Path, Size: humanize.Bytes(uint64(max(e.SizeBytes, 0))), Modified: e.Modified, Fields: "-"}
		if mt := e.ModifiedTime(); !mt.IsZero() {
			row.Age = humanize.Time(mt)
		}
		if e.Schema != nil {
			row.Fields = strconv.Itoa(len(e.Schema.Fields))
		}
		page.Entries = append(page.Entries, row)
	}
	h.render(w, r, "run.html", page)
}

// Schema returns the full catalog as JSON.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	rc, err := h.resolve(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, rc.Catalog.Snapshot())
}

// seedDataset picks the first Parquet entry, else the first other entry the
// planner can read.
func seedDataset(entries []core.CatalogEntry) (string, bool) {
	fallback := ""
	for _, e := range entries {
		if e.Extension == ".parquet" {
			return e.Path, true
		}
		if fallback == "" && query.Tabular(e.Path) {
			fallback = e.Path
		}
	}
	return fallback, fallback != ""
}

// QueryForm renders the console seeded with the run's first readable dataset.
func (h *Handlers) QueryForm(w http.ResponseWriter, r *http.Request) {
	rc, err := h.resolve(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	datasets := []string{}
	if seed, ok := seedDataset(rc.Catalog.Entries()); ok {
		datasets = append(datasets, seed)
	}
	payload, err := json.MarshalIndent(map[string]any{
		"datasets":       datasets,
		"limit":          defaultPreviewLimit,
		"include_schema": true,
	}, "", "  ")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "query.html", queryPage{
		pageData: pageData{Title: "Query " + rc.RunID, RootPath: h.deps.RootPath},
		RunID:    runctx.Describe(rc.RunID, rc.Scenario),
		Payload:  string(payload),
		PostURL:  h.runURL(r, "/query"),
	})
}

// Query runs the JSON request in the body.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	req, err := query.DecodeRequest(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rc, err := h.resolve(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.deps.Query.Run(r.Context(), rc, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

// Activate forces a full activation of the run.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runid")
	base, err := h.deps.Resolver.Locate(runID, r.URL.Query().Get("scenario"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cat, err := h.deps.Activator.Activate(r.Context(), base, h.deps.RunInterchange)
	if err != nil {
		common.WriteError(w, r, h.deps.Logger, base, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, ActivationResult{
		RunID:        runID,
		Status:       "completed",
		GeneratedAt:  cat.Snapshot().GeneratedAt,
		DatasetCount: cat.Len(),
	})
}
