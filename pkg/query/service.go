package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/weppcloud/queryengine/pkg/core"
)

// Observer receives query outcomes.
type Observer interface {
	ObserveQuery(outcome string, duration time.Duration, rows int)
}

// Service is the single entry point for running query requests.
type Service struct {
	Executor *Executor
	// MaxLimit caps request limits when positive.
	MaxLimit int
	Logger   *slog.Logger
	Observer Observer
}

// Validation reports whether a request can run against a run's catalog.
type Validation struct {
	Request         *Request `json:"normalized_payload"`
	Warnings        []string `json:"warnings"`
	MissingDatasets []string `json:"missing_datasets"`
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Validate applies the limit cap and checks dataset existence. A request
// referencing absent datasets yields a dataset_missing error alongside the
// populated Validation.
func (s *Service) Validate(rc *core.RunContext, req *Request) (*Validation, error) {
	v := &Validation{Request: req, Warnings: req.CapLimit(s.MaxLimit)}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
	v.MissingDatasets = MissingDatasets(rc.Catalog, req)
	if len(v.MissingDatasets) > 0 {
		return v, core.NewError(core.KindDatasetMissing, core.ErrNotFound, "datasets not found: %v", v.MissingDatasets)
	}
	return v, nil
}

// Run plans, executes and formats req.
func (s *Service) Run(ctx context.Context, rc *core.RunContext, req *Request) (*Result, error) {
	start := time.Now()
	req.CapLimit(s.MaxLimit)

	res, err := s.run(ctx, rc, req)
	outcome := "ok"
	rows := 0
	if err != nil {
		outcome = string(core.KindOf(err))
	} else {
		rows = res.RowCount
	}
	if s.Observer != nil {
		s.Observer.ObserveQuery(outcome, time.Since(start), rows)
	}
	s.logger().Debug("query finished", "run", rc.RunID, "outcome", outcome, "rows", rows, "duration", time.Since(start))
	return res, err
}

func (s *Service) run(ctx context.Context, rc *core.RunContext, req *Request) (*Result, error) {
	plan, err := Build(rc, req)
	if err != nil {
		return nil, err
	}
	exec := s.Executor
	if exec == nil {
		exec = &Executor{Logger: s.Logger}
	}
	tbl, err := exec.Execute(ctx, rc, plan)
	if err != nil {
		return nil, err
	}
	return Format(tbl, rc, req, plan)
}
