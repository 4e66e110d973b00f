// Package pipeline runs the examload steps in order: schema, fetch, parse,
// load and report. Each step runs only after the previous one succeeded.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/japaniel/examload/pkg/config"
	"github.com/japaniel/examload/pkg/db"
	"github.com/japaniel/examload/pkg/examcsv"
	"github.com/japaniel/examload/pkg/loader"
	"github.com/japaniel/examload/pkg/report"
	"github.com/japaniel/examload/pkg/source"
)

// Stage names a pipeline step.
type Stage string

const (
	StageSchema Stage = "schema"
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageLoad   Stage = "load"
	StageReport Stage = "report"
)

// StageError wraps the error of the step that stopped the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Fetcher retrieves the source document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (source.Response, error)
}

// Result describes a successful run.
type Result struct {
	RunID   string
	Records int
	Load    loader.Stats
	Summary report.Summary
}

// Pipeline wires the steps together. DB is owned by the caller.
type Pipeline struct {
	DB      *sql.DB
	Fetcher Fetcher
	Config  config.Config
	Logger  *zap.Logger
	// Out receives the progress lines and the report.
	Out io.Writer
}

// Run executes one pass. Fetch and parse failures return before anything is
// written; the report only runs after a committed load.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run_id", res.RunID))
	out := p.Out
	if out == nil {
		out = io.Discard
	}

	if err := db.InitDB(ctx, p.DB); err != nil {
		return res, &StageError{StageSchema, err}
	}
	if abs, err := filepath.Abs(p.Config.Database.Path); err == nil && p.Config.Database.Path != ":memory:" {
		fmt.Fprintln(out, "Writing to:", abs)
	}
	log.Debug("schema ready", zap.String("db", p.Config.Database.Path))

	url := p.Config.Source.URL
	log.Info("fetching source", zap.String("url", url))
	resp, err := p.Fetcher.Fetch(ctx, url)
	if err != nil {
		log.Error("fetch failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return res, &StageError{StageFetch, err}
	}

	records, err := examcsv.ParseString(resp.Body)
	if err != nil {
		return res, &StageError{StageParse, err}
	}
	res.Records = len(records)
	log.Info("source parsed", zap.Int("records", len(records)), zap.Int("bytes", len(resp.Body)))

	res.Load, err = loader.New(p.DB, log).Load(ctx, records)
	if err != nil {
		return res, &StageError{StageLoad, err}
	}
	fmt.Fprintln(out, "Data successfully saved to SQLite!")

	rc := p.Config.Report
	res.Summary, err = report.New(p.DB).Run(ctx, report.Options{
		TopErrors:        rc.TopErrors,
		LegacyFirstGroup: rc.LegacyFirstGroup,
		Filter: report.Filter{
			LanguagePair: rc.LanguagePair,
			ErrorType:    rc.ErrorType,
			Year:         rc.Year,
		},
	})
	if err != nil {
		return res, &StageError{StageReport, err}
	}
	if err := res.Summary.Render(out); err != nil {
		return res, &StageError{StageReport, err}
	}
	log.Info("report complete")
	return res, nil
}
