// Package support holds the step definitions of the engine feature suite.
package support

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// TestContext holds the state of one scenario: the statement being built,
// the engine settings and the outcome of the last extraction or request.
type TestContext struct {
	Pages       []testutil.FakePage
	Fragments   map[int][]token.RawFragment
	OCRErrors   map[int]error
	NoOCR       bool
	OpenErr     error
	Config      extract.Config
	PatternConf table.PatternConfig

	Document *testutil.FakeDocument
	Progress *testutil.Recorder
	Result   *extract.Result
	Err      error

	Server             *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext returns a context with the default engine settings.
func NewTestContext() *TestContext {
	return &TestContext{
		Fragments:   map[int][]token.RawFragment{},
		OCRErrors:   map[int]error{},
		Config:      extract.DefaultConfig(),
		PatternConf: table.DefaultPatternConfig(),
		Progress:    &testutil.Recorder{},
	}
}

// Service builds an extraction service over the scenario's document.
func (tc *TestContext) Service() (*extract.Service, error) {
	patterns, err := table.NewPatterns(tc.PatternConf)
	if err != nil {
		return nil, fmt.Errorf("invalid patterns: %w", err)
	}

	var rec extract.Recognizer
	if !tc.NoOCR {
		rec = &testutil.FakeRecognizer{Fragments: tc.Fragments, Errs: tc.OCRErrors}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := extract.NewOrchestrator(tc.Config, table.NewReconstructor(patterns), rec, logger)

	tc.Document = testutil.NewFakeDocument(tc.Pages...)
	opener := testutil.FakeOpener{Doc: tc.Document, Err: tc.OpenErr}
	return extract.NewService(opener, orch, logger), nil
}

// Extract runs the scenario's document through the engine.
func (tc *TestContext) Extract(ctx context.Context) error {
	svc, err := tc.Service()
	if err != nil {
		return err
	}
	tc.Result, tc.Err = svc.ProcessBytes(ctx, []byte("%PDF-1.7"), tc.Progress)
	return nil
}

// Cleanup releases the scenario's resources.
func (tc *TestContext) Cleanup() {
	if tc.Server != nil {
		tc.Server.Close()
		tc.Server = nil
	}
}
