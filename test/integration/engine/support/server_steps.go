package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/stmtgrid/internal/server"
)

// RegisterServerSteps registers the steps driving the HTTP API.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the extraction API is running$`, tc.startServer)
	sc.Step(`^I upload the statement to "([^"]*)"$`, tc.uploadStatement)
	sc.Step(`^I send a GET request to "([^"]*)"$`, tc.getRequest)
	sc.Step(`^the response status is (\d+)$`, tc.responseStatusIs)
	sc.Step(`^the response JSON field "([^"]*)" is "([^"]*)"$`, tc.responseFieldIs)
	sc.Step(`^the response header "([^"]*)" is "([^"]*)"$`, tc.responseHeaderIs)
	sc.Step(`^the response header "([^"]*)" is set$`, tc.responseHeaderSet)
	sc.Step(`^the response contains "([^"]*)"$`, tc.responseContains)
}

func (tc *TestContext) startServer() error {
	svc, err := tc.Service()
	if err != nil {
		return err
	}
	cfg := server.DefaultConfig()
	cfg.Version = "integration"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.NewServer(cfg, svc, nil, logger)
	tc.Server = httptest.NewServer(srv.Handler())
	return nil
}

func (tc *TestContext) uploadStatement(ctx context.Context, path string) error {
	return tc.do(ctx, http.MethodPost, path, bytes.NewReader([]byte("%PDF-1.7")))
}

func (tc *TestContext) getRequest(ctx context.Context, path string) error {
	return tc.do(ctx, http.MethodGet, path, nil)
}

func (tc *TestContext) do(ctx context.Context, method, path string, body io.Reader) error {
	if tc.Server == nil {
		return errors.New("server is not running")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tc.Server.URL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/pdf")
	}
	resp, err := tc.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastHTTPStatusCode = resp.StatusCode
	tc.LastHTTPResponse = string(data)
	tc.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		tc.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (tc *TestContext) responseStatusIs(code int) error {
	if tc.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastHTTPStatusCode, tc.LastHTTPResponse)
	}
	return nil
}

// responseFieldIs compares a dotted path into the JSON body, such as
// "result.path", with want.
func (tc *TestContext) responseFieldIs(field, want string) error {
	var v any
	if err := json.Unmarshal([]byte(tc.LastHTTPResponse), &v); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(field, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: not an object at %q", field, key)
		}
		if v, ok = obj[key]; !ok {
			return fmt.Errorf("%s: missing key %q", field, key)
		}
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("%s: expected %q, got %q", field, want, got)
	}
	return nil
}

func (tc *TestContext) responseHeaderIs(name, want string) error {
	if got := tc.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != want {
		return fmt.Errorf("header %s: expected %q, got %q", name, want, got)
	}
	return nil
}

func (tc *TestContext) responseHeaderSet(name string) error {
	if tc.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

func (tc *TestContext) responseContains(text string) error {
	if !strings.Contains(tc.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q:\n%s", text, tc.LastHTTPResponse)
	}
	return nil
}
