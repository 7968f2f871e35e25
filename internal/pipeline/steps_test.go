package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/config"
	"github.com/rob-kingsbury/ui-explorer/internal/database"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
	"github.com/rob-kingsbury/ui-explorer/internal/report"
	"github.com/rob-kingsbury/ui-explorer/internal/verify"
)

func TestConnectAdaptersStep_Do(t *testing.T) {
	t.Parallel()

	t.Run("no adapters is a no-op", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		registry := verify.NewRegistry()
		step := NewConnectAdaptersStep(cfg, registry, nil)

		if err := step.Do(context.Background(), model.NewRunResult("http://app.test")); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if registry.Len() != 0 {
			t.Errorf("registry has %d adapters, want 0", registry.Len())
		}
	})

	t.Run("connects a healthy service adapter", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			http.NotFound(w, r)
		}))
		defer srv.Close()

		cfg := config.NewConfig()
		cfg.Adapters = map[string]config.AdapterConfig{
			"service": {Kind: "service", URL: srv.URL, Key: "test-key"},
		}
		registry := verify.NewRegistry()
		step := NewConnectAdaptersStep(cfg, registry, nil)

		if err := step.Do(context.Background(), model.NewRunResult("http://app.test")); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if registry.Len() != 1 {
			t.Fatalf("registry has %d adapters, want 1", registry.Len())
		}
		if _, ok := registry.Lookup("service"); !ok {
			t.Error("adapter not registered under its name")
		}
	})

	t.Run("unreachable adapter is fatal", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := config.NewConfig()
		cfg.Adapters = map[string]config.AdapterConfig{
			"service": {Kind: "service", URL: srv.URL, Key: "test-key"},
		}
		step := NewConnectAdaptersStep(cfg, verify.NewRegistry(), nil)

		if err := step.Do(context.Background(), model.NewRunResult("http://app.test")); err == nil {
			t.Fatal("expected a connection error")
		}
	})
}

func TestExploreStep_Do(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html lang="en"><head><title>Home</title></head><body>
<h1>Home</h1>
<a id="about" href="/about">About</a>
<a id="gone" href="/missing">Archive</a>
</body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html lang="en"><head><title>About</title></head><body>
<h1>About</h1>
<a id="home" href="/">Home</a>
</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.StartURLs = []string{srv.URL + "/"}
	cfg.Driver = config.DriverStatic
	cfg.MaxDepth = 2

	session, err := browser.NewStaticSession(browser.StaticConfig{Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewStaticSession failed: %v", err)
	}

	step := NewExploreStep(cfg, verify.NewRegistry(), nil, WithExploreSession(session))
	result := model.NewRunResult(cfg.StartURLs[0])
	if err := step.Do(context.Background(), result); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	if result.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
	if len(result.States) < 2 {
		t.Errorf("explored %d states, want at least home and about", len(result.States))
	}
	if result.ActionsExecuted == 0 {
		t.Error("no actions executed")
	}

	found := false
	for _, issue := range result.Issues {
		if issue.Rule == "broken-link-404" && strings.Contains(issue.Detail, "/missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("broken-link-404 issue for /missing not reported, issues: %+v", result.Issues)
	}
}

func TestPersistStep_Do(t *testing.T) {
	t.Parallel()

	t.Run("saves when enabled", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SaveToDB = true
		cfg.DBDir = t.TempDir()

		result := model.NewRunResult("http://app.test")
		result.FinishedAt = result.StartedAt
		step := NewPersistStep(cfg, nil)
		if err := step.Do(context.Background(), result); err != nil {
			t.Fatalf("Do failed: %v", err)
		}

		store, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = store.Close() }()

		runs, err := store.ListRuns(context.Background(), "")
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(runs) != 1 || runs[0].RunID != result.RunID {
			t.Errorf("stored runs = %+v, want the single saved run", runs)
		}
	})

	t.Run("skips when disabled", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SaveToDB = false
		cfg.DBDir = t.TempDir()

		step := NewPersistStep(cfg, nil)
		if err := step.Do(context.Background(), model.NewRunResult("http://app.test")); err != nil {
			t.Fatalf("Do failed: %v", err)
		}

		store, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = store.Close() }()

		runs, err := store.ListRuns(context.Background(), "")
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("stored %d runs with persistence disabled", len(runs))
		}
	})
}

func TestReportStep_Do(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewReportStep(report.NewJSONWriter(&buf), nil)

	result := model.NewRunResult("http://app.test")
	result.FinishedAt = result.StartedAt
	if err := step.Do(context.Background(), result); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("report step wrote nothing")
	}
	if !strings.Contains(buf.String(), result.RunID) {
		t.Error("report output missing run ID")
	}
}
