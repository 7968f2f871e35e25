package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/database"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

func compareRun(t *testing.T, target string, startedAt time.Time, issues []model.Issue, verifications []model.VerificationResult, states int) *model.RunResult {
	t.Helper()
	run := model.NewRunResult(target)
	run.StartedAt = startedAt
	run.FinishedAt = startedAt.Add(30 * time.Second)
	run.Issues = issues
	run.Verifications = verifications
	for i := 0; i < states; i++ {
		run.States = append(run.States, &model.AppState{
			Fingerprint: strings.Repeat("a", 15) + string(rune('a'+i)),
			URL:         target,
		})
	}
	return run
}

func TestCompareRuns(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	stays := model.Issue{
		Rule: "img-alt", Severity: model.SeverityModerate,
		Message: "image without alt text", URL: "http://app.test/about",
	}
	goesAway := model.Issue{
		Rule: "broken-link-404", Severity: model.SeveritySerious,
		Message: "link returned 404", URL: "http://app.test/old",
	}
	appears := model.Issue{
		Rule: "console-error", Severity: model.SeveritySerious,
		Message: "uncaught TypeError", URL: "http://app.test/songs",
	}

	previous := compareRun(t, "http://app.test/", base,
		[]model.Issue{stays, goesAway},
		[]model.VerificationResult{
			{Schema: "add-song", Expectation: "row added to songs", Passed: true},
			{Schema: "delete-song", Expectation: "row removed from songs", Passed: false},
		}, 5)
	current := compareRun(t, "http://app.test/", base.Add(time.Hour),
		[]model.Issue{stays, appears},
		[]model.VerificationResult{
			{Schema: "add-song", Expectation: "row added to songs", Passed: false, Message: "row was not added"},
			{Schema: "delete-song", Expectation: "row removed from songs", Passed: true},
		}, 7)

	result := compareRuns(previous, current)

	if len(result.NewIssues) != 1 || result.NewIssues[0].Rule != "console-error" {
		t.Errorf("NewIssues = %+v, want one console-error", result.NewIssues)
	}
	if len(result.ResolvedIssues) != 1 || result.ResolvedIssues[0].Rule != "broken-link-404" {
		t.Errorf("ResolvedIssues = %+v, want one broken-link-404", result.ResolvedIssues)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("UnchangedCount = %d, want 1", result.UnchangedCount)
	}
	if result.StateDelta != 2 {
		t.Errorf("StateDelta = %d, want 2", result.StateDelta)
	}
	if len(result.Regressions) != 1 || result.Regressions[0].Schema != "add-song" {
		t.Errorf("Regressions = %+v, want add-song", result.Regressions)
	}
	if len(result.Fixed) != 1 || result.Fixed[0].Schema != "delete-song" {
		t.Errorf("Fixed = %+v, want delete-song", result.Fixed)
	}
	// One serious issue traded for another, but a verification regressed.
	if result.QualityChange.Direction != directionUnchanged {
		t.Errorf("Direction = %q, want unchanged (verify regression offset by fix)", result.QualityChange.Direction)
	}
}

func TestCompareRuns_Directions(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	critical := model.Issue{Rule: "expectation-failed", Severity: model.SeverityCritical, Message: "boom"}
	minor := model.Issue{Rule: "nit", Severity: model.SeverityMinor, Message: "small"}

	tests := []struct {
		name          string
		previous      []model.Issue
		current       []model.Issue
		wantDirection string
	}{
		{"worsened", nil, []model.Issue{critical}, directionWorsened},
		{"improved", []model.Issue{critical}, []model.Issue{minor}, directionImproved},
		{"unchanged", []model.Issue{minor}, []model.Issue{minor}, directionUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			previous := compareRun(t, "http://app.test/", base, tt.previous, nil, 3)
			current := compareRun(t, "http://app.test/", base.Add(time.Hour), tt.current, nil, 3)
			result := compareRuns(previous, current)
			if result.QualityChange.Direction != tt.wantDirection {
				t.Errorf("Direction = %q, want %q", result.QualityChange.Direction, tt.wantDirection)
			}
		})
	}
}

func TestIssueKey_IgnoresFingerprint(t *testing.T) {
	t.Parallel()

	a := model.Issue{Rule: "img-alt", URL: "http://app.test/", StateFingerprint: "aaaa"}
	b := model.Issue{Rule: "img-alt", URL: "http://app.test/", StateFingerprint: "bbbb"}
	if issueKey(a) != issueKey(b) {
		t.Error("issues differing only by fingerprint should share a key")
	}

	c := model.Issue{Rule: "img-alt", URL: "http://app.test/other"}
	if issueKey(a) == issueKey(c) {
		t.Error("issues at different URLs should not share a key")
	}
}

func TestVerificationOutcomes_FailureWins(t *testing.T) {
	t.Parallel()

	outcomes := verificationOutcomes([]model.VerificationResult{
		{Schema: "add-song", Expectation: "row added", Passed: true},
		{Schema: "add-song", Expectation: "row added", Passed: false},
		{Schema: "add-song", Expectation: "row added", Passed: true},
	})
	if outcomes["add-song|row added"] {
		t.Error("any failure should mark the expectation failed")
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{3, "+3"},
		{-2, "-2"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}

func TestRunComparison_WithStore(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	store, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first := compareRun(t, "http://app.test/", base,
		[]model.Issue{{Rule: "img-alt", Severity: model.SeverityModerate, Message: "no alt"}}, nil, 3)
	second := compareRun(t, "http://app.test/", base.Add(time.Minute), nil, nil, 4)
	for _, run := range []*model.RunResult{first, second} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := runComparison(ctx, store, "http://app.test/", "", "", true, false); err != nil {
		t.Errorf("runComparison(latest two) error = %v", err)
	}
	if err := runComparison(ctx, store, "http://app.test/", first.RunID, "", false, true); err != nil {
		t.Errorf("runComparison(--with-run-id) error = %v", err)
	}
	if err := runComparison(ctx, store, "http://app.test/", "missing-id", "", false, false); err == nil {
		t.Error("runComparison(bad run id) expected error")
	}
	if err := runComparison(ctx, store, "http://other.test/", "", "", false, false); err == nil {
		t.Error("runComparison(unknown target) expected error")
	}
}

func TestFindRunSince(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	store, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	old := compareRun(t, "http://app.test/", time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), nil, nil, 2)
	mid := compareRun(t, "http://app.test/", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), nil, nil, 3)
	latest := compareRun(t, "http://app.test/", time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC), nil, nil, 4)
	for _, run := range []*model.RunResult{old, mid, latest} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	got, err := findRunSince(ctx, store, "http://app.test/", "2026-08-01", latest)
	if err != nil {
		t.Fatalf("findRunSince() error = %v", err)
	}
	if got.RunID != mid.RunID {
		t.Errorf("findRunSince() = %s, want oldest run after the date (%s)", got.RunID, mid.RunID)
	}

	if _, err := findRunSince(ctx, store, "http://app.test/", "2026-09-01", latest); err == nil {
		t.Error("findRunSince(future date) expected error")
	}
	if _, err := findRunSince(ctx, store, "http://app.test/", "not-a-date", latest); err == nil {
		t.Error("findRunSince(bad date) expected error")
	}
	if _, err := findRunSince(ctx, store, "http://app.test/", "2026-08-27", latest); err == nil {
		t.Error("findRunSince(only current run matches) expected error")
	}
}
