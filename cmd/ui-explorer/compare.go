package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rob-kingsbury/ui-explorer/internal/config"
	"github.com/rob-kingsbury/ui-explorer/internal/database"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Constants for quality direction and summary messages.
const (
	directionWorsened  = "worsened"
	directionImproved  = "improved"
	directionUnchanged = "unchanged"
	noIssuesMessage    = "No issues"
)

// NewCompareCmd creates the compare command.
// This command compares run results with historical data stored in the
// run-history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [target-url]",
		Short: "Compare exploration results with historical data",
		Long: `Compare displays differences between the current and previous runs.

This command retrieves historical run data from the database and shows:
- New issues that appeared since the last run
- Resolved issues that are no longer present
- Verifications that regressed from passing to failing
- Changes in the explored state count

The comparison requires at least two runs in the database for the
specified target. Use 'ui-explorer explore' to perform runs and save
results.

Examples:
  # Compare the latest two runs for a target
  ui-explorer compare http://localhost:3000

  # List all run history for a target
  ui-explorer compare --list http://localhost:3000

  # Compare with a specific historical run by ID
  ui-explorer compare --with-run-id 2f1a... http://localhost:3000

  # Compare with the first run after a date
  ui-explorer compare --since "2026-08-01" http://localhost:3000

  # Output the comparison in JSON format
  ui-explorer compare --json http://localhost:3000

  # List all explored targets in the database
  ui-explorer compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all explored targets in the database")

	// Comparison target flags
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	// Database location
	cmd.Flags().String("db-dir", "",
		"Run-history database directory (default: XDG data directory)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database: a failed validation
	// must not take the store lock.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target URL is required (use --list-targets to see explored targets)")
		}
		target = args[0]
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	store, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()

	if listTargets {
		return listExploredTargets(ctx, store)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, store, target)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetString("with-run-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	return runComparison(ctx, store, target, withRunID, sinceDate, jsonOutput, markdownOutput)
}

// listExploredTargets lists all targets that have run records.
func listExploredTargets(ctx context.Context, store *database.RunStore) error {
	targets, err := store.Targets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Println("No explored targets found in the database.")
		fmt.Println("\nUse 'ui-explorer explore <url>' to explore an application.")
		return nil
	}

	fmt.Printf("Explored targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Printf("  • %s\n", t)
	}
	fmt.Println("\nUse 'ui-explorer compare --list <url>' to see run history for a target.")

	return nil
}

// listRunHistory lists all run records for a specific target.
func listRunHistory(ctx context.Context, store *database.RunStore, target string) error {
	runs, err := store.ListRuns(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No run history found for %s\n", target)
		fmt.Println("\nUse 'ui-explorer explore' to explore this application.")
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", target, len(runs))
	fmt.Printf("  %-36s  %-20s  %-7s  %s\n", "Run ID", "Date", "States", "Issue Summary")
	fmt.Println("  " + strings.Repeat("-", 84))

	for _, run := range runs {
		summary := fmt.Sprintf("%d issues, %d verify failed", run.Issues, run.VerifyFailed)
		if run.Issues == 0 && run.VerifyFailed == 0 {
			summary = noIssuesMessage
		}
		if run.Error != "" {
			summary += " (aborted)"
		}
		fmt.Printf("  %-36s  %-20s  %-7d  %s\n",
			run.RunID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.States,
			summary,
		)
	}

	fmt.Println("\nUse 'ui-explorer compare <url>' to compare the latest two runs.")
	fmt.Println("Use 'ui-explorer compare --with-run-id <id> <url>' to compare with a specific run.")

	return nil
}

// runComparison performs the actual comparison between run results.
func runComparison(ctx context.Context, store *database.RunStore, target, withRunID, sinceDate string, jsonOutput, markdownOutput bool) error {
	current, previous, err := store.LatestTwo(ctx, target)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("no run history found for %s", target)
		}
		return fmt.Errorf("failed to get run history: %w", err)
	}

	switch {
	case withRunID != "":
		previous, err = store.GetRun(ctx, withRunID)
		if err != nil {
			if errors.Is(err, database.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", withRunID)
			}
			return fmt.Errorf("failed to get run %s: %w", withRunID, err)
		}
		if previous.Target != target {
			return fmt.Errorf("run %s belongs to %s, not %s", withRunID, previous.Target, target)
		}
	case sinceDate != "":
		previous, err = findRunSince(ctx, store, target, sinceDate, current)
		if err != nil {
			return err
		}
	case previous == nil:
		return fmt.Errorf("at least 2 runs are required for comparison (found 1)")
	}

	comparison := compareRuns(previous, current)

	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	if markdownOutput {
		return outputComparisonMarkdown(comparison)
	}
	return outputComparisonText(comparison)
}

// findRunSince returns the oldest run at or after the given date.
func findRunSince(ctx context.Context, store *database.RunStore, target, sinceDate string, current *model.RunResult) (*model.RunResult, error) {
	parsed, err := time.Parse("2006-01-02", sinceDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
	}

	runs, err := store.ListRuns(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	// Runs are newest first; walk backwards to find the oldest match.
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].StartedAt.Before(parsed) {
			continue
		}
		if runs[i].RunID == current.RunID {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", sinceDate)
		}
		return store.GetRun(ctx, runs[i].RunID)
	}
	return nil, fmt.Errorf("no runs found since %s", sinceDate)
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Target is the explored application.
	Target string `json:"target"`

	// PreviousRun and CurrentRun summarize the compared runs.
	PreviousRun RunMetadata `json:"previous_run"`
	CurrentRun  RunMetadata `json:"current_run"`

	// NewIssues contains issues present in the current run only.
	NewIssues []model.Issue `json:"new_issues,omitempty"`

	// ResolvedIssues contains issues from the previous run that are gone.
	ResolvedIssues []model.Issue `json:"resolved_issues,omitempty"`

	// UnchangedCount is the number of issues present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Regressions contains verifications that passed before and fail now.
	Regressions []model.VerificationResult `json:"regressions,omitempty"`

	// Fixed contains verifications that failed before and pass now.
	Fixed []model.VerificationResult `json:"fixed,omitempty"`

	// StateDelta is the change in explored state count. A shrinking graph
	// on an unchanged configuration usually means part of the application
	// became unreachable.
	StateDelta int `json:"state_delta"`

	// QualityChange describes the overall change between the runs.
	QualityChange QualityChange `json:"quality_change"`
}

// RunMetadata summarizes one run for comparison display.
type RunMetadata struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	States       int `json:"states"`
	TotalIssues  int `json:"total_issues"`
	Critical     int `json:"critical"`
	Serious      int `json:"serious"`
	Moderate     int `json:"moderate"`
	Minor        int `json:"minor"`
	VerifyFailed int `json:"verify_failed"`
}

// QualityChange describes the change in quality between runs.
type QualityChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	// Per-severity deltas in issue counts.
	CriticalDelta int `json:"critical_delta"`
	SeriousDelta  int `json:"serious_delta"`
	ModerateDelta int `json:"moderate_delta"`
	MinorDelta    int `json:"minor_delta"`

	// VerifyFailedDelta is the change in failed verification count.
	VerifyFailedDelta int `json:"verify_failed_delta"`
}

// compareRuns compares two runs and generates a comparison result.
func compareRuns(previous, current *model.RunResult) *ComparisonResult {
	result := &ComparisonResult{
		Target:      current.Target,
		PreviousRun: runMetadata(previous),
		CurrentRun:  runMetadata(current),
		StateDelta:  len(current.States) - len(previous.States),
	}

	previousIssues := issueSet(previous.Issues)
	currentIssues := issueSet(current.Issues)

	for key, issue := range currentIssues {
		if _, exists := previousIssues[key]; !exists {
			result.NewIssues = append(result.NewIssues, issue)
		}
	}
	for key, issue := range previousIssues {
		if _, exists := currentIssues[key]; !exists {
			result.ResolvedIssues = append(result.ResolvedIssues, issue)
		} else {
			result.UnchangedCount++
		}
	}
	model.SortIssues(result.NewIssues)
	model.SortIssues(result.ResolvedIssues)

	previousVerify := verificationOutcomes(previous.Verifications)
	for _, v := range current.Verifications {
		passedBefore, seen := previousVerify[verificationKey(v)]
		if !seen {
			continue
		}
		switch {
		case passedBefore && !v.Passed:
			result.Regressions = append(result.Regressions, v)
		case !passedBefore && v.Passed:
			result.Fixed = append(result.Fixed, v)
		}
	}

	result.QualityChange = calculateQualityChange(result.PreviousRun, result.CurrentRun)
	return result
}

// runMetadata extracts the comparison metadata from a run.
func runMetadata(run *model.RunResult) RunMetadata {
	summary := run.Summarize()
	return RunMetadata{
		RunID:        run.RunID,
		StartedAt:    run.StartedAt,
		States:       summary.States,
		TotalIssues:  summary.Issues,
		Critical:     summary.BySeverity[model.SeverityCritical],
		Serious:      summary.BySeverity[model.SeveritySerious],
		Moderate:     summary.BySeverity[model.SeverityModerate],
		Minor:        summary.BySeverity[model.SeverityMinor],
		VerifyFailed: summary.VerifyFailed,
	}
}

// issueSet indexes issues by identity key. Duplicate findings of the same
// rule at the same place collapse into one entry, which is what comparison
// wants: "still broken" rather than "broken twice".
func issueSet(issues []model.Issue) map[string]model.Issue {
	set := make(map[string]model.Issue, len(issues))
	for _, issue := range issues {
		set[issueKey(issue)] = issue
	}
	return set
}

// issueKey generates an identity key for an issue for comparison purposes.
// The state fingerprint is deliberately excluded: fingerprints shift when
// unrelated page content changes, and a stable URL+rule identity is what
// makes "new" and "resolved" meaningful across runs.
func issueKey(issue model.Issue) string {
	locator := ""
	if len(issue.Locators) > 0 {
		locator = issue.Locators[0]
	}
	return issue.Rule + "|" + issue.URL + "|" + issue.Viewport + "|" + locator + "|" + issue.Detail
}

// verificationKey generates an identity key for a verification.
func verificationKey(v model.VerificationResult) string {
	return v.Schema + "|" + v.Expectation
}

// verificationOutcomes maps verification identity to its pass/fail outcome.
// When the same expectation ran multiple times, a single failure counts as
// failed.
func verificationOutcomes(vs []model.VerificationResult) map[string]bool {
	outcomes := make(map[string]bool, len(vs))
	for _, v := range vs {
		passed, seen := outcomes[verificationKey(v)]
		outcomes[verificationKey(v)] = v.Passed && (!seen || passed)
	}
	return outcomes
}

// calculateQualityChange calculates the change in quality between runs.
func calculateQualityChange(previous, current RunMetadata) QualityChange {
	change := QualityChange{
		CriticalDelta:     current.Critical - previous.Critical,
		SeriousDelta:      current.Serious - previous.Serious,
		ModerateDelta:     current.Moderate - previous.Moderate,
		MinorDelta:        current.Minor - previous.Minor,
		VerifyFailedDelta: current.VerifyFailed - previous.VerifyFailed,
	}

	// Weighted score so a new critical issue outweighs several resolved
	// minor ones. Failed verifications weigh like criticals: both mean a
	// declared behavior is broken.
	previousScore := previous.Critical*100 + previous.VerifyFailed*100 +
		previous.Serious*50 + previous.Moderate*10 + previous.Minor
	currentScore := current.Critical*100 + current.VerifyFailed*100 +
		current.Serious*50 + current.Moderate*10 + current.Minor

	switch {
	case currentScore < previousScore:
		change.Direction = directionImproved
	case currentScore > previousScore:
		change.Direction = directionWorsened
	default:
		change.Direction = directionUnchanged
	}
	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(result *ComparisonResult) error {
	fmt.Printf("# Run Comparison: %s\n\n", result.Target)

	fmt.Println("## Summary")
	fmt.Printf("\n**Quality:** %s\n\n", formatDirection(result.QualityChange.Direction))

	fmt.Println("| Metric | Previous | Current | Change |")
	fmt.Println("|--------|----------|---------|--------|")
	fmt.Printf("| Date | %s | %s | - |\n",
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04"),
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04"))
	fmt.Printf("| States | %d | %d | %s |\n",
		result.PreviousRun.States, result.CurrentRun.States, formatDelta(result.StateDelta))
	fmt.Printf("| Critical | %d | %d | %s |\n",
		result.PreviousRun.Critical, result.CurrentRun.Critical,
		formatDelta(result.QualityChange.CriticalDelta))
	fmt.Printf("| Serious | %d | %d | %s |\n",
		result.PreviousRun.Serious, result.CurrentRun.Serious,
		formatDelta(result.QualityChange.SeriousDelta))
	fmt.Printf("| Moderate | %d | %d | %s |\n",
		result.PreviousRun.Moderate, result.CurrentRun.Moderate,
		formatDelta(result.QualityChange.ModerateDelta))
	fmt.Printf("| Minor | %d | %d | %s |\n",
		result.PreviousRun.Minor, result.CurrentRun.Minor,
		formatDelta(result.QualityChange.MinorDelta))
	fmt.Printf("| Verify failed | %d | %d | %s |\n",
		result.PreviousRun.VerifyFailed, result.CurrentRun.VerifyFailed,
		formatDelta(result.QualityChange.VerifyFailedDelta))
	fmt.Printf("| **Total issues** | **%d** | **%d** | **%s** |\n",
		result.PreviousRun.TotalIssues, result.CurrentRun.TotalIssues,
		formatDelta(result.CurrentRun.TotalIssues-result.PreviousRun.TotalIssues))

	if len(result.Regressions) > 0 {
		fmt.Printf("\n## Verification Regressions (%d)\n\n", len(result.Regressions))
		for _, v := range result.Regressions {
			fmt.Printf("- **%s**: %s — %s\n", v.Schema, v.Expectation, v.Message)
		}
	}

	if len(result.NewIssues) > 0 {
		fmt.Printf("\n## New Issues (%d)\n\n", len(result.NewIssues))
		for _, issue := range result.NewIssues {
			fmt.Printf("- **[%s]** %s: %s\n", strings.ToUpper(issue.Severity.String()), issue.Rule, issue.Message)
			if issue.URL != "" {
				fmt.Printf("  - At: `%s`\n", issue.URL)
			}
		}
	}

	if len(result.ResolvedIssues) > 0 {
		fmt.Printf("\n## Resolved Issues (%d)\n\n", len(result.ResolvedIssues))
		for _, issue := range result.ResolvedIssues {
			fmt.Printf("- ~~**[%s]** %s: %s~~\n", strings.ToUpper(issue.Severity.String()), issue.Rule, issue.Message)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Printf("\n---\n\n*%d issues unchanged*\n", result.UnchangedCount)
	}

	return nil
}

// outputComparisonText outputs the comparison result in human-readable text.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Run Comparison: %s\n", result.Target)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nQuality: %s\n", formatDirection(result.QualityChange.Direction))

	fmt.Printf("\nPrevious run: %s (%s)\n",
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"), result.PreviousRun.RunID)
	fmt.Printf("Current run:  %s (%s)\n",
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"), result.CurrentRun.RunID)
	fmt.Printf("States:       %d -> %d (%s)\n",
		result.PreviousRun.States, result.CurrentRun.States, formatDelta(result.StateDelta))

	fmt.Println("\nIssue Summary:")
	fmt.Printf("  %-14s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Println("  " + strings.Repeat("-", 50))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Critical",
		result.PreviousRun.Critical, result.CurrentRun.Critical,
		formatDelta(result.QualityChange.CriticalDelta))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Serious",
		result.PreviousRun.Serious, result.CurrentRun.Serious,
		formatDelta(result.QualityChange.SeriousDelta))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Moderate",
		result.PreviousRun.Moderate, result.CurrentRun.Moderate,
		formatDelta(result.QualityChange.ModerateDelta))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Minor",
		result.PreviousRun.Minor, result.CurrentRun.Minor,
		formatDelta(result.QualityChange.MinorDelta))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Verify failed",
		result.PreviousRun.VerifyFailed, result.CurrentRun.VerifyFailed,
		formatDelta(result.QualityChange.VerifyFailedDelta))
	fmt.Println("  " + strings.Repeat("-", 50))
	fmt.Printf("  %-14s  %-10d  %-10d  %-10s\n", "Total",
		result.PreviousRun.TotalIssues, result.CurrentRun.TotalIssues,
		formatDelta(result.CurrentRun.TotalIssues-result.PreviousRun.TotalIssues))

	if len(result.Regressions) > 0 {
		fmt.Printf("\nVerification Regressions (%d):\n", len(result.Regressions))
		for _, v := range result.Regressions {
			fmt.Printf("  [!] %s: %s\n", v.Schema, v.Expectation)
			if v.Message != "" {
				fmt.Printf("      %s\n", v.Message)
			}
		}
	}
	if len(result.Fixed) > 0 {
		fmt.Printf("\nFixed Verifications (%d):\n", len(result.Fixed))
		for _, v := range result.Fixed {
			fmt.Printf("  [+] %s: %s\n", v.Schema, v.Expectation)
		}
	}

	if len(result.NewIssues) > 0 {
		fmt.Printf("\nNew Issues (%d):\n", len(result.NewIssues))
		for _, issue := range result.NewIssues {
			fmt.Printf("  [+] [%s] %s: %s\n",
				strings.ToUpper(issue.Severity.String()), issue.Rule, issue.Message)
			if issue.URL != "" {
				fmt.Printf("      At: %s\n", issue.URL)
			}
		}
	}

	if len(result.ResolvedIssues) > 0 {
		fmt.Printf("\nResolved Issues (%d):\n", len(result.ResolvedIssues))
		for _, issue := range result.ResolvedIssues {
			fmt.Printf("  [-] [%s] %s: %s\n",
				strings.ToUpper(issue.Severity.String()), issue.Rule, issue.Message)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d issues\n", result.UnchangedCount)
	}

	return nil
}

// formatDirection formats the quality change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionImproved:
		return "IMPROVED (fewer or less severe findings)"
	case directionWorsened:
		return "WORSENED (more or more severe findings)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
