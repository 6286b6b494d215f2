package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relialab/checkrun/pkg/output"
)

const testPlan = `version: "1.0"
title: smoke
jobs:
  - id: cpu
    plugin: resource
    command: |
      printf 'cores: 4\nvendor: test\n'
  - id: cpu-check
    summary: needs enough cores
    plugin: shell
    command: "true"
    requires:
      - cpu.cores > 2
  - id: followup
    plugin: shell
    command: "true"
    depends:
      - cpu-check
  - id: optional
    plugin: shell
    command: "true"
select:
  - cpu
  - cpu-check
  - followup
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// readRecords parses every JSONL envelope from path, grouped by type.
func readRecords(t *testing.T, path string) map[string][]json.RawMessage {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	byType := make(map[string][]json.RawMessage)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.NotEmpty(t, rec.SessionID)
		assert.False(t, rec.TS.IsZero())
		byType[rec.Type] = append(byType[rec.Type], rec.Data)
	}
	require.NoError(t, scanner.Err())
	return byType
}

func TestListCommand(t *testing.T) {
	plan := writePlan(t, testPlan)

	out, err := execute(t, "list", "--plan", plan)
	require.NoError(t, err)

	assert.Contains(t, out, "Plan: smoke")
	assert.Contains(t, out, "cpu")
	assert.Contains(t, out, "resource")
	assert.Contains(t, out, "optional")
	assert.Contains(t, out, "4 jobs, 3 selected")
}

func TestListCommand_InvalidPlan(t *testing.T) {
	plan := writePlan(t, "version: \"9.9\"\njobs:\n  - id: a\n    plugin: shell\n    command: true\n")

	_, err := execute(t, "list", "--plan", plan)
	require.Error(t, err)

	var coded *exitCodeError
	require.ErrorAs(t, err, &coded)
}

func TestReadyCommand(t *testing.T) {
	plan := writePlan(t, testPlan)
	outPath := filepath.Join(t.TempDir(), "readiness.jsonl")

	_, err := execute(t, "ready", "--plan", plan, "--output", outPath)
	require.NoError(t, err)

	byType := readRecords(t, outPath)
	readiness := byType[output.TypeReadiness]
	require.Len(t, readiness, 4)

	var first output.ReadinessRecord
	require.NoError(t, json.Unmarshal(readiness[0], &first))
	assert.Equal(t, "cpu", first.JobID)
	assert.True(t, first.Selected)
	assert.True(t, first.CanStart)

	var gated output.ReadinessRecord
	require.NoError(t, json.Unmarshal(readiness[1], &gated))
	assert.Equal(t, "cpu-check", gated.JobID)
	assert.False(t, gated.CanStart)
	require.NotEmpty(t, gated.Inhibitors)

	var unselected output.ReadinessRecord
	require.NoError(t, json.Unmarshal(readiness[3], &unselected))
	assert.Equal(t, "optional", unselected.JobID)
	assert.False(t, unselected.Selected)
	assert.False(t, unselected.CanStart)
}

func TestRunCommand(t *testing.T) {
	plan := writePlan(t, testPlan)
	outPath := filepath.Join(t.TempDir(), "results.jsonl")
	logDir := t.TempDir()

	_, err := execute(t, "run", "--plan", plan, "--output", outPath, "--log-dir", logDir)
	require.NoError(t, err)

	byType := readRecords(t, outPath)

	results := byType[output.TypeResult]
	require.Len(t, results, 3)

	seen := make(map[string]string)
	for _, data := range results {
		var rec output.ResultRecord
		require.NoError(t, json.Unmarshal(data, &rec))
		seen[rec.JobID] = rec.Outcome
	}
	assert.Equal(t, "pass", seen["cpu"])
	assert.Equal(t, "pass", seen["cpu-check"])
	assert.Equal(t, "pass", seen["followup"])

	summaries := byType[output.TypeSummary]
	require.Len(t, summaries, 1)

	var sum output.SummaryRecord
	require.NoError(t, json.Unmarshal(summaries[0], &sum))
	assert.Equal(t, "smoke", sum.Title)
	assert.Equal(t, 4, sum.Enrolled)
	assert.Equal(t, 3, sum.Selected)
	assert.Equal(t, 3, sum.Passed)
	assert.Zero(t, sum.Failed)
	assert.Empty(t, sum.Blocked)
}

func TestRunCommand_FailuresExitNonZero(t *testing.T) {
	plan := writePlan(t, `version: "1.0"
jobs:
  - id: breaks
    plugin: shell
    command: "false"
  - id: depends-on-breaks
    plugin: shell
    command: "true"
    depends:
      - breaks
`)
	outPath := filepath.Join(t.TempDir(), "results.jsonl")

	_, err := execute(t, "run", "--plan", plan, "--output", outPath)
	require.Error(t, err)

	var coded *exitCodeError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 1, coded.code)

	byType := readRecords(t, outPath)

	var sum output.SummaryRecord
	require.Len(t, byType[output.TypeSummary], 1)
	require.NoError(t, json.Unmarshal(byType[output.TypeSummary][0], &sum))
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"depends-on-breaks"}, sum.Blocked)
}

func TestRunCommand_DryRunExecutesNothing(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	plan := writePlan(t, `version: "1.0"
jobs:
  - id: touches
    plugin: shell
    command: "touch `+marker+`"
`)
	outPath := filepath.Join(dir, "out.jsonl")

	_, err := execute(t, "run", "--plan", plan, "--output", outPath, "--dry-run")
	require.NoError(t, err)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))

	byType := readRecords(t, outPath)
	assert.Len(t, byType[output.TypeReadiness], 1)
	assert.Empty(t, byType[output.TypeResult])
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "checkrun")
	assert.Contains(t, out, "commit:")
}
