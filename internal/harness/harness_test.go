package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pending_retry.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: expects the opposite of what happens
entries:
  - name: dep
    type: app
    app_type: post
    value: v1
  - name: del
    type: deletion
    deleted: dep
steps:
  - op: remove_entry
    entry: del
    expect: ok
assertions:
  - type: held
    entry: del
  - type: pending
    entry: del
    workflow: remove_entry
    attempts: 3
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, OutcomePending, result.Trace[0].Outcome)
}

func TestRun_UnresolvableReference(t *testing.T) {
	s := &Scenario{
		Name:    "bad-ref",
		Entries: []EntrySpec{{Name: "a", Type: "deletion", Deleted: "missing"}},
		Steps:   []Step{{Op: OpInject, Entry: "a"}},
	}
	_, err := Run(s)
	assert.Error(t, err)
}
