package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stdinPlan = `
resources:
  - id: dev1
    weekly_hours: 40
items:
  - id: uc1
    effort_days: 5
    start: 2025-06-02
    resources: [dev1]
`

func TestScheduleCommandReadsStdin(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdinPlan))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"schedule", "--plan", "-", "--in-format", "yaml", "--format", "json"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"item_id": "uc1"`)
	assert.Contains(t, out.String(), `"end": "2025-06-09T00:00:00Z"`)
}

func TestScheduleCommandRejectsUnknownStdinFormat(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdinPlan))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"schedule", "--plan", "-", "--in-format", "toml"})

	assert.Error(t, rootCmd.Execute())
}
