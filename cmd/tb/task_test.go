package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/taskboard/internal/types"
)

func fieldFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFieldFlags(flags)
	flags.String("title", "", "")
	flags.Bool("agent", false, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestPatchFromFlags_OnlyChanged(t *testing.T) {
	now := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	patch, err := patchFromFlags(fieldFlags(t, "--status", "review", "--tags", "api, db"), now)
	require.NoError(t, err)

	assert.Equal(t, types.Some(types.StatusReview), patch.Status)
	require.True(t, patch.Tags.Set)
	assert.JSONEq(t, `["api","db"]`, string(patch.Tags.Value))

	assert.False(t, patch.Title.Set)
	assert.False(t, patch.DueDate.Set)
	assert.False(t, patch.ProjectID.Set)
	assert.False(t, patch.NonAgent.Set)
}

func TestPatchFromFlags_EmptyClears(t *testing.T) {
	patch, err := patchFromFlags(fieldFlags(t, "--due", "", "--anchor", "", "--project", "0"), time.Now())
	require.NoError(t, err)

	assert.Equal(t, types.Null[string](), patch.DueDate)
	assert.Equal(t, types.Null[string](), patch.Anchor)
	assert.Equal(t, types.Null[int64](), patch.ProjectID)
}

func TestPatchFromFlags_NaturalDue(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	patch, err := patchFromFlags(fieldFlags(t, "--due", "tomorrow", "--agent"), now)
	require.NoError(t, err)

	assert.Equal(t, types.Some("2024-03-07"), patch.DueDate)
	assert.Equal(t, types.Some(false), patch.NonAgent)
}

func TestApplyInputFlags(t *testing.T) {
	in := &types.TaskInput{Title: "Write docs"}
	flags := fieldFlags(t,
		"--priority", "high",
		"--tags", "docs",
		"--assign-type", "agent",
		"--assign-id", "writer-1",
		"--project", "3",
		"--non-agent",
	)
	require.NoError(t, applyInputFlags(in, flags, time.Now()))

	require.NotNil(t, in.Priority)
	assert.Equal(t, types.PriorityHigh, *in.Priority)
	var list []string
	require.NoError(t, json.Unmarshal(in.Tags, &list))
	assert.Equal(t, []string{"docs"}, list)
	require.NotNil(t, in.AssignedToType)
	assert.Equal(t, types.AssigneeAgent, *in.AssignedToType)
	assert.Equal(t, "writer-1", *in.AssignedToID)
	assert.Equal(t, int64(3), *in.ProjectID)
	assert.True(t, in.NonAgent)
	assert.Nil(t, in.DueDate)
	assert.Nil(t, in.Position)
}

func TestParseID(t *testing.T) {
	id, err := parseID("#42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(raw)
		assert.True(t, errors.Is(err, types.ErrValidation), raw)
	}

	_, err = parseIDs([]string{"1", "x"})
	assert.Error(t, err)
}

func TestColumnTitle(t *testing.T) {
	assert.Equal(t, "In Progress", columnTitle(types.StatusInProgress))
	assert.Equal(t, "Backlog", columnTitle(types.StatusBacklog))
}

func TestRenderBoard_AllColumns(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	checkNoColor()
	who := "coder-1"
	board := renderBoard([]*types.Task{
		{ID: 1, Title: "Fix login", Status: types.StatusInProgress, AssignedToID: &who},
		{ID: 2, Title: strings.Repeat("very long title ", 5), Status: types.StatusInProgress},
	})

	for _, status := range types.Statuses {
		assert.Contains(t, board, columnTitle(status))
	}
	assert.Contains(t, board, "In Progress (2)")
	assert.Contains(t, board, "#1 Fix login")
	assert.Contains(t, board, "@coder-1")
	assert.Contains(t, board, "…")
}
