package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchTasksPlainJSON(t *testing.T) {
	tasks, err := ParseSearchTasks(`[
		{"query": "fusion reactor capital costs", "research_goal": "quantify per-MW build cost"},
		{"query": "ITER timeline delays"}
	]`)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "fusion reactor capital costs", tasks[0].Query)
	assert.Equal(t, "quantify per-MW build cost", tasks[0].ResearchGoal)
	assert.Empty(t, tasks[1].ResearchGoal)
}

func TestParseSearchTasksCodeFenced(t *testing.T) {
	tasks, err := ParseSearchTasks("```json\n[{\"query\": \"tokamak vs stellarator\"}]\n```")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "tokamak vs stellarator", tasks[0].Query)
}

func TestParseSearchTasksRepairsBrokenJSON(t *testing.T) {
	// Trailing comma and single quotes: typical model slop the repair pass fixes.
	tasks, err := ParseSearchTasks(`[{'query': 'private fusion funding'},]`)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "private fusion funding", tasks[0].Query)
}

func TestParseSearchTasksFiltersEmptyQueries(t *testing.T) {
	tasks, err := ParseSearchTasks(`[{"query": "  "}, {"query": "real question"}]`)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "real question", tasks[0].Query)
}

func TestParseSearchTasksRejectsUnusableOutput(t *testing.T) {
	_, err := ParseSearchTasks(`[{"query": ""}]`)
	assert.Error(t, err)

	_, err = ParseSearchTasks("I could not produce a task list.")
	assert.Error(t, err)
}
