package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"deepresearch/internal/research"
)

// ParseSearchTasks extracts the task list from model output. Models wrap JSON
// in code fences or emit slightly broken syntax often enough that a repair
// pass is worth it before giving up.
func ParseSearchTasks(text string) ([]research.SearchTask, error) {
	raw := stripCodeFences(text)

	var tasks []research.SearchTask
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("parse search tasks: %w (repair also failed: %v)", err, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &tasks); err != nil {
			return nil, fmt.Errorf("parse repaired search tasks: %w", err)
		}
	}

	out := tasks[:0]
	for _, task := range tasks {
		if strings.TrimSpace(task.Query) == "" {
			continue
		}
		out = append(out, task)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model produced no usable search tasks")
	}
	return out, nil
}

// stripCodeFences unwraps ```json ... ``` style fencing if present.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
