package app

import (
	"fmt"
	"strings"

	"deepresearch/internal/research"
)

const researcherSystemPrompt = `You are a meticulous research assistant. You help users ` +
	`turn a broad topic into a focused, well-sourced research report. Be precise and concise.`

func questionsPrompt(topic string) string {
	return fmt.Sprintf(`The user wants to research the following topic:

<topic>
%s
</topic>

Ask 3-5 clarifying questions that would narrow the scope and surface the user's
actual intent. Return only the questions, one per line.`, topic)
}

func reportPlanPrompt(s *research.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", s.Topic)
	if s.Questions != "" {
		fmt.Fprintf(&b, "Clarifying questions asked:\n%s\n\n", s.Questions)
	}
	if s.Feedback != "" {
		fmt.Fprintf(&b, "User feedback:\n%s\n\n", s.Feedback)
	}
	b.WriteString(`Write a structured research report plan in markdown: a short goal
statement followed by the sections the final report should contain. Do not
write the report itself.`)
	return b.String()
}

func searchTasksPrompt(plan string) string {
	return fmt.Sprintf(`Given this research report plan:

%s

Produce the web search tasks needed to gather material for every section.
Respond with a JSON array only, no prose, where each element is
{"query": "...", "research_goal": "..."}. Use between 2 and 8 tasks.`, plan)
}

func taskLearningPrompt(task research.SearchTask, sources []research.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n", task.Query)
	if task.ResearchGoal != "" {
		fmt.Fprintf(&b, "Research goal: %s\n", task.ResearchGoal)
	}
	b.WriteString("\nSources:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, src.Title, src.URL, truncateForPrompt(src.Content, 4000))
	}
	b.WriteString(`Summarize what these sources establish about the research goal.
Cite sources inline as [n]. Note disagreements between sources explicitly.`)
	return b.String()
}

func finalReportPrompt(s *research.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nReport plan:\n%s\n\n", s.Topic, s.ReportPlan)

	b.WriteString("Research learnings:\n")
	hasLearnings := false
	for _, result := range s.Results {
		if result.State != research.TaskCompleted || result.Learning == "" {
			continue
		}
		hasLearnings = true
		fmt.Fprintf(&b, "## %s\n%s\n\n", result.Query, result.Learning)
	}
	if !hasLearnings {
		b.WriteString("(no search results were gathered; write the report from the plan alone and say so)\n\n")
	}

	b.WriteString("Write the final research report in markdown following the plan.")
	if s.Settings.EnableReferences {
		b.WriteString(" Include a References section listing every cited source URL.")
	}
	if s.Settings.EnableCitationImage {
		b.WriteString(" Where a source offers a representative image URL, include it as a markdown image next to its citation.")
	}
	return b.String()
}

func truncateForPrompt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
