package research

import (
	"time"
)

// Session is the durable aggregate tracking one research workflow end to end.
// All mutation flows through SessionUpdate so stores can apply partial merges
// atomically per key.
type Session struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id,omitempty"`
	Phase   Phase  `json:"phase"`

	Settings Settings `json:"settings"`

	Topic       string       `json:"topic,omitempty"`
	Questions   string       `json:"questions,omitempty"`
	Feedback    string       `json:"feedback,omitempty"`
	ReportPlan  string       `json:"report_plan,omitempty"`
	Tasks       []SearchTask `json:"tasks,omitempty"`
	Results     []TaskResult `json:"results,omitempty"`
	FinalReport string       `json:"final_report,omitempty"`
	Error       string       `json:"error,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Settings is the immutable-after-creation configuration snapshot for a
// session. The workflow only inspects EnableReferences and EnableCitationImage;
// the remaining fields are passed through to the collaborators unchanged.
type Settings struct {
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	SearchProvider string `json:"search_provider,omitempty"`
	MaxResults     int    `json:"max_results,omitempty"`
	Language       string `json:"language,omitempty"`

	EnableReferences    bool `json:"enable_references"`
	EnableCitationImage bool `json:"enable_citation_image"`
}

// SearchTask describes one search query produced by report planning.
type SearchTask struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"research_goal,omitempty"`
}

// TaskState marks the outcome of a single search task.
type TaskState string

const (
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskResult records the outcome of one search task. A failed task keeps its
// slot in Results so the report synthesis can account for every task.
type TaskResult struct {
	Query    string    `json:"query"`
	State    TaskState `json:"state"`
	Learning string    `json:"learning,omitempty"`
	Sources  []Source  `json:"sources,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Source is one search hit backing a task learning.
type Source struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// SessionUpdate is a tagged partial update. Nil fields are left untouched by
// Apply; RequirePhase, when non-empty, makes the update conditional on the
// session currently being in one of the listed phases.
type SessionUpdate struct {
	Phase       *Phase
	Settings    *Settings
	Topic       *string
	Questions   *string
	Feedback    *string
	ReportPlan  *string
	Tasks       *[]SearchTask
	Results     *[]TaskResult
	FinalReport *string
	Error       *string

	RequirePhase []Phase
}

// PhaseAllowed reports whether the session's current phase satisfies the
// update's RequirePhase guard.
func (u SessionUpdate) PhaseAllowed(current Phase) bool {
	if len(u.RequirePhase) == 0 {
		return true
	}
	for _, phase := range u.RequirePhase {
		if phase == current {
			return true
		}
	}
	return false
}

// Apply merges the update into the session and bumps bookkeeping fields.
// Callers must hold whatever lock makes the merge atomic for their store.
func (s *Session) Apply(u SessionUpdate, now time.Time) {
	if u.Phase != nil {
		s.Phase = *u.Phase
	}
	if u.Settings != nil {
		s.Settings = *u.Settings
	}
	if u.Topic != nil {
		s.Topic = *u.Topic
	}
	if u.Questions != nil {
		s.Questions = *u.Questions
	}
	if u.Feedback != nil {
		s.Feedback = *u.Feedback
	}
	if u.ReportPlan != nil {
		s.ReportPlan = *u.ReportPlan
	}
	if u.Tasks != nil {
		s.Tasks = *u.Tasks
	}
	if u.Results != nil {
		s.Results = *u.Results
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
	s.Version++
	s.UpdatedAt = now
}

// Expired reports whether the session's TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// OwnedBy reports whether subject may operate on the session. Sessions without
// an owner are accessible to any subject within the deployment.
func (s *Session) OwnedBy(subject string) bool {
	return s.OwnerID == "" || s.OwnerID == subject
}

// Clone returns a deep copy so store callers never alias stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Tasks != nil {
		out.Tasks = make([]SearchTask, len(s.Tasks))
		copy(out.Tasks, s.Tasks)
	}
	if s.Results != nil {
		out.Results = make([]TaskResult, len(s.Results))
		for i, result := range s.Results {
			out.Results[i] = result
			if result.Sources != nil {
				out.Results[i].Sources = make([]Source, len(result.Sources))
				copy(out.Results[i].Sources, result.Sources)
			}
		}
	}
	return &out
}

// Ptr helpers keep SessionUpdate call sites readable.

// PhasePtr returns a pointer to p.
func PhasePtr(p Phase) *Phase { return &p }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
