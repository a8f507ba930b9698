package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/observability"
	"deepresearch/internal/research"
	"deepresearch/internal/search"
	"deepresearch/internal/session"
)

// nonTerminalPhases guards forced error writes so a completed session is
// never overwritten by a late failure report.
var nonTerminalPhases = []research.Phase{
	research.PhaseTopic, research.PhaseQuestions, research.PhaseFeedback,
	research.PhasePlanning, research.PhaseExecuting,
}

// ResearchService sequences the externally-delegated workflow steps. It holds
// no session state itself: everything durable lives in the store, and each
// step reads committed data, calls the collaborators, and commits its output
// through a guarded partial update.
type ResearchService struct {
	store       session.Store
	llm         llm.Client
	search      search.Provider
	fetcher     *search.PageFetcher
	broadcaster *StreamBroadcaster
	metrics     *observability.Metrics
	logger      logging.Logger

	parallelism  int64
	stepTimeout  time.Duration
	defaultModel string
}

// ResearchServiceOption configures optional behavior.
type ResearchServiceOption func(*ResearchService)

// WithPageFetcher enables fetching full page text for search hits that come
// back without content.
func WithPageFetcher(fetcher *search.PageFetcher) ResearchServiceOption {
	return func(svc *ResearchService) { svc.fetcher = fetcher }
}

// WithParallelism bounds concurrent search tasks per execution.
func WithParallelism(n int) ResearchServiceOption {
	return func(svc *ResearchService) {
		if n > 0 {
			svc.parallelism = int64(n)
		}
	}
}

// WithStepTimeout bounds each workflow step; expiry is treated like any other
// collaborator failure.
func WithStepTimeout(d time.Duration) ResearchServiceOption {
	return func(svc *ResearchService) {
		if d > 0 {
			svc.stepTimeout = d
		}
	}
}

// WithDefaultModel sets the model used by sessions that do not pick one.
func WithDefaultModel(model string) ResearchServiceOption {
	return func(svc *ResearchService) { svc.defaultModel = model }
}

// NewResearchService creates the workflow orchestrator.
func NewResearchService(
	store session.Store,
	llmClient llm.Client,
	provider search.Provider,
	broadcaster *StreamBroadcaster,
	metrics *observability.Metrics,
	opts ...ResearchServiceOption,
) *ResearchService {
	svc := &ResearchService{
		store:       store,
		llm:         llmClient,
		search:      provider,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logging.NewComponentLogger("ResearchService"),
		parallelism: 3,
		stepTimeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// load fetches the session and enforces ownership.
func (svc *ResearchService) load(ctx context.Context, id, subject string) (*research.Session, error) {
	record, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.OwnedBy(subject) {
		return nil, ErrNotOwner
	}
	return record, nil
}

func (svc *ResearchService) model(record *research.Session) string {
	if record.Settings.Model != "" {
		return record.Settings.Model
	}
	return svc.defaultModel
}

func (svc *ResearchService) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.stepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, svc.stepTimeout)
}

// AskQuestions generates clarifying questions for a topic, moving the session
// from topic to questions.
func (svc *ResearchService) AskQuestions(ctx context.Context, id, subject, topic string) (*research.Session, error) {
	record, err := svc.load(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if err := research.CanStart(research.OpAskQuestions, record.Phase); err != nil {
		return nil, err
	}
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}

	return svc.runStep(ctx, record, research.OpAskQuestions, func(ctx context.Context) (*research.Session, error) {
		resp, err := svc.llm.Complete(ctx, llm.CompletionRequest{
			System: researcherSystemPrompt,
			Prompt: questionsPrompt(topic),
			Model:  svc.model(record),
		})
		if err != nil {
			return nil, err
		}

		updated, err := svc.store.Update(ctx, record.ID, research.SessionUpdate{
			Phase:        research.PhasePtr(research.PhaseQuestions),
			Topic:        research.StringPtr(topic),
			Questions:    research.StringPtr(resp.Text),
			RequirePhase: []research.Phase{research.PhaseTopic},
		})
		if err != nil {
			return nil, err
		}
		svc.broadcaster.Broadcast(research.NewMessageEvent(record.ID, resp.Text))
		return updated, nil
	})
}

// SubmitFeedback records the user's answers to the clarifying questions,
// moving the session from questions to feedback. Interpretation of the
// feedback happens in the subsequent plan step, which reads both fields.
func (svc *ResearchService) SubmitFeedback(ctx context.Context, id, subject, feedback string) (*research.Session, error) {
	record, err := svc.load(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if err := research.CanStart(research.OpSubmitFeedback, record.Phase); err != nil {
		return nil, err
	}
	if record.Topic == "" || record.Questions == "" {
		return nil, fmt.Errorf("%w: feedback requires topic and questions", research.ErrWrongPhase)
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrEmptyFeedback
	}

	updated, err := svc.store.Update(ctx, record.ID, research.SessionUpdate{
		Phase:        research.PhasePtr(research.PhaseFeedback),
		Feedback:     research.StringPtr(feedback),
		RequirePhase: []research.Phase{research.PhaseQuestions},
	})
	if err != nil {
		return nil, err
	}
	svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, string(research.OpSubmitFeedback), "end", nil))
	return updated, nil
}

// WriteReportPlan produces the report plan and the search task list in one
// transition, moving the session from questions or feedback to planning.
func (svc *ResearchService) WriteReportPlan(ctx context.Context, id, subject string) (*research.Session, error) {
	record, err := svc.load(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if err := research.CanStart(research.OpWriteReportPlan, record.Phase); err != nil {
		return nil, err
	}

	return svc.runStep(ctx, record, research.OpWriteReportPlan, func(ctx context.Context) (*research.Session, error) {
		planResp, err := svc.llm.Complete(ctx, llm.CompletionRequest{
			System: researcherSystemPrompt,
			Prompt: reportPlanPrompt(record),
			Model:  svc.model(record),
		})
		if err != nil {
			return nil, err
		}
		svc.broadcaster.Broadcast(research.NewMessageEvent(record.ID, planResp.Text))

		tasksResp, err := svc.llm.Complete(ctx, llm.CompletionRequest{
			System: researcherSystemPrompt,
			Prompt: searchTasksPrompt(planResp.Text),
			Model:  svc.model(record),
		})
		if err != nil {
			return nil, err
		}
		tasks, err := ParseSearchTasks(tasksResp.Text)
		if err != nil {
			return nil, err
		}

		updated, err := svc.store.Update(ctx, record.ID, research.SessionUpdate{
			Phase:        research.PhasePtr(research.PhasePlanning),
			ReportPlan:   research.StringPtr(planResp.Text),
			Tasks:        &tasks,
			RequirePhase: []research.Phase{research.PhaseQuestions, research.PhaseFeedback},
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

// ExecuteResearch runs every search task concurrently up to the parallelism
// bound, then synthesizes the final report. Individual task failures are
// recorded as failed outcomes and never abort siblings; the session proceeds
// to synthesis with whatever content exists. Only a failure of the
// orchestration itself (entering executing, synthesis, commit) forces the
// error phase.
func (svc *ResearchService) ExecuteResearch(ctx context.Context, id, subject string) (*research.Session, error) {
	record, err := svc.load(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if err := research.CanStart(research.OpExecuteResearch, record.Phase); err != nil {
		return nil, err
	}

	// The guarded write is the race gate: of two concurrent calls, exactly
	// one finds the session still in planning.
	record, err = svc.store.Update(ctx, record.ID, research.SessionUpdate{
		Phase:        research.PhasePtr(research.PhaseExecuting),
		RequirePhase: []research.Phase{research.PhasePlanning},
	})
	if err != nil {
		return nil, err
	}

	updated, err := svc.runStep(ctx, record, research.OpExecuteResearch, func(ctx context.Context) (*research.Session, error) {
		results := svc.executeTasks(ctx, record)

		report, err := svc.llm.Complete(ctx, llm.CompletionRequest{
			System: researcherSystemPrompt,
			Prompt: finalReportPrompt(withResults(record, results)),
			Model:  svc.model(record),
		})
		if err != nil {
			return nil, err
		}

		return svc.store.Update(ctx, record.ID, research.SessionUpdate{
			Phase:        research.PhasePtr(research.PhaseCompleted),
			Results:      &results,
			FinalReport:  research.StringPtr(report.Text),
			RequirePhase: []research.Phase{research.PhaseExecuting},
		})
	})
	if err != nil {
		return nil, err
	}

	// The terminal broadcast happens after runStep's own end event so that
	// subscribers see the full step envelope before the stream closes.
	svc.broadcaster.Broadcast(research.NewFinalReportEvent(record.ID, updated.FinalReport))
	svc.broadcaster.CloseSession(record.ID)
	return updated, nil
}

// executeTasks fans the session's tasks out to the search collaborator with
// bounded concurrency. Every task settles to a completed or failed outcome;
// the returned slice keeps task order.
func (svc *ResearchService) executeTasks(ctx context.Context, record *research.Session) []research.TaskResult {
	results := make([]research.TaskResult, len(record.Tasks))
	sem := semaphore.NewWeighted(svc.parallelism)
	var wg sync.WaitGroup

	for i, task := range record.Tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context expired while waiting: remaining tasks fail fast.
			results[i] = research.TaskResult{Query: task.Query, State: research.TaskFailed, Error: err.Error()}
			svc.metrics.TaskFinished(string(research.TaskFailed))
			continue
		}
		wg.Add(1)
		go func(idx int, task research.SearchTask) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = svc.runTask(ctx, record, task)
			svc.metrics.TaskFinished(string(results[idx].State))
		}(i, task)
	}

	// Join every in-flight task even after context expiry: the goroutines
	// write into the shared results slice until they finish.
	wg.Wait()
	return results
}

// runTask performs one search task end to end. Failures are captured in the
// outcome and never propagate past the task boundary.
func (svc *ResearchService) runTask(ctx context.Context, record *research.Session, task research.SearchTask) research.TaskResult {
	svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, "search_task", "start", map[string]any{"query": task.Query}))
	defer svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, "search_task", "end", map[string]any{"query": task.Query}))

	maxResults := record.Settings.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	hits, err := svc.search.Search(ctx, task.Query, maxResults)
	if err != nil {
		svc.logger.Warn("Search task failed: session=%s query=%q: %v", record.ID, task.Query, err)
		return research.TaskResult{Query: task.Query, State: research.TaskFailed, Error: err.Error()}
	}

	sources := make([]research.Source, 0, len(hits))
	for _, hit := range hits {
		source := research.Source{Title: hit.Title, URL: hit.URL, Content: hit.Content}
		if source.Content == "" && svc.fetcher != nil {
			if text, err := svc.fetcher.Fetch(ctx, hit.URL); err == nil {
				source.Content = text
			}
		}
		sources = append(sources, source)
	}

	learning, err := svc.llm.Complete(ctx, llm.CompletionRequest{
		System: researcherSystemPrompt,
		Prompt: taskLearningPrompt(task, sources),
		Model:  svc.model(record),
	})
	if err != nil {
		svc.logger.Warn("Learning synthesis failed: session=%s query=%q: %v", record.ID, task.Query, err)
		return research.TaskResult{Query: task.Query, State: research.TaskFailed, Sources: sources, Error: err.Error()}
	}

	svc.broadcaster.Broadcast(research.NewMessageEvent(record.ID, learning.Text))
	return research.TaskResult{
		Query:    task.Query,
		State:    research.TaskCompleted,
		Learning: learning.Text,
		Sources:  sources,
	}
}

// Refine re-opens an earlier phase with new content. It is rejected during
// execution and on terminal sessions; the guarded update keeps a racing
// executing→completed transition from being overwritten.
func (svc *ResearchService) Refine(ctx context.Context, id, subject string, target research.Phase, content string) (*research.Session, error) {
	record, err := svc.load(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if err := research.CanStart(research.OpRefine, record.Phase); err != nil {
		return nil, err
	}
	if !research.ValidRefineTarget(target) {
		return nil, fmt.Errorf("%w: %s", research.ErrInvalidRefineTarget, target)
	}

	update := research.SessionUpdate{
		Phase: research.PhasePtr(target),
		RequirePhase: []research.Phase{
			research.PhaseTopic, research.PhaseQuestions,
			research.PhaseFeedback, research.PhasePlanning,
		},
	}
	if content != "" {
		switch target {
		case research.PhaseQuestions:
			update.Questions = research.StringPtr(content)
		case research.PhaseFeedback:
			update.Feedback = research.StringPtr(content)
		case research.PhasePlanning:
			update.ReportPlan = research.StringPtr(content)
		}
	}

	updated, err := svc.store.Update(ctx, record.ID, update)
	if err != nil {
		return nil, err
	}
	svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, string(research.OpRefine), "end", map[string]any{"target": string(target)}))
	return updated, nil
}

// runStep wraps a workflow step with the deadline, progress events, metrics,
// and the failure path that forces the error phase.
func (svc *ResearchService) runStep(ctx context.Context, record *research.Session, op research.Operation, fn func(context.Context) (*research.Session, error)) (*research.Session, error) {
	stepCtx, cancel := svc.stepContext(ctx)
	defer cancel()

	svc.metrics.StepStarted()
	defer svc.metrics.StepFinished()

	svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, string(op), "start", nil))
	start := time.Now()

	updated, err := fn(stepCtx)
	if err != nil {
		svc.metrics.ObserveStep(string(op), "error", time.Since(start))
		// A lost phase race is a precondition violation, not a workflow
		// failure: the session stays as the winner left it.
		if errors.Is(err, research.ErrWrongPhase) || errors.Is(err, research.ErrTerminalSession) {
			return nil, err
		}
		svc.failSession(ctx, record.ID, op, err)
		return nil, err
	}

	svc.metrics.ObserveStep(string(op), "ok", time.Since(start))
	svc.broadcaster.Broadcast(research.NewProgressEvent(record.ID, string(op), "end", nil))
	return updated, nil
}

// failSession force-writes the error phase with the captured message. The
// write is best-effort: a secondary repository failure is logged and the
// original error still reaches the caller.
func (svc *ResearchService) failSession(ctx context.Context, id string, op research.Operation, cause error) {
	message := fmt.Sprintf("%s: %v", op, cause)

	_, err := svc.store.Update(ctx, id, research.SessionUpdate{
		Phase:        research.PhasePtr(research.PhaseError),
		Error:        research.StringPtr(message),
		RequirePhase: nonTerminalPhases,
	})
	if err != nil {
		svc.logger.Error("Failed to record error phase for session %s: %v (original: %v)", id, err, cause)
		return
	}

	svc.broadcaster.Broadcast(research.NewErrorEvent(id, message))
	svc.broadcaster.CloseSession(id)
}

// withResults returns a shallow copy of the session carrying the fresh task
// results, for prompt construction before they are committed.
func withResults(record *research.Session, results []research.TaskResult) *research.Session {
	copied := *record
	copied.Results = results
	return &copied
}
