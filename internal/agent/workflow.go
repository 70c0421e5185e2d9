// internal/agent/workflow.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/autofix"
	"github.com/xkilldash9x/migrator/internal/cache"
	"github.com/xkilldash9x/migrator/internal/config"
	"github.com/xkilldash9x/migrator/internal/solutionserver"
	"github.com/xkilldash9x/migrator/internal/tools"
	"github.com/xkilldash9x/migrator/internal/workflow"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// ProviderSource resolves the model serving a node. llmclient.Router is the
// production implementation.
type ProviderSource interface {
	For(node string) (schemas.ModelProvider, error)
}

// InitOptions are the collaborators of a workflow.
type InitOptions struct {
	Config    config.Interface
	Providers ProviderSource
	Storage   *workspace.Storage
	// Solutions defaults to a client built from Config.
	Solutions solutionserver.Client
	// Searcher defaults to a Maven Central searcher built from Config.
	Searcher tools.Searcher
	// ToolCache, when enabled, replays dependency lookups.
	ToolCache *cache.DiskCache
}

// Workflow composes the fix loop, summarization and diagnostics into one run
// and relays every workflow message to subscribers.
type Workflow struct {
	logger       *zap.Logger
	bus          *workflow.Bus
	interactions *workflow.Interactions

	mu          sync.Mutex
	initialized bool
	running     bool

	cfg         config.Interface
	overlay     *workspace.Overlay
	fixes       *FixOrchestrator
	summarizer  *Summarizer
	diagnostics *DiagnosticsOrchestrator
}

// New creates an uninitialized workflow.
func New(logger *zap.Logger) *Workflow {
	logger = logger.Named("workflow")
	return &Workflow{
		logger:       logger,
		bus:          workflow.NewBus(logger, 0),
		interactions: workflow.NewInteractions(logger),
	}
}

// Init builds the node graph. It fails if any node has no usable model.
func (w *Workflow) Init(ctx context.Context, opts InitOptions) error {
	if opts.Config == nil || opts.Providers == nil || opts.Storage == nil {
		return errors.New("config, providers and storage are required")
	}
	cfg := opts.Config
	wfCfg := cfg.Workflow()

	providers := make(map[string]schemas.ModelProvider)
	for _, node := range []string{NodeFix, NodeSummarize, NodePlanner, AgentGeneralFix, AgentJavaDependency} {
		p, err := opts.Providers.For(node)
		if err != nil {
			return fmt.Errorf("failed to resolve model for node %s: %w", node, err)
		}
		providers[node] = p
	}

	solutions := opts.Solutions
	if solutions == nil {
		solutions = solutionserver.New(cfg.SolutionServer(), w.logger)
	}
	searcher := opts.Searcher
	if searcher == nil {
		searcher = tools.NewMavenSearcher(cfg.DependencyLookup(), w.logger)
	}
	if opts.ToolCache.Enabled() {
		searcher = tools.NewCachedSearcher(searcher, opts.ToolCache)
	}
	overlay := workspace.NewOverlay(opts.Storage)

	// -- Tools --
	searchFiles := tools.NewSearchFiles(overlay, w.logger)
	readFile := tools.NewReadFile(overlay, w.logger)
	writeFile := tools.NewWriteFile(overlay, w.bus, w.interactions, solutions, wfCfg.InteractiveWait, w.logger)
	searchDependency := tools.NewSearchDependency(searcher, w.logger)

	// -- Nodes --
	prompt := autofix.PromptOptions{Language: wfCfg.ProgrammingLanguage, MigrationHint: wfCfg.MigrationHint}
	fixNode := workflow.NewNode(NodeFix, providers[NodeFix], nil, w.bus, w.logger)
	fixer := autofix.NewFixer(fixNode, solutions, prompt, w.logger)

	agents := []*SubAgent{
		NewSubAgent(
			AgentInfo{Name: AgentGeneralFix, Description: "Fixes problems in source files. Can search, read and write files in the workspace."},
			workflow.NewNode(AgentGeneralFix, providers[AgentGeneralFix],
				workflow.NewToolSet(searchFiles, readFile, writeFile), w.bus, w.logger),
			generalFixPrompt(prompt.Language, prompt.MigrationHint), wfCfg.MaxAgentIterations, w.logger),
		NewSubAgent(
			AgentInfo{Name: AgentJavaDependency, Description: "Adds, removes and upgrades build dependencies such as Maven artifacts in pom.xml."},
			workflow.NewNode(AgentJavaDependency, providers[AgentJavaDependency],
				workflow.NewToolSet(searchDependency, searchFiles, readFile, writeFile), w.bus, w.logger),
			dependencyPrompt(prompt.Language, prompt.MigrationHint), wfCfg.MaxAgentIterations, w.logger),
	}
	planner := NewPlanner(workflow.NewNode(NodePlanner, providers[NodePlanner], nil, w.bus, w.logger), Roster(agents), w.logger)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrRunInProgress
	}
	w.cfg = cfg
	w.overlay = overlay
	w.fixes = NewFixOrchestrator(fixer, overlay, solutions, w.bus, w.logger)
	w.summarizer = NewSummarizer(workflow.NewNode(NodeSummarize, providers[NodeSummarize], nil, w.bus, w.logger), w.logger)
	w.diagnostics = NewDiagnosticsOrchestrator(planner, agents, w.interactions, w.bus, w.logger)
	w.initialized = true
	w.logger.Info("Workflow initialized.",
		zap.String("workspace", opts.Storage.Root()),
		zap.Bool("solution_server", solutions.Enabled()),
		zap.Bool("diagnostics", wfCfg.EnableDiagnostics))
	return nil
}

// Run migrates the files named by the incidents, then works through diagnostic
// tasks if enabled. Edits are staged in the overlay; nothing is written to disk.
func (w *Workflow) Run(ctx context.Context, in WorkflowInput) (*Result, error) {
	w.mu.Lock()
	if !w.initialized {
		w.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if w.running {
		w.mu.Unlock()
		return nil, ErrRunInProgress
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	runID := in.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := w.logger.With(zap.String("run_id", runID))
	logger.Info("Starting workflow run.", zap.Int("incidents", len(in.Incidents)), zap.Int("tasks", len(in.Tasks)))

	fixState, err := w.fixes.Run(ctx, runID, GroupIncidents(in.Incidents))
	if err != nil {
		return nil, fmt.Errorf("fix loop aborted: %w", err)
	}
	result := &Result{RunID: runID, Aggregate: fixState.Aggregate}

	diagnostics := w.cfg.Workflow().EnableDiagnostics
	if in.EnableDiagnostics != nil {
		diagnostics = *in.EnableDiagnostics
	}
	if diagnostics {
		result.Summary = w.summarizer.Summarize(ctx, runID, fixState.Aggregate)
		state := DiagnosticsState{
			Tasks:          GroupTasks(in.Tasks),
			AdditionalInfo: result.Summary.AdditionalInfo,
			History:        result.Summary.History,
		}
		if _, err := w.diagnostics.Run(ctx, runID, state); err != nil {
			result.Staged = w.overlay.Staged()
			return result, fmt.Errorf("diagnostics aborted: %w", err)
		}
	}
	result.Staged = w.overlay.Staged()
	logger.Info("Workflow run complete.", zap.Int("staged", len(result.Staged)))
	return result, nil
}

// ResolveUserInteraction settles a pending interaction raised by this workflow.
func (w *Workflow) ResolveUserInteraction(res schemas.InteractionResolution) error {
	var ok bool
	if res.Reject {
		ok = w.interactions.Reject(res.ID, res.Reason)
	} else {
		ok = w.interactions.Resolve(res.ID, res.Response)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInteraction, res.ID)
	}
	return nil
}

// Subscribe returns a channel receiving every workflow message from now on and
// a function releasing it.
func (w *Workflow) Subscribe() (<-chan schemas.WorkflowMessage, func()) {
	return w.bus.Subscribe()
}

// Overlay exposes the staged edits, e.g. to commit accepted files. It is nil
// before Init.
func (w *Workflow) Overlay() *workspace.Overlay {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overlay
}

// Close closes every subscriber channel.
func (w *Workflow) Close() {
	w.bus.Shutdown()
}

// GroupIncidents groups incidents by uri, keeping the order in which uris first
// appear.
func GroupIncidents(incidents []schemas.Incident) []FixEntry {
	index := make(map[string]int)
	var entries []FixEntry
	for _, incident := range incidents {
		i, ok := index[incident.URI]
		if !ok {
			i = len(entries)
			index[incident.URI] = i
			entries = append(entries, FixEntry{URI: incident.URI})
		}
		entries[i].Incidents = append(entries[i].Incidents, incident)
	}
	return entries
}
