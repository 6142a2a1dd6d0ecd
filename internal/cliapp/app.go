// Package cliapp wires the Agent Loop, the demo provider, the session
// log, and metrics into a runnable unit for cmd/agentctl. It exists purely
// as an executable example of how the core's collaborators fit together —
// none of its types are exported for reuse beyond that demo.
//
// Grounded on the teacher's internal/app (the single struct that owns a
// session's agent, store, and services, constructed once and driven by
// cmd/*.go) generalized to this core's Loop/mockprovider/session.Store.
package cliapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/compact"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/csync"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/mockprovider"
	"github.com/agentcore/runtime/internal/proxycodec"
	"github.com/agentcore/runtime/internal/responder"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/internal/toolrunner/structschema"
)

// App is one conversation: an Agent Loop over a demo tool set and the
// scripted mock provider, backed by a session log.
type App struct {
	cfg      config.RuntimeConfig
	metrics  *metrics.Service
	store    session.Store
	loop     *agent.Loop
	streamFn responder.StreamFunction
	leaf     string
	target   llmtypes.ModelIdentity

	proxyCodec bool
	proxyDec   *proxycodec.Decoder

	title *csync.Value[string]
}

// Options configures New.
type Options struct {
	Config  config.RuntimeConfig
	Metrics *metrics.Service // optional
	Store   session.Store    // optional; defaults to an in-memory MemStore
	Scripts []mockprovider.Script

	// ProxyCodec runs every assistant event through the strip/rebuild wire
	// codec before it's used, exercising the same path a relay server and
	// a remote client would run on either side of a real network hop.
	ProxyCodec bool
}

// New constructs an App driven by a scripted mockprovider.Provider cycling
// through opts.Scripts (defaultScripts if empty).
func New(opts Options) *App {
	if opts.Store == nil {
		opts.Store = session.NewMemStore()
	}
	scripts := opts.Scripts
	if len(scripts) == 0 {
		scripts = defaultScripts()
	}

	target := llmtypes.ModelIdentity{Provider: "mock", API: "mock", ModelID: "agentctl-demo"}
	provider := &mockprovider.Provider{Scripts: scripts}
	// A separate Provider instance: mockprovider.Provider.calls isn't
	// synchronized, so the background title call must never share one
	// with the turn loop's own Stream.
	titleProvider := &mockprovider.Provider{Scripts: []mockprovider.Script{{Text: "Echo Demo Session"}}}

	app := &App{cfg: opts.Config, metrics: opts.Metrics, store: opts.Store, target: target, streamFn: provider.Stream, proxyCodec: opts.ProxyCodec, title: csync.NewValue("")}

	tools := demoTools()
	loopCfg := agent.Config{
		SystemPrompt:           "You are a demo agent exercised by agentctl.",
		Tools:                  tools,
		Registry:               llmtypes.MapRegistry(toolMap(tools)),
		Target:                 target,
		ModelInfo:              llmtypes.ModelInfo{Identity: target, SupportsXHigh: false},
		ReasoningEffort:        llmtypes.ReasoningXHigh,
		Stream:                 provider.Stream,
		DefaultAPIKey:          "unused",
		CacheMarkers:           true,
		TitleStream:            titleProvider.Stream,
		TitleTarget:            llmtypes.ModelIdentity{Provider: "mock", API: "mock", ModelID: "agentctl-demo-small"},
		OnTitle:                func(title string) { app.title.Set(title) },
		LoopDetectionWindow:    opts.Config.LoopDetectionWindow,
		LoopDetectionThreshold: opts.Config.LoopDetectionThreshold,
	}
	if opts.Metrics != nil {
		loopCfg.OnLoopDetected = opts.Metrics.IncLoopDetection
		for i, t := range loopCfg.Tools {
			loopCfg.Tools[i] = opts.Metrics.WrapTool("agentctl", t)
		}
		loopCfg.Registry = llmtypes.MapRegistry(toolMap(loopCfg.Tools))
	}

	app.loop = agent.New(loopCfg, nil)
	return app
}

// Ask runs one user turn to completion and returns the assistant's final
// text, appending every produced message to the session log.
func (a *App) Ask(ctx context.Context, prompt string) (string, error) {
	stream := a.loop.Run(ctx, []llmtypes.Message{llmtypes.NewUserMessage(prompt)})

	var finalText string
	var turnErr error
	for event := range stream.Seq(ctx) {
		a.logEvent(event)
		if event.Kind == llmtypes.AgentEvtTurnEnd && event.TurnMessage != nil {
			if text := assistantText(*event.TurnMessage); text != "" {
				finalText = text
			}
		}
		if event.Kind == llmtypes.AgentEvtAgentEnd {
			turnErr = event.Err
		}
	}

	messages, ok := stream.Result(ctx)
	if !ok {
		return finalText, fmt.Errorf("agentctl: run ended without a result")
	}
	a.persist(ctx, messages)

	if a.cfg.AutoSummarize {
		if err := a.maybeCompact(ctx, turnErr, lastAssistantIdentity(messages)); err != nil {
			slog.Warn("auto-compaction failed", "error", err)
		}
	}
	return finalText, nil
}

// lastAssistantIdentity returns the model identity stamped on the last
// assistant message in messages, the FailingModel a TurnOutcome compares
// against CurrentModel for the overflow trigger's "same model" condition.
func lastAssistantIdentity(messages []llmtypes.AgentMessage) llmtypes.ModelIdentity {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Kind == llmtypes.AgentKindLLM && m.LLM.Role == llmtypes.RoleAssistant {
			return m.LLM.Identity
		}
	}
	return llmtypes.ModelIdentity{}
}

// Title returns the background-generated session title, or "" if title
// generation hasn't completed (or was never configured) yet.
func (a *App) Title() string {
	return a.title.Get()
}

// SearchPastCompactions does a substring search over this App's past
// compaction summaries, when the underlying Store supports it (only a
// durable session.SummarySearcher does — session.NewMemStore does not).
func (a *App) SearchPastCompactions(ctx context.Context, query string, limit int) ([]session.SummaryMatch, error) {
	searcher, ok := a.store.(session.SummarySearcher)
	if !ok {
		return nil, nil
	}
	return searcher.SearchSummaries(ctx, query, limit)
}

func (a *App) logEvent(e llmtypes.AgentEvent) {
	switch e.Kind {
	case llmtypes.AgentEvtMessageStart:
		if a.proxyCodec {
			a.proxyDec = proxycodec.NewDecoder()
		}
		a.roundTripProxy(e)
	case llmtypes.AgentEvtMessageUpdate, llmtypes.AgentEvtMessageEnd:
		a.roundTripProxy(e)
	case llmtypes.AgentEvtToolExecStart:
		slog.Info("tool call", "tool", e.ToolName, "id", e.ToolCallID)
	case llmtypes.AgentEvtToolExecEnd:
		slog.Info("tool result", "tool", e.ToolName, "id", e.ToolCallID, "error", e.ToolIsError)
	case llmtypes.AgentEvtAgentEnd:
		if e.Err != nil {
			slog.Error("agent run failed", "error", e.Err)
		}
	}
}

// roundTripProxy pushes e's raw provider event through the strip/rebuild
// wire codec and checks that decoding it back reproduces the same partial
// (or final, on message_end) text the direct-transport path already has in
// e.Message — the live-traffic counterpart to the codec's round-trip test.
func (a *App) roundTripProxy(e llmtypes.AgentEvent) {
	if !a.proxyCodec || e.AssistantRawEvent == nil || e.Message == nil {
		return
	}
	wire := proxycodec.Encode(*e.AssistantRawEvent, &e.Message.LLM)
	rebuilt := a.proxyDec.Decode(wire)

	want := e.Message.LLM.Text()
	got := rebuilt.Partial.Text()
	if e.Kind == llmtypes.AgentEvtMessageEnd && rebuilt.Final != nil {
		got = rebuilt.Final.Text()
	}
	if want != got {
		slog.Warn("proxy codec round trip mismatch", "want", want, "got", got)
	}
}

func (a *App) persist(ctx context.Context, messages []llmtypes.AgentMessage) {
	for _, m := range messages {
		m := m
		entry, err := a.store.Append(ctx, a.leaf, session.Entry{Kind: session.EntryMessage, Message: &m})
		if err != nil {
			slog.Error("session append failed", "error", err)
			continue
		}
		a.leaf = entry.ID
	}
}

// maybeCompact evaluates the current session path against the Compaction
// Orchestrator and runs it when either trigger fires (§4.H). TriggerOverflow
// additionally deletes the failing entry before compacting and schedules an
// automatic continue() once RetryDelay has passed; TriggerThreshold just
// compacts.
func (a *App) maybeCompact(ctx context.Context, turnErr error, failingModel llmtypes.ModelIdentity) error {
	path, err := a.store.Path(ctx, a.leaf)
	if err != nil {
		return err
	}

	var total int64
	for _, e := range path {
		total += session.EstimateTokens(e)
	}
	trigger := compact.Evaluate(compact.TurnOutcome{
		Err:           turnErr,
		FailingModel:  failingModel,
		CurrentModel:  a.target,
		ContextTokens: total,
		ContextWindow: a.cfg.ContextWindow,
		ReserveTokens: a.cfg.ReserveTokens,
	})
	if trigger == compact.TriggerNone {
		return nil
	}

	compactPath, parentID := path, a.leaf
	if trigger == compact.TriggerOverflow {
		failing := path[len(path)-1]
		if err := a.store.Delete(ctx, failing.ID); err != nil {
			return fmt.Errorf("agentctl: delete failing entry: %w", err)
		}
		compactPath = path[:len(path)-1]
		parentID = failing.ParentID
	}

	prep := compact.Prepare(compactPath, a.cfg.KeepRecentTokens, nil)
	entry, err := compact.Execute(ctx, a.store, parentID, compactPath, prep, compact.SummarizeOptions{
		Stream:        a.streamFn,
		Target:        a.target,
		DefaultAPIKey: "unused",
		ReserveTokens: a.cfg.ReserveTokens,
		BeforeCompact: func(ctx context.Context, prep compact.Preparation) (*compact.CompactOverride, error) {
			slog.Info("compacting", "messages", len(prep.MessagesToSummarize), "tokens_before", prep.TokensBefore)
			return nil, nil
		},
		AfterCompact: func(ctx context.Context, result session.Entry) {
			slog.Info("compaction written", "entry", result.ID)
		},
	})
	if err != nil {
		return err
	}
	a.leaf = entry.ID
	if a.metrics != nil {
		a.metrics.IncSummarization()
	}

	a.loop.SetHistory(compact.RebuildWorkingHistory(compactPath, prep, *entry.Compaction))

	if trigger == compact.TriggerOverflow {
		time.AfterFunc(compact.RetryDelay, func() { a.continueAfterCompaction(context.Background()) })
	}
	return nil
}

// continueAfterCompaction re-enters the Agent Loop with no new prompt,
// §4.H's automatic retry once the overflow trigger's delete+compact has
// made room. Run detached from the request ctx that observed the
// failure — by the time RetryDelay elapses that context may already be
// gone.
func (a *App) continueAfterCompaction(ctx context.Context) {
	stream, err := a.loop.Continue(ctx)
	if err != nil {
		slog.Warn("post-compaction continue failed", "error", err)
		return
	}
	for event := range stream.Seq(ctx) {
		a.logEvent(event)
	}
	messages, ok := stream.Result(ctx)
	if !ok {
		return
	}
	a.persist(ctx, messages)
}

func assistantText(m llmtypes.AgentMessage) string {
	if m.Kind != llmtypes.AgentKindLLM {
		return ""
	}
	var parts []string
	for _, b := range m.LLM.AssistantContent {
		if b.Kind == llmtypes.ContentText && b.Text != nil {
			parts = append(parts, b.Text.Text)
		}
	}
	return strings.Join(parts, "")
}

func defaultScripts() []mockprovider.Script {
	return []mockprovider.Script{
		{ToolCall: &llmtypes.ToolCallBlock{ID: "call-1", Name: "echo", Arguments: map[string]any{"text": "hello from agentctl"}}},
		{Text: "All done — the echo tool confirmed the round trip."},
	}
}

// echoArgs is reflected into the echo tool's ParameterSchema by
// structschema, rather than hand-written as a schema literal.
type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=text to echo back"`
}

func demoTools() []llmtypes.Tool {
	echoSchema, err := structschema.Reflect(echoArgs{})
	if err != nil {
		// Reflection of a fixed, hand-written struct cannot fail at
		// runtime; a non-nil err here would be a programmer error.
		panic(fmt.Sprintf("agentctl: reflect echo tool schema: %v", err))
	}

	return []llmtypes.Tool{
		{
			Name:            "echo",
			Label:           "Echo",
			ParameterSchema: echoSchema,
			Execute: func(ctx context.Context, toolCallID string, args map[string]any, onPartial llmtypes.PartialResultFunc) (llmtypes.ToolResult, error) {
				text, _ := args["text"].(string)
				return llmtypes.TextResult(fmt.Sprintf("echo: %s", text)), nil
			},
		},
	}
}

func toolMap(tools []llmtypes.Tool) map[string]llmtypes.Tool {
	m := make(map[string]llmtypes.Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return m
}
