package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/responder"
)

// maxTitleOutputTokens bounds the background title call so it can't turn
// into a second full turn against the model.
const maxTitleOutputTokens = 40

const titleSystemPrompt = "Generate a concise, short title (a few words, no punctuation at the end) for the following content. Reply with the title only."

// maybeGenerateTitle fires generateTitle in the background for the first
// user prompt of a brand-new run (history empty before this Run call),
// grounded on crush's agent.go generateTitle: one best-effort call against
// a separate, typically cheaper model, never blocking or failing the main
// turn.
func (l *Loop) maybeGenerateTitle(ctx context.Context, prompts []llmtypes.Message) {
	if l.cfg.TitleStream == nil || l.cfg.OnTitle == nil {
		return
	}
	for _, p := range prompts {
		if p.Role != llmtypes.RoleUser {
			continue
		}
		if text := userText(p); text != "" {
			go generateTitle(context.WithoutCancel(ctx), l.cfg, text)
		}
		return
	}
}

// generateTitle runs one unstreamed turn against cfg.TitleStream/TitleTarget
// to summarize prompt into a short title, handing the result to
// cfg.OnTitle. Errors are logged and swallowed — a session simply keeps
// its default name if title generation fails.
func generateTitle(ctx context.Context, cfg Config, prompt string) {
	history := []llmtypes.AgentMessage{llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage(prompt))}
	_, final, err := responder.RunTurn(ctx, history, responder.Options{
		SystemPrompt:    titleSystemPrompt,
		Target:          cfg.TitleTarget,
		MaxOutputTokens: maxTitleOutputTokens,
		Stream:          cfg.TitleStream,
		Emit:            func(llmtypes.AgentEvent) {},
	})
	if err != nil {
		slog.Error("generate title failed", "error", err)
		return
	}
	if title := strings.TrimSpace(final.Text()); title != "" {
		cfg.OnTitle(title)
	}
}

func userText(m llmtypes.Message) string {
	var sb strings.Builder
	for _, c := range m.UserContent {
		if c.Kind == llmtypes.UserContentText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}
