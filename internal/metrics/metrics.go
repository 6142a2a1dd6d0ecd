package metrics

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentcore/runtime/internal/llmtypes"
)

// ToolMetric is one durable tool-execution record. Prometheus metrics cover
// the aggregate/dashboard case; ToolMetric covers "what exactly happened on
// call X", persisted via DB when one is configured.
type ToolMetric struct {
	SessionID    string
	ToolName     string
	StartedAt    time.Time
	Duration     time.Duration
	Success      bool
	ErrorMessage string
	InputSize    int
	OutputSize   int
}

// Options configures a Service. Registry defaults to a fresh
// prometheus.Registry when nil. DB is optional — Record is a no-op without
// one, the same "metrics are optional" stance Server takes toward its own
// HTTP endpoint.
type Options struct {
	Registry *prometheus.Registry
	DB       *sql.DB
}

// Service is the runtime's metrics sink: a Collector for dashboards plus an
// optional DB-backed per-call audit log.
type Service struct {
	registry  *prometheus.Registry
	collector *Collector
	db        *sql.DB
}

// NewWithOptions constructs a Service, registering a fresh Collector against
// opts.Registry.
func NewWithOptions(opts Options) *Service {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Service{
		registry:  registry,
		collector: NewCollector(registry),
		db:        opts.DB,
	}
}

// Registry returns the underlying registry, for wiring into a metrics.Server
// or for test assertions via Gather().
func (s *Service) Registry() *prometheus.Registry { return s.registry }

func (s *Service) ObserveLLMRequest(provider, model string, d time.Duration) {
	s.collector.LLMRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

func (s *Service) ObserveTimeToFirstToken(provider, model string, d time.Duration) {
	s.collector.LLMTimeToFirstToken.WithLabelValues(provider, model).Observe(d.Seconds())
}

func (s *Service) AddTokens(provider, model, tokenType string, n int) {
	s.collector.LLMTokensTotal.WithLabelValues(provider, model, tokenType).Add(float64(n))
}

func (s *Service) IncLLMRequest(provider, model, status string) {
	s.collector.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

func (s *Service) ObserveTool(tool string, d time.Duration, inputBytes, outputBytes int) {
	s.collector.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
	s.collector.ToolInputBytes.WithLabelValues(tool).Observe(float64(inputBytes))
	s.collector.ToolOutputBytes.WithLabelValues(tool).Observe(float64(outputBytes))
}

func (s *Service) IncToolCall(tool, status string) {
	s.collector.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (s *Service) IncAgentStep() {
	s.collector.AgentStepsTotal.Inc()
}

func (s *Service) IncAgentRun(status string) {
	s.collector.AgentRunsTotal.WithLabelValues(status).Inc()
}

func (s *Service) IncAgentRetry(provider, reason string) {
	s.collector.AgentRetriesTotal.WithLabelValues(provider, reason).Inc()
}

func (s *Service) IncSummarization() {
	s.collector.AgentSummarizationsTotal.Inc()
}

func (s *Service) IncLoopDetection() {
	s.collector.AgentLoopDetectionsTotal.Inc()
}

func (s *Service) SetQueueDepth(sessionID string, depth int) {
	s.collector.AgentQueueDepth.WithLabelValues(sessionID).Set(float64(depth))
}

func (s *Service) IncProviderError(provider string, statusCode int, errType string) {
	s.collector.ProviderErrorsTotal.
		WithLabelValues(provider, strconv.Itoa(statusCode), NormalizeErrorType(errType)).
		Inc()
}

// Record persists a ToolMetric if a DB is configured; otherwise it is a
// deliberate no-op, so that a missing metrics backend never breaks a tool
// call.
func (s *Service) Record(ctx context.Context, metric ToolMetric) error {
	if s.db == nil {
		return nil
	}
	var errMsg sql.NullString
	if metric.ErrorMessage != "" {
		errMsg = sql.NullString{String: metric.ErrorMessage, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_metrics (session_id, tool_name, started_at, duration_ms, success, error_message, input_size, output_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		metric.SessionID, metric.ToolName, metric.StartedAt.Unix(), metric.Duration.Milliseconds(),
		metric.Success, errMsg, metric.InputSize, metric.OutputSize,
	)
	return err
}

// WrapTool instruments a llmtypes.Tool's Execute with duration/size
// observations and a best-effort Record call, the same wrap-at-the-boundary
// idiom the teacher used for fantasy.AgentTool, adapted to this core's Tool
// shape and its own session-scoped context instead of fantasy's.
func (s *Service) WrapTool(sessionID string, tool llmtypes.Tool) llmtypes.Tool {
	inner := tool.Execute
	tool.Execute = func(ctx context.Context, toolCallID string, args map[string]any, onPartial llmtypes.PartialResultFunc) (llmtypes.ToolResult, error) {
		startedAt := time.Now()
		result, err := inner(ctx, toolCallID, args, onPartial)
		duration := time.Since(startedAt)

		inputSize := argsSize(args)
		outputSize := resultSize(result)
		status := "success"
		if err != nil || result.IsError {
			status = "error"
		}
		s.ObserveTool(tool.Name, duration, inputSize, outputSize)
		s.IncToolCall(tool.Name, status)

		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		} else if result.IsError {
			errMsg = resultText(result)
		}
		go func() {
			_ = s.Record(context.Background(), ToolMetric{
				SessionID:    sessionID,
				ToolName:     tool.Name,
				StartedAt:    startedAt,
				Duration:     duration,
				Success:      status == "success",
				ErrorMessage: errMsg,
				InputSize:    inputSize,
				OutputSize:   outputSize,
			})
		}()
		return result, err
	}
	return tool
}

func argsSize(args map[string]any) int {
	n := 0
	for k, v := range args {
		n += len(k)
		if s, ok := v.(string); ok {
			n += len(s)
		}
	}
	return n
}

func resultSize(r llmtypes.ToolResult) int { return len(resultText(r)) }

func resultText(r llmtypes.ToolResult) string {
	var out string
	for _, c := range r.Content {
		if c.Kind == llmtypes.ResultContentText {
			out += c.Text
		}
	}
	return out
}
