package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// PrometheusRecorder implements Recorder on a private registry, so several runs in
// one process never collide on registration.
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	promptTokens     *prometheus.CounterVec
	completionTokens *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
	stepsTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appbuilder_llm_requests_total",
				Help: "Model calls by model and status.",
			},
			[]string{"model", "status", "error_type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appbuilder_llm_request_duration_seconds",
				Help:    "Duration of model calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		promptTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appbuilder_llm_prompt_tokens_total",
				Help: "Prompt tokens sent, by model.",
			},
			[]string{"model"},
		),
		completionTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appbuilder_llm_completion_tokens_total",
				Help: "Completion tokens received, by model.",
			},
			[]string{"model"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appbuilder_tool_calls_total",
				Help: "Tool executions by tool and status.",
			},
			[]string{"tool", "status"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appbuilder_coder_steps_total",
				Help: "Implementation steps by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveRequest records one completed model call.
func (p *PrometheusRecorder) ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	p.requestsTotal.WithLabelValues(model, StatusLabel(success), errorType).Inc()
	p.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if success {
		p.promptTokens.WithLabelValues(model).Add(float64(promptTokens))
		p.completionTokens.WithLabelValues(model).Add(float64(completionTokens))
	}
}

// ObserveToolCall records one tool execution.
func (p *PrometheusRecorder) ObserveToolCall(tool string, success bool) {
	p.toolCallsTotal.WithLabelValues(tool, StatusLabel(success)).Inc()
}

// ObserveStep records the outcome of one implementation step.
func (p *PrometheusRecorder) ObserveStep(outcome string) {
	p.stepsTotal.WithLabelValues(outcome).Inc()
}

// Registry exposes the private registry, e.g. for an HTTP handler.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// WriteText writes every gathered family in the text exposition format.
func (p *PrometheusRecorder) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile writes the metrics to path atomically, in the layout the
// node_exporter textfile collector reads.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("create temp metrics file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup after rename

	if err := p.WriteText(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish metrics file: %w", err)
	}
	return nil
}
