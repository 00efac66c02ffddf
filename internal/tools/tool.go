// Package tools exposes retrieval as invocable tools the generative
// model can call mid-generation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/metrics"
)

// Tool is one retrieval capability: a machine-readable schema for the
// model plus an executor returning human-readable text.
type Tool interface {
	Definition() openai.Tool
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// sourceTracker is implemented by tools that record provenance for the
// results they return.
type sourceTracker interface {
	consumeSources() []domain.Source
}

// Registry maps tool names to instances and tracks the source batch of
// the most recent retrieval.
type Registry struct {
	mu    sync.Mutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	name := t.Definition().Function.Name
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Definitions returns every tool schema, in registration order, for
// passing to the generative model.
func (r *Registry) Definitions() []openai.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches by name. An unknown name is returned as text so
// the model can recover instead of failing the whole query.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.Lock()
	tool, ok := r.tools[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
	metrics.ToolInvocations.WithLabelValues(name).Inc()
	return tool.Execute(ctx, args)
}

// ConsumeSources returns the source batch from the last executed
// retrieval and clears it, so sources are surfaced exactly once per
// answered query.
func (r *Registry) ConsumeSources() []domain.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(sourceTracker); ok {
			if sources := tracker.consumeSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}
