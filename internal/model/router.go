package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/model/contract"
)

var _ ModelRouter = (*DefaultModelRouter)(nil)

// DefaultModelRouter picks a provider from the model name prefix and falls
// back to the configured default when the name is unknown.
type DefaultModelRouter struct {
	providers     map[string]Provider
	defaultModel  string
	fallbackModel string
	maxAttempts   int
	embedOrder    []string
}

func NewRouter(defaultModel string) *DefaultModelRouter {
	return &DefaultModelRouter{
		providers:    make(map[string]Provider),
		defaultModel: defaultModel,
		maxAttempts:  1,
	}
}

// SetFallback enables retrying a failed completion on a second model.
// maxAttempts counts total generation attempts including the first.
func (r *DefaultModelRouter) SetFallback(model string, maxAttempts int) {
	r.fallbackModel = model
	if maxAttempts > 1 {
		r.maxAttempts = maxAttempts
	} else {
		r.maxAttempts = 2
	}
}

// RegisterProvider binds a provider under its name. Embedding routing tries
// providers in registration order.
func (r *DefaultModelRouter) RegisterProvider(p Provider) {
	r.providers[p.Name()] = p
	r.embedOrder = append(r.embedOrder, p.Name())
}

func (r *DefaultModelRouter) providerFor(model string) (Provider, string) {
	name := model
	if name == "" {
		name = r.defaultModel
	}

	switch {
	case strings.HasPrefix(name, "claude"):
		if p, ok := r.providers["anthropic"]; ok {
			return p, name
		}
	case strings.HasPrefix(name, "gpt") || strings.HasPrefix(name, "o1") || strings.HasPrefix(name, "o3") || strings.HasPrefix(name, "text-embedding"):
		if p, ok := r.providers["openai"]; ok {
			return p, name
		}
	case strings.HasPrefix(name, "gemini"):
		if p, ok := r.providers["gemini"]; ok {
			return p, name
		}
	}

	// Unknown model name: route to the default model's provider instead.
	if name != r.defaultModel && r.defaultModel != "" {
		slog.Debug("model not recognized, falling back to default", "requested", name, "default", r.defaultModel)
		return r.providerFor(r.defaultModel)
	}
	return nil, name
}

func (r *DefaultModelRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	p, resolved := r.providerFor(model)
	if p == nil {
		return nil, errors.Configuration(fmt.Sprintf("no provider available for model %q", resolved))
	}
	req.Model = resolved

	resp, err := p.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	// One shot at the fallback model when it resolves to a different target.
	if r.fallbackModel != "" && r.maxAttempts > 1 && r.fallbackModel != resolved {
		if fp, fresolved := r.providerFor(r.fallbackModel); fp != nil && fresolved != resolved {
			slog.Warn("primary model failed, trying fallback",
				"model", resolved, "fallback", fresolved, "error", err)
			req.Model = fresolved
			if fresp, ferr := fp.Generate(ctx, req); ferr == nil {
				return fresp, nil
			}
		}
	}

	return nil, errors.Wrap(errors.ErrEngineTransport, fmt.Sprintf("provider %s: %v", p.Name(), err))
}

// RouteEmbedding asks the named model's provider first, then walks the other
// registered providers until one succeeds.
func (r *DefaultModelRouter) RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	tried := map[string]bool{}

	if p, _ := r.providerFor(model); p != nil {
		tried[p.Name()] = true
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		slog.Debug("embedding provider failed, trying others", "provider", p.Name(), "error", err)
	}

	for _, name := range r.embedOrder {
		if tried[name] {
			continue
		}
		vec, err := r.providers[name].Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
	}

	return nil, errors.Wrap(errors.ErrEngineTransport, "no provider produced an embedding")
}

func (r *DefaultModelRouter) ListModels() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
