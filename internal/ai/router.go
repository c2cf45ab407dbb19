package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Router selects a provider by task type and falls back through the rest in
// registration order. When a budget is set, requests carrying a UserID are
// refused once the budget is spent and charged after success.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	preferred map[TaskType]string
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		preferred: make(map[TaskType]string),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Prefer routes task to the named provider first.
func (r *Router) Prefer(task TaskType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred[task] = name
}

// SetBudget enables per-user token budgets.
func (r *Router) SetBudget(budget BudgetChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = budget
}

// order returns provider names to try for task.
func (r *Router) order(task TaskType) []string {
	names := slices.Clone(r.fallback)
	if first, ok := r.preferred[task]; ok {
		if i := slices.Index(names, first); i > 0 {
			names = append([]string{first}, slices.Delete(names, i, i+1)...)
		}
	}
	return names
}

func (r *Router) checkBudget(ctx context.Context, req CompletionRequest) error {
	if r.budget == nil || req.UserID == "" {
		return nil
	}
	ok, err := r.budget.Check(ctx, req.UserID)
	if err != nil {
		// Budget store failures fail open.
		slog.Warn("budget check failed", "user_id", req.UserID, "error", err)
		return nil
	}
	if !ok {
		return ErrBudgetExceeded
	}
	return nil
}

func (r *Router) recordUsage(ctx context.Context, req CompletionRequest, tokens int) {
	if r.budget == nil || req.UserID == "" {
		return
	}
	if err := r.budget.Record(ctx, req.UserID, tokens); err != nil {
		slog.Warn("failed to record token usage", "user_id", req.UserID, "error", err)
	}
}

// Complete routes a request to the best available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}
	if err := r.checkBudget(ctx, req); err != nil {
		return CompletionResponse{}, err
	}

	var errs []error
	for _, name := range r.order(req.Task) {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		r.recordUsage(ctx, req, resp.TotalTokens())
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

// StreamComplete opens a stream on the first provider that accepts the request.
// Usage is not charged for streams since providers report it only at the end.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, ErrNoProvider
	}
	if err := r.checkBudget(ctx, req); err != nil {
		return nil, err
	}

	var errs []error
	for _, name := range r.order(req.Task) {
		ch, err := r.providers[name].StreamComplete(ctx, req)
		if err != nil {
			slog.Warn("AI provider stream failed, trying next", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return ch, nil
	}
	return nil, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.fallback)
}
