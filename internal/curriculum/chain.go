package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Generator produces a curriculum for a learning goal.
type Generator interface {
	Generate(ctx context.Context, goal string) (Curriculum, error)
}

// Chain tries templates before falling back to generation. A generator
// answering ErrNoTemplate passes to the next one; any other error stops the
// chain.
type Chain []Generator

// Generate returns the first curriculum produced by the chain.
func (c Chain) Generate(ctx context.Context, goal string) (Curriculum, error) {
	for _, g := range c {
		if g == nil {
			continue
		}
		cur, err := g.Generate(ctx, goal)
		if errors.Is(err, ErrNoTemplate) {
			continue
		}
		if err != nil {
			return Curriculum{}, err
		}
		slog.Debug("curriculum produced", "generator", fmt.Sprintf("%T", g), "topics", len(cur.Topics))
		return cur, nil
	}
	return Curriculum{}, fmt.Errorf("%w: %q", ErrNoTemplate, goal)
}
