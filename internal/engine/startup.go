package engine

import (
	"context"
	"fmt"
	"io"
)

type unwrapper interface {
	Unwrap() Engine
}

// EnsureReady checks that the backend is reachable. For a local Ollama
// backend, missing models are pulled with progress written to w.
func EnsureReady(ctx context.Context, e Engine, models []string, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("text-generation backend is not reachable")
	}

	for {
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	oe, ok := e.(*OllamaEngine)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if oe.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := oe.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, float64(p.Completed)/float64(p.Total)*100)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}
