package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that e is reachable. Engines that host models locally
// get their model pulled when it is missing, with progress written to w.
func EnsureReady(ctx context.Context, e Engine, w io.Writer) error {
	if e == nil {
		fmt.Fprintln(w, "llm: disabled, insights will use the fallback template")
		return nil
	}
	if !e.IsRunning(ctx) {
		return fmt.Errorf("llm backend %s is not reachable", e.Name())
	}

	p, ok := e.(Puller)
	if !ok {
		fmt.Fprintf(w, "llm %s: ready\n", e.Name())
		return nil
	}

	model := p.Model()
	if p.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := p.PullModel(ctx, model, func(pp PullProgress) {
		if pct, ok := pp.Percent(); ok {
			fmt.Fprintf(w, "  %s %.0f%%\n", pp.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", pp.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
