package settlement

import "context"

// Stage is a single link in the settlement chain. Implementations must be
// safe for reuse across runs: all per-run state lives in the Context they
// are handed.
//
// A stage reports failure by returning an error; it must not panic and must
// not write Context fields owned by other stages.
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Process advances the run. ctx carries cancellation and the logger;
	// state carries everything accumulated so far.
	Process(ctx context.Context, state *Context) error
}
