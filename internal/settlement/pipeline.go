// Package settlement implements the transaction settlement chain: a fixed
// sequence of stages (validation, authentication, conversion, fee,
// persistence) folded over a mutable per-run Context.
//
// One run settles exactly one transaction and is strictly sequential. The
// first failing stage aborts the run; its error reaches the caller exactly
// as the stage produced it, and no record is written. Runs that share a
// ledger sink must be serialized by the caller (the worker does this with a
// single consumer goroutine).
package settlement

import (
	"context"
	"time"

	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/fx"
	"github.com/dvloznov/exchange-settler/internal/ledger"
	"github.com/dvloznov/exchange-settler/internal/logger"
)

// Pipeline executes a sequence of stages in order. The stage list is fixed
// at construction; a Pipeline is safe for concurrent use as long as each
// call gets its own transaction.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from the given stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// NewSettlementPipeline assembles the standard five-stage chain for
// settling BTC transactions into fiat.
func NewSettlementPipeline(dir directory.Directory, engine *fx.Engine, store ledger.Store) *Pipeline {
	return NewPipeline(
		NewValidationStage(),
		NewAuthenticationStage(dir),
		NewConversionStage(engine),
		NewFeeStage(engine),
		NewPersistenceStage(store),
	)
}

// Run settles one transaction. It wraps the transaction in a fresh Context,
// folds it through every stage in order, and returns the enriched Context
// with Status set to StatusSucceeded.
//
// The first stage failure stops the run: the stage's error is returned
// unmodified and the partial Context is dropped. Nothing was persisted in
// that case; there is no retry and no rollback.
func (p *Pipeline) Run(ctx context.Context, tx *Transaction) (*Context, error) {
	log := logger.FromContext(ctx)
	state := NewContext(tx)

	for _, stage := range p.stages {
		start := time.Now()
		if err := stage.Process(ctx, state); err != nil {
			log.Debug().
				Str("stage", stage.Name()).
				Dur("elapsed", time.Since(start)).
				Err(err).
				Msg("Settlement stage failed")
			return nil, err
		}
		log.Debug().
			Str("stage", stage.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("Settlement stage complete")
	}

	state.Status = StatusSucceeded
	return state, nil
}
