package guardrail

import (
	"context"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/logging"
)

// Outcome is the result of running a pipeline over one input. It is an
// explicit value, never an error: a tripped guardrail is expected control
// flow, not a failure.
type Outcome struct {
	// Tripped reports whether any guardrail blocked the input.
	Tripped bool

	// FailingCheck points at the Report entry of the guardrail that
	// tripped, nil otherwise.
	FailingCheck *core.GuardrailCheck

	// Report has exactly one entry per configured guardrail, in
	// configuration order. The failing entry carries the classifier's real
	// reasoning and Passed=false; every other entry is reported
	// Passed=true with empty reasoning regardless of whether it ran. That
	// reporting shape is part of the external contract.
	Report []core.GuardrailCheck
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Logger logging.Logger

	// OnTrip, when set, is invoked with the guardrail name whenever an
	// input is blocked. Used for metrics.
	OnTrip func(guardrailName string)
}

// Pipeline evaluates an agent's configured guardrails in order, stopping at
// the first one that trips. Classifier infrastructure failures fail open:
// the guardrail is treated as passed and a warning is logged, so an upstream
// outage degrades screening rather than taking the service down.
type Pipeline struct {
	opts PipelineOptions
}

// NewPipeline creates a guardrail pipeline.
func NewPipeline(optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Pipeline{opts: opts}
}

// Evaluate runs the given guardrails against the raw user message. The
// returned error is non-nil only when ctx is canceled mid-evaluation;
// guardrail trips and classifier failures are reported through the Outcome.
func (p *Pipeline) Evaluate(ctx context.Context, guardrails []Guardrail, input string) (Outcome, error) {
	timestamp := core.NowMillis()
	report := make([]core.GuardrailCheck, len(guardrails))

	failingIdx := -1
	for i, g := range guardrails {
		report[i] = core.GuardrailCheck{
			ID:        core.NewID(),
			Name:      g.Name(),
			Input:     input,
			Passed:    true,
			Timestamp: timestamp,
		}
		if failingIdx >= 0 {
			continue
		}

		verdict, err := g.Check(ctx, input)
		switch {
		case err != nil && ctx.Err() != nil:
			return Outcome{}, ctx.Err()
		case err != nil:
			p.opts.Logger.Warn("guardrail.check.failed_open", "guardrail", g.Name(), "error", err.Error())
		case verdict.Tripped:
			report[i].Passed = false
			report[i].Reasoning = verdict.Reasoning
			failingIdx = i
			p.opts.Logger.Info("guardrail.tripped", "guardrail", g.Name(), "reasoning", verdict.Reasoning)
			if p.opts.OnTrip != nil {
				p.opts.OnTrip(g.Name())
			}
		}
	}

	outcome := Outcome{Tripped: failingIdx >= 0, Report: report}
	if failingIdx >= 0 {
		outcome.FailingCheck = &report[failingIdx]
	}
	return outcome, nil
}
