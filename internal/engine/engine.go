// Package engine combines the rule battery and the weight table into an
// explainable 0-100 risk score.
package engine

import (
	"log/slog"
	"math"

	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/refdata"
	"github.com/alanyoungcy/safescore/internal/rules"
)

// Result is the output of scoring one transaction.
type Result struct {
	// Score is 100 minus the penalty, floored at 0.
	Score int
	// Penalty is the sum of the weights of all fired rules.
	Penalty int
	// Reasons lists the fired rules' human-readable reasons in evaluation
	// order, including rules whose weight resolved to zero.
	Reasons []string
	// Hits maps each fired rule with a strictly positive weight to the weight
	// that was applied.
	Hits map[rules.Name]int
	// VelocityCount is the number of qualifying prior transactions found for
	// the sender, whether or not the velocity rule fired.
	VelocityCount int
	// Explain is the persisted breakdown derived from Hits.
	Explain domain.Explanation
}

// NewAddress reports whether the new_address rule contributed to the penalty.
// The orchestrator uses it to grow the known-address set.
func (r Result) NewAddress() bool {
	_, ok := r.Hits[rules.NewAddress]
	return ok
}

// Engine evaluates every rule in fixed order against an immutable context.
// Rules and weights are fixed at construction; the context is supplied per
// scoring session by the orchestrator.
type Engine struct {
	rules   []rules.Rule
	weights rules.WeightTable
	logger  *slog.Logger
}

// New creates an Engine over the given rule battery and weight table. Callers
// normally pass rules.Ordered(params); tests may inject stubs.
func New(battery []rules.Rule, weights rules.WeightTable, logger *slog.Logger) *Engine {
	return &Engine{
		rules:   battery,
		weights: weights,
		logger:  logger.With(slog.String("component", "engine")),
	}
}

// Score evaluates all rules against tx. No rule sees another rule's outcome;
// a rule that cannot be evaluated contributes nothing (fail-open) and is
// logged at debug level.
func (e *Engine) Score(tx domain.Transaction, rc *refdata.Context) Result {
	res := Result{Hits: make(map[rules.Name]int)}

	for _, r := range e.rules {
		out := r.Evaluate(tx, rc)

		if r.Name() == rules.Velocity {
			res.VelocityCount = out.Count
		}
		if out.Err != nil {
			e.logger.Debug("rule could not be evaluated",
				slog.String("rule", string(r.Name())),
				slog.String("tx_id", tx.ID),
				slog.String("error", out.Err.Error()),
			)
			continue
		}
		if !out.Fired {
			continue
		}
		if w := e.weights.Weight(r.Name()); w > 0 {
			res.Hits[r.Name()] = w
			res.Penalty += w
		}
		if out.Reason != "" {
			res.Reasons = append(res.Reasons, out.Reason)
		}
	}

	res.Score = 100 - res.Penalty
	if res.Score < 0 {
		res.Score = 0
	}
	res.Explain = explain(res.Hits, res.Penalty)
	return res
}

// explain builds the persisted weight/contribution payload. Percentages are
// each rule's share of the total penalty, rounded to one decimal.
func explain(hits map[rules.Name]int, penalty int) domain.Explanation {
	ex := domain.Explanation{
		Weights:    make(map[string]int, len(hits)),
		ContribPct: make(map[string]float64, len(hits)),
	}
	for name, w := range hits {
		ex.Weights[string(name)] = w
		if penalty > 0 {
			ex.ContribPct[string(name)] = math.Round(float64(w)/float64(penalty)*1000) / 10
		}
	}
	return ex
}
