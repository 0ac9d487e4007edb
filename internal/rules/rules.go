// Package rules implements the fixed battery of risk predicates. Each rule is
// a pure evaluation over one transaction and the immutable reference context;
// the set is closed — adding a rule means adding a type here and a default
// weight in weights.go, there is no runtime registration.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/refdata"
)

// Name identifies a rule. Names are stable: they key the weight table, the
// hits map, and the persisted explanation payload.
type Name string

const (
	Blacklist       Name = "blacklist"
	Watchlist       Name = "watchlist"
	HighAmount      Name = "high_amount"
	UnusualHour     Name = "unusual_hour"
	NewAddress      Name = "new_address"
	Velocity        Name = "velocity"
	SensitiveToken  Name = "sensitive_token"
	SensitiveMethod Name = "sensitive_method"
)

// Outcome is the result of one rule evaluation. A non-nil Err means the rule
// could not be evaluated; the engine resolves that to zero score impact
// (fail-open) and logs it. Count is only populated by the velocity rule and
// carries the number of qualifying prior transactions regardless of firing.
type Outcome struct {
	Fired  bool
	Reason string
	Count  int
	Err    error
}

// Rule is one evaluation capability. Evaluate must not panic and must not
// mutate the transaction or the context.
type Rule interface {
	Name() Name
	Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome
}

// Params holds the externally configured rule thresholds.
type Params struct {
	AmountThreshold  float64
	VelocityWindow   time.Duration
	VelocityMaxCount int
}

// DefaultParams mirrors the documented defaults: amount 10000, window 10
// minutes, max count 5.
func DefaultParams() Params {
	return Params{
		AmountThreshold:  10_000,
		VelocityWindow:   10 * time.Minute,
		VelocityMaxCount: 5,
	}
}

// Ordered returns the full rule battery in its fixed evaluation order. The
// order is observable in the reasons list of every scoring result and must
// never change between releases.
func Ordered(p Params) []Rule {
	return []Rule{
		blacklistRule{},
		watchlistRule{},
		highAmountRule{threshold: p.AmountThreshold},
		unusualHourRule{},
		newAddressRule{},
		velocityRule{window: p.VelocityWindow, maxCount: p.VelocityMaxCount},
		sensitiveTokenRule{},
		sensitiveMethodRule{},
	}
}

type blacklistRule struct{}

func (blacklistRule) Name() Name { return Blacklist }

func (blacklistRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	if rc.Sets.Deny.Contains(strings.ToLower(tx.From)) || rc.Sets.Deny.Contains(strings.ToLower(tx.To)) {
		return Outcome{Fired: true, Reason: "address in deny list"}
	}
	return Outcome{}
}

type watchlistRule struct{}

func (watchlistRule) Name() Name { return Watchlist }

func (watchlistRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	if rc.Sets.Watch.Contains(strings.ToLower(tx.From)) || rc.Sets.Watch.Contains(strings.ToLower(tx.To)) {
		return Outcome{Fired: true, Reason: "address in watch list"}
	}
	return Outcome{}
}

type highAmountRule struct {
	threshold float64
}

func (highAmountRule) Name() Name { return HighAmount }

func (r highAmountRule) Evaluate(tx domain.Transaction, _ *refdata.Context) Outcome {
	if tx.Amount >= r.threshold {
		return Outcome{Fired: true, Reason: "amount above threshold"}
	}
	return Outcome{}
}

type unusualHourRule struct{}

func (unusualHourRule) Name() Name { return UnusualHour }

func (unusualHourRule) Evaluate(tx domain.Transaction, _ *refdata.Context) Outcome {
	ts, ok := tx.Time()
	if !ok {
		return Outcome{Err: domain.ErrBadTimestamp}
	}
	if h := ts.UTC().Hour(); h <= 5 {
		return Outcome{Fired: true, Reason: "unusual hour (UTC night)"}
	}
	return Outcome{}
}

type newAddressRule struct{}

func (newAddressRule) Name() Name { return NewAddress }

func (newAddressRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	sender := strings.TrimSpace(strings.ToLower(tx.From))
	if sender != "" && !rc.KnownAddress(sender) {
		return Outcome{Fired: true, Reason: "sender address not previously known"}
	}
	return Outcome{}
}

type velocityRule struct {
	window   time.Duration
	maxCount int
}

func (velocityRule) Name() Name { return Velocity }

func (r velocityRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	ts, ok := tx.Time()
	if !ok {
		return Outcome{Err: domain.ErrBadTimestamp}
	}
	n := rc.VelocityCount(tx.From, ts, r.window)
	if n >= r.maxCount {
		return Outcome{
			Fired:  true,
			Reason: fmt.Sprintf("high velocity (%d tx in %d min)", n, int(r.window.Minutes())),
			Count:  n,
		}
	}
	return Outcome{Count: n}
}

type sensitiveTokenRule struct{}

func (sensitiveTokenRule) Name() Name { return SensitiveToken }

func (sensitiveTokenRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	if tx.Token != "" && rc.Sets.SensitiveTokens.Contains(strings.ToUpper(tx.Token)) {
		return Outcome{Fired: true, Reason: "sensitive token"}
	}
	return Outcome{}
}

type sensitiveMethodRule struct{}

func (sensitiveMethodRule) Name() Name { return SensitiveMethod }

func (sensitiveMethodRule) Evaluate(tx domain.Transaction, rc *refdata.Context) Outcome {
	if tx.Method != "" && rc.Sets.SensitiveMethods.Contains(strings.ToUpper(tx.Method)) {
		return Outcome{Fired: true, Reason: "sensitive method"}
	}
	return Outcome{}
}
