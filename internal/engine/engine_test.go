package engine

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/refdata"
	"github.com/alanyoungcy/safescore/internal/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fullSets() *refdata.Sets {
	return &refdata.Sets{
		Deny:             refdata.Set{"0xdenied": {}},
		Watch:            refdata.Set{"0xwatched": {}},
		SensitiveTokens:  refdata.Set{"USDT": {}},
		SensitiveMethods: refdata.Set{"APPROVE": {}},
	}
}

func defaultEngine() *Engine {
	return New(rules.Ordered(rules.DefaultParams()), rules.DefaultWeights(), testLogger())
}

func TestScoreSuspiciousTransactionFloorsAtZero(t *testing.T) {
	// 20000 USDT APPROVE at 03:00 UTC from an unknown sender: high_amount 25,
	// unusual_hour 15, new_address 40, sensitive_token 15, sensitive_method 15.
	// Penalty 110 exceeds 100, so the score floors at 0.
	e := defaultEngine()
	rc := refdata.NewContext(fullSets(), nil, nil)

	res := e.Score(domain.Transaction{
		ID:        "tx-1",
		Timestamp: "2024-05-01T03:00:00Z",
		From:      "0xnobody",
		To:        "0xsomeone",
		Amount:    20000,
		Token:     "USDT",
		Method:    "APPROVE",
	}, rc)

	assert.Equal(t, 110, res.Penalty)
	assert.Equal(t, 0, res.Score)
	assert.True(t, res.NewAddress())
	assert.Equal(t, []string{
		"amount above threshold",
		"unusual hour (UTC night)",
		"sender address not previously known",
		"sensitive token",
		"sensitive method",
	}, res.Reasons, "reasons follow the fixed evaluation order")
}

func TestScoreCleanTransaction(t *testing.T) {
	e := defaultEngine()
	rc := refdata.NewContext(fullSets(), []string{"0xregular"}, nil)

	res := e.Score(domain.Transaction{
		ID:        "tx-2",
		Timestamp: "2024-05-01T14:00:00Z",
		From:      "0xregular",
		To:        "0xshop",
		Amount:    50,
		Token:     "ETH",
		Method:    "TRANSFER",
	}, rc)

	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 0, res.Penalty)
	assert.Empty(t, res.Reasons)
	assert.Empty(t, res.Hits)
	assert.False(t, res.NewAddress())
}

func TestScoreStaysWithinBounds(t *testing.T) {
	e := defaultEngine()
	rc := refdata.NewContext(fullSets(), nil, nil)

	txs := []domain.Transaction{
		{ID: "a", Timestamp: "2024-05-01T02:00:00Z", From: "0xdenied", To: "0xwatched", Amount: 99999, Token: "USDT", Method: "APPROVE"},
		{ID: "b", Timestamp: "2024-05-01T12:00:00Z", From: "0xknownish", Amount: 1},
		{ID: "c", Timestamp: "bad", From: "0xdenied", Amount: 5},
	}
	for _, tx := range txs {
		res := e.Score(tx, rc)
		assert.GreaterOrEqual(t, res.Score, 0, "tx %s", tx.ID)
		assert.LessOrEqual(t, res.Score, 100, "tx %s", tx.ID)
	}
}

func TestExplainContributionsSumToHundred(t *testing.T) {
	e := defaultEngine()
	rc := refdata.NewContext(fullSets(), nil, nil)

	res := e.Score(domain.Transaction{
		ID:        "tx-3",
		Timestamp: "2024-05-01T03:00:00Z",
		From:      "0xdenied",
		To:        "0xsomeone",
		Amount:    20000,
		Token:     "USDT",
		Method:    "APPROVE",
	}, rc)
	require.NotEmpty(t, res.Explain.ContribPct)

	sum := 0.0
	for name, pct := range res.Explain.ContribPct {
		sum += pct
		assert.Equal(t, res.Hits[rules.Name(name)], res.Explain.Weights[name])
	}
	assert.InDelta(t, 100.0, sum, 0.2)
}

func TestZeroWeightRuleKeepsReasonDropsHit(t *testing.T) {
	weights := rules.DefaultWeights()
	weights[rules.Watchlist] = 0

	e := New(rules.Ordered(rules.DefaultParams()), weights, testLogger())
	rc := refdata.NewContext(fullSets(), []string{"0xwatched"}, nil)

	res := e.Score(domain.Transaction{
		ID:        "tx-4",
		Timestamp: "2024-05-01T14:00:00Z",
		From:      "0xwatched",
		Amount:    10,
	}, rc)

	assert.Equal(t, 100, res.Score)
	assert.Contains(t, res.Reasons, "address in watch list")
	_, hit := res.Hits[rules.Watchlist]
	assert.False(t, hit)
	assert.Empty(t, res.Explain.ContribPct)
}

type failingRule struct{}

func (failingRule) Name() rules.Name { return rules.HighAmount }
func (failingRule) Evaluate(domain.Transaction, *refdata.Context) rules.Outcome {
	return rules.Outcome{Err: errors.New("backend unreachable")}
}

func TestFailingRuleContributesNothing(t *testing.T) {
	e := New([]rules.Rule{failingRule{}}, rules.DefaultWeights(), testLogger())
	rc := refdata.NewContext(fullSets(), nil, nil)

	res := e.Score(domain.Transaction{ID: "tx-5", Amount: 99999}, rc)
	assert.Equal(t, 100, res.Score)
	assert.Empty(t, res.Reasons)
	assert.Empty(t, res.Hits)
}

func TestVelocityCountReportedWithoutFiring(t *testing.T) {
	e := defaultEngine()
	history := []domain.HistoryEntry{
		{Sender: "0xsender", At: time.Date(2024, 5, 1, 11, 58, 0, 0, time.UTC)},
		{Sender: "0xsender", At: time.Date(2024, 5, 1, 11, 59, 0, 0, time.UTC)},
	}
	rc := refdata.NewContext(fullSets(), []string{"0xsender"}, history)

	res := e.Score(domain.Transaction{
		ID:        "tx-6",
		Timestamp: "2024-05-01T12:00:00Z",
		From:      "0xsender",
		Amount:    10,
	}, rc)

	assert.Equal(t, 2, res.VelocityCount)
	assert.NotContains(t, res.Hits, rules.Velocity)
}
