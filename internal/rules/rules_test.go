package rules

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/refdata"
)

func testContext(t *testing.T, sets *refdata.Sets, known []string, history []domain.HistoryEntry) *refdata.Context {
	t.Helper()
	if sets == nil {
		sets = &refdata.Sets{
			Deny:             refdata.Set{},
			Watch:            refdata.Set{},
			SensitiveTokens:  refdata.Set{},
			SensitiveMethods: refdata.Set{},
		}
	}
	return refdata.NewContext(sets, known, history)
}

func ruleByName(t *testing.T, name Name) Rule {
	t.Helper()
	for _, r := range Ordered(DefaultParams()) {
		if r.Name() == name {
			return r
		}
	}
	t.Fatalf("no rule named %s", name)
	return nil
}

func TestOrderedBatteryIsStable(t *testing.T) {
	want := []Name{
		Blacklist, Watchlist, HighAmount, UnusualHour,
		NewAddress, Velocity, SensitiveToken, SensitiveMethod,
	}
	battery := Ordered(DefaultParams())
	require.Len(t, battery, len(want))
	for i, r := range battery {
		assert.Equal(t, want[i], r.Name())
	}
}

func TestBlacklistRule(t *testing.T) {
	sets := &refdata.Sets{
		Deny:             refdata.Set{"0xbad": {}},
		Watch:            refdata.Set{},
		SensitiveTokens:  refdata.Set{},
		SensitiveMethods: refdata.Set{},
	}
	rc := testContext(t, sets, nil, nil)
	r := ruleByName(t, Blacklist)

	out := r.Evaluate(domain.Transaction{From: "0xBAD", To: "0xok"}, rc)
	require.True(t, out.Fired, "deny match is case-insensitive on the sender")
	assert.Equal(t, "address in deny list", out.Reason)

	out = r.Evaluate(domain.Transaction{From: "0xok", To: "0xbad"}, rc)
	assert.True(t, out.Fired, "recipient side also matches")

	out = r.Evaluate(domain.Transaction{From: "0xok", To: "0xother"}, rc)
	assert.False(t, out.Fired)
}

func TestWatchlistRule(t *testing.T) {
	sets := &refdata.Sets{
		Deny:             refdata.Set{},
		Watch:            refdata.Set{"0xwatched": {}},
		SensitiveTokens:  refdata.Set{},
		SensitiveMethods: refdata.Set{},
	}
	rc := testContext(t, sets, nil, nil)
	r := ruleByName(t, Watchlist)

	out := r.Evaluate(domain.Transaction{From: "0xWatched", To: "0xok"}, rc)
	require.True(t, out.Fired)
	assert.Equal(t, "address in watch list", out.Reason)

	out = r.Evaluate(domain.Transaction{From: "0xok", To: "0xok2"}, rc)
	assert.False(t, out.Fired)
}

func TestHighAmountRule(t *testing.T) {
	rc := testContext(t, nil, nil, nil)
	r := ruleByName(t, HighAmount)

	assert.False(t, r.Evaluate(domain.Transaction{Amount: 9999.99}, rc).Fired)

	out := r.Evaluate(domain.Transaction{Amount: 10000}, rc)
	require.True(t, out.Fired, "threshold itself fires")
	assert.Equal(t, "amount above threshold", out.Reason)

	assert.True(t, r.Evaluate(domain.Transaction{Amount: 20000}, rc).Fired)
}

func TestUnusualHourRule(t *testing.T) {
	rc := testContext(t, nil, nil, nil)
	r := ruleByName(t, UnusualHour)

	for hour := 0; hour <= 5; hour++ {
		ts := fmt.Sprintf("2024-05-01T%02d:30:00Z", hour)
		out := r.Evaluate(domain.Transaction{Timestamp: ts}, rc)
		assert.True(t, out.Fired, "hour %d should fire", hour)
		assert.Equal(t, "unusual hour (UTC night)", out.Reason)
	}
	for _, hour := range []int{6, 12, 23} {
		ts := fmt.Sprintf("2024-05-01T%02d:30:00Z", hour)
		assert.False(t, r.Evaluate(domain.Transaction{Timestamp: ts}, rc).Fired, "hour %d", hour)
	}
}

func TestUnusualHourRuleConvertsZone(t *testing.T) {
	rc := testContext(t, nil, nil, nil)
	r := ruleByName(t, UnusualHour)

	// 23:00 at +05:00 is 18:00 UTC.
	out := r.Evaluate(domain.Transaction{Timestamp: "2024-05-01T23:00:00+05:00"}, rc)
	assert.False(t, out.Fired)

	// 08:00 at +05:00 is 03:00 UTC.
	out = r.Evaluate(domain.Transaction{Timestamp: "2024-05-01T08:00:00+05:00"}, rc)
	assert.True(t, out.Fired)
}

func TestTimeRulesFailOpenOnBadTimestamp(t *testing.T) {
	rc := testContext(t, nil, nil, nil)

	for _, name := range []Name{UnusualHour, Velocity} {
		out := ruleByName(t, name).Evaluate(domain.Transaction{Timestamp: "not-a-time"}, rc)
		assert.False(t, out.Fired, "%s must not fire", name)
		assert.ErrorIs(t, out.Err, domain.ErrBadTimestamp, "%s reports the parse failure", name)
	}
}

func TestNewAddressRule(t *testing.T) {
	rc := testContext(t, nil, []string{"0xKNOWN"}, nil)
	r := ruleByName(t, NewAddress)

	out := r.Evaluate(domain.Transaction{From: "0xfresh"}, rc)
	require.True(t, out.Fired)
	assert.Equal(t, "sender address not previously known", out.Reason)

	assert.False(t, r.Evaluate(domain.Transaction{From: "0xknown"}, rc).Fired,
		"known set comparison is case-insensitive")

	assert.False(t, r.Evaluate(domain.Transaction{From: ""}, rc).Fired,
		"empty sender carries no signal")
}

func TestVelocityRule(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := make([]domain.HistoryEntry, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, domain.HistoryEntry{
			Sender: "0xsender",
			At:     base.Add(time.Duration(i) * time.Minute),
		})
	}
	rc := testContext(t, nil, nil, history)
	r := ruleByName(t, Velocity)

	// Sixth transaction 9 minutes after base: all 5 prior entries inside the
	// 10 minute window.
	tx := domain.Transaction{
		From:      "0xSENDER",
		Timestamp: base.Add(9 * time.Minute).Format(time.RFC3339),
	}
	out := r.Evaluate(tx, rc)
	require.True(t, out.Fired)
	assert.Equal(t, 5, out.Count)
	assert.Equal(t, "high velocity (5 tx in 10 min)", out.Reason)

	// 11 minutes after base the earliest entry drops out of the window.
	tx.Timestamp = base.Add(11 * time.Minute).Format(time.RFC3339)
	out = r.Evaluate(tx, rc)
	assert.False(t, out.Fired)
	assert.Equal(t, 4, out.Count, "count still reported when below the limit")

	// Other senders never count toward this sender's velocity.
	tx.From = "0xother"
	tx.Timestamp = base.Add(9 * time.Minute).Format(time.RFC3339)
	out = r.Evaluate(tx, rc)
	assert.False(t, out.Fired)
	assert.Equal(t, 0, out.Count)
}

func TestSensitiveTokenRule(t *testing.T) {
	sets := &refdata.Sets{
		Deny:             refdata.Set{},
		Watch:            refdata.Set{},
		SensitiveTokens:  refdata.Set{"USDT": {}},
		SensitiveMethods: refdata.Set{},
	}
	rc := testContext(t, sets, nil, nil)
	r := ruleByName(t, SensitiveToken)

	out := r.Evaluate(domain.Transaction{Token: "usdt"}, rc)
	require.True(t, out.Fired, "token match is case-insensitive")
	assert.Equal(t, "sensitive token", out.Reason)

	assert.False(t, r.Evaluate(domain.Transaction{Token: "ETH"}, rc).Fired)
	assert.False(t, r.Evaluate(domain.Transaction{Token: ""}, rc).Fired)
}

func TestSensitiveMethodRule(t *testing.T) {
	sets := &refdata.Sets{
		Deny:             refdata.Set{},
		Watch:            refdata.Set{},
		SensitiveTokens:  refdata.Set{},
		SensitiveMethods: refdata.Set{"APPROVE": {}},
	}
	rc := testContext(t, sets, nil, nil)
	r := ruleByName(t, SensitiveMethod)

	out := r.Evaluate(domain.Transaction{Method: "approve"}, rc)
	require.True(t, out.Fired)
	assert.Equal(t, "sensitive method", out.Reason)

	assert.False(t, r.Evaluate(domain.Transaction{Method: "TRANSFER"}, rc).Fired)
}
