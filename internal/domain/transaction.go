// Package domain defines the core data model for the transfer risk scorer and
// the interfaces implemented by storage, cache, acquisition, and alerting
// backends.
package domain

import (
	"strings"
	"time"
)

// timestampLayouts are the accepted wire formats for transaction timestamps.
// A value without a zone offset is interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Transaction is one transfer record as delivered by a collector. It is
// immutable once scored; addresses are compared lower-cased everywhere.
type Transaction struct {
	ID        string  `json:"tx_id"`
	Timestamp string  `json:"timestamp"`
	From      string  `json:"from_address"`
	To        string  `json:"to_address"`
	Amount    float64 `json:"amount"`
	Token     string  `json:"token"`
	Method    string  `json:"method"`
	Chain     string  `json:"chain"`
}

// Time parses the transaction timestamp. The second return value is false when
// the timestamp cannot be parsed; time-dependent rules treat that as "no
// opinion" rather than an error.
func (t Transaction) Time() (time.Time, bool) {
	return ParseTimestamp(t.Timestamp)
}

// ParseTimestamp parses an ISO-8601-ish timestamp string, defaulting the zone
// to UTC when none is present.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(timestampLayouts[0], s); err == nil {
		return ts.UTC(), true
	}
	for _, layout := range timestampLayouts[1:] {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Explanation is the machine-readable score breakdown persisted next to each
// scored row: the applied weight per fired rule and that rule's share of the
// total penalty (percent, one decimal).
type Explanation struct {
	Weights    map[string]int     `json:"weights"`
	ContribPct map[string]float64 `json:"contrib_pct"`
}

// ScoredTransaction is a transaction after one pass through the score engine.
type ScoredTransaction struct {
	Transaction

	IsNewAddress  bool        `json:"is_new_address"`
	VelocityCount int         `json:"velocity_last_window"`
	Score         int         `json:"score"`
	PenaltyTotal  int         `json:"penalty_total"`
	Reasons       []string    `json:"reasons"`
	Explain       Explanation `json:"explain"`
}

// ReasonsText renders the reasons list as the semi-colon-joined string used in
// persisted rows and alert messages.
func (s ScoredTransaction) ReasonsText() string {
	return strings.Join(s.Reasons, "; ")
}

// HistoryEntry is the slice of a previously scored transaction that the
// velocity rule needs: who sent it and when. Senders are stored lower-cased.
type HistoryEntry struct {
	Sender string
	At     time.Time
}

// HistoryFrom extracts a history entry from a scored transaction. The second
// return value is false when the timestamp is unparsable; such rows never
// participate in velocity counting.
func HistoryFrom(s ScoredTransaction) (HistoryEntry, bool) {
	ts, ok := ParseTimestamp(s.Timestamp)
	if !ok {
		return HistoryEntry{}, false
	}
	return HistoryEntry{Sender: strings.ToLower(s.From), At: ts}, true
}

// AbbreviateAddress shortens an address for human-facing alert text,
// e.g. "0x885659…a49d". Short values pass through unchanged.
func AbbreviateAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}
