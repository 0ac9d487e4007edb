package pipeline

import (
	"strings"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// MonitorPolicy restricts processing to transactions touching a monitored
// address set. With RequireMatch off (or an empty set) every transaction
// passes; the monitored addresses then only matter to the watchlist rule.
type MonitorPolicy struct {
	addresses map[string]struct{}
	require   bool
}

// NewMonitorPolicy builds a policy from the combined monitored addresses
// (watch list entries and any explicitly configured extras, already merged by
// the caller). Addresses are lower-cased on entry.
func NewMonitorPolicy(addresses []string, requireMatch bool) MonitorPolicy {
	set := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			set[a] = struct{}{}
		}
	}
	return MonitorPolicy{addresses: set, require: requireMatch}
}

// Active reports whether the policy actually filters anything.
func (p MonitorPolicy) Active() bool {
	return p.require && len(p.addresses) > 0
}

// Filter drops transactions whose sender and recipient are both outside the
// monitored set. Inactive policies return the batch unchanged.
func (p MonitorPolicy) Filter(txs []domain.Transaction) []domain.Transaction {
	if !p.Active() {
		return txs
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		_, from := p.addresses[strings.ToLower(tx.From)]
		_, to := p.addresses[strings.ToLower(tx.To)]
		if from || to {
			out = append(out, tx)
		}
	}
	return out
}
