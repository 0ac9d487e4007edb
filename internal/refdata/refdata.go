// Package refdata loads the external reference sets (deny list, watch list,
// sensitive tokens and methods) and assembles the immutable evaluation context
// used by the rule evaluators for one scoring session.
package refdata

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// Reference set file names under the data root. Each is a CSV whose first
// named column carries the value; extra columns (notes, reasons) are ignored.
const (
	DenyListFile         = "blacklist.csv"
	WatchListFile        = "watchlist.csv"
	SensitiveTokensFile  = "sensitive_tokens.csv"
	SensitiveMethodsFile = "sensitive_methods.csv"
)

// Set is a normalized membership set.
type Set map[string]struct{}

// Contains reports membership of the already-normalized key.
func (s Set) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sets holds the four reference sets for one process lifetime. Addresses are
// lower-cased, token symbols and method tags upper-cased.
type Sets struct {
	Deny             Set
	Watch            Set
	SensitiveTokens  Set
	SensitiveMethods Set
}

// LoadSets reads the reference sets from dataDir. A missing file yields an
// empty set; malformed rows are skipped individually. The only hard failure is
// an unreadable data root, which is a startup configuration error.
func LoadSets(dataDir string, logger *slog.Logger) (*Sets, error) {
	if _, err := os.Stat(dataDir); err != nil {
		return nil, err
	}

	load := func(name, column string, normalize func(string) string) Set {
		set, err := loadColumnSet(filepath.Join(dataDir, name), column, normalize)
		if err != nil {
			logger.Warn("reference set unreadable, treating as empty",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			return Set{}
		}
		return set
	}

	sets := &Sets{
		Deny:             load(DenyListFile, "address", strings.ToLower),
		Watch:            load(WatchListFile, "address", strings.ToLower),
		SensitiveTokens:  load(SensitiveTokensFile, "token", strings.ToUpper),
		SensitiveMethods: load(SensitiveMethodsFile, "method", strings.ToUpper),
	}

	logger.Info("reference sets loaded",
		slog.Int("deny", len(sets.Deny)),
		slog.Int("watch", len(sets.Watch)),
		slog.Int("sensitive_tokens", len(sets.SensitiveTokens)),
		slog.Int("sensitive_methods", len(sets.SensitiveMethods)),
	)
	return sets, nil
}

// loadColumnSet reads one CSV file into a set, taking values from the header
// column named col (falling back to the first column when the header does not
// name it). Rows with a blank value are skipped.
func loadColumnSet(path, col string, normalize func(string) string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return Set{}, nil
		}
		return nil, err
	}

	idx := 0
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), col) {
			idx = i
			break
		}
	}

	set := Set{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip it, keep reading.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return set, err
		}
		if idx >= len(record) {
			continue
		}
		v := strings.TrimSpace(record[idx])
		if v == "" {
			continue
		}
		set[normalize(v)] = struct{}{}
	}
	return set, nil
}

// Context is the immutable evaluation context for one scoring session: the
// reference sets plus a snapshot of the known-address set and the scored
// history taken at session start. Rule evaluators read it and never mutate it.
type Context struct {
	Sets    *Sets
	known   Set
	history []domain.HistoryEntry
}

// NewContext builds a context from the reference sets, the caller-supplied
// known addresses, and the prior scored history. Known addresses are
// lower-cased on entry; history entries are assumed already normalized (see
// domain.HistoryFrom).
func NewContext(sets *Sets, known []string, history []domain.HistoryEntry) *Context {
	k := make(Set, len(known))
	for _, a := range known {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			k[a] = struct{}{}
		}
	}
	return &Context{Sets: sets, known: k, history: history}
}

// KnownAddress reports whether addr was observed before this session. The
// argument is normalized here so callers can pass raw values.
func (c *Context) KnownAddress(addr string) bool {
	return c.known.Contains(strings.ToLower(addr))
}

// VelocityCount returns how many prior history entries share the sender and
// fall within [ts-window, ts], both bounds inclusive.
func (c *Context) VelocityCount(sender string, ts time.Time, window time.Duration) int {
	sender = strings.ToLower(sender)
	start := ts.Add(-window)
	n := 0
	for _, h := range c.history {
		if h.Sender != sender {
			continue
		}
		if h.At.Before(start) || h.At.After(ts) {
			continue
		}
		n++
	}
	return n
}
