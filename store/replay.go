package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sort"
)

// ReplayGuard is the durable set of redeemed ticket identifiers, kept as a
// flat JSON list. The whole list is read before every check and rewritten
// on every record.
//
// A corrupt or unreadable list is treated as empty. Previously redeemed
// tickets then become redeemable again; verification stays available.
type ReplayGuard struct {
	path   string
	logger *slog.Logger
}

// NewReplayGuard binds a guard to path. A nil logger discards output.
func NewReplayGuard(path string, logger *slog.Logger) *ReplayGuard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReplayGuard{path: path, logger: logger}
}

// Contains reports whether id has already been redeemed.
func (g *ReplayGuard) Contains(id string) bool {
	_, ok := g.load()[id]
	return ok
}

// Record marks id as redeemed. Recording an id twice is a no-op.
func (g *ReplayGuard) Record(id string) error {
	used := g.load()
	if _, ok := used[id]; ok {
		return nil
	}
	used[id] = struct{}{}

	ids := make([]string, 0, len(used))
	for usedID := range used {
		ids = append(ids, usedID)
	}
	sort.Strings(ids)
	return SaveJSON(g.path, ids, 0o644)
}

// Len returns the number of redeemed identifiers currently on record.
func (g *ReplayGuard) Len() int {
	return len(g.load())
}

func (g *ReplayGuard) load() map[string]struct{} {
	used := map[string]struct{}{}

	data, err := os.ReadFile(g.path)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("corrupt replay store", "path", g.path, "error", err)
		}
		return used
	}
	if len(data) == 0 {
		return used
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		g.logger.Warn("corrupt replay store", "path", g.path, "error", err)
		return used
	}
	for _, id := range ids {
		if id != "" {
			used[id] = struct{}{}
		}
	}
	return used
}
