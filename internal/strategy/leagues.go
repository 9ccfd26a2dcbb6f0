package strategy

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoadLeagues reads a competition allow-list produced by the backtester.
// The file is a CSV with a "comp" column, or failing that the first column.
// A missing file yields an empty set; the strategy then assigns nowhere.
func LoadLeagues(path string) map[string]bool {
	out := make(map[string]bool)
	if path == "" {
		return out
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("strategy: league list unavailable, assigning nowhere", "path", path, "err", err)
		return out
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return out
	}
	compIdx := 0
	for i, h := range header {
		if NormaliseLeague(h) == "comp" {
			compIdx = i
			break
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("strategy: bad league list row", "path", path, "err", err)
			break
		}
		if compIdx >= len(row) {
			continue
		}
		if lg := NormaliseLeague(row[compIdx]); lg != "" {
			out[lg] = true
		}
	}
	return out
}

// NormaliseLeague canonicalises a competition label for set membership.
func NormaliseLeague(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
