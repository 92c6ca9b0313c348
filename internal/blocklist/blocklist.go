// Package blocklist implements the domain blocklist predicate: a simple
// substring match of the request host against a static, read-only list.
package blocklist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// maxEntries bounds the list per spec.md 3 ("up to 100 domain
// substrings"). Extra lines beyond this are ignored rather than rejected,
// since the spec treats this as a soft sizing expectation, not a hard
// format error.
const maxEntries = 100

// Blocklist is an ordered, read-only-after-construction list of domain
// substrings. Safe for lock-free concurrent reads once built (spec 5).
type Blocklist struct {
	entries []string
}

// Load reads one domain substring per line from path. Blank lines are
// ignored; there is no wildcard syntax. A missing file is not an error —
// an empty blocklist blocks nothing (spec 8: "is_blocked(h) with empty
// blocklist is false").
func Load(path string) (*Blocklist, error) {
	if path == "" {
		return &Blocklist{}, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Blocklist{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blocklist: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(entries) < maxEntries {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("blocklist: read %s: %w", path, err)
	}

	return &Blocklist{entries: entries}, nil
}

// IsBlocked reports whether any blocklist entry is a substring of host
// (case-sensitive). An empty host, or an empty blocklist, is never blocked.
func (b *Blocklist) IsBlocked(host string) bool {
	if host == "" || b == nil {
		return false
	}
	for _, entry := range b.entries {
		if strings.Contains(host, entry) {
			return true
		}
	}
	return false
}

// Len reports the number of loaded entries, for startup logging.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
