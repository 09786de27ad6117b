// Package featureflags evaluates rollout flags configured as key=value pairs,
// e.g. FEATURE_FLAGS="profile_cache=on,realtime_hints=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flag is a named switch with the value it takes when FEATURE_FLAGS is silent.
type Flag struct {
	Name    string
	Default bool
}

var (
	// ProfileCache enables the Redis cache-aside path for anonymous profile reads.
	ProfileCache = Flag{Name: "profile_cache"}
	// RealtimeHints gates the stale-hint websocket.
	RealtimeHints = Flag{Name: "realtime_hints", Default: true}
)

// rule is a parsed flag value: a percentage of users, 0 for off, 100 for on.
type rule struct {
	percent int
}

func parseRule(value string) (rule, error) {
	switch value {
	case "on", "true", "1":
		return rule{percent: 100}, nil
	case "off", "false", "0":
		return rule{percent: 0}, nil
	}
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, fmt.Errorf("unknown flag value %q", value)
	}
	pct, err := strconv.Atoi(raw)
	if err != nil || pct < 0 || pct > 100 {
		return rule{}, fmt.Errorf("bad rollout percentage %q", value)
	}
	return rule{percent: pct}, nil
}

// Manager holds the parsed FEATURE_FLAGS rules. A nil Manager serves defaults.
type Manager struct {
	rules map[string]rule
	// Invalid lists the entries that were skipped while parsing.
	Invalid []string
}

// NewManager parses a comma-separated key=value list. Malformed entries are
// skipped and reported in Invalid.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		r, err := parseRule(value)
		if key == "" || err != nil {
			m.Invalid = append(m.Invalid, pair)
			continue
		}
		m.rules[key] = r
	}
	return m
}

// Enabled reports whether flag is on for userID. Partial rollouts bucket users
// deterministically, and anonymous callers are only included at 100%.
func (m *Manager) Enabled(flag Flag, userID string) bool {
	if m == nil {
		return flag.Default
	}
	r, ok := m.rules[normalize(flag.Name)]
	switch {
	case !ok:
		return flag.Default
	case r.percent >= 100:
		return true
	case r.percent <= 0 || userID == "":
		return false
	}
	return bucket(flag.Name, userID) < r.percent
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + userID))
	return int(h.Sum32() % 100)
}
