// Package featureflags evaluates per-user feature flags configured through
// FEATURE_FLAGS, e.g. "gemini_solutions=25%,quick_answers=off".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

type ruleKind int

const (
	ruleOff ruleKind = iota
	ruleOn
	rulePercent
	ruleUsers
)

type rule struct {
	kind    ruleKind
	raw     string
	percent int
	users   map[uint]struct{}
}

// Manager evaluates feature flags parsed once from a comma-separated list.
// Supported values:
//   - on/true/1 and off/false/0
//   - N% (deterministic per-user rollout)
//   - users:1|2|3 (explicit allowlist)
//
// Unparseable values evaluate to off.
type Manager struct {
	flags map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]rule)

	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = parseRule(value)
	}

	return &Manager{flags: out}
}

func parseRule(value string) rule {
	r := rule{kind: ruleOff, raw: value}
	switch {
	case value == "on" || value == "true" || value == "1":
		r.kind = ruleOn
	case strings.HasSuffix(value, "%"):
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err == nil {
			r.kind = rulePercent
			r.percent = pct
		}
	case strings.HasPrefix(value, "users:"):
		r.kind = ruleUsers
		r.users = make(map[uint]struct{})
		for _, id := range strings.Split(strings.TrimPrefix(value, "users:"), "|") {
			n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
			if err == nil && n > 0 {
				r.users[uint(n)] = struct{}{}
			}
		}
	}
	return r
}

// Enabled returns whether a flag is enabled for a given user. userID 0 is
// an anonymous caller and only sees flags that are fully on.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	r, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch r.kind {
	case ruleOn:
		return true
	case rulePercent:
		if r.percent <= 0 {
			return false
		}
		if r.percent >= 100 {
			return true
		}
		if userID == 0 {
			return false
		}
		return rolloutBucket(name, userID) < r.percent
	case ruleUsers:
		_, ok := r.users[userID]
		return ok
	default:
		return false
	}
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.flags))
	for name := range m.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.flags))
	for k, r := range m.flags {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
