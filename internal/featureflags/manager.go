// Package featureflags switches optional campus modules on and off.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Optional modules that can be disabled per deployment.
const (
	Forum     = "forum"
	Messaging = "messaging"
	Search    = "search"
)

// Modules lists every switchable module.
var Modules = []string{Forum, Messaging, Search}

// Manager evaluates flags parsed from a list such as
// "forum=on,messaging=off,search=25%".
type Manager struct {
	flags map[string]string
}

func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled reports whether name is on for userID. Unset flags are off.
// Values: on/true/1, off/false/0, or N% for a deterministic per-user rollout.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}
	return evaluate(name, value, userID)
}

// ModuleEnabled is Enabled for modules, which default to on when unset.
func (m *Manager) ModuleEnabled(module string, userID uint) bool {
	if m == nil {
		return true
	}
	value, ok := m.flags[normalize(module)]
	if !ok {
		return true
	}
	return evaluate(module, value, userID)
}

func evaluate(name, value string, userID uint) bool {
	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of the configured flags.
func (m *Manager) Raw() map[string]string {
	return maps.Clone(m.flags)
}

// Snapshot evaluates every configured flag and every module for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags)+len(Modules))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	for _, module := range Modules {
		out[module] = m.ModuleEnabled(module, userID)
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
