package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentage(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))
	assert.False(t, m.Enabled("canary", 0), "rollout needs a user")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}
}

func TestModuleEnabled_DefaultsOn(t *testing.T) {
	m := NewManager("messaging=off")

	assert.False(t, m.ModuleEnabled(Messaging, 1))
	assert.True(t, m.ModuleEnabled(Forum, 1))
	assert.True(t, m.ModuleEnabled(Search, 1))

	var nilManager *Manager
	assert.True(t, nilManager.ModuleEnabled(Forum, 1))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, Forum = OFF ,y=20%")

	raw := m.Raw()
	assert.Equal(t, map[string]string{"x": "on", "forum": "off", "y": "20%"}, raw)

	raw["x"] = "off"
	assert.True(t, m.Enabled("x", 1), "Raw must return a copy")

	snap := m.Snapshot(123)
	assert.False(t, snap[Forum])
	assert.True(t, snap[Messaging])
	assert.True(t, snap[Search])
	assert.True(t, snap["x"])
	assert.Len(t, snap, 5)
}
