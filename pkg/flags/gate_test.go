package flags

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/rollout"
)

func testCatalog() *Catalog {
	return NewCatalog("test", []model.FlagDefinition{
		{Key: "open-to-all", Enabled: true, Audience: model.AudienceAll, RolloutPercentage: 100},
		{Key: "switched-off", Enabled: false, Audience: model.AudienceAll, RolloutPercentage: 100},
		{Key: "beta-only", Enabled: true, Audience: model.AudienceRestrictedGroup, RolloutPercentage: 100},
		{Key: "admin-only", Enabled: true, Audience: model.AudienceAdminOnly, RolloutPercentage: 100},
		{Key: "half-rollout", Enabled: true, Audience: model.AudienceAll, RolloutPercentage: 50},
		{Key: "targeted", Enabled: true, Audience: model.AudienceAll, RolloutPercentage: 0,
			Targeting: json.RawMessage(`{"==":[{"var":"plan"},"premium"]}`)},
	})
}

func TestGate_UnknownKey_False(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	g.SetUserContext("user-1", model.GroupAdmin)
	assert.False(t, g.IsEnabled("no-such-flag"))

	_, reason, err := g.Resolve("no-such-flag", nil)
	assert.EqualError(t, err, model.FlagNotFoundErrorCode)
	assert.Equal(t, model.ErrorReason, reason)
}

func TestGate_DisabledFlag_False(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	g.SetUserContext("user-1", model.GroupAdmin)

	enabled, reason, err := g.Resolve("switched-off", nil)
	if assert.NoError(t, err) {
		assert.False(t, enabled)
		assert.Equal(t, model.DisabledReason, reason)
	}
}

func TestGate_Audience(t *testing.T) {
	g := NewGate(testCatalog(), nil)

	cases := []struct {
		group model.Group
		flag  string
		want  bool
	}{
		{model.GroupGuest, "open-to-all", true},
		{model.GroupGuest, "beta-only", false},
		{model.GroupMember, "beta-only", false},
		{model.GroupBetaGroup, "beta-only", true},
		{model.GroupAdmin, "beta-only", true},
		{model.GroupBetaGroup, "admin-only", false},
		{model.GroupAdmin, "admin-only", true},
	}
	for _, c := range cases {
		g.SetUserContext("user-1", c.group)
		assert.Equal(t, c.want, g.IsEnabled(c.flag), "%s as %s", c.flag, c.group)
	}
}

func TestGate_UnrecognizedAudience_FailsClosed(t *testing.T) {
	// NewCatalog bypasses schema validation, so a bad audience string can
	// reach the gate; it must never behave like "all"
	c := NewCatalog("test", []model.FlagDefinition{
		{Key: "typoed", Enabled: true, Audience: model.Audience("everyone"), RolloutPercentage: 100},
	})
	g := NewGate(c, nil)

	for _, group := range []model.Group{model.GroupGuest, model.GroupMember, model.GroupBetaGroup, model.GroupAdmin} {
		g.SetUserContext("user-1", group)
		enabled, reason, err := g.Resolve("typoed", nil)
		if assert.NoError(t, err) {
			assert.False(t, enabled, "as %s", group)
			assert.Equal(t, model.AudienceReason, reason)
		}
	}
}

func TestGate_Rollout_MatchesDecider(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	for i := 0; i < 50; i++ {
		u := fmt.Sprintf("user-%d", i)
		g.SetUserContext(u, model.GroupMember)
		assert.Equal(t, rollout.IsInRollout(u, 50), g.IsEnabled("half-rollout"), u)
	}
}

func TestGate_FullRollout_SkipsHash(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	// no user context at all: full-percentage flags never consult the hash
	_, reason, err := g.Resolve("open-to-all", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, model.StaticReason, reason)
	}
}

func TestGate_Targeting_OverridesRollout(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	g.SetUserContext("user-1", model.GroupMember)

	// rolloutPercentage is 0, so only the rule can enable it
	enabled, reason, err := g.Resolve("targeted", map[string]any{"plan": "premium"})
	if assert.NoError(t, err) {
		assert.True(t, enabled)
		assert.Equal(t, model.TargetingMatchReason, reason)
	}

	enabled, _, err = g.Resolve("targeted", map[string]any{"plan": "free"})
	if assert.NoError(t, err) {
		assert.False(t, enabled)
	}
}

func TestGate_LogUsage_CapsAndSwallows(t *testing.T) {
	g := NewGate(testCatalog(), nil)
	g.SetUserContext("user-1", model.GroupMember)
	for i := 0; i < usageLogCap+50; i++ {
		g.LogUsage("open-to-all", "viewed", nil)
	}
	records := g.UsageLog()
	assert.Equal(t, usageLogCap, len(records))
	assert.Equal(t, "open-to-all", records[0].FlagKey)
	assert.Equal(t, "test", records[0].CatalogVersion)
}

func TestCatalog_Version(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "builtin", c.Version())
	if _, ok := c.Get("ai-tutor-chat"); !ok {
		t.Fatalf("Expected builtin catalog to contain ai-tutor-chat")
	}
}
