// Package flags holds the flag catalog and the per-session feature gate.
package flags

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/diegoholiveira/jsonlogic/v3"
	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/buffer"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/rollout"
	"github.com/quillmind/governd/pkg/storage"
)

const usageLogCap = 200

// Gate answers isEnabled queries for one session. Decisions are a pure
// function of (UserContext, FlagDefinition): existence, enabled state,
// audience, optional targeting rule, then deterministic rollout. Each step
// short-circuits, so the rollout hash is only consulted when everything
// before it passed and the percentage is partial.
type Gate struct {
	catalog *Catalog
	store   *storage.Store

	mx    sync.RWMutex
	user  model.UserContext
	usage *buffer.Ring[model.UsageRecord]
}

func NewGate(catalog *Catalog, store *storage.Store) *Gate {
	g := &Gate{
		catalog: catalog,
		store:   store,
		usage:   buffer.NewRing[model.UsageRecord](usageLogCap),
	}
	if store != nil {
		var records []model.UsageRecord
		if store.GetJSON(storage.KeyUsageLog, &records) {
			g.usage.Replace(records)
		}
	}
	return g
}

// SetUserContext installs the session identity. Called once by the auth
// layer at session start.
func (g *Gate) SetUserContext(userID string, group model.Group) {
	g.mx.Lock()
	g.user = model.UserContext{UserID: userID, Group: group}
	g.mx.Unlock()
}

func (g *Gate) UserContext() model.UserContext {
	g.mx.RLock()
	defer g.mx.RUnlock()
	return g.user
}

// IsEnabled reports whether flagKey is active for the current session.
// Unknown keys and internal errors resolve to false.
func (g *Gate) IsEnabled(flagKey string) bool {
	enabled, _, err := g.Resolve(flagKey, nil)
	if err != nil {
		return false
	}
	return enabled
}

// Resolve evaluates flagKey with an optional evaluation context and
// returns the decision plus the reason it was reached.
func (g *Gate) Resolve(flagKey string, evalCtx map[string]any) (bool, string, error) {
	def, ok := g.catalog.Get(flagKey)
	if !ok {
		return false, model.ErrorReason, errors.New(model.FlagNotFoundErrorCode)
	}
	if !def.Enabled {
		return false, model.DisabledReason, nil
	}
	user := g.UserContext()
	if !audiencePasses(def.Audience, user.Group) {
		return false, model.AudienceReason, nil
	}
	if len(def.Targeting) > 0 {
		if match, ok := g.applyTargeting(def, user, evalCtx); ok {
			return match, model.TargetingMatchReason, nil
		}
	}
	if def.RolloutPercentage < 100 {
		return rollout.IsInRollout(user.UserID, def.RolloutPercentage), model.RolloutReason, nil
	}
	return true, model.StaticReason, nil
}

func audiencePasses(audience model.Audience, group model.Group) bool {
	switch audience {
	case model.AudienceAll:
		return true
	case model.AudienceAdminOnly:
		return group == model.GroupAdmin
	case model.AudienceRestrictedGroup:
		return group == model.GroupBetaGroup || group == model.GroupAdmin
	default:
		// unrecognized audience fails closed
		return false
	}
}

// applyTargeting runs the flag's JsonLogic rule against the session and
// call-site context. Rules that error or return a non-boolean are skipped
// so evaluation falls through to the rollout step.
func (g *Gate) applyTargeting(def model.FlagDefinition, user model.UserContext, evalCtx map[string]any) (bool, bool) {
	var rule any
	if err := json.Unmarshal(def.Targeting, &rule); err != nil {
		log.Debugf("flag %s: bad targeting rule: %v", def.Key, err)
		return false, false
	}
	data := map[string]any{
		"userId": user.UserID,
		"group":  string(user.Group),
	}
	for k, v := range evalCtx {
		data[k] = v
	}
	result, err := jsonlogic.ApplyInterface(rule, data)
	if err != nil {
		log.Debugf("flag %s: targeting evaluation: %v", def.Key, err)
		return false, false
	}
	b, ok := result.(bool)
	if !ok {
		return false, false
	}
	return b, true
}

// LogUsage appends a usage record. Fire-and-forget: persistence failures
// are swallowed, never surfaced to the caller.
func (g *Gate) LogUsage(flagKey, action string, evalCtx map[string]any) {
	g.mx.Lock()
	user := g.user
	g.usage.Append(model.UsageRecord{
		Timestamp:      time.Now(),
		UserID:         user.UserID,
		Group:          user.Group,
		FlagKey:        flagKey,
		Action:         action,
		CatalogVersion: g.catalog.Version(),
		Context:        evalCtx,
	})
	records := g.usage.Items()
	g.mx.Unlock()
	if g.store != nil {
		_ = g.store.PutJSON(storage.KeyUsageLog, records)
	}
}

// UsageLog returns the retained usage records, oldest first.
func (g *Gate) UsageLog() []model.UsageRecord {
	g.mx.RLock()
	defer g.mx.RUnlock()
	return g.usage.Items()
}
