package flags

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/quillmind/governd/pkg/model"
)

// catalogSchema validates a catalog file before it replaces the live
// catalog. A file that fails validation is rejected wholesale; the
// previous catalog stays in effect.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "flags"],
  "properties": {
    "version": { "type": "string" },
    "flags": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "enabled", "audience", "rolloutPercentage"],
        "properties": {
          "key": { "type": "string", "minLength": 1 },
          "humanName": { "type": "string" },
          "enabled": { "type": "boolean" },
          "audience": { "enum": ["all", "restricted-group", "admin-only"] },
          "rolloutPercentage": { "type": "integer", "minimum": 0, "maximum": 100 },
          "targeting": {}
        }
      }
    }
  }
}`

type catalogFile struct {
	Version string                 `json:"version"`
	Flags   []model.FlagDefinition `json:"flags"`
}

// Catalog is the immutable flag table. A reload swaps the whole map under
// the lock; individual definitions are never mutated in place.
type Catalog struct {
	mx      sync.RWMutex
	version string
	flags   map[string]model.FlagDefinition
}

// DefaultCatalog is served when no catalog file is configured.
func DefaultCatalog() *Catalog {
	defs := []model.FlagDefinition{
		{Key: "ai-tutor-chat", HumanName: "AI Tutor Chat", Enabled: true, Audience: model.AudienceAll, RolloutPercentage: 100},
		{Key: "journal-insights", HumanName: "Journal Insights", Enabled: true, Audience: model.AudienceAll, RolloutPercentage: 50},
		{Key: "beta-quests", HumanName: "Beta Quests", Enabled: true, Audience: model.AudienceRestrictedGroup, RolloutPercentage: 100},
		{Key: "admin-cohort-tools", HumanName: "Admin Cohort Tools", Enabled: true, Audience: model.AudienceAdminOnly, RolloutPercentage: 100},
		{Key: "new-checkout", HumanName: "New Checkout Flow", Enabled: false, Audience: model.AudienceAll, RolloutPercentage: 10},
	}
	c := &Catalog{version: "builtin", flags: map[string]model.FlagDefinition{}}
	for _, d := range defs {
		c.flags[d.Key] = d
	}
	return c
}

// NewCatalog builds a catalog from explicit definitions. Used by tests and
// embedders that manage their own flag tables.
func NewCatalog(version string, defs []model.FlagDefinition) *Catalog {
	c := &Catalog{version: version, flags: map[string]model.FlagDefinition{}}
	for _, d := range defs {
		c.flags[d.Key] = d
	}
	return c
}

// LoadFile parses and validates a catalog file and atomically replaces the
// current contents.
func (c *Catalog) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			log.Errorf("flag catalog: %s", desc)
		}
		return errors.New(model.InvalidCatalogErrorCode)
	}
	var cf catalogFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return err
	}
	flags := make(map[string]model.FlagDefinition, len(cf.Flags))
	for _, d := range cf.Flags {
		d := d
		flags[d.Key] = d
	}
	c.mx.Lock()
	c.version = cf.Version
	c.flags = flags
	c.mx.Unlock()
	log.Infof("flag catalog %q loaded, %d flags", cf.Version, len(flags))
	return nil
}

// Watch reloads the catalog on write events until the returned stop func
// is called. Reload failures keep the old catalog.
func (c *Catalog) Watch(path string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					if err := c.LoadFile(path); err != nil {
						log.Error(err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error(err)
			}
		}
	}()
	return func() { watcher.Close() }, nil
}

// Get returns the definition for key, if present.
func (c *Catalog) Get(key string) (model.FlagDefinition, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	d, ok := c.flags[key]
	return d, ok
}

// All returns a copy of the catalog contents.
func (c *Catalog) All() []model.FlagDefinition {
	c.mx.RLock()
	defer c.mx.RUnlock()
	out := make([]model.FlagDefinition, 0, len(c.flags))
	for _, d := range c.flags {
		out = append(out, d)
	}
	return out
}

func (c *Catalog) Version() string {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return c.version
}
