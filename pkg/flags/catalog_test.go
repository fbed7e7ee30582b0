package flags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillmind/governd/pkg/model"
)

const validCatalog = `{
  "version": "2026.08",
  "flags": [
    {
      "key": "journal-insights",
      "humanName": "Journal Insights",
      "enabled": true,
      "audience": "all",
      "rolloutPercentage": 25
    }
  ]
}`

const invalidCatalog = `{
  "version": "2026.08",
  "flags": [
    {
      "key": "bad-flag",
      "enabled": true,
      "audience": "everyone-and-their-dog",
      "rolloutPercentage": 250
    }
  ]
}`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flags.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error")
	}
	return path
}

func TestLoadFile_Valid_ReplacesCatalog(t *testing.T) {
	c := DefaultCatalog()
	if err := c.LoadFile(writeTemp(t, validCatalog)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assert.Equal(t, "2026.08", c.Version())

	def, ok := c.Get("journal-insights")
	if !ok {
		t.Fatalf("Expected journal-insights in catalog")
	}
	assert.Equal(t, 25, def.RolloutPercentage)

	// the replacement is wholesale: builtin flags are gone
	_, ok = c.Get("ai-tutor-chat")
	assert.False(t, ok)
}

func TestLoadFile_Invalid_KeepsOldCatalog(t *testing.T) {
	c := DefaultCatalog()
	err := c.LoadFile(writeTemp(t, invalidCatalog))
	assert.EqualError(t, err, model.InvalidCatalogErrorCode)

	// previous catalog stays in effect
	assert.Equal(t, "builtin", c.Version())
	_, ok := c.Get("ai-tutor-chat")
	assert.True(t, ok)
}

func TestLoadFile_MissingFile_Error(t *testing.T) {
	c := DefaultCatalog()
	assert.Error(t, c.LoadFile("/does/not/exist.json"))
}
