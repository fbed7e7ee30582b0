package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		SampleInterval: time.Hour,
		DetectInterval: time.Hour,
	}
}

func TestCleanup_WithoutStart_Safe(t *testing.T) {
	rt := New(testConfig())
	rt.Cleanup()
	rt.Cleanup()
}

func TestPauseResume_Idempotent(t *testing.T) {
	rt := New(testConfig())
	defer rt.Cleanup()

	rt.ResumeMonitoring()
	rt.ResumeMonitoring()
	assert.True(t, rt.Sampler.Running())

	rt.PauseMonitoring()
	rt.PauseMonitoring()
	assert.False(t, rt.Sampler.Running())

	rt.ResumeMonitoring()
	assert.True(t, rt.Sampler.Running())
}

func TestNew_WiresServiceGraph(t *testing.T) {
	rt := New(testConfig())
	defer rt.Cleanup()

	assert.NotNil(t, rt.Gate)
	assert.NotNil(t, rt.Ledger)
	assert.NotNil(t, rt.Scanner)
	assert.NotNil(t, rt.Alerts)
	assert.NotNil(t, rt.Reports)
	assert.Equal(t, "builtin", rt.Catalog.Version())
}

func TestDetect_AppendsFindings(t *testing.T) {
	rt := New(testConfig())
	defer rt.Cleanup()

	// an orphaned listener plus enough snapshots to evaluate
	rt.Ledger.AddListener("gone-component", "click", func(any) {})
	for i := 0; i < 5; i++ {
		rt.Sampler.Sample()
	}

	rt.detect()
	assert.NotEmpty(t, rt.Alerts.All())
	assert.Equal(t, 0, rt.Ledger.CountActiveListeners())
}
