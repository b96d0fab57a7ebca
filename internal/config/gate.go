package config

import (
	"os"
	"strconv"
	"sync"
)

// EnableEnvVar is the environment toggle controlling whether the generation
// pipeline is engaged at all. Unset or unparsable values mean enabled.
const EnableEnvVar = "CODEGEND_ENABLED"

// FeatureGate is the process-wide switch for the generation pipeline.
//
// The value is computed lazily exactly once from the environment and cached
// for the gate's lifetime. Tests may pin the value with SetForTesting before
// or after the first read; a pinned value wins over the environment.
type FeatureGate struct {
	mu       sync.Mutex
	computed bool
	enabled  bool
	override *bool
}

// NewFeatureGate returns a gate that reads EnableEnvVar on first use.
func NewFeatureGate() *FeatureGate {
	return &FeatureGate{}
}

// Enabled reports whether the generation pipeline is engaged.
func (g *FeatureGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.override != nil {
		return *g.override
	}
	if !g.computed {
		g.enabled = readEnableEnv()
		g.computed = true
	}
	return g.enabled
}

// SetForTesting pins the gate to v until ClearOverride is called.
func (g *FeatureGate) SetForTesting(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.override = &v
}

// ClearOverride removes a test override; the cached or freshly computed
// environment value applies again.
func (g *FeatureGate) ClearOverride() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.override = nil
}

func readEnableEnv() bool {
	raw, ok := os.LookupEnv(EnableEnvVar)
	if !ok {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}
