// Package rules loads per-jurisdiction rule files and answers whether a
// jurisdiction is currently enabled for ingestion.
//
// Rule files are laid out as <root>/<STATE>/counties/<county>.yaml.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type FeatureFlags struct {
	Enabled bool `yaml:"enabled"`
}

type JurisdictionRule struct {
	State        string       `yaml:"state"`
	CountyCode   string       `yaml:"county_code"`
	CountyName   string       `yaml:"county_name"`
	FeatureFlags FeatureFlags `yaml:"feature_flags"`
}

func buildKey(state, countyCode string) string {
	return strings.ToUpper(state) + "-" + strings.ToUpper(countyCode)
}

type Registry struct {
	mu    sync.RWMutex
	rules map[string]JurisdictionRule
}

// NewRegistry builds a registry from already-parsed rules. Used by tests and
// by deployments that inline rules in config.
func NewRegistry(rules ...JurisdictionRule) *Registry {
	r := &Registry{rules: map[string]JurisdictionRule{}}
	for _, rule := range rules {
		r.rules[buildKey(rule.State, rule.CountyCode)] = rule
	}
	return r
}

// Load reads every county rule file under basePath.
func Load(basePath string) (*Registry, error) {
	registry := &Registry{rules: map[string]JurisdictionRule{}}

	stateDirs, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("read rules root %q: %w", basePath, err)
	}

	for _, stateDir := range stateDirs {
		if !stateDir.IsDir() {
			continue
		}
		countyRoot := filepath.Join(basePath, stateDir.Name(), "counties")
		countyFiles, err := os.ReadDir(countyRoot)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, entry := range countyFiles {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(countyRoot, entry.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}

			var rule JurisdictionRule
			if err := yaml.Unmarshal(raw, &rule); err != nil {
				return nil, fmt.Errorf("parse rule file %q: %w", path, err)
			}
			if rule.State == "" || rule.CountyCode == "" {
				return nil, fmt.Errorf("rule file %q is missing state or county_code", path)
			}
			registry.rules[buildKey(rule.State, rule.CountyCode)] = rule
		}
	}

	return registry, nil
}

func (r *Registry) Get(state, countyCode string) (JurisdictionRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[buildKey(state, countyCode)]
	return rule, ok
}

func (r *Registry) List() []JurisdictionRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JurisdictionRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}

// IsEnabled reports whether a jurisdiction may be ingested. Unknown
// jurisdictions are disabled.
func (r *Registry) IsEnabled(state, countyCode string) bool {
	rule, ok := r.Get(state, countyCode)
	return ok && rule.FeatureFlags.Enabled
}

// SetEnabled flips the enablement flag at runtime for a known jurisdiction.
func (r *Registry) SetEnabled(state, countyCode string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := buildKey(state, countyCode)
	rule, ok := r.rules[key]
	if !ok {
		return false
	}
	rule.FeatureFlags.Enabled = enabled
	r.rules[key] = rule
	return true
}
