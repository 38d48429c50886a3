package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// RuleConfig is the on-disk form of an alert rule. Cooldown is a Go
// duration string; empty means model.DefaultCooldown and "0s" disables it.
type RuleConfig struct {
	Name      string  `toml:"name" yaml:"name"`
	Metric    string  `toml:"metric" yaml:"metric"`
	Operator  string  `toml:"operator" yaml:"operator"`
	Threshold float64 `toml:"threshold" yaml:"threshold"`
	Cooldown  string  `toml:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

// Rule converts and validates the entry.
func (rc RuleConfig) Rule() (model.AlertRule, error) {
	op := model.Operator(strings.ToLower(strings.TrimSpace(rc.Operator)))
	if op == "" {
		op = model.OpGreater
	}
	r := model.NewAlertRule(rc.Name, rc.Metric, op, rc.Threshold)
	if rc.Cooldown != "" {
		d, err := time.ParseDuration(rc.Cooldown)
		if err != nil {
			return r, fmt.Errorf("%w: cooldown %q in rule %q: %v", model.ErrInvalidRule, rc.Cooldown, rc.Name, err)
		}
		r.Cooldown = d
	}
	return r, r.Validate()
}

// FromRule is the inverse of Rule.
func FromRule(r model.AlertRule) RuleConfig {
	return RuleConfig{
		Name:      r.Name,
		Metric:    r.Metric,
		Operator:  string(r.Operator),
		Threshold: r.Threshold,
		Cooldown:  r.Cooldown.String(),
	}
}

type rulesFile struct {
	Alerts []RuleConfig `toml:"alerts" yaml:"alerts"`
}

// LoadRules reads a standalone rules file. The format follows the
// extension: .yaml/.yml or .toml, both holding an "alerts" list.
func LoadRules(path string) ([]model.AlertRule, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied rules file
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}

	var rf rulesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rf)
	case ".toml":
		err = toml.Unmarshal(data, &rf)
	default:
		return nil, fmt.Errorf("rules file %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing rules %s: %w", path, err)
	}

	return toRules(rf.Alerts, filepath.Base(path))
}

// SaveRules writes rules as YAML.
func SaveRules(path string, rules []model.AlertRule) error {
	rf := rulesFile{Alerts: make([]RuleConfig, 0, len(rules))}
	for _, r := range rules {
		rf.Alerts = append(rf.Alerts, FromRule(r))
	}
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating rules dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func toRules(entries []RuleConfig, origin string) ([]model.AlertRule, error) {
	rules := make([]model.AlertRule, 0, len(entries))
	for i, rc := range entries {
		r, err := rc.Rule()
		if err != nil {
			return nil, fmt.Errorf("%s: alert %d: %w", origin, i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
