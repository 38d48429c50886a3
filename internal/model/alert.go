package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCooldown is applied to rules that do not set a cooldown explicitly.
const DefaultCooldown = 60 * time.Second

// Operator is the comparison an alert rule applies to a metric value.
type Operator string

// Supported operators.
const (
	OpGreater Operator = "gt"
	OpLess    Operator = "lt"
	OpEqual   Operator = "eq"
)

var (
	// ErrInvalidOperator is returned by Validate for an unknown operator.
	ErrInvalidOperator = errors.New("model: invalid alert operator")
	// ErrInvalidRule is returned by Validate for a rule missing a name or metric.
	ErrInvalidRule = errors.New("model: invalid alert rule")
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpGreater, OpLess, OpEqual:
		return true
	}
	return false
}

// Compare applies the operator. Unknown operators never match.
func (op Operator) Compare(value, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

// Symbol returns a short human-readable form of the operator.
func (op Operator) Symbol() string {
	switch op {
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpEqual:
		return "=="
	}
	return string(op)
}

// AlertRule is a threshold check against one metric key.
type AlertRule struct {
	Name      string        `json:"name" yaml:"name"`
	Metric    string        `json:"metric" yaml:"metric"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
	Operator  Operator      `json:"operator" yaml:"operator"`
	Cooldown  time.Duration `json:"cooldown_ns" yaml:"-"`
}

// NewAlertRule returns a rule with DefaultCooldown.
func NewAlertRule(name, metric string, op Operator, threshold float64) AlertRule {
	return AlertRule{
		Name:      name,
		Metric:    metric,
		Threshold: threshold,
		Operator:  op,
		Cooldown:  DefaultCooldown,
	}
}

// Validate rejects rules the engine would silently ignore.
func (r AlertRule) Validate() error {
	if r.Name == "" || r.Metric == "" {
		return fmt.Errorf("%w: name and metric are required", ErrInvalidRule)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("%w %q in rule %q", ErrInvalidOperator, r.Operator, r.Name)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("%w: negative cooldown in rule %q", ErrInvalidRule, r.Name)
	}
	return nil
}

// Alert is emitted when a rule fires.
type Alert struct {
	Rule        string    `json:"rule"`
	Metric      string    `json:"metric,omitempty"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Message formats the alert for logs and terminal output.
func (a Alert) Message() string {
	if a.Metric == "" {
		return fmt.Sprintf("%s: value %.4g (threshold %.4g)", a.Rule, a.Value, a.Threshold)
	}
	return fmt.Sprintf("%s: %s = %.4g (threshold %.4g)", a.Rule, a.Metric, a.Value, a.Threshold)
}
