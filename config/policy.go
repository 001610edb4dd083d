/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the operator-tunable remediation policy, loaded from a YAML file.
// Zero values fall back to the package defaults.
type Policy struct {
	MaxAttempts          int           `yaml:"maxAttempts"`
	MaxValidationRetries int           `yaml:"maxValidationRetries"`
	ApprovalTimeout      time.Duration `yaml:"approvalTimeout"`
	SettleDelay          time.Duration `yaml:"settleDelay"`
	MaxSettleDelay       time.Duration `yaml:"maxSettleDelay"`

	// AutoEscalateRisk names the risk level at which plans skip the approval
	// prompt and escalate directly. Empty disables the rule.
	AutoEscalateRisk string `yaml:"autoEscalateRisk"`

	// AllowedActions restricts which remediation action types may be
	// proposed. Empty allows all of them.
	AllowedActions []string `yaml:"allowedActions"`

	Watch WatchPolicy `yaml:"watch"`
}

// WatchPolicy configures the continuous monitoring mode.
type WatchPolicy struct {
	Interval   time.Duration `yaml:"interval"`
	Namespaces []string      `yaml:"namespaces"`
}

var validRiskLevels = map[string]bool{
	"":         true,
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

var validActionTypes = map[string]bool{
	"patch_resources": true,
	"set_image":       true,
	"restart_rollout": true,
	"scale_replicas":  true,
	"create_workload": true,
}

// DefaultPolicy returns a policy populated with the package defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:          DefaultMaxAttempts,
		MaxValidationRetries: DefaultMaxValidationRetries,
		ApprovalTimeout:      DefaultApprovalTimeout,
		SettleDelay:          DefaultSettleDelay,
		MaxSettleDelay:       DefaultMaxSettleDelay,
		Watch: WatchPolicy{
			Interval: DefaultWatchInterval,
		},
	}
}

// LoadPolicy reads and validates a policy file, filling omitted fields with
// defaults. An empty path returns the defaults unchanged.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy in %s: %w", path, err)
	}

	policy.applyDefaults()
	return policy, nil
}

// UnmarshalYAML decodes the policy, parsing duration fields from Go duration
// strings ("30s", "2m") which yaml.v3 does not handle natively.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAttempts          int      `yaml:"maxAttempts"`
		MaxValidationRetries int      `yaml:"maxValidationRetries"`
		ApprovalTimeout      string   `yaml:"approvalTimeout"`
		SettleDelay          string   `yaml:"settleDelay"`
		MaxSettleDelay       string   `yaml:"maxSettleDelay"`
		AutoEscalateRisk     string   `yaml:"autoEscalateRisk"`
		AllowedActions       []string `yaml:"allowedActions"`
		Watch                struct {
			Interval   string   `yaml:"interval"`
			Namespaces []string `yaml:"namespaces"`
		} `yaml:"watch"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	p.MaxAttempts = raw.MaxAttempts
	p.MaxValidationRetries = raw.MaxValidationRetries
	p.AutoEscalateRisk = raw.AutoEscalateRisk
	p.AllowedActions = raw.AllowedActions
	p.Watch.Namespaces = raw.Watch.Namespaces

	for _, d := range []struct {
		value string
		field string
		dest  *time.Duration
	}{
		{raw.ApprovalTimeout, "approvalTimeout", &p.ApprovalTimeout},
		{raw.SettleDelay, "settleDelay", &p.SettleDelay},
		{raw.MaxSettleDelay, "maxSettleDelay", &p.MaxSettleDelay},
		{raw.Watch.Interval, "watch.interval", &p.Watch.Interval},
	} {
		if d.value == "" {
			*d.dest = 0
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s duration %q: %w", d.field, d.value, err)
		}
		*d.dest = parsed
	}

	return nil
}

// Validate checks the policy fields for out-of-range values.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.MaxValidationRetries < 0 {
		return fmt.Errorf("maxValidationRetries must be >= 0, got %d", p.MaxValidationRetries)
	}
	if !validRiskLevels[p.AutoEscalateRisk] {
		return fmt.Errorf("autoEscalateRisk must be one of low, medium, high, critical; got %q", p.AutoEscalateRisk)
	}
	for _, a := range p.AllowedActions {
		if !validActionTypes[a] {
			return fmt.Errorf("unknown action type %q in allowedActions", a)
		}
	}
	if p.SettleDelay < 0 || p.MaxSettleDelay < 0 {
		return fmt.Errorf("settle delays must be >= 0")
	}
	if p.MaxSettleDelay > 0 && p.SettleDelay > p.MaxSettleDelay {
		return fmt.Errorf("settleDelay %s exceeds maxSettleDelay %s", p.SettleDelay, p.MaxSettleDelay)
	}
	return nil
}

func (p *Policy) applyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxValidationRetries == 0 {
		p.MaxValidationRetries = DefaultMaxValidationRetries
	}
	if p.ApprovalTimeout == 0 {
		p.ApprovalTimeout = DefaultApprovalTimeout
	}
	if p.SettleDelay == 0 {
		p.SettleDelay = DefaultSettleDelay
	}
	if p.MaxSettleDelay == 0 {
		p.MaxSettleDelay = DefaultMaxSettleDelay
	}
	if p.Watch.Interval == 0 {
		p.Watch.Interval = DefaultWatchInterval
	}
}
