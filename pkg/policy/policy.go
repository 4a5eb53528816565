// Package policy loads the academic calendar policy: per-period withdrawal
// deadlines and per-offering seat capacities.
package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the parsed policy file. The zero value enforces no deadlines and
// falls back to the default capacity everywhere.
type Policy struct {
	DefaultCapacity int               `yaml:"default_capacity"`
	Periods         map[string]Period `yaml:"periods"`
	Capacities      map[string]int    `yaml:"capacities"`
	deadlines       map[string]time.Time
}

// Period configures a single academic term.
type Period struct {
	WithdrawalDeadline string `yaml:"withdrawal_deadline"`
}

// Load reads a YAML policy file. An empty path yields an empty policy.
func Load(path string, defaultCapacity int) (*Policy, error) {
	p := &Policy{DefaultCapacity: defaultCapacity}
	if strings.TrimSpace(path) == "" {
		return p, p.compile()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(raw, defaultCapacity)
}

// Parse decodes a YAML policy document.
func Parse(raw []byte, defaultCapacity int) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if p.DefaultCapacity <= 0 {
		p.DefaultCapacity = defaultCapacity
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) compile() error {
	p.deadlines = make(map[string]time.Time, len(p.Periods))
	for code, period := range p.Periods {
		if period.WithdrawalDeadline == "" {
			continue
		}
		deadline, err := parseDeadline(period.WithdrawalDeadline)
		if err != nil {
			return fmt.Errorf("period %s: %w", code, err)
		}
		p.deadlines[code] = deadline
	}
	for key, capacity := range p.Capacities {
		if capacity < 0 {
			return fmt.Errorf("capacity %s: must not be negative", key)
		}
	}
	return nil
}

// WithdrawalDeadline returns the configured deadline for the period, if any.
func (p *Policy) WithdrawalDeadline(period string) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	deadline, ok := p.deadlines[period]
	return deadline, ok
}

// Capacity resolves the seat limit for a course offering. Overrides are keyed
// "<course id>@<period>" or "<course id>".
func (p *Policy) Capacity(courseID, period string) int {
	if p == nil {
		return 0
	}
	if c, ok := p.Capacities[courseID+"@"+period]; ok {
		return c
	}
	if c, ok := p.Capacities[courseID]; ok {
		return c
	}
	return p.DefaultCapacity
}

// Date-only deadlines close at the end of that day (UTC).
func parseDeadline(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid withdrawal_deadline %q", raw)
	}
	return t.Add(24*time.Hour - time.Nanosecond).UTC(), nil
}
