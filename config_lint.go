package astaauth

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

// String returns the upper-case severity label.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding. Lint never blocks startup by itself;
// callers decide via LintResult.AsError.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings from Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds the warnings at or above min into one error, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	filtered := r.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}

	parts := make([]string, 0, len(filtered))
	for _, w := range filtered {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// lintRule flags one questionable setting.
type lintRule struct {
	code     string
	severity LintSeverity
	message  string
	fires    func(*Config) bool
}

var lintRules = []lintRule{
	{"secret_short", LintHigh, "JWT SecretKey is shorter than 256 bits", func(c *Config) bool {
		return len(c.JWT.SecretKey) < minProductionSecretBytes
	}},
	{"access_ttl_long", LintWarn, "access tokens cannot be revoked; keep AccessTTL at or below one hour", func(c *Config) bool {
		return c.JWT.AccessTTL > time.Hour
	}},
	{"access_ttl_short", LintInfo, "AccessTTL under one minute forces frequent logins", func(c *Config) bool {
		return c.JWT.AccessTTL > 0 && c.JWT.AccessTTL < time.Minute
	}},
	{"argon2_memory_low", LintWarn, "argon2 Memory is below 64 MiB", func(c *Config) bool {
		return c.Password.Memory < 64*1024
	}},
	{"hash_workers_high", LintWarn, "more than 64 concurrent argon2 derivations can exhaust memory", func(c *Config) bool {
		return c.Hashing.Workers > 64
	}},
	{"audit_disabled", LintInfo, "authentication outcomes are not audited", func(c *Config) bool {
		return !c.Audit.Enabled
	}},
	{"metrics_disabled", LintInfo, "authentication metrics are disabled", func(c *Config) bool {
		return !c.Metrics.Enabled
	}},
}

// Lint reports settings that are valid but questionable for a deployment,
// in a fixed order.
func (c *Config) Lint() LintResult {
	var out LintResult
	for _, r := range lintRules {
		if r.fires(c) {
			out = append(out, LintWarning{Code: r.code, Severity: r.severity, Message: r.message})
		}
	}
	return out
}
