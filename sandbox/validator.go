package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Deny-list policies
const (
	// PolicyWarn logs denied constructs and lets the script run.
	PolicyWarn = "warn"
	// PolicyBlock rejects scripts containing a denied construct.
	PolicyBlock = "block"
)

// DefaultDenyPatterns covers process control, filesystem, network and dynamic
// evaluation. Matching is a case-insensitive substring scan.
var DefaultDenyPatterns = []string{
	"import os",
	"from os",
	"import sys",
	"from sys",
	"import subprocess",
	"from subprocess",
	"import socket",
	"from socket",
	"import urllib",
	"from urllib",
	"import requests",
	"from requests",
	"__import__",
	"exec(",
	"eval(",
	"open(",
	"file(",
	"input(",
	"raw_input(",
}

var entryPointPattern = regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+main[ \t]*\(`)

// Validator rejects submissions before anything is spawned
type Validator struct {
	logger   *zap.Logger
	policy   string
	maxBytes int
	patterns []string
}

// NewValidator creates a Validator. A nil patterns slice selects
// DefaultDenyPatterns; an empty non-nil slice disables the scan.
func NewValidator(logger *zap.Logger, policy string, maxBytes int, patterns []string) *Validator {
	if patterns == nil {
		patterns = DefaultDenyPatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	if policy == "" {
		policy = PolicyWarn
	}
	return &Validator{
		logger:   logger,
		policy:   policy,
		maxBytes: maxBytes,
		patterns: lowered,
	}
}

// Validate returns nil when script may be executed, or an *Error of kind
// KindValidation describing the first problem found.
func (v *Validator) Validate(script string) error {
	if strings.TrimSpace(script) == "" {
		return validationFailed(ReasonEmptyScript, "Script content cannot be empty")
	}

	if v.maxBytes > 0 && len(script) > v.maxBytes {
		return validationFailed(ReasonScriptTooLarge,
			fmt.Sprintf("Script exceeds maximum size of %d bytes", v.maxBytes))
	}

	if !entryPointPattern.MatchString(script) {
		return validationFailed(ReasonMissingEntryPoint, "Script must contain a 'main()' function")
	}

	findings := v.Findings(script)
	if len(findings) == 0 {
		return nil
	}

	if v.policy == PolicyBlock {
		return validationFailed(ReasonDeniedConstruct,
			fmt.Sprintf("Script contains potentially dangerous code: %s", findings[0]))
	}

	v.logger.Warn("potentially dangerous code detected", zap.Strings("patterns", findings))
	return nil
}

// Findings lists the deny-list patterns present in script.
func (v *Validator) Findings(script string) []string {
	lowered := strings.ToLower(script)
	var found []string
	for _, p := range v.patterns {
		if strings.Contains(lowered, p) {
			found = append(found, p)
		}
	}
	return found
}
