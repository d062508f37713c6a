package hooks

import (
	"fmt"
	"regexp"
	"strings"
)

// GuardRule is one command-guard rule: a glob pattern over the command
// string plus the reason reported when it matches
type GuardRule struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason,omitempty"`
}

// RuleMatcher handles glob pattern matching over command strings
type RuleMatcher struct {
	rules   []GuardRule
	regexps []*regexp.Regexp
}

// NewRuleMatcher compiles guard rules into a matcher
func NewRuleMatcher(rules []GuardRule) (*RuleMatcher, error) {
	rm := &RuleMatcher{
		rules:   rules,
		regexps: make([]*regexp.Regexp, 0, len(rules)),
	}

	for _, rule := range rules {
		regex, err := globToRegex(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid guard pattern '%s': %w", rule.Pattern, err)
		}
		rm.regexps = append(rm.regexps, regex)
	}

	return rm, nil
}

// Match returns the first rule the command matches, or nil. Matching
// ignores surrounding whitespace and collapses interior runs of spaces so
// "rm   -rf /" still matches "rm -rf /".
func (rm *RuleMatcher) Match(command string) *GuardRule {
	normalized := normalizeCommand(command)
	for i, regex := range rm.regexps {
		if regex.MatchString(normalized) {
			return &rm.rules[i]
		}
	}
	return nil
}

// globToRegex converts a command glob pattern to a regular expression.
// Unlike path globs, * matches across the whole command string.
func globToRegex(pattern string) (*regexp.Regexp, error) {
	var regex strings.Builder
	regex.WriteString("^")

	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			regex.WriteString(".*")
		case '?':
			regex.WriteString(".")
		default:
			regex.WriteString(regexp.QuoteMeta(string(pattern[i])))
		}
	}

	regex.WriteString("$")
	return regexp.Compile(regex.String())
}

func normalizeCommand(command string) string {
	return strings.Join(strings.Fields(command), " ")
}
