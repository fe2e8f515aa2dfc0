package engine

import (
	"regexp"
	"strings"
)

// isPattern reports whether a condition type is a wildcard pattern.
// '*' is the only metacharacter.
func isPattern(conditionType string) bool {
	return strings.Contains(conditionType, "*")
}

// compileWildcard converts a *-pattern into an anchored regexp. Every
// other character matches literally; '*' expands to a lazy .*?.
func compileWildcard(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + strings.ReplaceAll(quoted, `\*`, ".*?") + "$")
}

// ensurePattern compiles and caches the regexp for a pattern key.
func (s *Store) ensurePattern(pattern string) {
	if _, ok := s.patternRegexps[pattern]; !ok {
		s.patternRegexps[pattern] = compileWildcard(pattern)
	}
}

// matchesPattern reports whether name satisfies a registered pattern key.
func (s *Store) matchesPattern(pattern, name string) bool {
	re := s.patternRegexps[pattern]
	return re != nil && re.MatchString(name)
}
