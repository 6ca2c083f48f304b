package core

import "strings"

// TopicMatcher determines whether a subscription pattern matches a destination.
type TopicMatcher interface {
	Match(pattern string, destination string) bool
}

// DefaultMatcher supports exact matching, single-level wildcard (*),
// and multi-level wildcard (#). Levels are split on Separator, "." when empty.
//
// Examples with Separator "/":
//
//	"/topic/batch/42" matches "/topic/batch/42"    (exact)
//	"/topic/batch/*"  matches "/topic/batch/42"    (single-level)
//	"/topic/*"        does NOT match "/topic/batch/42"
//	"/topic/#"        matches "/topic/progress/run/7" (multi-level)
//	"/topic/#"        matches "/topic/global"
type DefaultMatcher struct {
	Separator string
}

func (m DefaultMatcher) Match(pattern, destination string) bool {
	sep := m.Separator
	if sep == "" {
		sep = "."
	}
	return matchFrom(strings.Split(pattern, sep), 0, strings.Split(destination, sep), 0)
}

func matchFrom(pat []string, pi int, top []string, ti int) bool {
	for pi < len(pat) && ti < len(top) {
		switch pat[pi] {
		case "#":
			// # at the end matches all remaining levels
			if pi == len(pat)-1 {
				return true
			}
			// # in the middle: try all remaining positions
			pi++
			for ; ti <= len(top); ti++ {
				if matchFrom(pat, pi, top, ti) {
					return true
				}
			}
			return false
		case "*":
			pi++
			ti++
		default:
			if pat[pi] != top[ti] {
				return false
			}
			pi++
			ti++
		}
	}
	// Both must be fully consumed
	return pi == len(pat) && ti == len(top)
}
