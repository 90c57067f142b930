package engine

import (
	"fmt"
	"regexp"
)

// Matcher decides whether an action is of interest to a logic unit. Matchers
// are pure predicates: they may not keep state and are evaluated for every
// submitted action against every registered unit.
type Matcher interface {
	Matches(action Action) bool
}

type typeMatcher struct {
	actionType string
}

func (m typeMatcher) Matches(action Action) bool {
	return action.Type == m.actionType
}

func (m typeMatcher) String() string { return m.actionType }

// MatchType matches actions whose type equals actionType exactly.
func MatchType(actionType string) Matcher {
	return typeMatcher{actionType: actionType}
}

type patternMatcher struct {
	expr string
	re   *regexp.Regexp
}

func (m patternMatcher) Matches(action Action) bool {
	return m.re.MatchString(action.Type)
}

func (m patternMatcher) String() string { return m.expr }

// MatchPattern matches actions whose type matches the regular expression.
// Compilation failures are configuration errors and surface at registration.
func MatchPattern(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("actionflow: invalid match pattern %q: %w", expr, err)
	}
	return patternMatcher{expr: expr, re: re}, nil
}

// MustMatchPattern is MatchPattern, panicking on an invalid expression.
func MustMatchPattern(expr string) Matcher {
	m, err := MatchPattern(expr)
	if err != nil {
		panic(err)
	}
	return m
}

type setMatcher struct {
	types map[string]struct{}
}

func (m setMatcher) Matches(action Action) bool {
	_, ok := m.types[action.Type]
	return ok
}

// MatchTypes matches actions whose type is a member of the given set.
func MatchTypes(actionTypes ...string) Matcher {
	types := make(map[string]struct{}, len(actionTypes))
	for _, t := range actionTypes {
		types[t] = struct{}{}
	}
	return setMatcher{types: types}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m anyMatcher) Matches(action Action) bool {
	for _, inner := range m.matchers {
		if inner.Matches(action) {
			return true
		}
	}
	return false
}

// MatchAny matches when any of the given matchers matches. Use it to mix
// exact types and patterns in one trigger set.
func MatchAny(matchers ...Matcher) Matcher {
	return anyMatcher{matchers: matchers}
}

type allMatcher struct{}

func (allMatcher) Matches(Action) bool { return true }

func (allMatcher) String() string { return "*" }

// MatchAll is the universal wildcard: it matches every action.
func MatchAll() Matcher {
	return allMatcher{}
}
