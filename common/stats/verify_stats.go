package stats

import (
	"bytes"
	"fmt"
	"testing"
)

// Helpers for tests that check registry contents.

type RuleChecker struct {
	name    string
	checker func(got, want interface{}) bool
}

func int64EqTest(got, want interface{}) bool {
	g, ok := got.(int64)
	if !ok {
		return false
	}
	switch w := want.(type) {
	case int:
		return g == int64(w)
	case int64:
		return g == w
	}
	return false
}

var Int64EqTest = RuleChecker{name: "Int64EqTest", checker: int64EqTest}

func int64GTETest(got, want interface{}) bool {
	g, ok := got.(int64)
	w, ok2 := want.(int)
	return ok && ok2 && g >= int64(w)
}

var Int64GTETest = RuleChecker{name: "Int64GTETest", checker: int64GTETest}

func doesNotExistTest(got, _ interface{}) bool {
	return got == nil
}

var DoesNotExistTest = RuleChecker{name: "DoesNotExistTest", checker: doesNotExistTest}

// Rule pairs a checker with the expected value it compares against.
type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

// StatsOk reports whether every named stat in the receiver's registry passes its rule,
// failing t with a dump of the registry when one does not.
func StatsOk(tag string, stat StatsReceiver, t testing.TB, contains map[string]Rule) bool {
	s, ok := stat.(*defaultStatsReceiver)
	if !ok {
		t.Errorf("%s: stats receiver %T has no registry to verify", tag, stat)
		return false
	}
	reg, ok := s.registry.(*finagleStatsRegistry)
	if !ok {
		t.Errorf("%s: registry %T cannot be verified", tag, s.registry)
		return false
	}

	asJson := reg.MarshalAll()
	var msg bytes.Buffer
	failed := false
	for key, rule := range contains {
		got := asJson[key]
		if rule.Checker.checker(got, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			fmt.Fprintf(&msg, "%s: found stat entry when there should not be one\n", key)
		} else {
			fmt.Fprintf(&msg, "%s: got %v, expected to pass %s with %v\n", key, got, rule.Checker.name, rule.Value)
		}
	}
	if failed {
		pretty, _ := reg.MarshalJSONPretty()
		t.Errorf("%s: stats registry error:\n%s%s", tag, msg.String(), pretty)
	}
	return !failed
}
