// Package expect implements the Expectation Evaluator (spec.md §4.5):
// status/header/value validation, store_as capture, and diagnostics.
package expect

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/xeipuuv/gojsonschema"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/jsonpath"
	"github.com/restyrun/resty/internal/vars"
)

// Response is the subset of an HTTP response the evaluator needs. Headers
// are keyed case-insensitively (lower-cased), mirroring block.normalizeHeaders.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Result is the outcome of evaluating one ExpectDefinition.
type Result struct {
	Passed   bool
	Failures []Failure
	Captured map[string]string // store_as captures from matching value rules
}

// Failure is one diagnostic, kept structured so callers can both render a
// one-line summary and, for value mismatches, an optional unified diff.
type Failure struct {
	Kind    string // "status" | "header" | "value"
	Message string
	Diff    string
}

// StatusPasses reports whether the actual status satisfies the expectation,
// gating header/value evaluation per spec.md §4.5's ordering rule.
func StatusPasses(expect *block.ExpectDefinition, statusCode int) bool {
	if expect != nil && expect.Status != nil {
		return statusCode == *expect.Status
	}
	return statusCode >= 200 && statusCode < 300
}

// Evaluate runs headers then values, in that order, only ever called after
// StatusPasses returned true.
func Evaluate(expect *block.ExpectDefinition, resp Response, store *vars.Store) Result {
	result := Result{Passed: true, Captured: map[string]string{}}
	if expect == nil {
		return result
	}

	for _, f := range evaluateHeaders(expect.Headers, resp, store) {
		result.Passed = false
		result.Failures = append(result.Failures, f)
	}

	var body interface{}
	bodyErr := json.Unmarshal(resp.Body, &body)

	for _, ve := range expect.Values {
		ok, captured, failure := evaluateValue(ve, body, bodyErr, store)
		if !ok {
			result.Passed = false
			result.Failures = append(result.Failures, failure)
			continue
		}
		if ve.StoreAs != "" && captured != "" {
			result.Captured[ve.StoreAs] = captured
		}
	}
	return result
}

func evaluateHeaders(expected map[string]string, resp Response, store *vars.Store) []Failure {
	var failures []Failure
	for name, wantRaw := range expected {
		want, err := store.Resolve(wantRaw)
		if err != nil {
			failures = append(failures, Failure{Kind: "header", Message: fmt.Sprintf("header %q: %v", name, err)})
			continue
		}
		got, ok := resp.Headers[strings.ToLower(name)]
		if !ok {
			failures = append(failures, Failure{Kind: "header", Message: fmt.Sprintf("expected header %q not present", name)})
			continue
		}
		if strings.TrimSpace(got) != strings.TrimSpace(want) {
			failures = append(failures, Failure{
				Kind:    "header",
				Message: fmt.Sprintf("header %q: expected %q, got %q", name, want, got),
			})
		}
	}
	return failures
}

// evaluateValue evaluates one rule, returning (passed, capturedToken, failure).
func evaluateValue(ve block.ValueExpectation, body interface{}, bodyErr error, store *vars.Store) (bool, string, Failure) {
	op := NormalizeOp(ve.Op)

	var tokens []interface{}
	if bodyErr == nil {
		var err error
		tokens, err = jsonpath.Eval(body, ve.Key)
		if err != nil {
			if op != "not_exists" {
				return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: %v", ve.Key, err)}
			}
		}
	}

	switch op {
	case "exists":
		if len(tokens) == 0 {
			return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: expected to exist", ve.Key)}
		}
		return true, tokenToStoreValue(tokens[0]), Failure{}
	case "not_exists":
		if len(tokens) != 0 {
			return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: expected not to exist", ve.Key)}
		}
		return true, "", Failure{}
	}

	if len(tokens) == 0 {
		return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: no token selected", ve.Key)}
	}

	wantRaw, err := resolveExpectedValue(ve.Value, store)
	if err != nil {
		return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: %v", ve.Key, err)}
	}

	for _, tok := range tokens {
		ok, diff := compareOp(op, tok, wantRaw, ve.IgnoreCaseOrDefault())
		if ok {
			return true, tokenToStoreValue(tok), Failure{}
		}
		if len(tokens) == 1 {
			return false, "", Failure{
				Kind:    "value",
				Message: fmt.Sprintf("%s %s %v: got %v", ve.Key, op, wantRaw, tok),
				Diff:    diff,
			}
		}
	}
	return false, "", Failure{Kind: "value", Message: fmt.Sprintf("%s: no selected token satisfies %s %v", ve.Key, op, wantRaw)}
}

// resolveExpectedValue substitutes $vars in a string expected value and
// recognises the $null/$empty keywords.
func resolveExpectedValue(v interface{}, store *vars.Store) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch s {
	case "$null":
		return nil, nil
	case "$empty":
		return "", nil
	}
	return store.Resolve(s)
}

// NormalizeOp canonicalises the operator aliases from spec.md §4.5.
func NormalizeOp(op string) string {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "eq", "equals", "equal":
		return "eq"
	case "ne", "not_equals", "not_equal":
		return "ne"
	case "gt", "greater_than":
		return "greater_than"
	case "gte", "greater_than_or_equal":
		return "greater_than_or_equal"
	case "lt", "less_than":
		return "less_than"
	case "lte", "less_than_or_equal":
		return "less_than_or_equal"
	case "starts_with":
		return "starts_with"
	case "ends_with":
		return "ends_with"
	case "contains":
		return "contains"
	case "exists":
		return "exists"
	case "not_exists":
		return "not_exists"
	case "schema":
		return "schema"
	default:
		return strings.ToLower(strings.TrimSpace(op))
	}
}

func compareOp(op string, actual, expected interface{}, ignoreCase bool) (bool, string) {
	switch op {
	case "eq":
		return equalValues(actual, expected, ignoreCase), diffOf(expected, actual)
	case "ne":
		return !equalValues(actual, expected, ignoreCase), ""
	case "greater_than", "greater_than_or_equal", "less_than", "less_than_or_equal":
		return compareRelational(op, actual, expected), ""
	case "starts_with":
		return strings.HasPrefix(normCase(asStr(actual), ignoreCase), normCase(asStr(expected), ignoreCase)), ""
	case "ends_with":
		return strings.HasSuffix(normCase(asStr(actual), ignoreCase), normCase(asStr(expected), ignoreCase)), ""
	case "contains":
		return strings.Contains(normCase(asStr(actual), ignoreCase), normCase(asStr(expected), ignoreCase)), ""
	case "schema":
		return validateSchema(actual, expected), ""
	default:
		return false, ""
	}
}

func normCase(s string, ignoreCase bool) string {
	if ignoreCase {
		return strings.ToLower(s)
	}
	return s
}

func equalValues(actual, expected interface{}, ignoreCase bool) bool {
	if expected == nil {
		return actual == nil
	}
	if as, ok := actual.(string); ok {
		if es, ok := expected.(string); ok {
			return normCase(as, ignoreCase) == normCase(es, ignoreCase)
		}
	}
	an, aok := numeric(actual)
	en, eok := numeric(expected)
	if aok && eok {
		return an == en
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

// compareRelational tries date-vs-date, then number-vs-number, in that
// order (spec.md §4.5); anything else fails the rule.
func compareRelational(op string, actual, expected interface{}) bool {
	if at, aok := asTime(actual); aok {
		if et, eok := asTime(expected); eok {
			return timeCompare(op, at, et)
		}
	}
	an, aok := numeric(actual)
	en, eok := numeric(expected)
	if aok && eok {
		return numCompare(op, an, en)
	}
	return false
}

func timeCompare(op string, a, b time.Time) bool {
	switch op {
	case "greater_than":
		return a.After(b)
	case "greater_than_or_equal":
		return a.After(b) || a.Equal(b)
	case "less_than":
		return a.Before(b)
	case "less_than_or_equal":
		return a.Before(b) || a.Equal(b)
	}
	return false
}

func numCompare(op string, a, b float64) bool {
	switch op {
	case "greater_than":
		return a > b
	case "greater_than_or_equal":
		return a >= b
	case "less_than":
		return a < b
	case "less_than_or_equal":
		return a <= b
	}
	return false
}

func asTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func numeric(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(val, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func tokenToStoreValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// validateSchema backs the SPEC_FULL.md `schema` operator: expected must be
// a JSON-Schema document (as decoded YAML/JSON), actual the selected token.
func validateSchema(actual, expected interface{}) bool {
	schemaBytes, err := json.Marshal(expected)
	if err != nil {
		return false
	}
	docBytes, err := json.Marshal(actual)
	if err != nil {
		return false
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return false
	}
	return result.Valid()
}

// diffOf renders a unified diff between expected and actual when either is
// multi-line or structured, per SPEC_FULL.md's diff-diagnostics enrichment.
// When both are scalar, single-line values it returns "" — the one-line
// message already says enough.
func diffOf(expected, actual interface{}) string {
	e := prettyJSON(expected)
	a := prettyJSON(actual)
	if !strings.Contains(e, "\n") && !strings.Contains(a, "\n") {
		return ""
	}
	return udiff.Unified("expected", "actual", e, a)
}

func prettyJSON(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
