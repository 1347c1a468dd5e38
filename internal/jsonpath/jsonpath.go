// Package jsonpath implements the dialect from spec.md §4.4: a JSONPath base
// path (delegated to PaesslerAG/jsonpath+gval) followed by a right-to-left
// chain of postfix zero-argument functions, folded left to right over the
// base path's token list.
package jsonpath

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

var postfixCallPattern = regexp.MustCompile(`\.(\w+)\(\)$`)

// Split separates a key like "$.nums.distinct().length()" into its base
// path ("$.nums") and its ordered function chain (["distinct", "length"]).
// The chain is parsed by repeatedly stripping a trailing ".fn()" — hence
// "right-to-left parsed" per the design note — and then reversed back into
// left-to-right application order.
func Split(key string) (basePath string, chain []string) {
	rest := key
	var reversed []string
	for {
		m := postfixCallPattern.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		reversed = append(reversed, m[1])
		rest = rest[:len(rest)-len(m[0])]
	}
	for i := len(reversed) - 1; i >= 0; i-- {
		chain = append(chain, reversed[i])
	}
	return rest, chain
}

// Eval evaluates key against doc, returning the zero-or-more base-path
// tokens with the postfix function chain folded over them.
func Eval(doc interface{}, key string) ([]interface{}, error) {
	basePath, chain := Split(key)

	tokens, err := evalBase(doc, basePath)
	if err != nil {
		return nil, err
	}
	for _, fn := range chain {
		tokens = applyFunc(fn, tokens)
	}
	return tokens, nil
}

// evalBase runs the base path through the underlying JSONPath engine and
// normalises its result (a single value, or a slice of values for
// multi-match paths) into a token list.
func evalBase(doc interface{}, basePath string) ([]interface{}, error) {
	if strings.TrimSpace(basePath) == "" {
		return []interface{}{doc}, nil
	}
	result, err := jsonpath.Get(basePath, doc)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonpath %q: %w", basePath, err)
	}
	// Wildcards, recursive descent, filters, unions and slices return their
	// matches as a slice; any other path selects one value, which stays a
	// single token even when that value is itself an array.
	multiMatch := strings.ContainsAny(basePath, "*?,:") || strings.Contains(basePath, "..")
	if list, ok := result.([]interface{}); ok && multiMatch {
		return list, nil
	}
	return []interface{}{result}, nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown key") || strings.Contains(msg, "index out of range") ||
		strings.Contains(msg, "not found")
}

// applyFunc implements one postfix function from spec.md §4.4's table.
// Unknown names pass the token list through unchanged.
func applyFunc(name string, tokens []interface{}) []interface{} {
	switch name {
	case "length", "count", "size":
		return []interface{}{lengthOf(single(tokens))}
	case "empty":
		return []interface{}{isEmpty(single(tokens))}
	case "type":
		return []interface{}{typeOf(single(tokens))}
	case "sum":
		return []interface{}{aggregate(tokens, "sum")}
	case "avg":
		return []interface{}{aggregate(tokens, "avg")}
	case "min":
		return []interface{}{aggregate(tokens, "min")}
	case "max":
		return []interface{}{aggregate(tokens, "max")}
	case "distinct":
		return distinct(tokens)
	case "keys":
		return objectKeys(single(tokens))
	case "values":
		return objectValues(single(tokens))
	case "to_number":
		return mapElementwise(tokens, toNumber)
	case "to_string":
		return mapElementwise(tokens, toStringToken)
	case "to_boolean":
		return mapElementwise(tokens, toBoolean)
	case "trim":
		return mapElementwise(tokens, func(v interface{}) interface{} { return strings.TrimSpace(asString(v)) })
	case "lower":
		return mapElementwise(tokens, func(v interface{}) interface{} { return strings.ToLower(asString(v)) })
	case "upper":
		return mapElementwise(tokens, func(v interface{}) interface{} { return strings.ToUpper(asString(v)) })
	default:
		return tokens
	}
}

// single returns the sole selected value, or the whole array/slice value if
// the base path selected a single array token (functions like `length`
// operate on "any": a single scalar, or the one array/object the path
// pointed at).
func single(tokens []interface{}) interface{} {
	if len(tokens) == 0 {
		return nil
	}
	return tokens[0]
}

func lengthOf(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case []interface{}:
		return float64(len(val))
	case map[string]interface{}:
		return float64(len(val))
	case string:
		return float64(len([]rune(val)))
	default:
		return 0
	}
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func typeOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	case string:
		if strings.EqualFold(val, "null") {
			return "null"
		}
		if val == "true" || val == "false" {
			return "boolean"
		}
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			return "number"
		}
		return "string"
	default:
		return "string"
	}
}

func aggregate(tokens []interface{}, kind string) float64 {
	var nums []float64
	// aggregate is applied to an array-typed single token (per spec.md
	// "Array inputs to map-style functions are not flattened"): if the
	// selection produced exactly one array, unwrap it; otherwise treat the
	// token list itself as the array.
	items := tokens
	if len(tokens) == 1 {
		if arr, ok := tokens[0].([]interface{}); ok {
			items = arr
		}
	}
	for _, t := range items {
		if n, ok := numeric(t); ok {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return 0
	}
	switch kind {
	case "sum":
		var s float64
		for _, n := range nums {
			s += n
		}
		return s
	case "avg":
		var s float64
		for _, n := range nums {
			s += n
		}
		return s / float64(len(nums))
	case "min":
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return m
	case "max":
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return m
	}
	return 0
}

func distinct(tokens []interface{}) []interface{} {
	items := tokens
	if len(tokens) == 1 {
		if arr, ok := tokens[0].([]interface{}); ok {
			items = arr
		}
	}
	seen := map[string]bool{}
	var out []interface{}
	for _, t := range items {
		key := fmt.Sprintf("%T:%v", t, t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func objectKeys(v interface{}) []interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func objectValues(v interface{}) []interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = obj[k]
	}
	return out
}

func mapElementwise(tokens []interface{}, fn func(interface{}) interface{}) []interface{} {
	items := tokens
	wasArray := false
	if len(tokens) == 1 {
		if arr, ok := tokens[0].([]interface{}); ok {
			items = arr
			wasArray = true
		}
	}
	out := make([]interface{}, len(items))
	for i, t := range items {
		out[i] = fn(t)
	}
	if wasArray {
		return []interface{}{out}
	}
	return out
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

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toNumber(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return float64(0)
	case bool:
		if val {
			return float64(1)
		}
		return float64(0)
	case float64:
		return val
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	default:
		return math.NaN()
	}
}

func toStringToken(v interface{}) interface{} {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return asString(val)
	}
}

func toBoolean(v interface{}) interface{} {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	case float64:
		return val != 0
	default:
		return false
	}
}
