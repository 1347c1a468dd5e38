package jsonpath

import (
	"reflect"
	"testing"
)

func TestSplitSeparatesBasePathFromFunctionChain(t *testing.T) {
	base, chain := Split("$.items.distinct().length()")
	if base != "$.items" {
		t.Errorf("base = %q, want %q", base, "$.items")
	}
	if !reflect.DeepEqual(chain, []string{"distinct", "length"}) {
		t.Errorf("chain = %v, want [distinct length]", chain)
	}
}

func TestSplitWithNoChainReturnsWholeKeyAsBase(t *testing.T) {
	base, chain := Split("$.items")
	if base != "$.items" || len(chain) != 0 {
		t.Errorf("Split(no chain) = (%q, %v)", base, chain)
	}
}

func TestEvalLength(t *testing.T) {
	doc := map[string]interface{}{"items": []interface{}{1.0, 2.0, 3.0}}
	got, err := Eval(doc, "$.items.length()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(got) != 1 || got[0].(float64) != 3 {
		t.Errorf("Eval(length) = %v, want [3]", got)
	}
}

func TestEvalSumAvgMinMax(t *testing.T) {
	doc := map[string]interface{}{"nums": []interface{}{1.0, 2.0, 3.0}}
	cases := map[string]float64{"sum": 6, "avg": 2, "min": 1, "max": 3}
	for fn, want := range cases {
		got, err := Eval(doc, "$.nums."+fn+"()")
		if err != nil {
			t.Fatalf("Eval(%s): %v", fn, err)
		}
		if got[0].(float64) != want {
			t.Errorf("Eval(%s) = %v, want %v", fn, got[0], want)
		}
	}
}

func TestEvalDistinctRemovesDuplicates(t *testing.T) {
	doc := map[string]interface{}{"nums": []interface{}{1.0, 1.0, 2.0}}
	got, err := Eval(doc, "$.nums.distinct()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Eval(distinct) = %v, want 2 unique elements", got)
	}
}

func TestEvalMissingPathIsNotAnError(t *testing.T) {
	doc := map[string]interface{}{}
	got, err := Eval(doc, "$.missing")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != nil {
		t.Errorf("Eval(missing) = %v, want nil", got)
	}
}

func TestEvalTypeAndToStringConversions(t *testing.T) {
	doc := map[string]interface{}{"n": 42.0, "s": "hi"}
	typ, err := Eval(doc, "$.n.type()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if typ[0] != "number" {
		t.Errorf("type() = %v, want number", typ)
	}

	str, err := Eval(doc, "$.n.to_string()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if str[0] != "42" {
		t.Errorf("to_string() = %v, want \"42\"", str)
	}
}
