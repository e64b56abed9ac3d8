package model

import (
	"strings"
	"testing"
)

func TestMarshalCanonical_SortsKeysAlphabetically(t *testing.T) {
	doc := map[string]any{
		"zebra": "z",
		"alpha": "a",
		"mid":   "m",
	}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	expected := `{"alpha":"a","mid":"m","zebra":"z"}`
	if string(out) != expected {
		t.Errorf("MarshalCanonical() = %q, want %q", out, expected)
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// Characters outside the BMP encode as surrogate pairs in UTF-16.
	// U+FB33 is the single code unit 0xFB33; U+1D306 is the pair
	// 0xD834,0xDF06. RFC 8785 orders by code units, so the surrogate
	// pair sorts BEFORE U+FB33 even though its code point is larger.
	doc := map[string]any{
		"\uFB33":     "single",
		"\U0001D306": "pair",
	}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	pair := strings.Index(string(out), "pair")
	single := strings.Index(string(out), "single")
	if pair == -1 || single == -1 || pair > single {
		t.Errorf("MarshalCanonical() = %q, want surrogate-pair key first", out)
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	doc := map[string]any{"expr": "a<b && c>d"}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	expected := `{"expr":"a<b && c>d"}`
	if string(out) != expected {
		t.Errorf("MarshalCanonical() = %q, want %q", out, expected)
	}
}

func TestMarshalCanonical_LineSeparatorsUnescaped(t *testing.T) {
	doc := map[string]any{"s": "a\u2028b\u2029c"}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	expected := "{\"s\":\"a\u2028b\u2029c\"}"
	if string(out) != expected {
		t.Errorf("MarshalCanonical() = %q, want %q", out, expected)
	}
}

func TestMarshalCanonical_LiteralBackslashU2028Kept(t *testing.T) {
	// A literal backslash followed by the text "u2028" must survive as
	// the escaped backslash plus text, not become a line separator.
	doc := map[string]any{"s": "\\u2028"}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	expected := `{"s":"\\u2028"}`
	if string(out) != expected {
		t.Errorf("MarshalCanonical() = %q, want %q", out, expected)
	}
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	decomposed := map[string]any{"name": "cafe\u0301"}
	precomposed := map[string]any{"name": "caf\u00e9"}

	a, err := MarshalCanonical(decomposed)
	if err != nil {
		t.Fatalf("MarshalCanonical(decomposed) failed: %v", err)
	}
	b, err := MarshalCanonical(precomposed)
	if err != nil {
		t.Fatalf("MarshalCanonical(precomposed) failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("NFC forms differ: %q vs %q", a, b)
	}
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	if err == nil {
		t.Fatal("MarshalCanonical() accepted a float")
	}
}

func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": nil})
	if err == nil {
		t.Fatal("MarshalCanonical() accepted null")
	}
}

func TestMarshalCanonical_NestedStructures(t *testing.T) {
	doc := map[string]any{
		"outer": map[string]any{
			"list":  []any{"a", int64(1), true},
			"inner": map[string]any{"k": "v"},
		},
	}
	out, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	expected := `{"outer":{"inner":{"k":"v"},"list":["a",1,true]}}`
	if string(out) != expected {
		t.Errorf("MarshalCanonical() = %q, want %q", out, expected)
	}
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	doc := map[string]any{"b": int64(2), "a": int64(1), "c": int64(3)}
	first, err := MarshalCanonical(doc)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(doc)
		if err != nil {
			t.Fatalf("MarshalCanonical() failed on pass %d: %v", i, err)
		}
		if string(again) != string(first) {
			t.Fatalf("MarshalCanonical() not deterministic: %q vs %q", again, first)
		}
	}
}
