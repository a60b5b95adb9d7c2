package tags

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"absent", "", []string{}},
		{"null", "null", []string{}},
		{"array", `["a","b"]`, []string{"a", "b"}},
		{"array with blanks", `[" a ", "", "  ", "b"]`, []string{"a", "b"}},
		{"array with numbers", `["x", 1, true]`, []string{"x", "1", "true"}},
		{"array with null element", `["x", null]`, []string{"x"}},
		{"json string", `"[\"a\",\"b\"]"`, []string{"a", "b"}},
		{"csv string", `"a, b"`, []string{"a", "b"}},
		{"csv with blanks", `" a ,, b , "`, []string{"a", "b"}},
		{"broken json falls back to csv", `"[a, b"`, []string{"[a", "b"}},
		{"empty string", `""`, []string{}},
		{"object", `{"a":1}`, []string{}},
		{"bare number", `42`, []string{"42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_EquivalentShapes(t *testing.T) {
	want := []string{"a", "b"}
	assert.Equal(t, want, Normalize(json.RawMessage(`["a","b"]`)))
	assert.Equal(t, want, Normalize(json.RawMessage(`"[\"a\",\"b\"]"`)))
	assert.Equal(t, want, Normalize(json.RawMessage(`"a, b"`)))
	assert.Equal(t, want, FromString(`["a","b"]`))
	assert.Equal(t, want, FromString("a, b"))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Decode(`["a","b"]`))
	assert.Equal(t, []string{}, Decode(""))
	assert.Equal(t, []string{}, Decode("not json"))
	assert.Equal(t, []string{}, Decode(`{"a":"b"}`))
	assert.Equal(t, []string{}, Decode(`"a,b"`))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "[]", Encode(nil))
	assert.Equal(t, `["a","b c"]`, Encode([]string{"a", "b c"}))
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Distinct([]string{"b", "a", "b", "a"}))
}

// tagGen draws tag values that are already trimmed, non-empty and comma-free,
// so every input shape must produce exactly the drawn list.
func tagGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z0-9][a-z0-9 _-]{0,10}[a-z0-9]|[a-z0-9]`)
}

func TestProperty_ShapesAgree(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		list := rapid.SliceOf(tagGen()).Draw(rt, "tags")
		if list == nil {
			list = []string{}
		}

		arrayRaw, _ := json.Marshal(list)
		jsonString, _ := json.Marshal(string(arrayRaw))
		csvString, _ := json.Marshal(strings.Join(list, ", "))

		fromArray := Normalize(arrayRaw)
		fromJSONString := Normalize(jsonString)
		fromCSV := Normalize(csvString)

		if !equal(fromArray, list) {
			rt.Fatalf("array shape = %v, want %v", fromArray, list)
		}
		if !equal(fromJSONString, list) {
			rt.Fatalf("json string shape = %v, want %v", fromJSONString, list)
		}
		if !equal(fromCSV, list) {
			rt.Fatalf("csv shape = %v, want %v", fromCSV, list)
		}
	})
}

func TestProperty_EncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		list := FromValues(rapid.SliceOf(rapid.String()).Draw(rt, "raw"))
		got := Decode(Encode(list))
		if !equal(got, list) {
			rt.Fatalf("Decode(Encode(%q)) = %q", list, got)
		}
	})
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
