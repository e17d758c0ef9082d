package ai

import (
	"reflect"
	"testing"
)

type testTriple struct {
	A          string  `json:"a"`
	Relation   string  `json:"relation"`
	B          string  `json:"b"`
	Confidence float64 `json:"confidence,omitempty"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	want := testTriple{A: "AN/SPY-6", Relation: "part_of", B: "DDG-51"}

	tests := []struct {
		name  string
		input string
	}{
		{"valid json object", `{"a":"AN/SPY-6","relation":"part_of","b":"DDG-51"}`},
		{"unquoted keys and single quotes", `{a: 'AN/SPY-6', relation: 'part_of', b: 'DDG-51'}`},
		{"trailing comma", `{"a":"AN/SPY-6","relation":"part_of","b":"DDG-51",}`},
		{"missing end bracket", `{"a":"AN/SPY-6","relation":"part_of","b":"DDG-51`},
		{"stringified invalid object", `"{a: 'AN/SPY-6', relation: 'part_of', b: 'DDG-51'}"`},
		{"duplicate leading brace", "{\n{\n  \"a\": \"AN/SPY-6\", \"relation\": \"part_of\", \"b\": \"DDG-51\"\n}\n"},
		{"json fence", "Here you go:\n```json\n{\"a\":\"AN/SPY-6\",\"relation\":\"part_of\",\"b\":\"DDG-51\"}\n```\nDone."},
		{"plain fence", "```\n{\"a\":\"AN/SPY-6\",\"relation\":\"part_of\",\"b\":\"DDG-51\"}\n```"},
		{"prose around object", `The triple is {"a":"AN/SPY-6","relation":"part_of","b":"DDG-51"} as requested.`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testTriple
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	input := `[{a:'A', b:'B'},{a:'C', b:'D',}]`
	var got []testTriple
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	want := []testTriple{{A: "A", B: "B"}, {A: "C", B: "D"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testTriple
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"x\": 1}\n```", `{"x": 1}`},
		{"json fence preferred", "```\n{\"y\": 2}\n```\n```json\n{\"x\": 1}\n```", `{"x": 1}`},
		{"plain fence", "```\n{\"x\": 1}\n```", `{"x": 1}`},
		{"braces in prose", `answer: {"x": {"y": 1}} end`, `{"x": {"y": 1}}`},
		{"no json", "  nothing here ", "nothing here"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.input); got != tc.want {
				t.Fatalf("ExtractJSON() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestApplyOptions(t *testing.T) {
	got := ApplyOptions(
		GenerateOptions{Model: "base", Temperature: 0.1},
		WithModel("analyst"),
		WithTemperature(0.3),
		WithSystemPrompts("a", "b"),
		nil,
	)
	want := GenerateOptions{Model: "analyst", Temperature: 0.3, SystemPrompts: []string{"a", "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ApplyOptions() = %+v, want %+v", got, want)
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Add(ModelMetrics{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, DurationMs: 1000})
	r.Add(ModelMetrics{InputTokens: 10, OutputTokens: 40, TotalTokens: 50, DurationMs: 1000})

	got := r.GetMetrics()
	want := ModelMetrics{InputTokens: 110, OutputTokens: 90, TotalTokens: 200, DurationMs: 2000, TokenPerSecond: 100}
	if got != want {
		t.Fatalf("GetMetrics() = %+v, want %+v", got, want)
	}

	r.ResetMetrics()
	if got := r.GetMetrics(); got != (ModelMetrics{}) {
		t.Fatalf("GetMetrics() after reset = %+v, want zero", got)
	}
}
