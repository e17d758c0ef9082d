package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var (
	jsonFencePattern  = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
	plainFencePattern = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// GenerateSchema creates a JSON Schema from the type of value, suitable for
// structured model output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// ExtractJSON returns the JSON payload of a model answer. It looks for a
// ```json fence, then a plain ``` fence, then the outermost braces, and
// returns the trimmed input when none match.
func ExtractJSON(text string) string {
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := plainFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := jsonObjectPattern.FindString(text); m != "" {
		return m
	}
	return strings.TrimSpace(text)
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// UnmarshalFlexible unmarshals model output into out. It accepts plain JSON,
// JSON wrapped in markdown fences or prose, double-encoded JSON strings and,
// as a last resort, JSON that jsonrepair can fix.
//
//	UnmarshalFlexible(`{"a": "X"}`, &t)             // standard JSON
//	UnmarshalFlexible("```json\n{\"a\":\"X\"}\n```", &t) // fenced
//	UnmarshalFlexible(`"{\"a\": \"X\"}"`, &t)       // double-encoded
//	UnmarshalFlexible(`{a: 'X',}`, &t)              // repaired
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	if !strings.HasPrefix(input, "[") {
		if extracted := ExtractJSON(input); extracted != input {
			if err := json.Unmarshal([]byte(extracted), out); err == nil {
				return nil
			}
			input = extracted
		}
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}
