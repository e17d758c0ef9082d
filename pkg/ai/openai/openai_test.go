package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/ai"
)

func TestNewGraphOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewGraphOpenAIClient(NewGraphOpenAIClientParams{Model: "m"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("NewGraphOpenAIClient() error = %v, want ErrNoAPIKey", err)
	}
}

func TestGenerateCompletionWithFormat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("request body is not json: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "test-model",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"answer\": \"PEO Ships\"}"}
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`)
	}))
	defer srv.Close()

	client, err := NewGraphOpenAIClient(NewGraphOpenAIClientParams{
		Model:   "test-model",
		ChatURL: srv.URL + "/v1/",
		ChatKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewGraphOpenAIClient() error = %v", err)
	}

	var out struct {
		Answer string `json:"answer"`
	}
	err = client.GenerateCompletionWithFormat(context.Background(), "answer", "an answer", "Who oversees DDG-51?", &out, ai.WithSystemPrompts("be brief"))
	if err != nil {
		t.Fatalf("GenerateCompletionWithFormat() error = %v", err)
	}
	if out.Answer != "PEO Ships" {
		t.Fatalf("Answer = %q, want PEO Ships", out.Answer)
	}

	if gotBody["model"] != "test-model" {
		t.Fatalf("model = %v, want test-model", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want system and user", len(msgs))
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v, want json_schema", format)
	}

	m := client.GetMetrics()
	if m.InputTokens != 12 || m.OutputTokens != 3 || m.TotalTokens != 15 {
		t.Fatalf("GetMetrics() = %+v, want 12/3/15 tokens", m)
	}
}
