package openai

import (
	"errors"

	"github.com/OFFIS-RIT/kgstore/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var ErrNoAPIKey = errors.New("openai: no api key configured")

// GraphOpenAIClient implements ai.GraphAIClient on top of an OpenAI
// compatible chat completions endpoint.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	ai.MetricsRecorder

	model   string
	chatURL string

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams configures a GraphOpenAIClient.
//
// Model is used when a request does not set one. ChatURL may be empty to
// use the OpenAI API.
type NewGraphOpenAIClientParams struct {
	Model   string
	ChatURL string
	ChatKey string

	MaxRetries int
}

// NewGraphOpenAIClient creates a GraphOpenAIClient. It fails when no API key
// is configured.
//
//	client, err := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		Model:   "gpt-4o-mini",
//		ChatKey: os.Getenv("AI_CHAT_KEY"),
//	})
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) (*GraphOpenAIClient, error) {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey, params.MaxRetries)
	if chatClient == nil {
		return nil, ErrNoAPIKey
	}

	return &GraphOpenAIClient{
		model:      params.Model,
		chatURL:    params.ChatURL,
		ChatClient: chatClient,
	}, nil
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
	maxRetries int,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if maxRetries > 0 {
		options = append(options, option.WithMaxRetries(maxRetries))
	}

	client := openai.NewClient(options...)

	return &client
}
